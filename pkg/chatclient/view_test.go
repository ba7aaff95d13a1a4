package chatclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession() *Session {
	return NewSession("http://example.test", "ws://example.test/ws", "tok", "me")
}

func msgAt(id, sender, content string, at time.Time) Message {
	return Message{ID: id, ConversationID: "c1", Sender: sender, Content: content, CreatedAt: at}
}

func TestReconcileDedupesByServerID(t *testing.T) {
	s := newTestSession()
	now := time.Now().UTC()

	m := msgAt("m1", "me", "hello", now)

	// send-path render, then the broadcast echo of the same message
	assert.True(t, s.reconcile("c1", m))
	assert.False(t, s.reconcile("c1", m))

	view := s.Messages("c1")
	require.Len(t, view, 1)
	assert.Equal(t, "m1", view[0].ID)
}

func TestReconcileKeepsDistinctMessages(t *testing.T) {
	s := newTestSession()
	now := time.Now().UTC()

	assert.True(t, s.reconcile("c1", msgAt("m1", "me", "hello", now)))
	assert.True(t, s.reconcile("c1", msgAt("m2", "them", "hi!", now.Add(time.Second))))
	// same text, same sender, different server identity and timestamp:
	// a legitimately repeated message, not a duplicate
	assert.True(t, s.reconcile("c1", msgAt("m3", "me", "hello", now.Add(2*time.Second))))

	assert.Len(t, s.Messages("c1"), 3)
}

func TestReconcileReplacesLocalPlaceholder(t *testing.T) {
	s := newTestSession()
	now := time.Now().UTC()

	s.AddLocal("c1", Message{ID: "tmp1", ConversationID: "c1", Sender: "me", Content: "hello", CreatedAt: now})
	require.Len(t, s.Messages("c1"), 1)

	confirmed := msgAt("m1", "me", "hello", now.Add(50*time.Millisecond))
	assert.False(t, s.reconcile("c1", confirmed), "placeholder replacement is not a new render")

	view := s.Messages("c1")
	require.Len(t, view, 1)
	assert.Equal(t, "m1", view[0].ID, "placeholder must adopt the server identity")
}

func TestReconcileFallsBackToContentMatch(t *testing.T) {
	s := newTestSession()
	now := time.Now().UTC()

	// an entry rendered before its server id was known, same sender,
	// text and timestamp as the broadcast that follows
	s.loadHistory("c1", []Message{msgAt("pending", "me", "hello", now)})

	assert.False(t, s.reconcile("c1", msgAt("m1", "me", "hello", now)))

	view := s.Messages("c1")
	require.Len(t, view, 1)
	assert.Equal(t, "m1", view[0].ID)
}

func TestOnMessageFiresOncePerRenderedMessage(t *testing.T) {
	var rendered []string
	s := NewSession("http://example.test", "ws://example.test/ws", "tok", "me",
		OnMessage(func(convID string, m Message) { rendered = append(rendered, m.ID) }))
	now := time.Now().UTC()

	s.reconcile("c1", msgAt("m1", "them", "hey", now))
	s.reconcile("c1", msgAt("m1", "them", "hey", now))
	s.reconcile("c1", msgAt("m2", "them", "you there?", now.Add(time.Second)))

	assert.Equal(t, []string{"m1", "m2"}, rendered)
}

func TestLoadHistoryResetsView(t *testing.T) {
	s := newTestSession()
	now := time.Now().UTC()

	s.reconcile("c1", msgAt("stale", "me", "old", now))
	s.loadHistory("c1", []Message{
		msgAt("m1", "me", "hello", now),
		msgAt("m2", "them", "hi!", now.Add(time.Second)),
	})

	view := s.Messages("c1")
	require.Len(t, view, 2)
	assert.Equal(t, "m1", view[0].ID)
	assert.Equal(t, "m2", view[1].ID)
}

func TestMergeHistoryHealsGapInOrder(t *testing.T) {
	s := newTestSession()
	now := time.Now().UTC()

	// live broadcast arrived while the missed middle message did not
	s.loadHistory("c1", []Message{msgAt("m1", "me", "hello", now)})
	s.reconcile("c1", msgAt("m3", "them", "third", now.Add(3*time.Second)))

	s.mergeHistory("c1", []Message{
		msgAt("m1", "me", "hello", now),
		msgAt("m2", "them", "second", now.Add(2*time.Second)),
		msgAt("m3", "them", "third", now.Add(3*time.Second)),
	})

	view := s.Messages("c1")
	require.Len(t, view, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{view[0].ID, view[1].ID, view[2].ID})
}

func TestMessagesReturnsCopy(t *testing.T) {
	s := newTestSession()
	now := time.Now().UTC()
	s.reconcile("c1", msgAt("m1", "me", "hello", now))

	view := s.Messages("c1")
	view[0].Content = "mutated"

	assert.Equal(t, "hello", s.Messages("c1")[0].Content)
}

func TestViewsAreScopedPerConversation(t *testing.T) {
	s := newTestSession()
	now := time.Now().UTC()

	s.reconcile("c1", msgAt("m1", "me", "to c1", now))
	s.reconcile("c2", msgAt("m2", "me", "to c2", now))

	require.Len(t, s.Messages("c1"), 1)
	require.Len(t, s.Messages("c2"), 1)
	assert.Equal(t, "to c1", s.Messages("c1")[0].Content)
	assert.Equal(t, "to c2", s.Messages("c2")[0].Content)
}
