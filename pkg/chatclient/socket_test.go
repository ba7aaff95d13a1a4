package chatclient

import (
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn feeds a fixed sequence of envelopes to readLoop and then fails
// with its terminal error.
type fakeConn struct {
	envelopes []Envelope
	err       error
	done      chan struct{}
}

func newFakeConn(err error, envs ...Envelope) *fakeConn {
	return &fakeConn{envelopes: envs, err: err, done: make(chan struct{})}
}

func (f *fakeConn) ReadJSON(v any) error {
	if len(f.envelopes) == 0 {
		close(f.done)
		return f.err
	}
	env := f.envelopes[0]
	f.envelopes = f.envelopes[1:]
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func waitDone(t *testing.T, f *fakeConn) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(time.Second):
		t.Fatal("read loop did not drain the fake connection")
	}
}

func TestReadLoopRendersBroadcasts(t *testing.T) {
	var rendered []string
	s := NewSession("http://example.test", "ws://example.test/ws", "tok", "me",
		OnMessage(func(convID string, m Message) { rendered = append(rendered, m.ID) }))
	now := time.Now().UTC()

	conn := newFakeConn(io.EOF,
		Envelope{Type: "message", Message: &Message{ID: "m1", ConversationID: "c1", Sender: "them", Content: "hey", CreatedAt: now}},
		Envelope{Type: "message", Message: &Message{ID: "m1", ConversationID: "c1", Sender: "them", Content: "hey", CreatedAt: now}},
		Envelope{Type: "message", Message: &Message{ID: "m2", ConversationID: "c1", Sender: "them", Content: "again", CreatedAt: now.Add(time.Second)}},
	)
	s.readLoop(conn)
	waitDone(t, conn)

	assert.Equal(t, []string{"m1", "m2"}, rendered, "duplicate broadcast must not render twice")
	require.Len(t, s.Messages("c1"), 2)
}

func TestReadLoopSurfacesServerErrors(t *testing.T) {
	var got []string
	s := NewSession("http://example.test", "ws://example.test/ws", "tok", "me",
		OnError(func(err error) { got = append(got, err.Error()) }))

	conn := newFakeConn(io.EOF, Envelope{Type: "error", Error: "not a participant"})
	s.readLoop(conn)
	waitDone(t, conn)

	require.NotEmpty(t, got)
	assert.Equal(t, "not a participant", got[0])
}

func TestReadLoopIgnoresSupersededConnection(t *testing.T) {
	var got []error
	s := NewSession("http://example.test", "ws://example.test/ws", "tok", "me",
		OnError(func(err error) { got = append(got, err) }))

	// the session was redialed; this loop's connection is no longer current
	conn := newFakeConn(errors.New("use of closed network connection"))
	s.readLoop(conn)
	waitDone(t, conn)

	assert.Empty(t, got, "teardown of a replaced connection is not an error")
}

func TestReadLoopQuietAfterClose(t *testing.T) {
	var got []error
	s := NewSession("http://example.test", "ws://example.test/ws", "tok", "me",
		OnError(func(err error) { got = append(got, err) }))

	require.NoError(t, s.Close())
	conn := newFakeConn(errors.New("use of closed network connection"))
	s.readLoop(conn)
	waitDone(t, conn)

	assert.Empty(t, got, "a deliberate close is not an error")
}
