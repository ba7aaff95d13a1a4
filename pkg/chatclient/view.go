package chatclient

import (
	"sort"
	"strings"
)

// localIDPrefix marks optimistic placeholders that have no server identity
// yet. AddLocal assigns them; reconcile replaces them with the confirmed copy.
const localIDPrefix = "local-"

// Messages returns a copy of the rendered list for a conversation.
func (s *Session) Messages(conversationID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := s.views[conversationID]
	out := make([]Message, len(view))
	copy(out, view)
	return out
}

// AddLocal renders an optimistic placeholder before the append response
// returns. Callers that render only confirmed sends never need it.
func (s *Session) AddLocal(conversationID string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !strings.HasPrefix(msg.ID, localIDPrefix) {
		msg.ID = localIDPrefix + msg.ID
	}
	s.views[conversationID] = append(s.views[conversationID], msg)
}

// loadHistory replaces the view with a fresh history fetch.
func (s *Session) loadHistory(conversationID string, msgs []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := make([]Message, len(msgs))
	copy(view, msgs)
	seen := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		seen[m.ID] = struct{}{}
	}
	s.views[conversationID] = view
	s.seen[conversationID] = seen
}

// mergeHistory folds a refetched history into the existing view, used after
// reconnect where broadcasts may have been missed, then restores the
// authoritative history order.
func (s *Session) mergeHistory(conversationID string, msgs []Message) {
	for _, m := range msgs {
		s.reconcile(conversationID, m)
	}
	s.mu.Lock()
	view := s.views[conversationID]
	sort.SliceStable(view, func(i, j int) bool {
		if !view[i].CreatedAt.Equal(view[j].CreatedAt) {
			return view[i].CreatedAt.Before(view[j].CreatedAt)
		}
		return view[i].ID < view[j].ID
	})
	s.mu.Unlock()
}

// reconcile applies the dual-path dedupe rule: a message enters the view
// only if its server id is unseen AND no placeholder with the same sender,
// text and timestamp is already rendered. The sender's own broadcast echo
// therefore collapses into the copy rendered from the send response.
// It reports whether the message was newly rendered.
func (s *Session) reconcile(conversationID string, msg Message) bool {
	s.mu.Lock()

	seen := s.seen[conversationID]
	if seen == nil {
		seen = make(map[string]struct{})
		s.seen[conversationID] = seen
	}
	if _, dup := seen[msg.ID]; dup {
		s.mu.Unlock()
		return false
	}

	view := s.views[conversationID]
	for i := range view {
		if view[i].ID == msg.ID {
			seen[msg.ID] = struct{}{}
			s.mu.Unlock()
			return false
		}
		if view[i].Sender == msg.Sender && view[i].Content == msg.Content &&
			(view[i].CreatedAt.Equal(msg.CreatedAt) || strings.HasPrefix(view[i].ID, localIDPrefix)) {
			// same logical message arriving on the second path: adopt the
			// server identity in place
			view[i] = msg
			seen[msg.ID] = struct{}{}
			s.mu.Unlock()
			return false
		}
	}

	s.views[conversationID] = append(view, msg)
	seen[msg.ID] = struct{}{}
	cb := s.onMessage
	s.mu.Unlock()

	if cb != nil {
		cb(conversationID, msg)
	}
	return true
}
