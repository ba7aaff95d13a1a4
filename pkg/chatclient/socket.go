package chatclient

import (
	"context"
	"errors"
	"net/http"
)

var ErrNotConnected = errors.New("session is not connected")

// Connect dials the socket endpoint and starts consuming broadcasts.
func (s *Session) Connect(ctx context.Context) error {
	header := http.Header{"Authorization": {"Bearer " + s.token}}
	conn, resp, err := s.dialer.DialContext(ctx, s.wsURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.closed = false
	s.mu.Unlock()

	go s.readLoop(conn)
	return nil
}

// OpenConversation runs the full open sequence: resolve, join the room,
// then fetch history. Joining before the fetch means a message that lands
// in between arrives as a broadcast and is deduped against the history.
func (s *Session) OpenConversation(ctx context.Context, otherUserID string) (*Conversation, []Message, error) {
	conv, err := s.ResolveConversation(ctx, otherUserID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Join(conv.ID); err != nil {
		return nil, nil, err
	}
	msgs, err := s.History(ctx, conv.ID)
	if err != nil {
		return nil, nil, err
	}
	s.loadHistory(conv.ID, msgs)
	return conv, s.Messages(conv.ID), nil
}

// Join subscribes this session to a conversation's room. Idempotent.
func (s *Session) Join(conversationID string) error {
	s.mu.Lock()
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.joined[conversationID] = struct{}{}
	s.mu.Unlock()

	return conn.WriteJSON(Envelope{Type: "join", ConversationID: conversationID})
}

// Leave unsubscribes from the room; the local view is kept.
func (s *Session) Leave(conversationID string) error {
	s.mu.Lock()
	conn := s.conn
	delete(s.joined, conversationID)
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.WriteJSON(Envelope{Type: "leave", ConversationID: conversationID})
}

// Send persists the message synchronously, renders it locally from the
// response (it already carries its server id), then notifies the hub so the
// other party's connections receive the broadcast. On append failure nothing
// is broadcast and the caller keeps the composed text.
func (s *Session) Send(ctx context.Context, conversationID, text string) (*Message, error) {
	body := map[string]string{
		"conversationId": conversationID,
		"sender":         s.userID,
		"text":           text,
	}
	var msg Message
	if err := s.postJSON(ctx, "/api/v1/message", body, &msg); err != nil {
		return nil, err
	}

	s.reconcile(conversationID, msg)

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		// best-effort: the message is durable either way, and the other
		// side heals through its next history fetch
		_ = conn.WriteJSON(Envelope{Type: "message", Message: &msg})
	}
	return &msg, nil
}

// Reconnect re-dials and re-joins every previously joined room before
// refetching their histories, healing the gap of broadcasts missed while
// disconnected.
func (s *Session) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	rooms := make([]string, 0, len(s.joined))
	for id := range s.joined {
		rooms = append(rooms, id)
	}
	s.mu.Unlock()

	if err := s.Connect(ctx); err != nil {
		return err
	}
	for _, id := range rooms {
		if err := s.Join(id); err != nil {
			return err
		}
	}
	for _, id := range rooms {
		msgs, err := s.History(ctx, id)
		if err != nil {
			return err
		}
		s.mergeHistory(id, msgs)
	}
	return nil
}

// Close tears the session down. It is safe to call twice.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *Session) readLoop(conn interface {
	ReadJSON(v any) error
}) {
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			// a loop left behind by Close or Reconnect fails when its
			// connection is torn down; only the current connection's
			// failure is reported
			s.mu.Lock()
			active := !s.closed && s.conn != nil && conn == s.conn
			s.mu.Unlock()
			if active && s.onError != nil {
				s.onError(err)
			}
			return
		}
		switch env.Type {
		case "message":
			if env.Message != nil {
				s.reconcile(env.Message.ConversationID, *env.Message)
			}
		case "error":
			if s.onError != nil {
				s.onError(errors.New(env.Error))
			}
		}
	}
}
