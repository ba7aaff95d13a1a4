// Package chatclient implements the client side of the messaging protocol:
// resolve a conversation, join its socket room, fetch history, send through
// the REST endpoint, and reconcile the live broadcast echo against the local
// view so a message is never rendered twice.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// Conversation mirrors the service's wire shape.
type Conversation struct {
	ID        string    `json:"id"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message mirrors the service's wire shape.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Sender         string    `json:"sender"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	Read           bool      `json:"read"`
}

// Envelope is the socket frame, identical to the server's.
type Envelope struct {
	Type           string   `json:"type"`
	ConversationID string   `json:"conversationId,omitempty"`
	Message        *Message `json:"message,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Session is a scoped connection object with explicit lifetime: construct,
// Connect, use, Close. Nothing here is package-global, so independent views
// get independent sessions.
type Session struct {
	baseURL string
	wsURL   string
	token   string
	userID  string

	httpc    *http.Client
	dialer   *websocket.Dialer
	retryMax time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	joined map[string]struct{}
	views  map[string][]Message
	seen   map[string]map[string]struct{}
	closed bool

	onMessage func(conversationID string, msg Message)
	onError   func(err error)
}

type Option func(*Session)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(s *Session) { s.httpc = c } }

// WithRetryMaxElapsed bounds the backoff spent retrying idempotent reads.
func WithRetryMaxElapsed(d time.Duration) Option { return func(s *Session) { s.retryMax = d } }

// OnMessage registers the render callback for messages that survive
// reconciliation.
func OnMessage(fn func(conversationID string, msg Message)) Option {
	return func(s *Session) { s.onMessage = fn }
}

// OnError registers a callback for socket-level errors.
func OnError(fn func(err error)) Option { return func(s *Session) { s.onError = fn } }

func NewSession(baseURL, wsURL, token, userID string, opts ...Option) *Session {
	s := &Session{
		baseURL:  baseURL,
		wsURL:    wsURL,
		token:    token,
		userID:   userID,
		httpc:    &http.Client{Timeout: 15 * time.Second},
		dialer:   websocket.DefaultDialer,
		retryMax: 10 * time.Second,
		joined:   make(map[string]struct{}),
		views:    make(map[string][]Message),
		seen:     make(map[string]map[string]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ResolveConversation finds or creates the conversation with the other
// participant.
func (s *Session) ResolveConversation(ctx context.Context, otherUserID string) (*Conversation, error) {
	body := map[string]string{"senderId": s.userID, "receiverId": otherUserID}
	var conv Conversation
	if err := s.postJSON(ctx, "/api/v1/conversations", body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// History fetches the full message history, retrying transient failures
// (reads are idempotent; sends are not and are never auto-retried).
func (s *Session) History(ctx context.Context, conversationID string) ([]Message, error) {
	var msgs []Message
	op := func() error {
		return retryable(s.getJSON(ctx, "/api/v1/messages/"+conversationID, &msgs))
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = s.retryMax
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}

// Inbox lists the user's conversations, most recently active first.
func (s *Session) Inbox(ctx context.Context) ([]InboxEntry, error) {
	var entries []InboxEntry
	op := func() error {
		return retryable(s.getJSON(ctx, "/api/v1/conversations/"+s.userID, &entries))
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = s.retryMax
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return entries, nil
}

type InboxEntry struct {
	Conversation *Conversation `json:"conversation"`
	LastMessage  *Message      `json:"lastMessage,omitempty"`
	UnreadCount  int64         `json:"unreadCount"`
}

// MarkRead flags the other party's messages as read.
func (s *Session) MarkRead(ctx context.Context, conversationID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		s.baseURL+"/api/v1/messages/"+conversationID+"/read", nil)
	if err != nil {
		return err
	}
	return s.do(req, nil)
}

func (s *Session) postJSON(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, out)
}

func (s *Session) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return err
	}
	return s.do(req, out)
}

func (s *Session) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+s.token)
	resp, err := s.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// retryable marks 4xx responses permanent so backoff gives up on them
// immediately; network errors and 5xx keep retrying.
func retryable(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status < 500 {
		return backoff.Permanent(err)
	}
	return err
}

// APIError is a non-2xx response from the messaging service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("messaging api: %d %s", e.Status, e.Message)
}
