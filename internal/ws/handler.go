package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/Mehfooz5/launchpad-messaging/internal/cache"
	"github.com/Mehfooz5/launchpad-messaging/internal/models"
)

// Envelope is the wire frame for socket events in both directions.
type Envelope struct {
	Type           string          `json:"type"` // join, leave, message, error
	ConversationID string          `json:"conversationId,omitempty"`
	Message        *models.Message `json:"message,omitempty"`
	Error          string          `json:"error,omitempty"`
}

const (
	EventJoin    = "join"
	EventLeave   = "leave"
	EventMessage = "message"
	EventError   = "error"
)

// MembershipChecker gates room joins: a connection may only join rooms for
// conversations its user belongs to.
type MembershipChecker interface {
	IsMember(ctx context.Context, conversationID, userID string) (bool, error)
}

type Options struct {
	PingInterval    time.Duration
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
	MaxMessageBytes int64
	SendBufferSize  int
	PresenceTTL     time.Duration
}

// Handler bridges fiber websocket connections to the hub.
type Handler struct {
	hub      *Hub
	members  MembershipChecker
	presence *cache.PresenceStore
	log      *zap.SugaredLogger
	opts     Options
}

func NewHandler(hub *Hub, members MembershipChecker, presence *cache.PresenceStore, log *zap.SugaredLogger, opts Options) *Handler {
	return &Handler{hub: hub, members: members, presence: presence, log: log, opts: opts}
}

// Serve runs one connection to completion. Mount with websocket.New behind
// the auth middleware, which stores the authenticated user id in Locals.
func (h *Handler) Serve(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	if userID == "" {
		_ = conn.WriteJSON(Envelope{Type: EventError, Error: "unauthenticated"})
		_ = conn.Close()
		return
	}

	client := NewClient(userID, h.opts.SendBufferSize)
	h.hub.Register(client)
	if h.presence != nil {
		if err := h.presence.AddConnection(context.Background(), userID, client.ID, h.opts.PresenceTTL); err != nil {
			h.log.Warnw("presence add", "user_id", userID, "error", err)
		}
	}

	done := make(chan struct{})
	go h.writePump(conn, client, done)

	h.readPump(conn, client)

	// membership teardown is prompt: the hub removes the client from every
	// room; an append already accepted is unaffected
	h.hub.Unregister(client)
	if h.presence != nil {
		if err := h.presence.RemoveConnection(context.Background(), userID, client.ID); err != nil {
			h.log.Warnw("presence remove", "user_id", userID, "error", err)
		}
	}
	<-done
	_ = conn.Close()
}

func (h *Handler) readPump(conn *websocket.Conn, client *Client) {
	conn.SetReadLimit(h.opts.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
	})

	// joined mirrors the hub-side room set; it exists so membership and
	// relay checks happen here without a round trip into the hub loop
	joined := make(map[string]struct{})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.sendError(client, "malformed envelope")
			continue
		}
		h.dispatch(client, joined, env)
	}
}

// dispatch applies one envelope to the connection's room state. joined is the
// connection-local mirror of hub membership; only rooms in it may be relayed to.
func (h *Handler) dispatch(client *Client, joined map[string]struct{}, env Envelope) {
	switch env.Type {
	case EventJoin:
		if env.ConversationID == "" {
			h.sendError(client, "conversationId is required")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		ok, err := h.members.IsMember(ctx, env.ConversationID, client.UserID)
		cancel()
		if err != nil {
			h.log.Errorw("membership check", "conversation_id", env.ConversationID, "error", err)
			h.sendError(client, "membership check failed")
			return
		}
		if !ok {
			h.sendError(client, "not a member of this conversation")
			return
		}
		joined[env.ConversationID] = struct{}{}
		h.hub.Join(client, env.ConversationID)

	case EventLeave:
		delete(joined, env.ConversationID)
		h.hub.Leave(client, env.ConversationID)

	case EventMessage:
		// the client relays its already-persisted message; the hub
		// never writes to storage
		if env.Message == nil || env.Message.ConversationID == "" {
			h.sendError(client, "message payload is required")
			return
		}
		if env.Message.SenderID != client.UserID {
			h.sendError(client, "sender mismatch")
			return
		}
		if _, ok := joined[env.Message.ConversationID]; !ok {
			h.sendError(client, "join the conversation before sending")
			return
		}
		out, err := json.Marshal(Envelope{Type: EventMessage, Message: env.Message})
		if err != nil {
			return
		}
		h.hub.Broadcast(env.Message.ConversationID, out)

	default:
		h.sendError(client, "unknown event type")
	}
}

func (h *Handler) writePump(conn *websocket.Conn, client *Client, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-client.Outbox():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}

func (h *Handler) sendError(client *Client, msg string) {
	data, err := json.Marshal(Envelope{Type: EventError, Error: msg})
	if err != nil {
		return
	}
	client.trySend(data)
}
