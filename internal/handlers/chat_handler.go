package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Mehfooz5/launchpad-messaging/internal/cache"
	"github.com/Mehfooz5/launchpad-messaging/internal/service"
)

type ChatHandler struct {
	svc      *service.ChatService
	presence *cache.PresenceStore
	log      *zap.SugaredLogger
}

func NewChatHandler(svc *service.ChatService, presence *cache.PresenceStore, log *zap.SugaredLogger) *ChatHandler {
	return &ChatHandler{svc: svc, presence: presence, log: log}
}

// ResolveConversation handles POST /conversations {senderId, receiverId}.
// Find-or-create: the same pair always resolves to the same conversation.
func (h *ChatHandler) ResolveConversation(c *fiber.Ctx) error {
	var body struct {
		SenderID   string `json:"senderId"`
		ReceiverID string `json:"receiverId"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if uid := authedUser(c); uid != "" && uid != body.SenderID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "senderId does not match authenticated user"})
	}

	conv, err := h.svc.ResolveConversation(c.UserContext(), body.SenderID, body.ReceiverID)
	if err != nil {
		return h.fail(c, err, "resolve conversation")
	}
	return c.JSON(conv)
}

// ListConversations handles GET /conversations/:userId.
func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if uid := authedUser(c); uid != "" && uid != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "cannot read another user's inbox"})
	}

	sums, err := h.svc.ListConversations(c.UserContext(), userID)
	if err != nil {
		return h.fail(c, err, "list conversations")
	}
	return c.JSON(sums)
}

// GetMessages handles GET /messages/:conversationId. Full ascending history
// by default; ?limit= and ?before= (RFC3339) page from the newest end.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	convID := c.Params("conversationId")

	var before time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "before must be RFC3339"})
		}
		before = t
	}
	var limit int64
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be a non-negative integer"})
		}
		limit = n
	}

	msgs, err := h.svc.History(c.UserContext(), convID, before, limit)
	if err != nil {
		return h.fail(c, err, "fetch history")
	}
	return c.JSON(msgs)
}

// SendMessage handles POST /message {conversationId, sender, text}. The
// response carries the persisted message with its server-assigned id; the
// caller then relays it to the socket room itself.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var body struct {
		ConversationID string `json:"conversationId"`
		Sender         string `json:"sender"`
		Text           string `json:"text"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if uid := authedUser(c); uid != "" && uid != body.Sender {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "sender does not match authenticated user"})
	}

	msg, err := h.svc.SendMessage(c.UserContext(), body.ConversationID, body.Sender, body.Text)
	if err != nil {
		return h.fail(c, err, "send message")
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// MarkRead handles PUT /messages/:conversationId/read.
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	convID := c.Params("conversationId")
	reader := authedUser(c)
	if reader == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthenticated"})
	}

	n, err := h.svc.MarkRead(c.UserContext(), convID, reader)
	if err != nil {
		return h.fail(c, err, "mark read")
	}
	return c.JSON(fiber.Map{"updated": n})
}

// GetPresence handles GET /presence/:userId.
func (h *ChatHandler) GetPresence(c *fiber.Ctx) error {
	if h.presence == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "presence unavailable"})
	}
	p, err := h.presence.Get(c.UserContext(), c.Params("userId"))
	if err != nil {
		return h.fail(c, err, "get presence")
	}
	return c.JSON(p)
}

func (h *ChatHandler) fail(c *fiber.Ctx, err error, op string) error {
	switch {
	case errors.Is(err, service.ErrInvalidParticipant),
		errors.Is(err, service.ErrSelfConversation),
		errors.Is(err, service.ErrEmptyMessage):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrConversationNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotMember):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	default:
		h.log.Errorw(op, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}

func authedUser(c *fiber.Ctx) string {
	uid, _ := c.Locals("user_id").(string)
	return uid
}
