package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/Mehfooz5/launchpad-messaging/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicatePair = errors.New("conversation already exists for pair")
)

// ConversationRepository persists conversations keyed by their member pair.
type ConversationRepository interface {
	// FindByPair returns the conversation for the unordered pair {a,b},
	// or ErrNotFound.
	FindByPair(ctx context.Context, a, b string) (*models.Conversation, error)
	// Insert creates the conversation. It returns ErrDuplicatePair when a
	// conversation with the same pair key was created concurrently.
	Insert(ctx context.Context, c *models.Conversation) (*models.Conversation, error)
	FindByID(ctx context.Context, id string) (*models.Conversation, error)
	// ListForUser returns the user's conversations, most recently active first.
	ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error)
	// Touch bumps updated_at after a message append.
	Touch(ctx context.Context, id string, at time.Time) error
}

// MessageRepository is append-only; messages are never deleted and only the
// read flag is ever updated.
type MessageRepository interface {
	// Insert assigns the message id and created_at at acceptance time.
	Insert(ctx context.Context, m *models.Message) (*models.Message, error)
	// History returns messages ascending by created_at. A zero before and
	// limit 0 mean the full history.
	History(ctx context.Context, conversationID string, before time.Time, limit int64) ([]*models.Message, error)
	LastMessage(ctx context.Context, conversationID string) (*models.Message, error)
	CountUnread(ctx context.Context, conversationID, userID string) (int64, error)
	// MarkRead flags every unread message not sent by readerID as read and
	// returns the number updated.
	MarkRead(ctx context.Context, conversationID, readerID string) (int64, error)
}

// PairKey normalizes an unordered participant pair to a stable index key, so
// FindByPair(a,b) and FindByPair(b,a) hit the same document.
func PairKey(a, b string) string {
	m := []string{a, b}
	sort.Strings(m)
	return strings.Join(m, "|")
}
