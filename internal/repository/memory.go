package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Mehfooz5/launchpad-messaging/internal/models"
)

// In-memory implementations with the same semantics as the Mongo ones,
// including the unique pair constraint. Used by tests and local development.

type MemoryConversationRepo struct {
	mu     sync.Mutex
	byID   map[string]*models.Conversation
	byPair map[string]*models.Conversation
}

func NewMemoryConversationRepository() *MemoryConversationRepo {
	return &MemoryConversationRepo{
		byID:   make(map[string]*models.Conversation),
		byPair: make(map[string]*models.Conversation),
	}
}

func (r *MemoryConversationRepo) FindByPair(ctx context.Context, a, b string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byPair[PairKey(a, b)]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (r *MemoryConversationRepo) Insert(ctx context.Context, c *models.Conversation) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := PairKey(c.Members[0], c.Members[1])
	if _, ok := r.byPair[key]; ok {
		return nil, ErrDuplicatePair
	}
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID().Hex()
	c.PairKey = key
	c.CreatedAt = now
	c.UpdatedAt = now
	stored := *c
	r.byID[c.ID] = &stored
	r.byPair[key] = &stored
	cp := stored
	return &cp, nil
}

func (r *MemoryConversationRepo) FindByID(ctx context.Context, id string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byID[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (r *MemoryConversationRepo) ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Conversation
	for _, c := range r.byID {
		if c.HasMember(userID) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *MemoryConversationRepo) Touch(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byID[id]; ok {
		c.UpdatedAt = at.UTC()
	}
	return nil
}

type MemoryMessageRepo struct {
	mu     sync.Mutex
	byConv map[string][]*models.Message
}

func NewMemoryMessageRepository() *MemoryMessageRepo {
	return &MemoryMessageRepo{byConv: make(map[string][]*models.Message)}
}

func (r *MemoryMessageRepo) Insert(ctx context.Context, m *models.Message) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = primitive.NewObjectID().Hex()
	m.CreatedAt = time.Now().UTC()
	m.Read = false
	stored := *m
	r.byConv[m.ConversationID] = append(r.byConv[m.ConversationID], &stored)
	cp := stored
	return &cp, nil
}

func (r *MemoryMessageRepo) History(ctx context.Context, conversationID string, before time.Time, limit int64) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Message
	for _, m := range r.byConv[conversationID] {
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[int64(len(out))-limit:]
	}
	return out, nil
}

func (r *MemoryMessageRepo) LastMessage(ctx context.Context, conversationID string) (*models.Message, error) {
	msgs, _ := r.History(ctx, conversationID, time.Time{}, 0)
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}
	return msgs[len(msgs)-1], nil
}

func (r *MemoryMessageRepo) CountUnread(ctx context.Context, conversationID, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.byConv[conversationID] {
		if m.SenderID != userID && !m.Read {
			n++
		}
	}
	return n, nil
}

func (r *MemoryMessageRepo) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.byConv[conversationID] {
		if m.SenderID != readerID && !m.Read {
			m.Read = true
			n++
		}
	}
	return n, nil
}
