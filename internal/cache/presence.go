package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceStore keeps live-connection bookkeeping in Redis so presence
// survives process restarts and is visible to other instances.
//
// Keys:
//   <prefix>:conn:<userID>     set of socket ids
//   <prefix>:presence:<userID> json {status, last_seen}
type PresenceStore struct {
	client *redis.Client
	prefix string
}

type Presence struct {
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

func NewPresenceStore(client *redis.Client, prefix string) *PresenceStore {
	return &PresenceStore{client: client, prefix: prefix}
}

func (s *PresenceStore) connKey(userID string) string {
	return fmt.Sprintf("%s:conn:%s", s.prefix, userID)
}

func (s *PresenceStore) presenceKey(userID string) string {
	return fmt.Sprintf("%s:presence:%s", s.prefix, userID)
}

// AddConnection records a socket for the user and marks them online.
func (s *PresenceStore) AddConnection(ctx context.Context, userID, socketID string, ttl time.Duration) error {
	if err := s.client.SAdd(ctx, s.connKey(userID), socketID).Err(); err != nil {
		return err
	}
	if err := s.client.Expire(ctx, s.connKey(userID), ttl).Err(); err != nil {
		return err
	}
	return s.setPresence(ctx, userID, "online", ttl)
}

// RemoveConnection drops a socket; the user goes offline when the last one
// is gone.
func (s *PresenceStore) RemoveConnection(ctx context.Context, userID, socketID string) error {
	if err := s.client.SRem(ctx, s.connKey(userID), socketID).Err(); err != nil {
		return err
	}
	remaining, err := s.client.SCard(ctx, s.connKey(userID)).Result()
	if err != nil {
		return err
	}
	if remaining == 0 {
		return s.setPresence(ctx, userID, "offline", 0)
	}
	return nil
}

// Get returns the user's presence; absent keys read as offline.
func (s *PresenceStore) Get(ctx context.Context, userID string) (*Presence, error) {
	b, err := s.client.Get(ctx, s.presenceKey(userID)).Bytes()
	if err == redis.Nil {
		return &Presence{Status: "offline"}, nil
	}
	if err != nil {
		return nil, err
	}
	var p Presence
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PresenceStore) setPresence(ctx context.Context, userID, status string, ttl time.Duration) error {
	b, _ := json.Marshal(Presence{Status: status, LastSeen: time.Now().Unix()})
	return s.client.Set(ctx, s.presenceKey(userID), b, ttl).Err()
}
