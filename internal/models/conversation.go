package models

import "time"

// Conversation is the durable record of a messaging relationship between
// exactly two participants. At most one conversation exists per unordered
// pair; the repository enforces this with a unique index on PairKey.
type Conversation struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Members   []string  `bson:"members" json:"members"`
	PairKey   string    `bson:"pair_key" json:"-"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// HasMember reports whether userID is one of the two participants.
func (c *Conversation) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// ConversationSummary is a conversation enriched with inbox metadata.
type ConversationSummary struct {
	Conversation *Conversation `json:"conversation"`
	LastMessage  *Message      `json:"lastMessage,omitempty"`
	UnreadCount  int64         `json:"unreadCount"`
}
