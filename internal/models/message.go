package models

import "time"

// Message is immutable after creation except for the Read flag.
// CreatedAt is assigned server-side at the moment the message is accepted.
type Message struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversationId"`
	SenderID       string    `bson:"sender_id" json:"sender"`
	Content        string    `bson:"content" json:"content"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
	Read           bool      `bson:"read" json:"read"`
}
