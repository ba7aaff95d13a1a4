package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Mehfooz5/launchpad-messaging/internal/models"
)

// Publisher emits domain events for downstream consumers (notifications,
// analytics). A nil Publisher is valid and drops everything, so running
// without a broker stays possible in development.
type Publisher struct {
	writer                   *kafka.Writer
	topicMessageCreated      string
	topicConversationCreated string
}

func NewPublisher(brokers []string, topicMessageCreated, topicConversationCreated string) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Publisher{
		writer:                   w,
		topicMessageCreated:      topicMessageCreated,
		topicConversationCreated: topicConversationCreated,
	}
}

func (p *Publisher) MessageCreated(ctx context.Context, m *models.Message) error {
	if p == nil {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topicMessageCreated,
		Key:   []byte(m.ConversationID),
		Value: b,
		Time:  time.Now(),
	})
}

func (p *Publisher) ConversationCreated(ctx context.Context, c *models.Conversation) error {
	if p == nil {
		return nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topicConversationCreated,
		Key:   []byte(c.ID),
		Value: b,
		Time:  time.Now(),
	})
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
