package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Mehfooz5/launchpad-messaging/internal/events"
	"github.com/Mehfooz5/launchpad-messaging/internal/models"
	"github.com/Mehfooz5/launchpad-messaging/internal/repository"
)

var (
	ErrInvalidParticipant   = errors.New("participant id is required")
	ErrSelfConversation     = errors.New("cannot open a conversation with yourself")
	ErrEmptyMessage         = errors.New("message text is required")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotMember            = errors.New("sender is not a member of this conversation")
)

// ChatService owns conversation resolution and message persistence.
type ChatService struct {
	convs repository.ConversationRepository
	msgs  repository.MessageRepository
	pub   *events.Publisher
	log   *zap.SugaredLogger
}

func NewChatService(convs repository.ConversationRepository, msgs repository.MessageRepository, pub *events.Publisher, log *zap.SugaredLogger) *ChatService {
	return &ChatService{convs: convs, msgs: msgs, pub: pub, log: log}
}

// ResolveConversation finds or creates the single conversation between two
// participants. Concurrent calls for the same pair converge on one record:
// losing inserts hit the unique pair index and re-read the winner.
func (s *ChatService) ResolveConversation(ctx context.Context, a, b string) (*models.Conversation, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return nil, ErrInvalidParticipant
	}
	if a == b {
		return nil, ErrSelfConversation
	}

	conv, err := s.convs.FindByPair(ctx, a, b)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	conv, err = s.convs.Insert(ctx, &models.Conversation{Members: []string{a, b}})
	if errors.Is(err, repository.ErrDuplicatePair) {
		return s.convs.FindByPair(ctx, a, b)
	}
	if err != nil {
		return nil, err
	}

	if perr := s.pub.ConversationCreated(ctx, conv); perr != nil {
		s.log.Warnw("publish conversation.created", "conversation_id", conv.ID, "error", perr)
	}
	return conv, nil
}

// SendMessage appends a message. The timestamp is assigned at acceptance, not
// taken from the client, so history order matches acceptance order.
func (s *ChatService) SendMessage(ctx context.Context, conversationID, senderID, text string) (*models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	if strings.TrimSpace(senderID) == "" {
		return nil, ErrInvalidParticipant
	}

	conv, err := s.convs.FindByID(ctx, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	if !conv.HasMember(senderID) {
		return nil, ErrNotMember
	}

	msg, err := s.msgs.Insert(ctx, &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        text,
	})
	if err != nil {
		return nil, err
	}

	if terr := s.convs.Touch(ctx, conversationID, msg.CreatedAt); terr != nil {
		s.log.Warnw("touch conversation", "conversation_id", conversationID, "error", terr)
	}
	if perr := s.pub.MessageCreated(ctx, msg); perr != nil {
		s.log.Warnw("publish message.created", "message_id", msg.ID, "error", perr)
	}
	return msg, nil
}

// History returns the conversation's messages ascending by created_at.
// before/limit are optional paging knobs; zero values mean everything.
func (s *ChatService) History(ctx context.Context, conversationID string, before time.Time, limit int64) ([]*models.Message, error) {
	if _, err := s.convs.FindByID(ctx, conversationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	msgs, err := s.msgs.History(ctx, conversationID, before, limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	return msgs, nil
}

// ListConversations returns the user's inbox: conversations ordered by last
// activity, each with its latest message and unread count.
func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]*models.ConversationSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidParticipant
	}
	convs, err := s.convs.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]*models.ConversationSummary, 0, len(convs))
	for _, c := range convs {
		sum := &models.ConversationSummary{Conversation: c}

		last, err := s.msgs.LastMessage(ctx, c.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		sum.LastMessage = last

		unread, err := s.msgs.CountUnread(ctx, c.ID, userID)
		if err != nil {
			return nil, err
		}
		sum.UnreadCount = unread

		out = append(out, sum)
	}
	return out, nil
}

// MarkRead flags the other party's messages in the conversation as read.
func (s *ChatService) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	conv, err := s.convs.FindByID(ctx, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrConversationNotFound
	}
	if err != nil {
		return 0, err
	}
	if !conv.HasMember(readerID) {
		return 0, ErrNotMember
	}
	return s.msgs.MarkRead(ctx, conversationID, readerID)
}

// IsMember reports whether userID belongs to the conversation. The fan-out
// hub uses it to gate room joins.
func (s *ChatService) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	conv, err := s.convs.FindByID(ctx, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return conv.HasMember(userID), nil
}
