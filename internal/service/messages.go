package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Tyrowin/livechat/internal/apperrors"
	"github.com/Tyrowin/livechat/internal/chat"
	"github.com/Tyrowin/livechat/internal/realtime"
)

const messageNotFound = "Message not found"

// MessageService manages chat messages.
type MessageService struct {
	messages  chat.MessageRepository
	publisher realtime.Publisher
	clock     clockwork.Clock
	logger    *zap.Logger
}

func NewMessageService(messages chat.MessageRepository, publisher realtime.Publisher, clock clockwork.Clock, logger *zap.Logger) *MessageService {
	return &MessageService{
		messages:  messages,
		publisher: publisher,
		clock:     clock,
		logger:    logger.Named("messages"),
	}
}

// List returns every message, oldest first.
func (s *MessageService) List(ctx context.Context) ([]chat.Message, error) {
	messages, err := s.messages.List(ctx)
	if err != nil {
		return nil, apperrors.Internal("Failed to list messages", err)
	}
	return messages, nil
}

func (s *MessageService) Get(ctx context.Context, id string) (chat.Message, error) {
	msg, err := s.messages.FindByID(ctx, id)
	if errors.Is(err, chat.ErrNotFound) {
		return chat.Message{}, apperrors.NotFound(messageNotFound)
	}
	if err != nil {
		return chat.Message{}, apperrors.Internal("Failed to get message", err)
	}
	return msg, nil
}

// Create stores a message by author and publishes new_message.
func (s *MessageService) Create(ctx context.Context, author chat.PublicUser, text string) (chat.Message, error) {
	var v validator
	v.length("message", text, MessageMinLength, MessageMaxLength)
	if err := v.result(); err != nil {
		return chat.Message{}, err
	}

	ts := timestamp(s.clock)
	msg, err := s.messages.Create(ctx, chat.Message{
		ID:        uuid.NewString(),
		Username:  author.Username,
		Message:   text,
		CreatedAt: ts,
		UpdatedAt: ts,
	})
	if err != nil {
		return chat.Message{}, apperrors.Internal("Failed to create message", err)
	}

	s.publisher.Broadcast(realtime.MessageCreated{Message: msg})
	return msg, nil
}

// Update replaces the text of requester's own message and publishes changed_message.
func (s *MessageService) Update(ctx context.Context, id string, requester chat.PublicUser, text string) (chat.Message, error) {
	var v validator
	v.length("message", text, MessageMinLength, MessageMaxLength)
	if err := v.result(); err != nil {
		return chat.Message{}, err
	}

	if _, err := s.ownedMessage(ctx, id, requester, "You can only update your own messages"); err != nil {
		return chat.Message{}, err
	}

	msg, err := s.messages.Update(ctx, id, text, timestamp(s.clock))
	if errors.Is(err, chat.ErrNotFound) {
		return chat.Message{}, apperrors.NotFound(messageNotFound)
	}
	if err != nil {
		return chat.Message{}, apperrors.Internal("Failed to update message", err)
	}

	s.publisher.Broadcast(realtime.MessageChanged{Message: msg})
	return msg, nil
}

// Delete removes requester's own message and publishes deleted_message.
func (s *MessageService) Delete(ctx context.Context, id string, requester chat.PublicUser) error {
	if _, err := s.ownedMessage(ctx, id, requester, "You can only delete your own messages"); err != nil {
		return err
	}

	msg, err := s.messages.Delete(ctx, id)
	if errors.Is(err, chat.ErrNotFound) {
		return apperrors.NotFound(messageNotFound)
	}
	if err != nil {
		return apperrors.Internal("Failed to delete message", err)
	}

	s.publisher.Broadcast(realtime.MessageDeleted{Message: msg})
	return nil
}

func (s *MessageService) ownedMessage(ctx context.Context, id string, requester chat.PublicUser, forbidden string) (chat.Message, error) {
	msg, err := s.Get(ctx, id)
	if err != nil {
		return chat.Message{}, err
	}
	if msg.Username != requester.Username {
		s.logger.Info("Rejected change to foreign message",
			zap.String("message_id", id),
			zap.String("user_id", requester.ID),
		)
		return chat.Message{}, apperrors.Forbidden(forbidden)
	}
	return msg, nil
}
