package services

import (
	"context"
	"fmt"

	"tg-bridge/contract"
	"tg-bridge/domain"
	apperrors "tg-bridge/errors"
)

type IMessageService interface {
	SendToUser(ctx context.Context, from, to, text string) error
	SendToSelf(ctx context.Context, from, text string) error
}

// MessageService sends outbound messages through lazily ensured sessions.
type MessageService struct {
	registry contract.IRegistry
}

func NewMessageService(registry contract.IRegistry) IMessageService {
	return &MessageService{registry: registry}
}

func (s *MessageService) SendToUser(ctx context.Context, from, to, text string) error {
	if to == "" || text == "" {
		return fmt.Errorf("%w: recipient and text are required", apperrors.ErrInvalidArgument)
	}
	session, err := s.registry.EnsureSession(ctx, domain.NormalizeAccountID(from))
	if err != nil {
		return err
	}
	return session.Send(ctx, to, text)
}

func (s *MessageService) SendToSelf(ctx context.Context, from, text string) error {
	if text == "" {
		return fmt.Errorf("%w: text is required", apperrors.ErrInvalidArgument)
	}
	session, err := s.registry.EnsureSession(ctx, domain.NormalizeAccountID(from))
	if err != nil {
		return err
	}
	return session.Send(ctx, domain.SelfTarget, text)
}
