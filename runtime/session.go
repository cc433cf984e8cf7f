package runtime

import (
	"context"

	"tg-bridge/contract"
	"tg-bridge/domain"
)

// Session binds one account to its live connection. Runtime-only: destroyed
// on disconnect or process exit and recreated lazily on next use. All fields
// are set once at connect time; the flags are guarded by the registry mutex.
type Session struct {
	account domain.AccountID
	client  contract.ChatClient
	self    domain.SelfIdentity

	connected        bool
	listenerAttached bool
}

func (s *Session) Account() domain.AccountID { return s.account }

func (s *Session) Self() domain.SelfIdentity { return s.self }

func (s *Session) Send(ctx context.Context, target, text string) error {
	return s.client.SendMessage(ctx, target, text)
}

func (s *Session) Inbound() <-chan domain.InboundMessage {
	return s.client.Inbound()
}
