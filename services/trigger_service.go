package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tg-bridge/contract"
	"tg-bridge/domain"
	apperrors "tg-bridge/errors"
	"tg-bridge/repositories"
)

type ITriggerService interface {
	contract.ITriggerIndex
	PersistTrigger(ctx context.Context, username, match, reply string) error
	ClearTriggers(username string) error
	Hydrate(ctx context.Context) error
}

// TriggerService owns the in-memory trigger mirror the auto-reply engine
// reads on every inbound message, and keeps it in sync with the durable
// store. The mirror is hydrated at process start for every account with at
// least one persisted rule.
type TriggerService struct {
	mu       sync.RWMutex
	log      *slog.Logger
	triggers repositories.ITriggerRepository
	registry contract.IRegistry
	mirror   map[domain.AccountID]map[string]string
}

func NewTriggerService(log *slog.Logger, triggers repositories.ITriggerRepository) *TriggerService {
	return &TriggerService{
		log:      log,
		triggers: triggers,
		mirror:   make(map[domain.AccountID]map[string]string),
	}
}

// BindRegistry breaks the construction cycle between the trigger service and
// the session registry: the registry needs the trigger index for its
// listeners, the service needs the registry to ensure listeners attach.
func (s *TriggerService) BindRegistry(registry contract.IRegistry) {
	s.registry = registry
}

// PersistTrigger stores the rule durably, updates the mirror, and asks the
// registry for a session so the account's listener is attached even when no
// message was ever sent through the API. The rule stays persisted when the
// connect fails; hydration will attach the listener on the next start.
func (s *TriggerService) PersistTrigger(ctx context.Context, username, match, reply string) error {
	account := domain.NormalizeAccountID(username)
	if account == "" || match == "" || reply == "" {
		return fmt.Errorf("%w: username, trigger and reply are required", apperrors.ErrInvalidArgument)
	}

	if err := s.triggers.PutRule(account, match, reply); err != nil {
		return err
	}

	s.mu.Lock()
	s.accountTriggers(account)[match] = reply
	s.mu.Unlock()

	if _, err := s.registry.EnsureSession(ctx, account); err != nil {
		return err
	}
	return nil
}

// ClearTriggers removes the account's rules from the store and the mirror.
// Later inbound messages to that account produce no reply.
func (s *TriggerService) ClearTriggers(username string) error {
	account := domain.NormalizeAccountID(username)
	if account == "" {
		return fmt.Errorf("%w: username is required", apperrors.ErrInvalidArgument)
	}

	if err := s.triggers.Clear(account); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.mirror, account)
	s.mu.Unlock()
	return nil
}

// Lookup resolves the reply for an exact match text. Called from the
// auto-reply workers, so it only takes the read lock.
func (s *TriggerService) Lookup(account domain.AccountID, text string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reply, ok := s.mirror[account][text]
	return reply, ok
}

// Hydrate rebuilds the mirror from the durable store and reconnects every
// account that has at least one persisted rule, so listeners come back after
// a restart without an explicit API call. A single account failing to
// connect must not abort the others.
func (s *TriggerService) Hydrate(ctx context.Context) error {
	accounts, err := s.triggers.Accounts()
	if err != nil {
		return err
	}

	for _, account := range accounts {
		rules, err := s.triggers.GetRules(account)
		if err != nil {
			return err
		}

		s.mu.Lock()
		triggerMap := s.accountTriggers(account)
		for _, rule := range rules {
			triggerMap[rule.Match] = rule.Reply
		}
		s.mu.Unlock()

		if _, err := s.registry.EnsureSession(ctx, account); err != nil {
			s.log.Warn("Could not reconnect account during hydration",
				"account", account, "error", err)
		}
	}

	if len(accounts) > 0 {
		s.log.Info("Trigger mirror hydrated", "accounts", len(accounts))
	}
	return nil
}

// accountTriggers lazily creates the per-account map. Caller holds s.mu.
func (s *TriggerService) accountTriggers(account domain.AccountID) map[string]string {
	triggerMap, ok := s.mirror[account]
	if !ok {
		triggerMap = make(map[string]string)
		s.mirror[account] = triggerMap
	}
	return triggerMap
}
