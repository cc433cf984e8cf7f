package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"tg-bridge/contract"
	"tg-bridge/domain"
	apperrors "tg-bridge/errors"
	"tg-bridge/repositories"
)

// Coordinator drives the phone -> code -> (optional password) onboarding
// handshake for new accounts. At most one registration is in flight
// process-wide; the pending slot and its dedicated connection handle belong
// exclusively to the coordinator.
type Coordinator struct {
	mu          sync.Mutex
	log         *slog.Logger
	credentials repositories.ICredentialRepository
	newClient   contract.ClientFactory
	pending     *PendingRegistration

	lifecycle context.Context
}

// PendingRegistration describes the one in-flight handshake: the phone it
// was started for, the two value slots the handshake task suspends on, and
// the channel the background task settles exactly once.
type PendingRegistration struct {
	ID    uuid.UUID
	Phone string

	code     *deferredValue
	password *deferredValue
	done     chan error
	client   contract.ChatClient
}

func NewCoordinator(
	log *slog.Logger,
	credentials repositories.ICredentialRepository,
	newClient contract.ClientFactory,
) *Coordinator {
	return &Coordinator{log: log, credentials: credentials, newClient: newClient}
}

// Start records the process lifecycle context the background handshake task
// runs on, so it survives the HTTP request that began it.
func (c *Coordinator) Start(ctx context.Context) {
	c.lifecycle = ctx
}

func (c *Coordinator) runCtx() context.Context {
	if c.lifecycle != nil {
		return c.lifecycle
	}
	return context.Background()
}

// Begin starts a registration handshake and returns as soon as the code was
// requested, without waiting for the handshake to finish. A second Begin
// while one is pending fails without side effects.
func (c *Coordinator) Begin(ctx context.Context, phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", fmt.Errorf("%w: phone is required", apperrors.ErrInvalidArgument)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		return "", apperrors.ErrRegistrationInProgress
	}

	pending := &PendingRegistration{
		ID:       uuid.New(),
		Phone:    phone,
		code:     newDeferredValue(),
		password: newDeferredValue(),
		done:     make(chan error, 1),
		client:   c.newClient(),
	}
	c.pending = pending

	go c.runHandshake(c.runCtx(), pending)

	c.log.Info("Registration started", "registration_id", pending.ID, "phone", phone)
	return domain.StatusCodeSent, nil
}

// Confirm fulfils the code and password slots and suspends the caller until
// the background handshake settles. Accounts without two-factor auth expect
// an immediately available empty password, so the slot is always resolved.
// A phone mismatch leaves the pending registration intact for a retry.
func (c *Coordinator) Confirm(ctx context.Context, phone, code, password string) (string, error) {
	c.mu.Lock()
	pending := c.pending
	c.mu.Unlock()
	if pending == nil {
		return "", apperrors.ErrNoPendingRegistration
	}
	if strings.TrimSpace(phone) != pending.Phone {
		return "", apperrors.ErrPhoneMismatch
	}

	pending.code.Resolve(strings.TrimSpace(code))
	pending.password.Resolve(strings.TrimSpace(password))

	select {
	case err := <-pending.done:
		if err != nil {
			return "", err
		}
		return domain.StatusRegistered, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// runHandshake is the background task driving one registration. Cleanup is
// unconditional: the connection is released and the pending slot cleared on
// every exit path, so the system never wedges in "registration in progress"
// after a failure.
func (c *Coordinator) runHandshake(ctx context.Context, pending *PendingRegistration) {
	err := c.handshake(ctx, pending)
	if err != nil {
		c.log.Error("Registration failed", "registration_id", pending.ID, "error", err)
	}

	_ = pending.client.Disconnect(ctx)

	c.mu.Lock()
	if c.pending == pending {
		c.pending = nil
	}
	c.mu.Unlock()

	pending.done <- err
}

func (c *Coordinator) handshake(ctx context.Context, pending *PendingRegistration) error {
	callbacks := contract.HandshakeCallbacks{
		Phone:    func(context.Context) (string, error) { return pending.Phone, nil },
		Code:     pending.code.Await,
		Password: pending.password.Await,
	}
	if err := pending.client.StartHandshake(ctx, callbacks); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrConnectFailure, err)
	}

	self, err := pending.client.SelfIdentity(ctx)
	if err != nil {
		return err
	}
	credential, err := pending.client.ExportCredential(ctx)
	if err != nil {
		return err
	}

	account := domain.AccountID(self.Username)
	if account == "" {
		account = domain.UnknownAccount
	}
	if err := c.credentials.Put(account, credential); err != nil {
		return err
	}

	c.log.Info("Registration completed", "registration_id", pending.ID, "account", account)
	return nil
}
