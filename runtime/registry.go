package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"tg-bridge/contract"
	"tg-bridge/domain"
	apperrors "tg-bridge/errors"
	"tg-bridge/repositories"
	"tg-bridge/runtime/workers"
)

// Registry owns every live account session. It guarantees at most one
// connection and one inbound listener per account: concurrent EnsureSession
// calls for the same account share a single connect attempt through a
// singleflight group, and the listener attach is flagged per session
// lifetime so re-entry can never double-subscribe.
type Registry struct {
	mu       sync.Mutex
	log      *slog.Logger
	sessions map[domain.AccountID]*Session
	connects singleflight.Group

	credentials repositories.ICredentialRepository
	newClient   contract.ClientFactory
	supervisor  contract.ISupervisor
	triggers    contract.ITriggerIndex

	lifecycle context.Context
}

func NewRegistry(
	log *slog.Logger,
	credentials repositories.ICredentialRepository,
	newClient contract.ClientFactory,
	supervisor contract.ISupervisor,
	triggers contract.ITriggerIndex,
) *Registry {
	return &Registry{
		log:         log,
		sessions:    make(map[domain.AccountID]*Session),
		credentials: credentials,
		newClient:   newClient,
		supervisor:  supervisor,
		triggers:    triggers,
	}
}

// Start records the process lifecycle context. Connects and listener workers
// run on it rather than on a single request's context, so a canceled HTTP
// call does not tear down a connection other callers share.
func (r *Registry) Start(ctx context.Context) {
	r.lifecycle = ctx
}

func (r *Registry) runCtx() context.Context {
	if r.lifecycle != nil {
		return r.lifecycle
	}
	return context.Background()
}

// EnsureSession returns the account's live session, connecting lazily.
// A connect failure leaves no half-initialized session behind, so the next
// call retries cleanly.
func (r *Registry) EnsureSession(ctx context.Context, account domain.AccountID) (contract.ISession, error) {
	account = domain.NormalizeAccountID(string(account))
	if account == "" {
		return nil, fmt.Errorf("%w: account is required", apperrors.ErrInvalidArgument)
	}

	r.mu.Lock()
	if session, ok := r.sessions[account]; ok && session.connected {
		r.mu.Unlock()
		return session, nil
	}
	r.mu.Unlock()

	// Every caller racing on the same account awaits the one in-flight
	// connect; singleflight drops the marker when it settles, so a failed
	// attempt can be retried by a later call.
	result, err, _ := r.connects.Do(string(account), func() (any, error) {
		return r.connect(r.runCtx(), account)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Session), nil
}

func (r *Registry) connect(ctx context.Context, account domain.AccountID) (*Session, error) {
	// A caller can reach the flight after an earlier one already settled and
	// stored the session. Re-check under the lock so the late entry reuses it
	// instead of opening a second connection over the first.
	r.mu.Lock()
	if session, ok := r.sessions[account]; ok && session.connected {
		r.mu.Unlock()
		return session, nil
	}
	r.mu.Unlock()

	credential, ok, err := r.credentials.Get(account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrNotRegistered, account)
	}

	client := r.newClient()
	if err := client.Connect(ctx, credential); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrConnectFailure, account, err)
	}

	self, err := client.SelfIdentity(ctx)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrConnectFailure, account, err)
	}

	session := &Session{
		account:   account,
		client:    client,
		self:      self,
		connected: true,
	}

	r.mu.Lock()
	r.sessions[account] = session
	r.attachListener(ctx, session)
	r.mu.Unlock()

	r.log.Info("Account connected", "account", account, "self_id", self.ID)
	return session, nil
}

// attachListener starts the auto-reply worker feeding on the session's
// inbound stream. Caller holds r.mu. The flag makes re-entry a no-op, so a
// session can never end up with two subscriptions.
func (r *Registry) attachListener(ctx context.Context, session *Session) {
	if session.listenerAttached {
		return
	}
	session.listenerAttached = true
	r.supervisor.Start(ctx, workers.NewAutoReplyWorker(r.log, session, r.triggers))
}

// Stop disconnects every live session. Called once at shutdown.
func (r *Registry) Stop(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for account, session := range r.sessions {
		if err := session.client.Disconnect(ctx); err != nil {
			r.log.Warn("Disconnect failed", "account", account, "error", err)
		}
		delete(r.sessions, account)
	}
}
