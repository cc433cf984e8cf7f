//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"tg-bridge/domain"
)

// HandshakeCallbacks bridges the registration handshake into values arriving
// asynchronously from a second API call. Phone resolves immediately; Code and
// Password suspend the handshake until they are supplied.
type HandshakeCallbacks struct {
	Phone    func(ctx context.Context) (string, error)
	Code     func(ctx context.Context) (string, error)
	Password func(ctx context.Context) (string, error)
}

// ChatClient is the capability surface consumed from the wire-protocol
// collaborator. One value wraps one connection handle; callers create a fresh
// client per connect attempt through a ClientFactory.
type ChatClient interface {
	// Connect imports the credential into this handle and starts the
	// connection, failing when the credential no longer authorizes.
	Connect(ctx context.Context, credential domain.Credential) error
	// StartHandshake runs the interactive phone/code/password login and
	// returns once the account is authenticated.
	StartHandshake(ctx context.Context, callbacks HandshakeCallbacks) error
	// Disconnect is idempotent and must not fail on a handle that never
	// connected.
	Disconnect(ctx context.Context) error
	// SendMessage delivers text to a username, or to the account's own
	// saved messages when target is domain.SelfTarget.
	SendMessage(ctx context.Context, target, text string) error
	// Inbound returns the update stream. At most one subscription exists
	// per handle.
	Inbound() <-chan domain.InboundMessage
	SelfIdentity(ctx context.Context) (domain.SelfIdentity, error)
	ExportCredential(ctx context.Context) (domain.Credential, error)
}

// ClientFactory builds a fresh, unconnected ChatClient handle.
type ClientFactory func() ChatClient

// ISession is the live, runtime-only binding of one account to its
// connection. Consumers may send through it but never mutate its state.
type ISession interface {
	Account() domain.AccountID
	Self() domain.SelfIdentity
	Send(ctx context.Context, target, text string) error
	Inbound() <-chan domain.InboundMessage
}

// IRegistry hands out sessions, connecting lazily. Concurrent calls for the
// same account share a single connect attempt.
type IRegistry interface {
	EnsureSession(ctx context.Context, account domain.AccountID) (ISession, error)
}

// ITriggerIndex is the in-memory trigger lookup read by the auto-reply
// engine on every inbound message.
type ITriggerIndex interface {
	Lookup(account domain.AccountID, text string) (string, bool)
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself; the supervisor recovers panics and restarts.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker for
// logging and supervision, avoiding manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
