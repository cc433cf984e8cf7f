package runtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tg-bridge/contract"
	"tg-bridge/domain"
	apperrors "tg-bridge/errors"
)

// fakeConnectClient scripts the connect path of the capability interface.
type fakeConnectClient struct {
	connectDelay time.Duration
	connectErr   error
	selfErr      error
	self         domain.SelfIdentity

	connects    *atomic.Int32
	disconnects *atomic.Int32
	inbound     chan domain.InboundMessage
}

func (c *fakeConnectClient) Connect(ctx context.Context, _ domain.Credential) error {
	c.connects.Add(1)
	if c.connectDelay > 0 {
		select {
		case <-time.After(c.connectDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.connectErr
}

func (c *fakeConnectClient) StartHandshake(context.Context, contract.HandshakeCallbacks) error {
	return nil
}

func (c *fakeConnectClient) Disconnect(context.Context) error {
	c.disconnects.Add(1)
	return nil
}

func (c *fakeConnectClient) SendMessage(context.Context, string, string) error { return nil }

func (c *fakeConnectClient) Inbound() <-chan domain.InboundMessage { return c.inbound }

func (c *fakeConnectClient) SelfIdentity(context.Context) (domain.SelfIdentity, error) {
	return c.self, c.selfErr
}

func (c *fakeConnectClient) ExportCredential(context.Context) (domain.Credential, error) {
	return nil, nil
}

// countingSupervisor records listener attachments without running workers.
type countingSupervisor struct {
	starts atomic.Int32
}

func (s *countingSupervisor) Add(...contract.Worker) contract.ISupervisor { return s }
func (s *countingSupervisor) Run(context.Context)                         {}
func (s *countingSupervisor) Start(context.Context, contract.Worker)      { s.starts.Add(1) }
func (s *countingSupervisor) Stop()                                       {}

// memoryCredentials is a map-backed credential store for tests.
type memoryCredentials struct {
	mu    sync.Mutex
	store map[domain.AccountID]domain.Credential
}

func newMemoryCredentials() *memoryCredentials {
	return &memoryCredentials{store: make(map[domain.AccountID]domain.Credential)}
}

func (m *memoryCredentials) Get(account domain.AccountID) (domain.Credential, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	credential, ok := m.store[account]
	return credential, ok, nil
}

func (m *memoryCredentials) Put(account domain.AccountID, credential domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[account] = credential
	return nil
}

func (m *memoryCredentials) All() (map[domain.AccountID]domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make(map[domain.AccountID]domain.Credential, len(m.store))
	for account, credential := range m.store {
		all[account] = credential
	}
	return all, nil
}

type emptyIndex struct{}

func (emptyIndex) Lookup(domain.AccountID, string) (string, bool) { return "", false }

type registryFixture struct {
	registry    *Registry
	credentials *memoryCredentials
	supervisor  *countingSupervisor
	connects    *atomic.Int32
	disconnects *atomic.Int32
}

func newRegistryFixture(t *testing.T, client *fakeConnectClient) registryFixture {
	t.Helper()
	connects := &atomic.Int32{}
	disconnects := &atomic.Int32{}
	client.connects = connects
	client.disconnects = disconnects

	credentials := newMemoryCredentials()
	supervisor := &countingSupervisor{}
	registry := NewRegistry(testLogger(), credentials, func() contract.ChatClient { return client },
		supervisor, emptyIndex{})
	return registryFixture{
		registry:    registry,
		credentials: credentials,
		supervisor:  supervisor,
		connects:    connects,
		disconnects: disconnects,
	}
}

func TestRegistry_EnsureSession_Empty_Account(t *testing.T) {
	req := require.New(t)
	fixture := newRegistryFixture(t, &fakeConnectClient{})

	_, err := fixture.registry.EnsureSession(context.Background(), "   ")

	req.ErrorIs(err, apperrors.ErrInvalidArgument)
	req.Zero(fixture.connects.Load())
}

func TestRegistry_EnsureSession_Not_Registered(t *testing.T) {
	req := require.New(t)
	fixture := newRegistryFixture(t, &fakeConnectClient{})

	// Given no credential was ever persisted for alice
	_, err := fixture.registry.EnsureSession(context.Background(), "alice")

	req.ErrorIs(err, apperrors.ErrNotRegistered)
	req.Zero(fixture.connects.Load())
}

func TestRegistry_EnsureSession_Connects_Once_And_Caches(t *testing.T) {
	req := require.New(t)
	client := &fakeConnectClient{self: domain.SelfIdentity{ID: 42, Username: "alice"}}
	fixture := newRegistryFixture(t, client)
	req.NoError(fixture.credentials.Put("alice", domain.Credential("blob")))

	first, err := fixture.registry.EnsureSession(context.Background(), "alice")
	req.NoError(err)

	second, err := fixture.registry.EnsureSession(context.Background(), "alice")
	req.NoError(err)

	// Then the connected session is reused, not rebuilt
	req.Same(first, second)
	req.EqualValues(1, fixture.connects.Load())
	req.EqualValues(1, fixture.supervisor.starts.Load())
	req.Equal(domain.SelfIdentity{ID: 42, Username: "alice"}, first.Self())
}

func TestRegistry_EnsureSession_Concurrent_Callers_Share_One_Connect(t *testing.T) {
	req := require.New(t)
	client := &fakeConnectClient{
		connectDelay: 50 * time.Millisecond,
		self:         domain.SelfIdentity{ID: 42, Username: "alice"},
	}
	fixture := newRegistryFixture(t, client)
	req.NoError(fixture.credentials.Put("alice", domain.Credential("blob")))

	// When ten callers race on the same account
	const callers = 10
	sessions := make([]contract.ISession, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], errs[i] = fixture.registry.EnsureSession(context.Background(), "alice")
		}(i)
	}
	wg.Wait()

	// Then exactly one connect and one listener attachment happened
	req.EqualValues(1, fixture.connects.Load())
	req.EqualValues(1, fixture.supervisor.starts.Load())
	for i := 0; i < callers; i++ {
		req.NoError(errs[i])
		req.Same(sessions[0], sessions[i])
	}
}

func TestRegistry_EnsureSession_Late_Caller_Reuses_Settled_Session(t *testing.T) {
	req := require.New(t)
	client := &fakeConnectClient{self: domain.SelfIdentity{ID: 42, Username: "alice"}}
	fixture := newRegistryFixture(t, client)
	req.NoError(fixture.credentials.Put("alice", domain.Credential("blob")))

	// Given a caller that checked the session map before any connect
	fixture.registry.mu.Lock()
	_, seen := fixture.registry.sessions["alice"]
	fixture.registry.mu.Unlock()
	req.False(seen)

	// And another caller that connects before the first one moves on
	first, err := fixture.registry.EnsureSession(context.Background(), "alice")
	req.NoError(err)

	// When the late caller enters a connect flight of its own
	late, err := fixture.registry.connect(context.Background(), "alice")
	req.NoError(err)

	// Then it reuses the settled session instead of connecting on top of it
	req.Same(first, late)
	req.EqualValues(1, fixture.connects.Load())
	req.EqualValues(1, fixture.supervisor.starts.Load())
	req.Zero(fixture.disconnects.Load())
}

func TestRegistry_EnsureSession_Connect_Failure_Leaves_No_Session(t *testing.T) {
	req := require.New(t)
	client := &fakeConnectClient{connectErr: fmt.Errorf("flood wait")}
	fixture := newRegistryFixture(t, client)
	req.NoError(fixture.credentials.Put("alice", domain.Credential("blob")))

	_, err := fixture.registry.EnsureSession(context.Background(), "alice")
	req.ErrorIs(err, apperrors.ErrConnectFailure)

	// When the transport recovers, a later call retries cleanly
	client.connectErr = nil
	session, err := fixture.registry.EnsureSession(context.Background(), "alice")
	req.NoError(err)
	req.NotNil(session)
	req.EqualValues(2, fixture.connects.Load())
}

func TestRegistry_EnsureSession_Self_Identity_Failure_Disconnects(t *testing.T) {
	req := require.New(t)
	client := &fakeConnectClient{selfErr: fmt.Errorf("auth key dropped")}
	fixture := newRegistryFixture(t, client)
	req.NoError(fixture.credentials.Put("alice", domain.Credential("blob")))

	_, err := fixture.registry.EnsureSession(context.Background(), "alice")

	req.ErrorIs(err, apperrors.ErrConnectFailure)
	req.EqualValues(1, fixture.disconnects.Load())
	req.Zero(fixture.supervisor.starts.Load())
}

func TestRegistry_Stop_Disconnects_Sessions(t *testing.T) {
	req := require.New(t)
	client := &fakeConnectClient{self: domain.SelfIdentity{ID: 42, Username: "alice"}}
	fixture := newRegistryFixture(t, client)
	req.NoError(fixture.credentials.Put("alice", domain.Credential("blob")))

	_, err := fixture.registry.EnsureSession(context.Background(), "alice")
	req.NoError(err)

	fixture.registry.Stop(context.Background())
	req.EqualValues(1, fixture.disconnects.Load())
}
