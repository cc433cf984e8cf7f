package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tg-bridge/domain"
)

// fakeSession feeds scripted inbound messages and records outgoing sends.
type fakeSession struct {
	mu      sync.Mutex
	account domain.AccountID
	self    domain.SelfIdentity
	inbound chan domain.InboundMessage
	sent    []sentMessage
}

type sentMessage struct {
	target, text string
}

func newFakeSession(account domain.AccountID, selfID int64) *fakeSession {
	return &fakeSession{
		account: account,
		self:    domain.SelfIdentity{ID: selfID, Username: string(account)},
		inbound: make(chan domain.InboundMessage, 8),
	}
}

func (s *fakeSession) Account() domain.AccountID { return s.account }

func (s *fakeSession) Self() domain.SelfIdentity { return s.self }

func (s *fakeSession) Send(_ context.Context, target, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{target: target, text: text})
	return nil
}

func (s *fakeSession) Inbound() <-chan domain.InboundMessage { return s.inbound }

func (s *fakeSession) sentMessages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage{}, s.sent...)
}

// mapIndex answers lookups from a fixed account -> trigger -> reply table.
type mapIndex map[domain.AccountID]map[string]string

func (m mapIndex) Lookup(account domain.AccountID, text string) (string, bool) {
	reply, ok := m[account][text]
	return reply, ok
}

func runWorker(t *testing.T, session *fakeSession, index mapIndex) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	worker := NewAutoReplyWorker(testLogger(), session, index)
	done := make(chan struct{})
	go func() {
		_ = worker.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestAutoReplyWorker_Replies_On_Exact_Match(t *testing.T) {
	req := require.New(t)
	session := newFakeSession("alice", 7)
	index := mapIndex{"alice": {"ping": "pong"}}
	runWorker(t, session, index)

	// When a matching message arrives
	session.inbound <- domain.InboundMessage{
		Sender: domain.Peer{ID: 42, Username: "bob"},
		Text:   "ping",
	}

	// Then exactly one reply goes back to the sender
	req.Eventually(func() bool {
		return len(session.sentMessages()) == 1
	}, time.Second, 10*time.Millisecond)
	req.Equal(sentMessage{target: "bob", text: "pong"}, session.sentMessages()[0])
}

func TestAutoReplyWorker_Trims_Before_Matching(t *testing.T) {
	req := require.New(t)
	session := newFakeSession("alice", 7)
	index := mapIndex{"alice": {"ping": "pong"}}
	runWorker(t, session, index)

	session.inbound <- domain.InboundMessage{
		Sender: domain.Peer{ID: 42, Username: "bob"},
		Text:   "  ping \n",
	}

	req.Eventually(func() bool {
		return len(session.sentMessages()) == 1
	}, time.Second, 10*time.Millisecond)
	req.Equal("pong", session.sentMessages()[0].text)
}

func TestAutoReplyWorker_Ignores_Own_Messages(t *testing.T) {
	req := require.New(t)
	session := newFakeSession("alice", 7)
	index := mapIndex{"alice": {"ping": "pong"}}
	runWorker(t, session, index)

	// When the account's own message matches a trigger
	session.inbound <- domain.InboundMessage{
		Sender: domain.Peer{ID: 7, Username: "alice"},
		Text:   "ping",
	}
	// And a control message proves the worker kept running
	session.inbound <- domain.InboundMessage{
		Sender: domain.Peer{ID: 42, Username: "bob"},
		Text:   "ping",
	}

	req.Eventually(func() bool {
		return len(session.sentMessages()) == 1
	}, time.Second, 10*time.Millisecond)
	req.Equal("bob", session.sentMessages()[0].target)
}

func TestAutoReplyWorker_Drops_Senders_Without_Username(t *testing.T) {
	req := require.New(t)
	session := newFakeSession("alice", 7)
	index := mapIndex{"alice": {"ping": "pong"}}
	runWorker(t, session, index)

	session.inbound <- domain.InboundMessage{
		Sender: domain.Peer{ID: 42, FirstName: "Bob"},
		Text:   "ping",
	}
	session.inbound <- domain.InboundMessage{
		Sender: domain.Peer{ID: 43, Username: "carol"},
		Text:   "ping",
	}

	req.Eventually(func() bool {
		return len(session.sentMessages()) == 1
	}, time.Second, 10*time.Millisecond)
	req.Equal("carol", session.sentMessages()[0].target)
}

func TestAutoReplyWorker_No_Match_No_Reply(t *testing.T) {
	req := require.New(t)
	session := newFakeSession("alice", 7)
	index := mapIndex{"alice": {"ping": "pong"}}
	runWorker(t, session, index)

	session.inbound <- domain.InboundMessage{
		Sender: domain.Peer{ID: 42, Username: "bob"},
		Text:   "hello",
	}

	time.Sleep(50 * time.Millisecond)
	req.Empty(session.sentMessages())
}

func TestAutoReplyWorker_Finishes_On_Closed_Stream(t *testing.T) {
	req := require.New(t)
	session := newFakeSession("alice", 7)
	worker := NewAutoReplyWorker(testLogger(), session, mapIndex{})

	done := make(chan error, 1)
	go func() {
		done <- worker.Run(context.Background())
	}()

	// When the session's stream closes with the connection
	close(session.inbound)

	select {
	case err := <-done:
		// Then the worker terminates cleanly and will not be restarted
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("worker should return once the inbound stream closes")
	}
}
