// Package telegram adapts gotd's MTProto client to the contract.ChatClient
// capability surface. It is the only package that knows about the wire
// protocol library; the core consumes the abstract interface and tests
// against fakes.
package telegram

import (
	"context"
	"fmt"
	"sync"

	"github.com/gotd/contrib/bg"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/tg"

	"tg-bridge/contract"
	"tg-bridge/domain"
)

const inboundBuffer = 64

// Client wraps one gotd connection handle. A fresh Client is created per
// connect attempt through NewFactory.
type Client struct {
	apiID   int
	apiHash string
	storage *credentialStorage
	inbound chan domain.InboundMessage

	mu     sync.Mutex
	client *telegram.Client
	sender *message.Sender
	stop   bg.StopFunc
}

// NewFactory returns a contract.ClientFactory producing unconnected handles
// for the given API credentials.
func NewFactory(apiID int, apiHash string) contract.ClientFactory {
	return func() contract.ChatClient {
		return &Client{
			apiID:   apiID,
			apiHash: apiHash,
			storage: &credentialStorage{},
			inbound: make(chan domain.InboundMessage, inboundBuffer),
		}
	}
}

// Connect imports the credential into this handle, starts the connection in
// the background, and verifies the credential still authorizes the account.
func (c *Client) Connect(ctx context.Context, credential domain.Credential) error {
	if err := c.storage.StoreSession(ctx, credential); err != nil {
		return err
	}
	if err := c.start(); err != nil {
		return err
	}

	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		_ = c.Disconnect(ctx)
		return err
	}
	if !status.Authorized {
		_ = c.Disconnect(ctx)
		return fmt.Errorf("stored credential no longer authorizes this account")
	}
	return nil
}

// StartHandshake runs the interactive phone/code/password flow. The
// callbacks suspend until the confirm step supplies their values.
func (c *Client) StartHandshake(ctx context.Context, callbacks contract.HandshakeCallbacks) error {
	if err := c.start(); err != nil {
		return err
	}

	flow := auth.NewFlow(callbackAuthenticator{callbacks: callbacks}, auth.SendCodeOptions{})
	return flow.Run(ctx, c.client.Auth())
}

func (c *Client) start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return nil
	}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewMessage(c.onNewMessage)

	client := telegram.NewClient(c.apiID, c.apiHash, telegram.Options{
		SessionStorage: c.storage,
		UpdateHandler:  dispatcher,
	})

	stop, err := bg.Connect(client)
	if err != nil {
		return err
	}
	c.client = client
	c.sender = message.NewSender(client.API())
	c.stop = stop
	return nil
}

// Disconnect stops the background connection. Idempotent: a handle that
// never connected returns nil.
func (c *Client) Disconnect(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop == nil {
		return nil
	}
	err := c.stop()
	c.stop = nil
	c.client = nil
	c.sender = nil
	return err
}

func (c *Client) SendMessage(ctx context.Context, target, text string) error {
	c.mu.Lock()
	sender := c.sender
	c.mu.Unlock()
	if sender == nil {
		return fmt.Errorf("not connected")
	}

	if target == domain.SelfTarget {
		_, err := sender.Self().Text(ctx, text)
		return err
	}
	_, err := sender.Resolve(target).Text(ctx, text)
	return err
}

func (c *Client) Inbound() <-chan domain.InboundMessage {
	return c.inbound
}

func (c *Client) SelfIdentity(ctx context.Context) (domain.SelfIdentity, error) {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return domain.SelfIdentity{}, fmt.Errorf("not connected")
	}

	self, err := client.Self(ctx)
	if err != nil {
		return domain.SelfIdentity{}, err
	}
	username, _ := self.GetUsername()
	return domain.SelfIdentity{ID: self.ID, Username: username}, nil
}

// ExportCredential returns the serialized session after a successful
// handshake; it is the opaque credential the stores persist.
func (c *Client) ExportCredential(ctx context.Context) (domain.Credential, error) {
	data, err := c.storage.LoadSession(ctx)
	if err != nil {
		return nil, err
	}
	return domain.Credential(data), nil
}

func (c *Client) onNewMessage(_ context.Context, entities tg.Entities, update *tg.UpdateNewMessage) error {
	msg, ok := update.Message.(*tg.Message)
	if !ok || msg.Out {
		return nil
	}

	var userID int64
	switch from := msg.FromID.(type) {
	case *tg.PeerUser:
		userID = from.UserID
	default:
		// Private chats carry the counterpart in PeerID instead.
		if peer, ok := msg.PeerID.(*tg.PeerUser); ok {
			userID = peer.UserID
		}
	}
	if userID == 0 {
		return nil
	}

	sender := domain.Peer{ID: userID}
	if user, ok := entities.Users[userID]; ok {
		sender.Username, _ = user.GetUsername()
		sender.FirstName = user.FirstName
	}

	select {
	case c.inbound <- domain.InboundMessage{Sender: sender, Text: msg.Message}:
	default:
		// The consumer is stuck; dropping beats blocking the update loop.
	}
	return nil
}

// callbackAuthenticator feeds the coordinator's deferred slots into gotd's
// auth flow.
type callbackAuthenticator struct {
	callbacks contract.HandshakeCallbacks
}

func (a callbackAuthenticator) Phone(ctx context.Context) (string, error) {
	return a.callbacks.Phone(ctx)
}

func (a callbackAuthenticator) Code(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
	return a.callbacks.Code(ctx)
}

func (a callbackAuthenticator) Password(ctx context.Context) (string, error) {
	password, err := a.callbacks.Password(ctx)
	if err != nil {
		return "", err
	}
	if password == "" {
		// Accounts without two-factor auth never reach this hook; an empty
		// value here means the caller had no password for a 2FA account.
		return "", auth.ErrPasswordNotProvided
	}
	return password, nil
}

func (a callbackAuthenticator) AcceptTermsOfService(_ context.Context, _ tg.HelpTermsOfService) error {
	return nil
}

func (a callbackAuthenticator) SignUp(context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, fmt.Errorf("sign-up of unregistered phone numbers is not supported")
}

// credentialStorage keeps the serialized MTProto session in memory so it can
// be imported before connect and exported after registration.
type credentialStorage struct {
	mu   sync.Mutex
	data []byte
}

func (s *credentialStorage) LoadSession(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) == 0 {
		return nil, session.ErrNotFound
	}
	return append([]byte{}, s.data...), nil
}

func (s *credentialStorage) StoreSession(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte{}, data...)
	return nil
}
