package domain

import "strings"

// AccountID is the normalized handle of one Telegram account driven by this
// service. It is the unique key across the credential and trigger stores.
type AccountID string

// UnknownAccount is the sentinel key used when a freshly registered account
// has no username yet. The credential stays reachable instead of being lost.
const UnknownAccount = AccountID("unknown_user")

// SelfTarget addresses the account's own saved messages when sending.
const SelfTarget = "me"

// NormalizeAccountID trims surrounding whitespace but preserves case, so the
// handle is read back the way the caller typed it.
func NormalizeAccountID(raw string) AccountID {
	return AccountID(strings.TrimSpace(raw))
}

// Credential is the opaque, reusable authentication token for one account.
// Created at registration, read on every connect, only ever replaced wholesale.
type Credential []byte

// SelfIdentity is the resolved identity of a connected account. ID is used to
// filter self-authored messages out of the inbound stream.
type SelfIdentity struct {
	ID       int64
	Username string
}

// Peer identifies the sender of an inbound message.
type Peer struct {
	ID        int64
	Username  string
	FirstName string
}

// Handle returns the best human-readable name for logging. Replies always
// target Username; this fallback chain is for logs only.
func (p Peer) Handle() string {
	if p.Username != "" {
		return p.Username
	}
	if p.FirstName != "" {
		return p.FirstName
	}
	return "Unknown"
}

// InboundMessage is one message received on an account's update stream.
type InboundMessage struct {
	Sender Peer
	Text   string
}
