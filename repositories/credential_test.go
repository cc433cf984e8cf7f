package repositories

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"tg-bridge/domain"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCredentialRepository_Get_Missing_Account(t *testing.T) {
	req := require.New(t)
	repository := NewCredentialRepository(openTestDB(t))

	// When looking up an account that never registered
	credential, ok, err := repository.Get("alice")

	// Then the caller sees "not registered", not an error
	req.NoError(err)
	req.False(ok)
	req.Nil(credential)
}

func TestCredentialRepository_Put_Then_Get(t *testing.T) {
	req := require.New(t)
	repository := NewCredentialRepository(openTestDB(t))
	credential := domain.Credential("opaque-session-blob")

	err := repository.Put("alice", credential)
	req.NoError(err)

	fetched, ok, err := repository.Get("alice")
	req.NoError(err)
	req.True(ok)
	req.Equal(credential, fetched)
}

func TestCredentialRepository_Put_Replaces_Wholesale(t *testing.T) {
	req := require.New(t)
	repository := NewCredentialRepository(openTestDB(t))

	req.NoError(repository.Put("alice", domain.Credential("old")))
	req.NoError(repository.Put("alice", domain.Credential("new")))

	fetched, ok, err := repository.Get("alice")
	req.NoError(err)
	req.True(ok)
	req.Equal(domain.Credential("new"), fetched)
}

func TestCredentialRepository_Put_Does_Not_Touch_Other_Accounts(t *testing.T) {
	req := require.New(t)
	repository := NewCredentialRepository(openTestDB(t))

	// Given two registered accounts
	req.NoError(repository.Put("alice", domain.Credential("alice-blob")))
	req.NoError(repository.Put("bob", domain.Credential("bob-blob")))

	// When one account's credential is replaced
	req.NoError(repository.Put("alice", domain.Credential("alice-rotated")))

	// Then the other account's entry survives
	all, err := repository.All()
	req.NoError(err)
	req.Len(all, 2)
	req.Equal(domain.Credential("alice-rotated"), all["alice"])
	req.Equal(domain.Credential("bob-blob"), all["bob"])
}

func TestCredentialRepository_All_Empty_Store(t *testing.T) {
	req := require.New(t)
	repository := NewCredentialRepository(openTestDB(t))

	all, err := repository.All()
	req.NoError(err)
	req.Empty(all)
}
