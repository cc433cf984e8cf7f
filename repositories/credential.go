//go:generate go run go.uber.org/mock/mockgen -source=credential.go -destination=../mocks/mock_credential_repository.go -package=mocks
package repositories

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"tg-bridge/domain"
)

const credentialPrefix = "credential:"

type ICredentialRepository interface {
	Get(account domain.AccountID) (domain.Credential, bool, error)
	Put(account domain.AccountID, credential domain.Credential) error
	All() (map[domain.AccountID]domain.Credential, error)
}

// CredentialRepository persists one opaque credential per account in BadgerDB
// under "credential:{account}". Each account owns its key, so writing one
// account can never clobber another's entry.
type CredentialRepository struct {
	db *badger.DB
}

func NewCredentialRepository(db *badger.DB) ICredentialRepository {
	return &CredentialRepository{db: db}
}

func credentialKey(account domain.AccountID) []byte {
	return []byte(credentialPrefix + string(account))
}

// Get returns the stored credential, or ok=false when none was ever persisted
// for the account. A missing key is not an error for the caller.
func (r *CredentialRepository) Get(account domain.AccountID) (domain.Credential, bool, error) {
	var credential domain.Credential
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(credentialKey(account))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			credential = append(domain.Credential{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("credential lookup for %s: %w", account, err)
	}
	return credential, true, nil
}

// Put replaces the account's credential wholesale.
func (r *CredentialRepository) Put(account domain.AccountID, credential domain.Credential) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(credentialKey(account), credential)
	})
}

// All loads the full account -> credential mapping, empty when nothing was
// persisted yet.
func (r *CredentialRepository) All() (map[domain.AccountID]domain.Credential, error) {
	all := make(map[domain.AccountID]domain.Credential)
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(credentialPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			account := domain.AccountID(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				all[account] = append(domain.Credential{}, val...)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}
