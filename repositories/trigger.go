//go:generate go run go.uber.org/mock/mockgen -source=trigger.go -destination=../mocks/mock_trigger_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"tg-bridge/domain"
)

const triggerPrefix = "trigger:"

type ITriggerRepository interface {
	GetRules(account domain.AccountID) ([]domain.TriggerRule, error)
	PutRule(account domain.AccountID, match, reply string) error
	Clear(account domain.AccountID) error
	Accounts() ([]domain.AccountID, error)
}

// TriggerRepository persists one ordered rule document per account in
// BadgerDB under "trigger:{account}". The document is a JSON list so rule
// order survives restarts.
type TriggerRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewTriggerRepository(db *badger.DB, log *slog.Logger) ITriggerRepository {
	return &TriggerRepository{db: db, log: log}
}

func triggerKey(account domain.AccountID) []byte {
	return []byte(triggerPrefix + string(account))
}

// GetRules returns the account's rules in insertion order, nil when the
// account has no document.
func (r *TriggerRepository) GetRules(account domain.AccountID) ([]domain.TriggerRule, error) {
	rules, err := r.readRules(account)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	return rules, err
}

// PutRule finds-or-appends the rule inside a single Badger transaction:
// an existing match text gets its reply replaced, a new one is appended.
// The read-modify-write never touches other accounts' documents.
func (r *TriggerRepository) PutRule(account domain.AccountID, match, reply string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		var rules []domain.TriggerRule
		item, err := txn.Get(triggerKey(account))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			// First rule for this account.
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rules)
			}); err != nil {
				return fmt.Errorf("trigger document for %s is corrupt: %w", account, err)
			}
		}

		_, index, found := lo.FindIndexOf(rules, func(rule domain.TriggerRule) bool {
			return rule.Match == match
		})
		if found {
			rules[index].Reply = reply
		} else {
			rules = append(rules, domain.TriggerRule{Match: match, Reply: reply})
		}

		encoded, err := json.Marshal(rules)
		if err != nil {
			return err
		}
		return txn.Set(triggerKey(account), encoded)
	})
}

// Clear removes the account's whole rule document. Clearing an account that
// never had rules is a no-op.
func (r *TriggerRepository) Clear(account domain.AccountID) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(triggerKey(account))
	})
	if err != nil {
		return err
	}
	r.log.Debug("Trigger document cleared", "account", account)
	return nil
}

// Accounts lists every account with at least one persisted rule. Used at
// process start to hydrate the in-memory mirror and reattach listeners.
func (r *TriggerRepository) Accounts() ([]domain.AccountID, error) {
	var accounts []domain.AccountID
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(triggerPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			accounts = append(accounts, domain.AccountID(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *TriggerRepository) readRules(account domain.AccountID) ([]domain.TriggerRule, error) {
	var rules []domain.TriggerRule
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(triggerKey(account))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rules)
		})
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}
