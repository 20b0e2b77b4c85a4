//go:generate go run go.uber.org/mock/mockgen -source=token.go -destination=../mocks/mock_token_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"

	"galene-companion/errors"

	"github.com/dgraph-io/badger/v4"
)

// StorageKey is the fixed name the credential is stored under. It must
// stay stable across releases: a token written by an older companion
// has to be restorable by a newer one.
const StorageKey = "galene_jwt_token"

type ITokenRepository interface {
	Save(token string) error
	Load() (string, error)
	Delete() error
}

// TokenRepository persists the opaque credential in BadgerDB. The value
// is stored raw: it is a single externally issued string, nothing to
// frame or version.
type TokenRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewTokenRepository(db *badger.DB, log *slog.Logger) ITokenRepository {
	return &TokenRepository{db: db, log: log}
}

// Save overwrites any previously stored credential.
func (r *TokenRepository) Save(token string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(StorageKey), []byte(token))
	})
	if err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	return nil
}

// Load returns the stored credential, or errors.ErrNoStoredToken when
// none has been captured yet.
func (r *TokenRepository) Load() (string, error) {
	var token string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(StorageKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			token = string(val)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return "", errors.ErrNoStoredToken
	}
	if err != nil {
		return "", fmt.Errorf("loading token: %w", err)
	}
	return token, nil
}

// Delete removes the stored credential. Deleting an absent key is not
// an error: Clear must be idempotent.
func (r *TokenRepository) Delete() error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(StorageKey))
	})
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}
