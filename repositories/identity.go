//go:generate go run go.uber.org/mock/mockgen -source=identity.go -destination=../mocks/mock_identity_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"whisperfeed/domain"
)

type IIdentityRepository interface {
	CreateIfAbsent(identity domain.Identity) (bool, error)
	Exists(identity domain.Identity) (bool, error)
}

// IdentityRepository records the identities that passed the eligibility
// gate. Identities are never deleted during the event lifetime.
type IdentityRepository struct {
	db *badger.DB
}

func NewIdentityRepository(db *badger.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

type diskIdentity struct {
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func identityKey(identity domain.Identity) []byte {
	return []byte("identity:" + string(identity))
}

// CreateIfAbsent stores the identity on first sight. Returns true when the
// identity was created by this call.
func (r *IdentityRepository) CreateIfAbsent(identity domain.Identity) (bool, error) {
	created := false
	err := r.db.Update(func(txn *badger.Txn) error {
		key := identityKey(identity)
		_, err := txn.Get(key)
		if err == nil {
			return nil // already known
		}
		if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		data, err := json.Marshal(diskIdentity{
			Email:     string(identity),
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		created = true
		return txn.Set(key, data)
	})
	return created, err
}

func (r *IdentityRepository) Exists(identity domain.Identity) (bool, error) {
	exists := false
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(identityKey(identity))
		if err == nil {
			exists = true
			return nil
		}
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	return exists, err
}
