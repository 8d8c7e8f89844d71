package session

import (
	"encoding/json"
	"fmt"

	"github.com/ytakahashi/firetodo/internal/localstore"
	"github.com/ytakahashi/firetodo/internal/models"
)

// UserKey is the local storage slot holding the serialized SessionUser.
const UserKey = "authUser"

// SessionStore persists the last resolved SessionUser.
type SessionStore interface {
	Load() (*models.SessionUser, error)
	Save(user *models.SessionUser) error
	Clear() error
}

var _ SessionStore = (*LocalSessionStore)(nil)

// LocalSessionStore keeps the session blob in local storage. Clear wipes every
// slot of the underlying store, not only the session blob.
type LocalSessionStore struct {
	local localstore.Store
}

func NewLocalSessionStore(local localstore.Store) *LocalSessionStore {
	return &LocalSessionStore{local: local}
}

func (s *LocalSessionStore) Load() (*models.SessionUser, error) {
	raw, ok, err := s.local.Get(UserKey)
	if err != nil || !ok {
		return nil, err
	}

	var user models.SessionUser
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &user, nil
}

func (s *LocalSessionStore) Save(user *models.SessionUser) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return s.local.Set(UserKey, string(raw))
}

func (s *LocalSessionStore) Clear() error {
	return s.local.Clear()
}
