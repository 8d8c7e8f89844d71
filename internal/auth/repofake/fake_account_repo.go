package repofake

import (
	"context"
	"sync"

	"github.com/ytakahashi/firetodo/internal/auth"
)

var _ auth.AccountRepo = (*FakeAccountRepo)(nil)

type FakeAccountRepo struct {
	accounts map[string]*auth.Credential
	emailIds map[string]string // email to uid
	lock     sync.RWMutex
}

func NewFakeAccountRepo() *FakeAccountRepo {
	return &FakeAccountRepo{
		accounts: make(map[string]*auth.Credential),
		emailIds: make(map[string]string),
	}
}

func (r *FakeAccountRepo) Create(ctx context.Context, cred *auth.Credential) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.emailIds[cred.Email]; ok {
		return auth.ErrEmailExists
	}
	c := *cred
	r.accounts[cred.UID] = &c
	r.emailIds[cred.Email] = cred.UID
	return nil
}

func (r *FakeAccountRepo) GetByEmail(ctx context.Context, email string) (*auth.Credential, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	uid, ok := r.emailIds[email]
	if !ok {
		return nil, auth.ErrAccountNotFound
	}
	c := *r.accounts[uid]
	return &c, nil
}

func (r *FakeAccountRepo) GetByUID(ctx context.Context, uid string) (*auth.Credential, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	cred, ok := r.accounts[uid]
	if !ok {
		return nil, auth.ErrAccountNotFound
	}
	c := *cred
	return &c, nil
}

func (r *FakeAccountRepo) SetDisplayName(ctx context.Context, uid, name string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	cred, ok := r.accounts[uid]
	if !ok {
		return auth.ErrAccountNotFound
	}
	cred.DisplayName = name
	return nil
}

// Len returns the number of stored accounts.
func (r *FakeAccountRepo) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.accounts)
}
