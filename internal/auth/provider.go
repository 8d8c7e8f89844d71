package auth

import "context"

// Account is the identity an auth provider knows about.
type Account struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Token       string `json:"-"`
}

func (a *Account) clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// Provider creates accounts, signs users in and out and reports the signed-in
// account to listeners.
type Provider interface {
	CreateAccount(ctx context.Context, email, password string) (*Account, error)
	SetDisplayName(ctx context.Context, uid, name string) error
	SignIn(ctx context.Context, email, password string) (*Account, error)
	SignOut(ctx context.Context) error
	// OnAuthStateChange calls fn with the signed-in account, or nil, once the
	// provider has resolved its persisted state and again after every sign-in or
	// sign-out, until the returned function is called.
	OnAuthStateChange(fn func(*Account, error)) (unsubscribe func())
}
