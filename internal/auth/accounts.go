package auth

import (
	"context"
	"time"
)

// Credential is the stored form of an account.
type Credential struct {
	UID          string    `firestore:"uid" json:"uid"`
	Email        string    `firestore:"email" json:"email"`
	DisplayName  string    `firestore:"displayName" json:"displayName"`
	PasswordHash string    `firestore:"passwordHash" json:"-"`
	CreatedAt    time.Time `firestore:"createdAt" json:"createdAt"`
}

func (c *Credential) account() *Account {
	return &Account{
		UID:         c.UID,
		DisplayName: c.DisplayName,
		Email:       c.Email,
	}
}

// AccountRepo persists credentials. Emails are stored normalized and are unique.
type AccountRepo interface {
	// Create fails with ErrEmailExists when the email is taken.
	Create(ctx context.Context, cred *Credential) error
	GetByEmail(ctx context.Context, email string) (*Credential, error)
	GetByUID(ctx context.Context, uid string) (*Credential, error)
	SetDisplayName(ctx context.Context, uid, name string) error
}
