package accountrepo

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/ytakahashi/firetodo/internal/auth"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const accountsCollection = "accounts"

var _ auth.AccountRepo = (*Firestore)(nil)

// Firestore keeps credentials in the accounts collection, one document per uid.
type Firestore struct {
	client *firestore.Client
}

func NewFirestore(client *firestore.Client) *Firestore {
	return &Firestore{client: client}
}

func (r *Firestore) Create(ctx context.Context, cred *auth.Credential) error {
	coll := r.client.Collection(accountsCollection)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		iter := tx.Documents(coll.Where("email", "==", cred.Email).Limit(1))
		defer iter.Stop()

		_, err := iter.Next()
		if err == nil {
			return auth.ErrEmailExists
		}
		if err != iterator.Done {
			return err
		}
		return tx.Create(coll.Doc(cred.UID), cred)
	})
	if errors.Is(err, auth.ErrEmailExists) || status.Code(err) == codes.AlreadyExists {
		return auth.ErrEmailExists
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *Firestore) GetByEmail(ctx context.Context, email string) (*auth.Credential, error) {
	iter := r.client.Collection(accountsCollection).
		Where("email", "==", email).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, auth.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}

	var cred auth.Credential
	if err := doc.DataTo(&cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &cred, nil
}

func (r *Firestore) GetByUID(ctx context.Context, uid string) (*auth.Credential, error) {
	doc, err := r.client.Collection(accountsCollection).Doc(uid).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, auth.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	var cred auth.Credential
	if err := doc.DataTo(&cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &cred, nil
}

func (r *Firestore) SetDisplayName(ctx context.Context, uid, name string) error {
	_, err := r.client.Collection(accountsCollection).Doc(uid).Update(ctx, []firestore.Update{
		{Path: "displayName", Value: name},
	})
	if status.Code(err) == codes.NotFound {
		return auth.ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update display name: %w", err)
	}
	return nil
}
