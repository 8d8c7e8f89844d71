// Package backend selects the remote store and account repository from config.
package backend

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/ytakahashi/firetodo/internal/auth"
	"github.com/ytakahashi/firetodo/internal/auth/accountrepo"
	"github.com/ytakahashi/firetodo/internal/auth/repofake"
	"github.com/ytakahashi/firetodo/internal/config"
	"github.com/ytakahashi/firetodo/internal/services"
)

type Backend struct {
	Name     string
	Store    services.RemoteStore
	Accounts auth.AccountRepo

	close func() error
}

// Open connects to Firestore, or builds an in-memory backend whose data is
// lost when the process exits.
func Open(ctx context.Context, c config.EnvVars) (*Backend, error) {
	if c.GetStoreBackend() == config.BackendMemory {
		log.Debug().Msg("Using in-memory backend")
		return &Backend{
			Name:     config.BackendMemory,
			Store:    services.NewMemoryStore(),
			Accounts: repofake.NewFakeAccountRepo(),
			close:    func() error { return nil },
		}, nil
	}

	projectID := c.GetProjectID()
	if projectID == "" {
		return nil, errors.New("GOOGLE_CLOUD_PROJECT environment variable is required")
	}
	fs, err := services.NewFirestoreService(ctx, projectID, c.ClientOptions()...)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("project", projectID).Msg("Using Firestore backend")
	return &Backend{
		Name:     config.BackendFirestore,
		Store:    fs,
		Accounts: accountrepo.NewFirestore(fs.Client()),
		close:    fs.Close,
	}, nil
}

func (b *Backend) Close() error {
	return b.close()
}
