package backend_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ytakahashi/firetodo/internal/backend"
	"github.com/ytakahashi/firetodo/internal/config"
	"github.com/ytakahashi/firetodo/internal/services"
)

func TestOpen_Memory(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("STORE_BACKEND", "")

	b, err := backend.Open(context.Background(), config.EnvVars{})
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, config.BackendMemory, b.Name)
	assert.IsType(t, &services.MemoryStore{}, b.Store)
	assert.NotNil(t, b.Accounts)
}

func TestOpen_FirestoreNeedsProject(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("STORE_BACKEND", "firestore")

	_, err := backend.Open(context.Background(), config.EnvVars{})
	assert.ErrorContains(t, err, "GOOGLE_CLOUD_PROJECT")
}
