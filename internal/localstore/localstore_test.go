package localstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ytakahashi/firetodo/internal/localstore"
)

func exercise(t *testing.T, s localstore.Store) {
	t.Helper()

	_, ok, err := s.Get("authUser")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("authUser", `{"uid":"u1"}`))
	require.NoError(t, s.Set("authToken", "tok"))

	v, ok, err := s.Get("authUser")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"uid":"u1"}`, v)

	require.NoError(t, s.Set("authUser", `{"uid":"u2"}`))
	v, _, err = s.Get("authUser")
	require.NoError(t, err)
	assert.Equal(t, `{"uid":"u2"}`, v)

	require.NoError(t, s.Remove("authUser"))
	require.NoError(t, s.Remove("authUser"))
	_, ok, err = s.Get("authUser")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())
	_, ok, err = s.Get("authToken")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory(t *testing.T) {
	exercise(t, localstore.NewMemory())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "local.json")
	s, err := localstore.NewFile(path)
	require.NoError(t, err)
	exercise(t, s)
}

func TestFile_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json")

	first, err := localstore.NewFile(path)
	require.NoError(t, err)
	require.NoError(t, first.Set("authToken", "tok"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := localstore.NewFile(path)
	require.NoError(t, err)
	v, ok, err := second.Get("authToken")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)
}

func TestFile_CorruptContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s, err := localstore.NewFile(path)
	require.NoError(t, err)
	_, _, err = s.Get("authUser")
	assert.Error(t, err)

	require.NoError(t, s.Clear())
	_, ok, err := s.Get("authUser")
	require.NoError(t, err)
	assert.False(t, ok)
}
