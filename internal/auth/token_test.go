package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ytakahashi/firetodo/internal/auth"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := auth.NewTokenIssuer([]byte("secret"), time.Hour)

	token, err := issuer.Issue(&auth.Account{UID: "u1", Email: "ann@example.com"})
	require.NoError(t, err)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UID)
	assert.Equal(t, "ann@example.com", claims.Email)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)
}

func TestTokenIssuer_RejectsOtherSecret(t *testing.T) {
	token, err := auth.NewTokenIssuer([]byte("one"), time.Hour).Issue(&auth.Account{UID: "u1"})
	require.NoError(t, err)

	_, err = auth.NewTokenIssuer([]byte("two"), time.Hour).Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenIssuer_RejectsExpired(t *testing.T) {
	issuer := auth.NewTokenIssuer([]byte("secret"), time.Hour)

	auth.NowTimeFunc = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := issuer.Issue(&auth.Account{UID: "u1"})
	auth.NowTimeFunc = time.Now
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenIssuer_RejectsGarbage(t *testing.T) {
	_, err := auth.NewTokenIssuer([]byte("secret"), time.Hour).Verify("not-a-token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
