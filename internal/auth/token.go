package auth

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims is the verified content of a session token.
type Claims struct {
	UID       string
	Email     string
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, ttl: ttl}
}

// Issue creates a session token for the account.
func (t *TokenIssuer) Issue(a *Account) (string, error) {
	now := NowTimeFunc()
	claims := jwtlib.MapClaims{
		"sub":   a.UID,
		"email": a.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(t.ttl).Unix(),
		"jti":   uuid.New().String(),
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of token.
func (t *TokenIssuer) Verify(token string) (*Claims, error) {
	parsed, err := jwtlib.Parse(token, func(*jwtlib.Token) (interface{}, error) {
		return t.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}), jwtlib.WithTimeFunc(NowTimeFunc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	mc, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	email, _ := mc["email"].(string)

	return &Claims{UID: sub, Email: email, ExpiresAt: exp.Time}, nil
}
