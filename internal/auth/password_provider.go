package auth

import (
	"context"
	"errors"
	"net/mail"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/ytakahashi/firetodo/internal/localstore"
	"golang.org/x/crypto/bcrypt"
)

// TokenKey is the local storage slot holding the signed-in session token.
const TokenKey = "authToken"

// MinPasswordLength is the shortest password accepted on account creation.
const MinPasswordLength = 6

var _ Provider = (*PasswordProvider)(nil)

// PasswordProvider authenticates email/password accounts kept in an AccountRepo.
// The signed-in session survives restarts through a token kept in local storage.
type PasswordProvider struct {
	accounts AccountRepo
	tokens   *TokenIssuer
	local    localstore.Store

	restoreMu sync.Mutex
	restored  bool

	mu        sync.Mutex
	current   *Account
	listeners map[int]func(*Account, error)
	nextID    int
}

func NewPasswordProvider(accounts AccountRepo, tokens *TokenIssuer, local localstore.Store) *PasswordProvider {
	return &PasswordProvider{
		accounts:  accounts,
		tokens:    tokens,
		local:     local,
		listeners: make(map[int]func(*Account, error)),
	}
}

func (p *PasswordProvider) CreateAccount(ctx context.Context, email, password string) (*Account, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, WrapError("create_account", err)
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, WrapError("create_account", ErrWeakPassword)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, WrapError("create_account", err)
	}

	cred := &Credential{
		UID:          uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    NowTimeFunc().UTC(),
	}
	if err := p.accounts.Create(ctx, cred); err != nil {
		return nil, WrapError("create_account", err)
	}

	acct, err := p.establish(cred.account())
	if err != nil {
		return nil, WrapError("create_account", err)
	}
	return acct, nil
}

func (p *PasswordProvider) SetDisplayName(ctx context.Context, uid, name string) error {
	if err := p.accounts.SetDisplayName(ctx, uid, name); err != nil {
		return WrapError("set_display_name", err)
	}

	p.mu.Lock()
	if p.current != nil && p.current.UID == uid {
		p.current.DisplayName = name
	}
	p.mu.Unlock()
	return nil
}

func (p *PasswordProvider) SignIn(ctx context.Context, email, password string) (*Account, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, WrapError("sign_in", err)
	}

	cred, err := p.accounts.GetByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, WrapError("sign_in", ErrInvalidCredentials)
	}
	if err != nil {
		return nil, WrapError("sign_in", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, WrapError("sign_in", ErrInvalidCredentials)
	}

	acct, err := p.establish(cred.account())
	if err != nil {
		return nil, WrapError("sign_in", err)
	}
	return acct, nil
}

func (p *PasswordProvider) SignOut(ctx context.Context) error {
	p.markRestored()

	if err := p.local.Remove(TokenKey); err != nil {
		return WrapError("sign_out", err)
	}

	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()

	p.notify(nil)
	return nil
}

func (p *PasswordProvider) OnAuthStateChange(fn func(*Account, error)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	go func() {
		restoreErr := p.ensureRestored()

		p.mu.Lock()
		_, subscribed := p.listeners[id]
		current := p.current.clone()
		p.mu.Unlock()

		if subscribed {
			fn(current, restoreErr)
		}
	}()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Verify resolves a session token to its account.
func (p *PasswordProvider) Verify(ctx context.Context, token string) (*Account, error) {
	claims, err := p.tokens.Verify(token)
	if err != nil {
		return nil, WrapError("verify", err)
	}
	cred, err := p.accounts.GetByUID(ctx, claims.UID)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, WrapError("verify", ErrInvalidToken)
	}
	if err != nil {
		return nil, WrapError("verify", err)
	}

	acct := cred.account()
	acct.Token = token
	return acct, nil
}

// CurrentAccount returns the signed-in account, or nil.
func (p *PasswordProvider) CurrentAccount() *Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.clone()
}

// establish signs acct in: issues and persists a token and notifies listeners.
func (p *PasswordProvider) establish(acct *Account) (*Account, error) {
	p.markRestored()

	token, err := p.tokens.Issue(acct)
	if err != nil {
		return nil, err
	}
	if err := p.local.Set(TokenKey, token); err != nil {
		return nil, err
	}
	acct.Token = token

	p.mu.Lock()
	p.current = acct.clone()
	p.mu.Unlock()

	p.notify(acct.clone())
	return acct, nil
}

// ensureRestored runs restore until it succeeds once. A failed restore is
// retried by the next caller.
func (p *PasswordProvider) ensureRestored() error {
	p.restoreMu.Lock()
	defer p.restoreMu.Unlock()
	if p.restored {
		return nil
	}
	if err := p.restore(); err != nil {
		return err
	}
	p.restored = true
	return nil
}

// markRestored skips restoring once the session was set explicitly.
func (p *PasswordProvider) markRestored() {
	p.restoreMu.Lock()
	p.restored = true
	p.restoreMu.Unlock()
}

// restore loads the signed-in account from the persisted token. An unusable
// token is discarded and the provider starts signed out.
func (p *PasswordProvider) restore() error {
	token, ok, err := p.local.Get(TokenKey)
	if err != nil {
		return WrapError("restore", err)
	}
	if !ok {
		return nil
	}

	acct, err := p.Verify(context.Background(), token)
	if errors.Is(err, ErrInvalidToken) {
		log.Info().Msg("Discarding persisted session token")
		if err := p.local.Remove(TokenKey); err != nil {
			log.Warn().Err(err).Msg("Failed to remove persisted session token")
		}
		return nil
	}
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.current = acct
	p.mu.Unlock()
	return nil
}

func (p *PasswordProvider) notify(acct *Account) {
	p.mu.Lock()
	ids := make([]int, 0, len(p.listeners))
	for id := range p.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(*Account, error), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, p.listeners[id])
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(acct.clone(), nil)
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
