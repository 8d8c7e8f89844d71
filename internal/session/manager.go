// Package session owns the authentication lifecycle of the signed-in user:
// register, login, logout, startup resolution and the locally cached session.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/ytakahashi/firetodo/internal/auth"
	"github.com/ytakahashi/firetodo/internal/models"
	"github.com/ytakahashi/firetodo/internal/services"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// State is the resolution state of the session.
type State int

const (
	StateUnknown State = iota
	StateResolved
)

func (s State) String() string {
	if s == StateResolved {
		return "resolved"
	}
	return "unknown"
}

type Manager struct {
	provider auth.Provider
	store    services.RemoteStore
	sessions SessionStore

	mu    sync.Mutex
	state State
}

func NewManager(provider auth.Provider, store services.RemoteStore, sessions SessionStore) *Manager {
	return &Manager{
		provider: provider,
		store:    store,
		sessions: sessions,
	}
}

// Register creates an account, names it and writes its profile record.
// If the profile write fails the account already exists and is kept.
func (m *Manager) Register(ctx context.Context, email, password, name string) (*models.SessionUser, error) {
	acct, err := m.provider.CreateAccount(ctx, email, password)
	if err != nil {
		log.Error().Err(err).Msg("Error registering user")
		return nil, auth.WrapError("create_account", err)
	}

	if err := m.provider.SetDisplayName(ctx, acct.UID, name); err != nil {
		log.Error().Err(err).Str("uid", acct.UID).Msg("Error setting display name")
		return nil, auth.WrapError("set_display_name", err)
	}
	acct.DisplayName = name

	profile := models.NewProfile(name, acct.Email, NowTimeFunc())
	path := services.UserPath(acct.UID)
	if err := m.store.Write(ctx, path, profile.Fields()); err != nil {
		log.Warn().Err(err).Str("uid", acct.UID).Msg("Profile write failed after account creation")
		return nil, services.WrapError("write", path, err)
	}

	user := newSessionUser(acct, profile)
	m.resolved(user)
	log.Info().Str("uid", user.UID).Msg("User registered successfully")
	return user, nil
}

// Login authenticates and merges the profile record into the returned user.
func (m *Manager) Login(ctx context.Context, email, password string) (*models.SessionUser, error) {
	acct, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		log.Error().Err(err).Msg("Error logging in")
		return nil, auth.WrapError("sign_in", err)
	}

	profile, err := m.readProfile(ctx, acct.UID)
	if err != nil {
		log.Error().Err(err).Str("uid", acct.UID).Msg("Error reading profile")
		return nil, err
	}

	user := newSessionUser(acct, profile)
	m.resolved(user)
	log.Info().Str("uid", user.UID).Msg("User logged in successfully")
	return user, nil
}

// Logout signs out and clears local state. Clearing is best effort.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.provider.SignOut(ctx); err != nil {
		log.Error().Err(err).Msg("Error signing out")
		return auth.WrapError("sign_out", err)
	}

	if err := m.sessions.Clear(); err != nil {
		log.Warn().Err(err).Msg("Failed to clear local session state")
	}
	m.setState(StateResolved)
	log.Info().Msg("User signed out successfully")
	return nil
}

// CheckAuthState resolves the current session from the provider. Only the first
// auth state notification is used; later provider changes are not observed.
// It returns nil, nil when nobody is signed in.
func (m *Manager) CheckAuthState(ctx context.Context) (*models.SessionUser, error) {
	type result struct {
		acct *auth.Account
		err  error
	}

	first := make(chan result, 1)
	var once sync.Once
	unsubscribe := m.provider.OnAuthStateChange(func(acct *auth.Account, err error) {
		once.Do(func() {
			first <- result{acct: acct, err: err}
		})
	})

	var r result
	select {
	case r = <-first:
		unsubscribe()
	case <-ctx.Done():
		unsubscribe()
		return nil, ctx.Err()
	}

	if r.err != nil {
		return nil, auth.WrapError("auth_state", r.err)
	}
	if r.acct == nil {
		m.setState(StateResolved)
		return nil, nil
	}

	profile, err := m.readProfile(ctx, r.acct.UID)
	if err != nil {
		return nil, err
	}

	user := newSessionUser(r.acct, profile)
	m.resolved(user)
	return user, nil
}

// LoadAuthState returns the last persisted session without contacting the
// provider, or nil when there is none.
func (m *Manager) LoadAuthState() *models.SessionUser {
	user, err := m.sessions.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring unreadable local session")
		return nil
	}
	return user
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// resolved marks the session resolved and persists user.
func (m *Manager) resolved(user *models.SessionUser) {
	m.setState(StateResolved)
	if err := m.sessions.Save(user); err != nil {
		log.Warn().Err(err).Str("uid", user.UID).Msg("Failed to persist session")
	}
}

// readProfile reads users/{uid}. An absent record is an empty profile.
func (m *Manager) readProfile(ctx context.Context, uid string) (models.Profile, error) {
	path := services.UserPath(uid)
	fields, err := m.store.Read(ctx, path)
	if err != nil {
		return models.Profile{}, services.WrapError("read", path, err)
	}
	return models.ProfileFromFields(fields), nil
}

func newSessionUser(acct *auth.Account, profile models.Profile) *models.SessionUser {
	return &models.SessionUser{
		UID:         acct.UID,
		DisplayName: acct.DisplayName,
		Email:       acct.Email,
		Profile:     profile,
	}
}
