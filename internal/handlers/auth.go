package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/ytakahashi/firetodo/internal/auth"
	"github.com/ytakahashi/firetodo/internal/localstore"
	"github.com/ytakahashi/firetodo/internal/models"
	"github.com/ytakahashi/firetodo/internal/services"
	"github.com/ytakahashi/firetodo/internal/session"
)

const uidKey = "uid"

type AuthHandler struct {
	accounts auth.AccountRepo
	tokens   *auth.TokenIssuer
	store    services.RemoteStore
	verifier *auth.PasswordProvider
}

func NewAuthHandler(accounts auth.AccountRepo, tokens *auth.TokenIssuer, store services.RemoteStore) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		tokens:   tokens,
		store:    store,
		verifier: auth.NewPasswordProvider(accounts, tokens, localstore.NewMemory()),
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type sessionResponse struct {
	User  *models.SessionUser `json:"user"`
	Token string              `json:"token"`
}

// newSession builds a session manager whose signed-in state lives only for
// the current request.
func (h *AuthHandler) newSession() (*session.Manager, localstore.Store) {
	local := localstore.NewMemory()
	provider := auth.NewPasswordProvider(h.accounts, h.tokens, local)
	return session.NewManager(provider, h.store, session.NewLocalSessionStore(local)), local
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, err)
	}
	if models.Blank(req.Name) {
		return fail(c, badRequest("name is required"))
	}

	m, local := h.newSession()
	user, err := m.Register(c.Request().Context(), req.Email, req.Password, req.Name)
	if err != nil {
		return fail(c, err)
	}
	return h.respond(c, http.StatusCreated, user, local)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, err)
	}

	m, local := h.newSession()
	user, err := m.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return h.respond(c, http.StatusOK, user, local)
}

func (h *AuthHandler) respond(c echo.Context, status int, user *models.SessionUser, local localstore.Store) error {
	token, _, err := local.Get(auth.TokenKey)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(status, sessionResponse{User: user, Token: token})
}

// RequireToken authenticates the request from a bearer token, or from the
// token query parameter for websocket clients that cannot set headers.
func (h *AuthHandler) RequireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if token == "" {
			token = c.QueryParam("token")
		}
		if token == "" {
			return fail(c, auth.WrapError("verify", auth.ErrInvalidToken))
		}

		acct, err := h.verifier.Verify(c.Request().Context(), token)
		if err != nil {
			return fail(c, err)
		}
		c.Set(uidKey, acct.UID)
		return next(c)
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func currentUID(c echo.Context) string {
	uid, _ := c.Get(uidKey).(string)
	return uid
}
