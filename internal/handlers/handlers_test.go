package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ytakahashi/firetodo/internal/auth"
	"github.com/ytakahashi/firetodo/internal/auth/repofake"
	"github.com/ytakahashi/firetodo/internal/handlers"
	"github.com/ytakahashi/firetodo/internal/services"
)

type testServer struct {
	t     *testing.T
	e     *echo.Echo
	store *services.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := services.NewMemoryStore()
	tokens := auth.NewTokenIssuer([]byte("test-secret"), time.Hour)
	return &testServer{t: t, e: handlers.NewServer(repofake.NewFakeAccountRepo(), tokens, store), store: store}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type sessionBody struct {
	User struct {
		UID         string `json:"uid"`
		DisplayName string `json:"displayName"`
		Email       string `json:"email"`
		Profile     struct {
			Name string `json:"name"`
		} `json:"profile"`
	} `json:"user"`
	Token string `json:"token"`
}

type todoBody struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	Deadline  string `json:"deadline"`
}

type listBody struct {
	Page       int        `json:"page"`
	TotalPages int        `json:"totalPages"`
	Items      []todoBody `json:"items"`
	Stats      struct {
		Total     int `json:"total"`
		Completed int `json:"completed"`
		Urgent    int `json:"urgent"`
	} `json:"stats"`
}

func (s *testServer) register(email string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/auth/register", "", map[string]string{"email": email, "password": "secret123", "name": "Ann"})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[sessionBody](s.t, rec).Token
}

func (s *testServer) add(token, text, deadline string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/todos", token, map[string]string{"text": text, "deadline": deadline})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[map[string]string](s.t, rec)["id"]
}

func (s *testServer) list(token, query string) listBody {
	s.t.Helper()
	rec := s.do(http.MethodGet, "/todos"+query, token, nil)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[listBody](s.t, rec)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "ann@example.com", "password": "secret123", "name": "Ann"})
	require.Equal(t, http.StatusCreated, rec.Code)
	registered := decode[sessionBody](t, rec)
	assert.NotEmpty(t, registered.Token)
	assert.NotEmpty(t, registered.User.UID)
	assert.Equal(t, "Ann", registered.User.DisplayName)
	assert.Equal(t, "Ann", registered.User.Profile.Name)

	rec = s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ann@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, rec.Code)
	loggedIn := decode[sessionBody](t, rec)
	assert.Equal(t, registered.User.UID, loggedIn.User.UID)
	assert.Equal(t, "ann@example.com", loggedIn.User.Email)
	assert.NotEmpty(t, loggedIn.Token)
}

func TestAuthErrors(t *testing.T) {
	s := newTestServer(t)
	s.register("ann@example.com")

	tests := []struct {
		name string
		path string
		body map[string]string
		want int
	}{
		{"duplicate email", "/auth/register", map[string]string{"email": "ann@example.com", "password": "secret123", "name": "Ann"}, http.StatusConflict},
		{"weak password", "/auth/register", map[string]string{"email": "bob@example.com", "password": "123", "name": "Bob"}, http.StatusBadRequest},
		{"invalid email", "/auth/register", map[string]string{"email": "not-an-email", "password": "secret123", "name": "Bob"}, http.StatusBadRequest},
		{"missing name", "/auth/register", map[string]string{"email": "bob@example.com", "password": "secret123"}, http.StatusBadRequest},
		{"wrong password", "/auth/login", map[string]string{"email": "ann@example.com", "password": "nope-nope"}, http.StatusUnauthorized},
		{"unknown email", "/auth/login", map[string]string{"email": "zed@example.com", "password": "secret123"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, tt.path, "", tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestTodosRequireToken(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/todos", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/todos", "garbage", nil).Code)

	other := auth.NewTokenIssuer([]byte("other-secret"), time.Hour)
	forged, err := other.Issue(&auth.Account{UID: "u1", Email: "ann@example.com"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/todos", forged, nil).Code)
}

func TestTodoLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := s.register("ann@example.com")

	id := s.add(token, "buy milk", "2024-01-12")

	got := s.list(token, "")
	require.Len(t, got.Items, 1)
	assert.Equal(t, todoBody{ID: id, Text: "buy milk", Deadline: "2024-01-12"}, got.Items[0])

	rec := s.do(http.MethodPatch, "/todos/"+id, token, map[string]string{"text": "buy oat milk"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodPost, "/todos/"+id+"/toggle", token, map[string]bool{"completed": false})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	got = s.list(token, "")
	assert.Equal(t, todoBody{ID: id, Text: "buy oat milk", Completed: true, Deadline: "2024-01-12"}, got.Items[0])
	assert.Equal(t, 1, got.Stats.Completed)

	rec = s.do(http.MethodPost, "/todos/"+id+"/flip", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"completed":false}`, rec.Body.String())

	rec = s.do(http.MethodDelete, "/todos/"+id, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodDelete, "/todos/"+id, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Empty(t, s.list(token, "").Items)
}

func TestTodoValidation(t *testing.T) {
	s := newTestServer(t)
	token := s.register("ann@example.com")

	rec := s.do(http.MethodPost, "/todos", token, map[string]string{"text": "  ", "deadline": "2024-01-12"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(http.MethodPost, "/todos", token, map[string]string{"text": "buy milk"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	id := s.add(token, "buy milk", "2024-01-12")
	rec = s.do(http.MethodPatch, "/todos/"+id, token, map[string]string{"text": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/todos?page=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/todos/missing/flip", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Len(t, s.list(token, "").Items, 1)
}

func TestListPagesAndStats(t *testing.T) {
	handlers.NowTimeFunc = func() time.Time { return time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC) }
	defer func() { handlers.NowTimeFunc = time.Now }()

	s := newTestServer(t)
	token := s.register("ann@example.com")

	for i := 0; i < 11; i++ {
		s.add(token, "later", "2024-03-01")
	}
	s.add(token, "soon", "2024-01-12")

	first := s.list(token, "")
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, 3, first.TotalPages)
	assert.Len(t, first.Items, 5)
	assert.Equal(t, 12, first.Stats.Total)
	assert.Equal(t, 1, first.Stats.Urgent)

	third := s.list(token, "?page=3")
	assert.Len(t, third.Items, 2)
	assert.Equal(t, "soon", third.Items[1].Text)

	fourth := s.list(token, "?page=4")
	assert.NotNil(t, fourth.Items)
	assert.Empty(t, fourth.Items)
}

func TestTodosAreScopedToUser(t *testing.T) {
	s := newTestServer(t)
	ann := s.register("ann@example.com")
	bob := s.register("bob@example.com")

	s.add(ann, "ann's", "2024-01-12")
	s.add(ann, "ann's too", "2024-01-12")
	s.add(bob, "bob's", "2024-01-12")

	rec := s.do(http.MethodDelete, "/todos", ann, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":2}`, rec.Body.String())

	assert.Empty(t, s.list(ann, "").Items)
	assert.Len(t, s.list(bob, "").Items, 1)
}

func TestStream(t *testing.T) {
	s := newTestServer(t)
	token := s.register("ann@example.com")
	s.add(token, "first", "2024-01-12")

	srv := httptest.NewServer(s.e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/todos/stream?token=" + token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	type frame struct {
		Items []todoBody `json:"items"`
		Stats struct {
			Total int `json:"total"`
		} `json:"stats"`
	}
	read := func() frame {
		t.Helper()
		var f frame
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
		require.NoError(t, ws.ReadJSON(&f))
		return f
	}

	initial := read()
	require.Len(t, initial.Items, 1)
	assert.Equal(t, "first", initial.Items[0].Text)

	s.add(token, "second", "2024-01-13")

	// snapshots may be coalesced; read until the second todo shows up
	var latest frame
	for len(latest.Items) < 2 {
		latest = read()
	}
	assert.Equal(t, 2, latest.Stats.Total)
	assert.Equal(t, "second", latest.Items[1].Text)

	require.NoError(t, ws.Close())
	assert.Eventually(t, func() bool { return s.store.Listeners() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamRequiresToken(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/todos/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
