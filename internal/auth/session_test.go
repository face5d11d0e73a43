package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rafyaudit/internal/backend"
	"rafyaudit/internal/guard"
	"rafyaudit/internal/models"
)

type fakeBackend struct {
	storage  TokenStorage
	valid    map[string]models.User
	meErr    error
	loginErr error
	login    models.LoginResponse
	meCalls  int
}

func (f *fakeBackend) Login(ctx context.Context, email, password string) (models.LoginResponse, error) {
	if f.loginErr != nil {
		return models.LoginResponse{}, f.loginErr
	}
	return f.login, nil
}

func (f *fakeBackend) Me(ctx context.Context) (models.User, error) {
	f.meCalls++
	if f.meErr != nil {
		return models.User{}, f.meErr
	}
	tok, _ := f.storage.Token()
	u, ok := f.valid[tok]
	if !ok {
		return models.User{}, &backend.Error{Endpoint: backend.EndpointMe, Status: http.StatusUnauthorized, Detail: "Unauthorized"}
	}
	return u, nil
}

func TestRestoreValidToken(t *testing.T) {
	store := NewMemoryStorage("good")
	fb := &fakeBackend{storage: store, valid: map[string]models.User{"good": {Email: "a@rafy.fr", Name: "A"}}}
	s := New(fb, store, nil)
	assert.True(t, s.Loading())
	assert.Equal(t, guard.Wait, guard.Decide(s, guard.Protected).Outcome)

	require.NoError(t, s.Restore(context.Background()))
	assert.False(t, s.Loading())
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "good", s.Token())
	assert.Equal(t, "a@rafy.fr", s.User().Email)

	require.NoError(t, s.Restore(context.Background()))
	assert.Equal(t, 1, fb.meCalls)
}

func TestRestoreWithoutToken(t *testing.T) {
	store := NewMemoryStorage("")
	fb := &fakeBackend{storage: store}
	s := New(fb, store, nil)
	require.NoError(t, s.Restore(context.Background()))
	assert.False(t, s.Loading())
	assert.False(t, s.IsAuthenticated())
	assert.Zero(t, fb.meCalls)
	assert.Equal(t, guard.Decision{Outcome: guard.Redirect, Target: guard.LoginRoute}, guard.Decide(s, guard.Protected))
}

func TestRestoreRejectedTokenIsCleared(t *testing.T) {
	store := NewMemoryStorage("stale")
	s := New(&fakeBackend{storage: store}, store, nil)
	err := s.Restore(context.Background())
	assert.ErrorIs(t, err, backend.ErrUnauthorized)
	assert.False(t, s.Loading())
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.Token())
	_, ok := store.Token()
	assert.False(t, ok)
}

func TestRestoreNetworkErrorClearsToken(t *testing.T) {
	store := NewMemoryStorage("good")
	netErr := errors.New("dial tcp: connection refused")
	s := New(&fakeBackend{storage: store, meErr: netErr}, store, nil)
	assert.ErrorIs(t, s.Restore(context.Background()), netErr)
	assert.False(t, s.IsAuthenticated())
	_, ok := store.Token()
	assert.False(t, ok)
}

func TestLoginPersistsToken(t *testing.T) {
	store := NewMemoryStorage("")
	fb := &fakeBackend{storage: store, login: models.LoginResponse{
		AccessToken: "fresh",
		User:        models.User{Email: "ctrl@rafy.fr", Name: "CTRL"},
	}}
	s := New(fb, store, nil)

	u, err := s.Login(context.Background(), "ctrl@rafy.fr", "pw")
	require.NoError(t, err)
	assert.Equal(t, "CTRL", u.Name)
	assert.True(t, s.IsAuthenticated())
	assert.False(t, s.Loading())
	tok, ok := store.Token()
	assert.True(t, ok)
	assert.Equal(t, "fresh", tok)
	assert.Equal(t, guard.Decision{Outcome: guard.Redirect, Target: guard.HomeRoute}, guard.Decide(s, guard.Public))
}

func TestLoginErrorPassesThrough(t *testing.T) {
	store := NewMemoryStorage("")
	want := &backend.Error{Endpoint: backend.EndpointLogin, Status: 401, Detail: "Email ou mot de passe incorrect"}
	s := New(&fakeBackend{storage: store, loginErr: want}, store, nil)

	_, err := s.Login(context.Background(), "x@rafy.fr", "bad")
	assert.Same(t, want, err)
	assert.False(t, s.IsAuthenticated())
	_, ok := store.Token()
	assert.False(t, ok)
}

func TestLoginEmptyToken(t *testing.T) {
	store := NewMemoryStorage("")
	s := New(&fakeBackend{storage: store}, store, nil)
	_, err := s.Login(context.Background(), "x@rafy.fr", "pw")
	assert.ErrorIs(t, err, ErrEmptyToken)
}

func TestLogout(t *testing.T) {
	store := NewMemoryStorage("good")
	fb := &fakeBackend{storage: store, valid: map[string]models.User{"good": {Email: "a@rafy.fr"}}}
	s := New(fb, store, nil)
	require.NoError(t, s.Restore(context.Background()))

	require.NoError(t, s.Logout())
	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.User())
	assert.Empty(t, s.Token())
	_, ok := store.Token()
	assert.False(t, ok)
	assert.Equal(t, 1, fb.meCalls)
}

func TestCookieStorage(t *testing.T) {
	cs := sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef"))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	sess, err := cs.Get(r, "rafy_session")
	require.NoError(t, err)

	st := NewCookieStorage(sess, r, w)
	_, ok := st.Token()
	assert.False(t, ok)
	require.NoError(t, st.SetToken("tok"))
	tok, ok := st.Token()
	assert.True(t, ok)
	assert.Equal(t, "tok", tok)
	assert.NotEmpty(t, w.Result().Cookies())

	require.NoError(t, st.ClearToken())
	_, ok = st.Token()
	assert.False(t, ok)
}
