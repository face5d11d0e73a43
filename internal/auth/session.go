// Package auth holds the session store: the current token and user profile,
// their persistence, and startup validation against the backend.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"rafyaudit/internal/models"
)

var (
	// ErrEmptyToken is returned when the backend accepts a login but sends no token.
	ErrEmptyToken = errors.New("login response without access token")
)

// TokenStorage is the durable place the token survives between page loads.
type TokenStorage interface {
	Token() (string, bool)
	SetToken(token string) error
	ClearToken() error
}

// Backend is the subset of the API client the session needs.
type Backend interface {
	Login(ctx context.Context, email, password string) (models.LoginResponse, error)
	Me(ctx context.Context) (models.User, error)
}

// Session is the session store. The user is set iff the last validation succeeded.
type Session struct {
	backend Backend
	storage TokenStorage
	logger  *zap.Logger

	mu       sync.RWMutex
	token    string
	user     *models.User
	loading  bool
	restored bool
}

// New returns an empty session in the loading phase. The backend must send the
// token held by storage, e.g. a backend.Client bound with WithTokenSource(storage).
func New(b Backend, storage TokenStorage, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{backend: b, storage: storage, logger: logger, loading: true}
}

// Restore validates the persisted token once. Later calls are no-ops.
// On any failure the persisted token is discarded and the returned error says why.
func (s *Session) Restore(ctx context.Context) error {
	s.mu.Lock()
	if s.restored {
		s.mu.Unlock()
		return nil
	}
	s.restored = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	stored, ok := s.storage.Token()
	if !ok {
		return nil
	}
	user, err := s.backend.Me(ctx)
	if err != nil {
		s.logger.Info("stored token rejected", zap.Error(err))
		s.mu.Lock()
		s.token, s.user = "", nil
		s.mu.Unlock()
		if clearErr := s.storage.ClearToken(); clearErr != nil {
			s.logger.Warn("clear token", zap.Error(clearErr))
		}
		return fmt.Errorf("validate stored token: %w", err)
	}
	s.mu.Lock()
	s.token, s.user = stored, &user
	s.mu.Unlock()
	return nil
}

// Login authenticates and persists the new token. Backend errors are returned unchanged.
func (s *Session) Login(ctx context.Context, email, password string) (models.User, error) {
	resp, err := s.backend.Login(ctx, email, password)
	if err != nil {
		return models.User{}, err
	}
	if resp.AccessToken == "" {
		return models.User{}, ErrEmptyToken
	}
	if err := s.storage.SetToken(resp.AccessToken); err != nil {
		return models.User{}, fmt.Errorf("persist token: %w", err)
	}
	user := resp.User
	s.mu.Lock()
	s.token, s.user = resp.AccessToken, &user
	s.loading, s.restored = false, true
	s.mu.Unlock()
	s.logger.Info("login", zap.String("email", user.Email))
	return user, nil
}

// Logout forgets the session locally. The backend is not contacted.
func (s *Session) Logout() error {
	s.mu.Lock()
	s.token, s.user = "", nil
	s.loading, s.restored = false, true
	s.mu.Unlock()
	return s.storage.ClearToken()
}

// Loading is true until Restore (or Login/Logout) has completed.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// User returns a copy of the profile, or nil.
func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Validated reports whether the stored token has been checked and accepted.
func (s *Session) Validated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restored && !s.loading && s.user != nil
}
