package auth

import (
	"net/http"
	"sync"

	"github.com/gorilla/sessions"
)

// TokenKey is the fixed key the token is stored under.
const TokenKey = "rafy_token"

// CookieStorage keeps the token inside a gorilla cookie session.
// Every mutation is written back to the response immediately.
type CookieStorage struct {
	session *sessions.Session
	r       *http.Request
	w       http.ResponseWriter
}

func NewCookieStorage(session *sessions.Session, r *http.Request, w http.ResponseWriter) *CookieStorage {
	return &CookieStorage{session: session, r: r, w: w}
}

func (c *CookieStorage) Token() (string, bool) {
	tok, ok := c.session.Values[TokenKey].(string)
	return tok, ok && tok != ""
}

func (c *CookieStorage) SetToken(token string) error {
	c.session.Values[TokenKey] = token
	return c.session.Save(c.r, c.w)
}

func (c *CookieStorage) ClearToken() error {
	delete(c.session.Values, TokenKey)
	return c.session.Save(c.r, c.w)
}

// MemoryStorage is a process-local TokenStorage.
type MemoryStorage struct {
	mu    sync.Mutex
	token string
}

func NewMemoryStorage(token string) *MemoryStorage { return &MemoryStorage{token: token} }

func (m *MemoryStorage) Token() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.token != ""
}

func (m *MemoryStorage) SetToken(token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) ClearToken() error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}
