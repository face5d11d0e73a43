// Package api is an in-memory implementation of the audit REST API.
// It backs cmd/devbackend and the end-to-end tests of the web layer.
package api

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"rafyaudit/internal/models"
)

var (
	ErrBadCredentials = errors.New("bad credentials")
	ErrAuditNotFound  = errors.New("audit not found")
)

// Config is the fixed data the fake backend serves.
type Config struct {
	// AllowedEmails may log in with Password. Emails are compared lower-cased.
	AllowedEmails []string
	Password      string
	Commercials   []models.Commercial
	Controllers   []string
	// TokenTTL bounds issued tokens. Zero means no expiry.
	TokenTTL time.Duration
}

// DefaultConfig is a small data set for local development.
func DefaultConfig() Config {
	return Config{
		AllowedEmails: []string{"direction@rafygold.com", "controle@rafygold.com"},
		Password:      "dev",
		Commercials: []models.Commercial{
			{ID: "c1", Name: "Julien Martin", Team: "Paris"},
			{ID: "c2", Name: "Sophie Bernard", Team: "Lyon"},
			{ID: "c3", Name: "Karim Haddad", Team: "Marseille"},
		},
		Controllers: []string{"Direction", "Contrôle Interne"},
		TokenTTL:    24 * time.Hour,
	}
}

type session struct {
	email   string
	expires time.Time
}

// Store holds issued tokens and audits. It is safe for concurrent use.
type Store struct {
	cfg     Config
	now     func() time.Time
	mu      sync.RWMutex
	tokens  map[string]session
	audits  map[string]models.AuditRecord
	order   []string
	allowed map[string]bool
	// passwordHash is nil when Password cannot be hashed, which disables login.
	passwordHash []byte
}

func NewStore(cfg Config) *Store {
	allowed := make(map[string]bool, len(cfg.AllowedEmails))
	for _, e := range cfg.AllowedEmails {
		allowed[normalizeEmail(e)] = true
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.MinCost)
	return &Store{
		cfg:          cfg,
		now:          time.Now,
		tokens:       make(map[string]session),
		audits:       make(map[string]models.AuditRecord),
		allowed:      allowed,
		passwordHash: hash,
	}
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

// Login issues a token for an allowed email. The user name is the upper-cased local part.
func (s *Store) Login(email, password string) (models.LoginResponse, error) {
	email = normalizeEmail(email)
	if !s.allowed[email] || bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) != nil {
		return models.LoginResponse{}, ErrBadCredentials
	}
	tok := uuid.NewString()
	sess := session{email: email}
	if s.cfg.TokenTTL > 0 {
		sess.expires = s.now().Add(s.cfg.TokenTTL)
	}
	s.mu.Lock()
	s.tokens[tok] = sess
	s.mu.Unlock()
	return models.LoginResponse{AccessToken: tok, User: userFor(email)}, nil
}

func userFor(email string) models.User {
	local, _, _ := strings.Cut(email, "@")
	return models.User{Email: email, Name: strings.ToUpper(local)}
}

// Authenticate resolves a bearer token.
func (s *Store) Authenticate(token string) (models.User, bool) {
	s.mu.RLock()
	sess, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok {
		return models.User{}, false
	}
	if !sess.expires.IsZero() && s.now().After(sess.expires) {
		s.mu.Lock()
		delete(s.tokens, token)
		s.mu.Unlock()
		return models.User{}, false
	}
	return userFor(sess.email), true
}

// Create stores rec under a new id and stamps created_at.
func (s *Store) Create(rec models.AuditRecord) models.AuditRecord {
	rec.ID = uuid.NewString()
	rec.CreatedAt = s.now().UTC().Format(time.RFC3339)
	s.mu.Lock()
	s.audits[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	s.mu.Unlock()
	return rec
}

// List returns audits newest first.
func (s *Store) List() []models.AuditRecord {
	s.mu.RLock()
	out := make([]models.AuditRecord, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.audits[s.order[i]])
	}
	s.mu.RUnlock()
	return out
}

func (s *Store) Get(id string) (models.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.audits[id]
	if !ok {
		return models.AuditRecord{}, ErrAuditNotFound
	}
	return rec, nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.audits[id]; !ok {
		return ErrAuditNotFound
	}
	delete(s.audits, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) Commercials() []models.Commercial {
	return append([]models.Commercial(nil), s.cfg.Commercials...)
}

func (s *Store) Controllers() []string {
	return append([]string(nil), s.cfg.Controllers...)
}
