package files

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rafyaudit/internal/crypto"
)

const draftSuffix = ".draft.enc"

var (
	ErrDraftNotFound = errors.New("draft not found")
	ErrDraftExpired  = errors.New("draft expired")
	ErrInvalidDraft  = errors.New("invalid draft id")
)

// DraftStore keeps in-progress forms as AES-GCM sealed JSON files, one per id.
type DraftStore struct {
	dir string
	key []byte
	ttl time.Duration
	now func() time.Time
	mu  sync.Mutex
}

// NewDraftStore creates dir if needed. A zero ttl disables expiry.
func NewDraftStore(dir string, key []byte, ttl time.Duration) (*DraftStore, error) {
	if len(key) != 32 {
		return nil, crypto.ErrInvalidKeyLength
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create draft directory: %w", err)
	}
	return &DraftStore{dir: dir, key: key, ttl: ttl, now: time.Now}, nil
}

// NewID returns a fresh draft id.
func (s *DraftStore) NewID() string { return uuid.NewString() }

func (s *DraftStore) path(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrInvalidDraft
	}
	return filepath.Join(s.dir, id+draftSuffix), nil
}

// Save seals v under id, replacing any previous content.
func (s *DraftStore) Save(id string, v any) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	plain, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	blob, err := crypto.Seal(s.key, plain, []byte(id))
	if err != nil {
		return fmt.Errorf("seal draft: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, blob, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

// Load opens the draft id into v.
func (s *DraftStore) Load(id string, v any) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	info, err := os.Stat(p)
	if err != nil {
		s.mu.Unlock()
		if os.IsNotExist(err) {
			return ErrDraftNotFound
		}
		return err
	}
	if s.expired(info.ModTime()) {
		_ = os.Remove(p)
		s.mu.Unlock()
		return ErrDraftExpired
	}
	blob, err := os.ReadFile(p)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	plain, err := crypto.Open(s.key, blob, []byte(id))
	if err != nil {
		return fmt.Errorf("open draft: %w", err)
	}
	if err := json.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("decode draft: %w", err)
	}
	return nil
}

// Delete removes a draft. Deleting a missing draft is not an error.
func (s *DraftStore) Delete(id string) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Purge removes expired drafts and returns how many were deleted.
func (s *DraftStore) Purge() (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), draftSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if s.expired(info.ModTime()) {
			if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
				n++
			}
		}
	}
	return n, nil
}

func (s *DraftStore) expired(mod time.Time) bool {
	return s.ttl > 0 && s.now().Sub(mod) > s.ttl
}
