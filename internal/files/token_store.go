package files

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TokenFileName is the fixed key under which the CLI persists its token.
const TokenFileName = "rafy_token"

// TokenFile persists one bearer token in a 0600 file.
type TokenFile struct {
	path string
	mu   sync.Mutex
}

// NewTokenFile stores the token at dir/rafy_token.
func NewTokenFile(dir string) *TokenFile {
	return &TokenFile{path: filepath.Join(dir, TokenFileName)}
}

// DefaultTokenDir returns ~/.rafyaudit, falling back to the temp dir.
func DefaultTokenDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".rafyaudit")
	}
	return filepath.Join(home, ".rafyaudit")
}

// Path returns the token file location.
func (f *TokenFile) Path() string { return f.path }

// Token reads the file on every call.
func (f *TokenFile) Token() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := os.ReadFile(f.path)
	if err != nil {
		return "", false
	}
	tok := strings.TrimSpace(string(b))
	return tok, tok != ""
}

func (f *TokenFile) SetToken(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return err
	}
	return os.WriteFile(f.path, []byte(token+"\n"), 0600)
}

func (f *TokenFile) ClearToken() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
