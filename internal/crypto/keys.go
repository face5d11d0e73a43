package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// HKDF info strings. Changing one invalidates every cookie or draft sealed with it.
const (
	infoCookieHash  = "rafyaudit-cookie-hash"
	infoCookieBlock = "rafyaudit-cookie-block"
	infoDrafts      = "rafyaudit-drafts"
)

// MinSecretLength is the shortest accepted session secret, in bytes.
const MinSecretLength = 32

var ErrSecretTooShort = errors.New("session secret too short")

// ParseSecret decodes a hex secret and enforces MinSecretLength.
func ParseSecret(h string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimSpace(h))
	if err != nil {
		return nil, fmt.Errorf("secret hex decode error: %w", err)
	}
	if len(b) < MinSecretLength {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrSecretTooShort, len(b), MinSecretLength)
	}
	return b, nil
}

// Derive expands secret into n bytes bound to info using HKDF-SHA256.
func Derive(secret []byte, info string, n int) ([]byte, error) {
	h := hkdf.New(sha256.New, secret, nil, []byte(info))
	out := make([]byte, n)
	if _, err := io.ReadFull(h, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CookieKeys returns the HMAC key (64 bytes) and AES key (32 bytes) for cookie sessions.
func CookieKeys(secret []byte) (hashKey, blockKey []byte, err error) {
	if hashKey, err = Derive(secret, infoCookieHash, 64); err != nil {
		return nil, nil, err
	}
	if blockKey, err = Derive(secret, infoCookieBlock, 32); err != nil {
		return nil, nil, err
	}
	return hashKey, blockKey, nil
}

// DraftKey returns the AES-256 key sealing draft files.
func DraftKey(secret []byte) ([]byte, error) {
	return Derive(secret, infoDrafts, 32)
}

// NewSecret returns n random bytes.
func NewSecret(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}
