package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

var (
	ErrInvalidKeyLength = errors.New("key must be 32 bytes")
	ErrCiphertextShort  = errors.New("ciphertext too short")
)

// Seal encrypts plaintext with AES-256-GCM. The nonce is prepended to the output.
// ad is authenticated but not encrypted; pass the same value to Open.
func Seal(key, plaintext, ad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	ct := gcm.Seal(nil, nonce, plaintext, ad)
	return append(nonce, ct...), nil
}

// Open reverses Seal.
func Open(key, blob, ad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	ns := gcm.NonceSize()
	if len(blob) < ns {
		return nil, ErrCiphertextShort
	}
	return gcm.Open(nil, blob[:ns], blob[ns:], ad)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
