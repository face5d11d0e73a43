// Package certs loads the TLS key pair the web server listens with.
package certs

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"time"
)

var ErrExpired = errors.New("certificate expired")

// CertManager holds one certificate/key pair on disk.
type CertManager struct {
	certFile string
	keyFile  string
	now      func() time.Time
}

// NewCertManager creates a CertManager for a PEM certificate and key.
func NewCertManager(certFile, keyFile string) *CertManager {
	return &CertManager{certFile: certFile, keyFile: keyFile, now: time.Now}
}

// Load reads the pair and parses its leaf. An expired leaf is an error.
func (cm *CertManager) Load() (tls.Certificate, error) {
	pair, err := tls.LoadX509KeyPair(cm.certFile, cm.keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load key pair: %w", err)
	}
	if pair.Leaf == nil {
		leaf, err := x509.ParseCertificate(pair.Certificate[0])
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("parse certificate: %w", err)
		}
		pair.Leaf = leaf
	}
	if cm.IsExpired(pair.Leaf) {
		return tls.Certificate{}, fmt.Errorf("%w on %s", ErrExpired, pair.Leaf.NotAfter.Format(time.RFC3339))
	}
	return pair, nil
}

// IsExpired checks if a certificate is expired.
func (cm *CertManager) IsExpired(cert *x509.Certificate) bool {
	return cert.NotAfter.Before(cm.now())
}

// ExpiresWithin reports whether cert ends before now+d.
func (cm *CertManager) ExpiresWithin(cert *x509.Certificate, d time.Duration) bool {
	return cert.NotAfter.Before(cm.now().Add(d))
}

// TLSConfig returns a server configuration serving the pair.
func (cm *CertManager) TLSConfig() (*tls.Config, error) {
	pair, err := cm.Load()
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{pair},
	}, nil
}
