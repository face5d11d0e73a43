package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rafyaudit/internal/crypto"
)

func TestPrintsParsableSecret(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	secret, err := crypto.ParseSecret(out.String())
	require.NoError(t, err)
	assert.Len(t, secret, crypto.MinSecretLength)
}

func TestRefusesOverwrite(t *testing.T) {
	file := filepath.Join(t.TempDir(), "session.key")

	cmd := newRootCommand(&bytes.Buffer{})
	cmd.SetArgs([]string{"-o", file})
	require.NoError(t, cmd.Execute())
	first, err := os.ReadFile(file)
	require.NoError(t, err)
	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	cmd = newRootCommand(&bytes.Buffer{})
	cmd.SetArgs([]string{"-o", file})
	assert.ErrorContains(t, cmd.Execute(), "refusing to overwrite")

	cmd = newRootCommand(&bytes.Buffer{})
	cmd.SetArgs([]string{"-o", file, "--force"})
	require.NoError(t, cmd.Execute())
	second, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.NotEqual(t, strings.TrimSpace(string(first)), strings.TrimSpace(string(second)))
}

func TestRejectsShortSecret(t *testing.T) {
	cmd := newRootCommand(&bytes.Buffer{})
	cmd.SetArgs([]string{"--bytes", "8"})
	assert.ErrorIs(t, cmd.Execute(), crypto.ErrSecretTooShort)
}
