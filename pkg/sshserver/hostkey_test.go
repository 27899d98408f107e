package sshserver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestLoadOrGenerateSignerPersistsKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "host_ed25519")

	first, err := LoadOrGenerateSigner(path)
	require.NoError(t, err)
	require.Equal(t, ssh.KeyAlgoED25519, first.PublicKey().Type())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := LoadOrGenerateSigner(path)
	require.NoError(t, err)
	require.Equal(t, first.PublicKey().Marshal(), second.PublicKey().Marshal())
}

func TestLoadOrGenerateSignerRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host_key")
	require.NoError(t, os.WriteFile(path, []byte("not a key"), 0o600))

	_, err := LoadOrGenerateSigner(path)
	require.ErrorContains(t, err, "parse host key")
}

func TestLoadOrGenerateSignerEphemeral(t *testing.T) {
	a, err := LoadOrGenerateSigner("")
	require.NoError(t, err)
	b, err := LoadOrGenerateSigner("")
	require.NoError(t, err)
	require.NotEqual(t, a.PublicKey().Marshal(), b.PublicKey().Marshal())
}
