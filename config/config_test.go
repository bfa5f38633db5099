package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultClient(t *testing.T) {
	cfg := DefaultClient()
	assert.Equal(t, uint16(772), cfg.Version)
	assert.Equal(t, uint64(65537), cfg.RSAExponent)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 256, cfg.QueueSize)
	assert.Equal(t, 7171, cfg.LoginPort)

	pk, err := cfg.PublicKey()
	require.NoError(t, err)
	assert.Equal(t, 128, pk.BlockSize())
}

func TestLoadClientMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadClient(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultClient(), cfg)
}

func TestLoadClientOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yml")
	data := `
version: 760
login_host: login.example.com
login_port: 7175
queue_size: 64
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(760), cfg.Version)
	assert.Equal(t, "login.example.com", cfg.LoginHost)
	assert.Equal(t, 7175, cfg.LoginPort)
	assert.Equal(t, 64, cfg.QueueSize)

	// Untouched fields keep their defaults.
	assert.Equal(t, uint16(2), cfg.OS)
	assert.Equal(t, DefaultClient().RSAModulus, cfg.RSAModulus)
}

func TestLoadClientMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yml")
	require.NoError(t, os.WriteFile(path, []byte("version: [nope"), 0o644))

	_, err := LoadClient(path)
	require.Error(t, err)
}

func TestPublicKeyBadModulus(t *testing.T) {
	cfg := DefaultClient()
	cfg.RSAModulus = "garbage"
	_, err := cfg.PublicKey()
	require.Error(t, err)
}
