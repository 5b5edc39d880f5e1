package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadValidatorDecodesKnownFields(t *testing.T) {
	path := writeTOML(t, `
secret_key = "0xdeadbeef"
request_addr = "0.0.0.0:9000"
store_capacity = 4096
`)

	cfg, err := LoadValidator(path)
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", cfg.SecretKeyHex)
	assert.Equal(t, "0.0.0.0:9000", cfg.RequestAddr)
	assert.Equal(t, "", cfg.PublisherAddr)
	assert.Equal(t, 4096, cfg.StoreCapacity)
}

func TestLoadValidatorIgnoresUnknownFields(t *testing.T) {
	path := writeTOML(t, `
secret_key = "0xdeadbeef"
request_addr = "0.0.0.0:9000"
future_option = "whatever"
`)

	cfg, err := LoadValidator(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.RequestAddr)
}

func TestLoadClientDecodesKnownFields(t *testing.T) {
	path := writeTOML(t, `
registry_path = "registry.txt"
api_port = 8080
write_timeout_ms = 500
read_timeout_ms = 750
`)

	cfg, err := LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "registry.txt", cfg.RegistryPath)
	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, 500, cfg.WriteTimeoutMillis)
	assert.Equal(t, 750, cfg.ReadTimeoutMillis)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadValidator(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
