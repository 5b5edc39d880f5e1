package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainbound/dato/blssig"
)

func writeRegistry(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.txt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestNewFileProviderParsesValidEntries(t *testing.T) {
	sk, err := blssig.GenerateSecretKey()
	require.NoError(t, err)
	pubkeyHex := "0x" + hexString(sk.PublicKey().Bytes())

	contents := "# comment line\n\n0," + pubkeyHex + ",ws://validator-0:9000/\n"
	path := writeRegistry(t, contents)

	p, err := NewFileProvider(path)
	require.NoError(t, err)

	n, err := p.ValidatorCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := p.AllValidators()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 0, all[0].Index)
	assert.Equal(t, sk.PublicKey(), all[0].PublicKey)
	assert.Equal(t, "ws://validator-0:9000/", all[0].RequestURL)
}

func TestNewFileProviderRejectsWrongFieldCount(t *testing.T) {
	path := writeRegistry(t, "0,deadbeef\n")
	_, err := NewFileProvider(path)
	assert.Error(t, err)
}

func TestNewFileProviderRejectsBadPublicKeyLength(t *testing.T) {
	path := writeRegistry(t, "0,0xdead,ws://validator-0:9000/\n")
	_, err := NewFileProvider(path)
	assert.Error(t, err)
}

func TestNewFileProviderMissingFile(t *testing.T) {
	_, err := NewFileProvider(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func hexString(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[2*i] = hexDigits[v>>4]
		out[2*i+1] = hexDigits[v&0xf]
	}
	return string(out)
}
