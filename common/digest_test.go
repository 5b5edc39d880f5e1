package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDigestDeterministic(t *testing.T) {
	ns := Namespace("test")
	msg := Message("hello")
	d1 := RecordDigest(ns, Timestamp(1000), msg)
	d2 := RecordDigest(ns, Timestamp(1000), msg)
	assert.Equal(t, d1, d2)

	d3 := RecordDigest(ns, Timestamp(1001), msg)
	assert.NotEqual(t, d1, d3)
}

func TestMessageDigestIgnoresTimestamp(t *testing.T) {
	ns := Namespace("test")
	msg := Message("hello")
	assert.Equal(t, Record{Timestamp: 1000, Message: msg}.MessageDigest(ns), Record{Timestamp: 1001, Message: msg}.MessageDigest(ns))
}

func TestDigestHexRoundTrip(t *testing.T) {
	d := BytesToDigest(Keccak256([]byte("some data")))
	data, err := json.Marshal(d)
	require.NoError(t, err)

	var out Digest
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, d, out)
	assert.Regexp(t, "^\"0x[0-9a-f]{64}\"$", string(data))
}

func TestNamespaceHexRoundTrip(t *testing.T) {
	ns := Namespace{0xde, 0xad, 0xbe, 0xef}
	data, err := json.Marshal(ns)
	require.NoError(t, err)
	assert.Equal(t, `"0xdeadbeef"`, string(data))

	var out Namespace
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, ns, out)
}
