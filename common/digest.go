// Package common holds the wire-level data model shared by validators and
// clients: namespaces, messages, timestamps, digests and the record and
// certificate types built from them.
package common

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Namespace is an opaque byte tag that partitions the log space. It carries
// no semantic structure and is compared byte-for-byte.
type Namespace []byte

// Message is an opaque payload submitted for timestamping.
type Message []byte

// DigestLength is the size in bytes of a Keccak256 digest.
const DigestLength = 32

// Digest is a 32-byte Keccak256 hash, used both as a record's store key and
// as a message's stable cross-validator identity.
type Digest [DigestLength]byte

// BytesToDigest truncates/right-aligns b into a Digest. Callers that produce
// digests via Keccak256 always pass exactly DigestLength bytes.
func BytesToDigest(b []byte) Digest {
	if len(b) > DigestLength {
		b = b[len(b)-DigestLength:]
	}
	var d Digest
	copy(d[DigestLength-len(b):], b)
	return d
}

func (d Digest) Bytes() []byte { return d[:] }

func (d Digest) Hex() string { return "0x" + hex.EncodeToString(d[:]) }

func (d Digest) String() string { return d.Hex() }

func (d Digest) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Hex())
}

func (d *Digest) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := decodeHexPrefixed(s)
	if err != nil {
		return fmt.Errorf("common: decoding digest: %w", err)
	}
	if len(b) != DigestLength {
		return fmt.Errorf("common: digest must be %d bytes, got %d", DigestLength, len(b))
	}
	copy(d[:], b)
	return nil
}

// decodeHexPrefixed decodes a 0x-prefixed hex string, as used for every
// binary field on the wire.
func decodeHexPrefixed(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, fmt.Errorf("missing 0x prefix")
	}
	return hex.DecodeString(s[2:])
}

func encodeHexPrefixed(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// hexBytes is a []byte that marshals as 0x-prefixed hex, used for Namespace,
// Message and raw signature fields.
type hexBytes []byte

func (h hexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(encodeHexPrefixed(h))
}

func (h *hexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := decodeHexPrefixed(s)
	if err != nil {
		return err
	}
	*h = b
	return nil
}

func (n Namespace) MarshalJSON() ([]byte, error)     { return hexBytes(n).MarshalJSON() }
func (n *Namespace) UnmarshalJSON(data []byte) error { return (*hexBytes)(n).UnmarshalJSON(data) }
func (n Namespace) Hex() string                      { return encodeHexPrefixed(n) }

func (m Message) MarshalJSON() ([]byte, error)     { return hexBytes(m).MarshalJSON() }
func (m *Message) UnmarshalJSON(data []byte) error { return (*hexBytes)(m).UnmarshalJSON(data) }
func (m Message) Hex() string                      { return encodeHexPrefixed(m) }

// timestampLE16 encodes a Timestamp as a 16-byte little-endian buffer, the
// on-the-wire width digest construction requires even though this
// implementation represents Timestamp as a uint64 (see Timestamp doc).
func timestampLE16(ts Timestamp) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[:8], uint64(ts))
	return buf
}

// Keccak256 is the hash function used throughout for digests.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// RecordDigest = Keccak256(namespace ‖ timestamp_LE_u128 ‖ message). It is
// stable per validator per write and is the store's key.
func RecordDigest(namespace Namespace, timestamp Timestamp, message Message) Digest {
	return BytesToDigest(Keccak256(namespace, timestampLE16(timestamp), message))
}

// MessageDigest = Keccak256(namespace ‖ message), a cross-validator stable
// identity for a message.
func MessageDigest(namespace Namespace, message Message) Digest {
	return BytesToDigest(Keccak256(namespace, message))
}

// UnavailableDigest = Keccak256(msg_id ‖ timestamp_LE_u128), the payload a
// validator signs when it has no record for a requested message identity.
func UnavailableDigest(msgID Digest, timestamp Timestamp) Digest {
	return BytesToDigest(Keccak256(msgID.Bytes(), timestampLE16(timestamp)))
}
