// Package blssig wraps github.com/supranational/blst for the BLS12-381
// min-pk scheme this log uses: public keys live in G1 (48 bytes
// compressed), signatures in G2 (96 bytes compressed), matching the shape
// Record and CertifiedRecord require.
package blssig

import (
	"crypto/rand"
	"errors"
	"fmt"

	blst "github.com/supranational/blst/bindings/go"
)

// DomainSeparationTag is the BLS ciphersuite used for every signature in
// this system, fixed for wire compatibility of certificates across
// independent implementations.
const DomainSeparationTag = "BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_"

// PublicKeyLength and SignatureLength are the compressed encoding widths
// for min-pk G1 public keys and G2 signatures.
const (
	PublicKeyLength = 48
	SignatureLength = 96
	SecretKeyLength = 32
)

var (
	ErrInvalidSecretKey = errors.New("blssig: invalid secret key bytes")
	ErrInvalidPublicKey = errors.New("blssig: invalid public key bytes")
	ErrInvalidSignature = errors.New("blssig: invalid signature bytes")
	ErrNoSignatures     = errors.New("blssig: no signatures to aggregate")
)

// SecretKey is a BLS12-381 signing key.
type SecretKey struct {
	sk *blst.SecretKey
}

// PublicKey is a compressed BLS12-381 G1 public key.
type PublicKey [PublicKeyLength]byte

// Signature is a compressed BLS12-381 G2 signature.
type Signature [SignatureLength]byte

// GenerateSecretKey draws 32 bytes of key material from rand.Reader and
// derives a BLS12-381 secret key from it, mirroring
// accountsigner.GenerateBLS12381PrivateKey.
func GenerateSecretKey() (*SecretKey, error) {
	ikm := make([]byte, SecretKeyLength)
	if _, err := rand.Read(ikm); err != nil {
		return nil, fmt.Errorf("blssig: reading key material: %w", err)
	}
	sk := blst.KeyGen(ikm)
	if sk == nil {
		return nil, ErrInvalidSecretKey
	}
	return &SecretKey{sk: sk}, nil
}

// SecretKeyFromBytes parses a 32-byte big-endian secret key scalar.
func SecretKeyFromBytes(raw []byte) (*SecretKey, error) {
	if len(raw) != SecretKeyLength {
		return nil, ErrInvalidSecretKey
	}
	sk := new(blst.SecretKey).Deserialize(raw)
	if sk == nil {
		return nil, ErrInvalidSecretKey
	}
	return &SecretKey{sk: sk}, nil
}

// Bytes returns the 32-byte big-endian encoding of the secret scalar.
func (s *SecretKey) Bytes() []byte {
	return s.sk.Serialize()
}

// PublicKey derives the compressed public key for this secret key.
func (s *SecretKey) PublicKey() PublicKey {
	compressed := new(blst.P1Affine).From(s.sk).Compress()
	var pk PublicKey
	copy(pk[:], compressed)
	return pk
}

// Sign produces a compressed G2 signature over digest under
// DomainSeparationTag.
func (s *SecretKey) Sign(digest []byte) Signature {
	compressed := new(blst.P2Affine).Sign(s.sk, digest, []byte(DomainSeparationTag)).Compress()
	var sig Signature
	copy(sig[:], compressed)
	return sig
}

func (pk PublicKey) Bytes() []byte { return pk[:] }

func (pk PublicKey) toAffine() (*blst.P1Affine, error) {
	affine := new(blst.P1Affine).Uncompress(pk[:])
	if affine == nil || !affine.KeyValidate() {
		return nil, ErrInvalidPublicKey
	}
	return affine, nil
}

func (sig Signature) Bytes() []byte { return sig[:] }

func (sig Signature) toAffine() (*blst.P2Affine, error) {
	affine := new(blst.P2Affine).Uncompress(sig[:])
	if affine == nil {
		return nil, ErrInvalidSignature
	}
	return affine, nil
}

// Verify checks a single signature against a single digest and public key.
func Verify(sig Signature, pub PublicKey, digest []byte) bool {
	var dummy blst.P2Affine
	return dummy.VerifyCompressed(sig[:], true, pub[:], true, digest, []byte(DomainSeparationTag))
}

// Aggregate sums signatures into a single compressed signature. The result
// only verifies via AggregateVerify against the same ordered set of
// (pubkey, digest) pairs the inputs were produced from.
func Aggregate(sigs []Signature) (Signature, error) {
	var out Signature
	if len(sigs) == 0 {
		return out, ErrNoSignatures
	}
	raw := make([][]byte, len(sigs))
	for i, s := range sigs {
		raw[i] = s[:]
	}
	agg := new(blst.P2Aggregate)
	if !agg.AggregateCompressed(raw, true) {
		return out, ErrInvalidSignature
	}
	affine := agg.ToAffine()
	if affine == nil {
		return out, ErrInvalidSignature
	}
	copy(out[:], affine.Compress())
	return out, nil
}

// AddSignature extends an existing aggregate with one more signature,
// matching the streaming "aggregate as replies arrive" flow the
// coordinator and subscription pipeline both need.
func AddSignature(agg Signature, sig Signature) (Signature, error) {
	return Aggregate([]Signature{agg, sig})
}

// VerifyAggregate checks an aggregate signature against parallel slices of
// public keys and digests — each signer is expected to have signed its own
// digest, which is exactly the shape of a CertifiedRecord whose validators
// each stamped a different timestamp. See DESIGN.md for the decision to
// perform this hardened re-verification when assembling certificates.
func VerifyAggregate(sig Signature, pubs []PublicKey, digests [][]byte) bool {
	if len(pubs) == 0 || len(pubs) != len(digests) {
		return false
	}
	sigAffine, err := sig.toAffine()
	if err != nil {
		return false
	}
	pkAffines := make([]*blst.P1Affine, len(pubs))
	for i, pk := range pubs {
		affine, err := pk.toAffine()
		if err != nil {
			return false
		}
		pkAffines[i] = affine
	}
	return sigAffine.AggregateVerify(true, pkAffines, true, digests, []byte(DomainSeparationTag))
}
