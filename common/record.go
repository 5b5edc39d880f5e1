package common

import (
	"encoding/json"

	"github.com/chainbound/dato/blssig"
)

// signatureJSON is the 0x-hex wire encoding shared by Record.Signature and
// CertifiedRecord.QuorumSignature: BLS signatures are hex-encoded 96-byte
// compressed G2 points on the wire.
type signatureJSON blssig.Signature

func (s signatureJSON) MarshalJSON() ([]byte, error) {
	return json.Marshal(encodeHexPrefixed(s[:]))
}

func (s *signatureJSON) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	b, err := decodeHexPrefixed(str)
	if err != nil {
		return err
	}
	if len(b) != blssig.SignatureLength {
		return ErrInvalidSignatureLength
	}
	copy(s[:], b)
	return nil
}

// Record is one validator's signed observation of a message at a local
// wall-clock instant. The signature verifies over
// RecordDigest(namespace, timestamp, message) against the issuing
// validator's public key; namespace is supplied out-of-band by the caller
// (it is not part of the wire struct, matching the reference).
type Record struct {
	Timestamp Timestamp `json:"timestamp"`
	Message   Message   `json:"message"`
	Signature blssig.Signature
}

type recordJSON struct {
	Timestamp Timestamp     `json:"timestamp"`
	Message   Message       `json:"message"`
	Signature signatureJSON `json:"signature"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{r.Timestamp, r.Message, signatureJSON(r.Signature)})
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var j recordJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	r.Timestamp, r.Message, r.Signature = j.Timestamp, j.Message, blssig.Signature(j.Signature)
	return nil
}

// Digest returns the RecordDigest this record's signature should verify
// against, given the namespace it was written under.
func (r Record) Digest(namespace Namespace) Digest {
	return RecordDigest(namespace, r.Timestamp, r.Message)
}

// MessageDigest returns the stable cross-validator message identity for
// this record's message, given the namespace it was written under.
func (r Record) MessageDigest(namespace Namespace) Digest {
	return MessageDigest(namespace, r.Message)
}

// UnavailableMessage is issued by a validator when a store lookup by
// message identity misses; it is a signed attestation of absence at a
// particular local time.
type UnavailableMessage struct {
	Timestamp Timestamp `json:"timestamp"`
	MsgID     Digest    `json:"msgId"`
	Signature blssig.Signature
}

type unavailableMessageJSON struct {
	Timestamp Timestamp     `json:"timestamp"`
	MsgID     Digest        `json:"msgId"`
	Signature signatureJSON `json:"signature"`
}

func (u UnavailableMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(unavailableMessageJSON{u.Timestamp, u.MsgID, signatureJSON(u.Signature)})
}

func (u *UnavailableMessage) UnmarshalJSON(data []byte) error {
	var j unavailableMessageJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	u.Timestamp, u.MsgID, u.Signature = j.Timestamp, j.MsgID, blssig.Signature(j.Signature)
	return nil
}

// Digest returns the payload an UnavailableMessage's signature verifies.
func (u UnavailableMessage) Digest() Digest {
	return UnavailableDigest(u.MsgID, u.Timestamp)
}

// Log is an ordered sequence of records. Order is unspecified coming out of
// a single validator's ReadRange reply; the coordinator sorts after
// merging replies from every validator.
type Log struct {
	Records []Record `json:"records"`
}

// Extend appends other's records onto l.
func (l *Log) Extend(other Log) {
	l.Records = append(l.Records, other.Records...)
}

// CertifiedRecord is an availability certificate: proof that a quorum of
// validators observed message, carrying the per-validator-index timestamp
// vector (zero-filled for non-voters, see the Median/Quorum docs) and
// the aggregate signature over each voter's own RecordDigest.
type CertifiedRecord struct {
	Timestamps      []Timestamp `json:"timestamps"`
	Message         Message     `json:"message"`
	QuorumSignature blssig.Signature
}

type certifiedRecordJSON struct {
	Timestamps      []Timestamp   `json:"timestamps"`
	Message         Message       `json:"message"`
	QuorumSignature signatureJSON `json:"quorumSignature"`
}

func (c CertifiedRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(certifiedRecordJSON{c.Timestamps, c.Message, signatureJSON(c.QuorumSignature)})
}

func (c *CertifiedRecord) UnmarshalJSON(data []byte) error {
	var j certifiedRecordJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	c.Timestamps, c.Message, c.QuorumSignature = j.Timestamps, j.Message, blssig.Signature(j.QuorumSignature)
	return nil
}

// CertifiedTimestamp returns the median of c.Timestamps, the canonical
// certified time for this record.
func (c CertifiedRecord) CertifiedTimestamp() Timestamp {
	return Median(c.Timestamps)
}

// CertifiedUnavailableMessage is the non-availability counterpart of
// CertifiedRecord: proof that a quorum of validators certified they had no
// record for msgId as of their own certified time.
type CertifiedUnavailableMessage struct {
	Timestamps      []Timestamp `json:"timestamps"`
	MsgID           Digest      `json:"msgId"`
	QuorumSignature blssig.Signature
}

type certifiedUnavailableJSON struct {
	Timestamps      []Timestamp   `json:"timestamps"`
	MsgID           Digest        `json:"msgId"`
	QuorumSignature signatureJSON `json:"quorumSignature"`
}

func (c CertifiedUnavailableMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(certifiedUnavailableJSON{c.Timestamps, c.MsgID, signatureJSON(c.QuorumSignature)})
}

func (c *CertifiedUnavailableMessage) UnmarshalJSON(data []byte) error {
	var j certifiedUnavailableJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	c.Timestamps, c.MsgID, c.QuorumSignature = j.Timestamps, j.MsgID, blssig.Signature(j.QuorumSignature)
	return nil
}

// CertifiedTimestamp returns the median of c.Timestamps.
func (c CertifiedUnavailableMessage) CertifiedTimestamp() Timestamp {
	return Median(c.Timestamps)
}

// CertifiedReadMessageResponse is the result of a quorum ReadMessage call:
// exactly one of Available/Unavailable is set.
type CertifiedReadMessageResponse struct {
	Available   *CertifiedRecord
	Unavailable *CertifiedUnavailableMessage
}

// ReadMessageResponse is a single validator's reply to ReadMessage.
type ReadMessageResponse struct {
	Available   *Record
	Unavailable *UnavailableMessage
}

type readMessageResponseJSON struct {
	Available   *Record             `json:"available,omitempty"`
	Unavailable *UnavailableMessage `json:"unavailable,omitempty"`
}

func (r ReadMessageResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(readMessageResponseJSON{r.Available, r.Unavailable})
}

func (r *ReadMessageResponse) UnmarshalJSON(data []byte) error {
	var j readMessageResponseJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	r.Available, r.Unavailable = j.Available, j.Unavailable
	return nil
}

// CertifiedLog is the result of ReadCertified: one CertifiedRecord per
// record in range that a quorum certified as available. Records are not
// deduplicated, so a message returned by several validators appears once
// per returned record.
type CertifiedLog struct {
	Records []CertifiedRecord `json:"records"`
}

// ValidatorIdentity binds a validator's index (stable within one
// coordinator) to its public key.
type ValidatorIdentity struct {
	Index     int
	PublicKey blssig.PublicKey
}

// SubscribeResponse is a validator's reply to a Subscribe request: where to
// connect the publisher socket, and an opaque per-subscription token.
type SubscribeResponse struct {
	Port      uint16 `json:"port"`
	AuthToken []byte `json:"authToken"`
}

type subscribeResponseJSON struct {
	Port      uint16 `json:"port"`
	AuthToken string `json:"authToken"`
}

func (s SubscribeResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(subscribeResponseJSON{s.Port, encodeHexPrefixed(s.AuthToken)})
}

func (s *SubscribeResponse) UnmarshalJSON(data []byte) error {
	var j subscribeResponseJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	b, err := decodeHexPrefixed(j.AuthToken)
	if err != nil {
		return err
	}
	s.Port, s.AuthToken = j.Port, b
	return nil
}
