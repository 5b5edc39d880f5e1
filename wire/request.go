// Package wire defines the request tagged union that crosses the request
// socket between a client coordinator and a validator. It is externally
// tagged — exactly one field is non-nil — matching the default JSON shape
// a Rust externally-tagged enum variant produces.
package wire

import "github.com/chainbound/dato/common"

// WriteRequest asks a validator to stamp and sign message under namespace.
type WriteRequest struct {
	Namespace common.Namespace `json:"namespace"`
	Message   common.Message   `json:"message"`
}

// ReadRangeRequest asks a validator for every record in namespace whose
// timestamp falls in [Start, End] inclusive.
type ReadRangeRequest struct {
	Namespace common.Namespace `json:"namespace"`
	Start     common.Timestamp `json:"start"`
	End       common.Timestamp `json:"end"`
}

// ReadMessageRequest asks a validator whether it has a record for the
// message identified by MsgID (= MessageDigest(namespace, message)).
type ReadMessageRequest struct {
	Namespace common.Namespace `json:"namespace"`
	MsgID     common.Digest    `json:"msgId"`
}

// SubscribeRequest asks a validator to start forwarding writes to
// namespace on its publisher socket.
type SubscribeRequest struct {
	Namespace common.Namespace `json:"namespace"`
}

// Request is the tagged union of every request kind a validator accepts.
// Exactly one field should be set when constructing one.
type Request struct {
	Write       *WriteRequest       `json:"write,omitempty"`
	ReadRange   *ReadRangeRequest   `json:"readRange,omitempty"`
	ReadMessage *ReadMessageRequest `json:"readMessage,omitempty"`
	Subscribe   *SubscribeRequest   `json:"subscribe,omitempty"`
}
