package common

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions with no useful associated data.
var (
	ErrTimeout                = errors.New("common: request timed out")
	ErrInvalidSignatureLength = errors.New("common: signature must be 96 bytes")
	ErrFailedToConnect        = errors.New("common: failed to connect to publisher socket")
	ErrFailedToSubscribe      = errors.New("common: failed to subscribe to topic")
)

// NoQuorumError reports that a Write (or any quorum-gated operation) ended
// without enough validating replies. Got is the number of validated votes
// collected; Needed is the total validator count n.
type NoQuorumError struct {
	Got, Needed int
}

func (e *NoQuorumError) Error() string {
	return fmt.Sprintf("common: no quorum reached, only %d out of %d validators signed", e.Got, e.Needed)
}

// ReadMessageNoQuorumError reports that neither the Available nor
// Unavailable side of a ReadMessage fan-out reached quorum.
type ReadMessageNoQuorumError struct {
	Available, Unavailable int
}

func (e *ReadMessageNoQuorumError) Error() string {
	return fmt.Sprintf("common: no quorum reached, available: %d, unavailable: %d", e.Available, e.Unavailable)
}

// NetworkError wraps a per-validator transport failure together with the
// index of the validator involved. The coordinator does not construct it:
// it logs per-validator transport errors as returned by the transport and
// absorbs them (they reduce the vote count, never fail the operation on
// their own).
type NetworkError struct {
	ValidatorIndex int
	Err            error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("common: network error talking to validator %d: %v", e.ValidatorIndex, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
