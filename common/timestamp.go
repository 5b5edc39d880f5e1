package common

import (
	"encoding/json"
	"sort"
	"time"
)

// Timestamp is a UNIX millisecond wall-clock reading taken by a single
// validator. Go has no native 128-bit integer and no value a wall clock can
// produce needs more than 64 bits (the range covers roughly 584 million
// years), so it is represented as uint64. RecordDigest still encodes it
// into a 16-byte little-endian buffer (see timestampLE16) to keep the
// digest's byte layout compatible with the wider reference width.
type Timestamp uint64

// Now samples the current wall-clock time as a Timestamp.
func Now() Timestamp {
	return Timestamp(time.Now().UnixMilli())
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint64(t))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var v uint64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*t = Timestamp(v)
	return nil
}

// Median returns the median of ts without mutating the caller's slice.
// Non-voting validators are expected to be represented by zero entries
// already present in ts; callers must not compact them out before calling
// Median, since the zero-skew toward earlier times is part of the
// certified-timestamp contract.
func Median(ts []Timestamp) Timestamp {
	if len(ts) == 0 {
		return 0
	}
	sorted := make([]Timestamp, len(ts))
	copy(sorted, ts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Quorum reports whether votes out of n validators constitutes a
// supermajority: all of them when n <= 2, otherwise at least 2n/3 using
// integer division. Callers must not substitute the `2n/3 + 1` variant some
// Byzantine-quorum literature favors — that changes the exact vote count
// certificates require and breaks wire compatibility with other
// implementations of this same formula.
func Quorum(n, votes int) bool {
	if n <= 2 {
		return votes == n
	}
	return votes >= (2*n)/3
}
