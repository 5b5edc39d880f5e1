package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainbound/dato/common"
)

func TestWriteAndReadRange(t *testing.T) {
	s := New(0)
	ns := common.Namespace("ns")

	r1 := common.Record{Timestamp: 100, Message: common.Message("a")}
	r2 := common.Record{Timestamp: 200, Message: common.Message("b")}
	r3 := common.Record{Timestamp: 300, Message: common.Message("c")}

	s.WriteOne(ns, r1)
	s.WriteOne(ns, r2)
	s.WriteOne(ns, r3)

	got := s.ReadRange(ns, 100, 200)
	assert.Len(t, got.Records, 2)

	all := s.ReadRange(ns, 0, 1000)
	assert.Len(t, all.Records, 3)
}

func TestReadRangeUnknownNamespace(t *testing.T) {
	s := New(0)
	got := s.ReadRange(common.Namespace("missing"), 0, 1000)
	assert.Empty(t, got.Records)
}

func TestReadMessageMostRecent(t *testing.T) {
	s := New(0)
	ns := common.Namespace("ns")
	msg := common.Message("same message")

	s.WriteOne(ns, common.Record{Timestamp: 100, Message: msg})
	s.WriteOne(ns, common.Record{Timestamp: 200, Message: msg})

	msgID := common.MessageDigest(ns, msg)
	record, ok := s.ReadMessage(ns, msgID)
	require.True(t, ok)
	assert.Equal(t, common.Timestamp(200), record.Timestamp)
}

func TestReadMessageMiss(t *testing.T) {
	s := New(0)
	ns := common.Namespace("ns")
	_, ok := s.ReadMessage(ns, common.Digest{})
	assert.False(t, ok)
}

func TestFIFOEviction(t *testing.T) {
	capacity := 4
	s := New(capacity)
	ns := common.Namespace("ns")

	var firstDigest common.Digest
	for i := 0; i < capacity+1; i++ {
		r := common.Record{Timestamp: common.Timestamp(i), Message: common.Message{byte(i)}}
		if i == 0 {
			firstDigest = common.RecordDigest(ns, r.Timestamp, r.Message)
		}
		s.WriteOne(ns, r)
	}

	all := s.ReadRange(ns, 0, common.Timestamp(capacity))
	assert.Len(t, all.Records, capacity)

	for _, r := range all.Records {
		d := common.RecordDigest(ns, r.Timestamp, r.Message)
		assert.NotEqual(t, firstDigest, d, "oldest-inserted record should have been evicted")
	}
}

func TestDuplicateDigestOverwritesWithoutEviction(t *testing.T) {
	s := New(2)
	ns := common.Namespace("ns")
	msg := common.Message("same")

	s.WriteOne(ns, common.Record{Timestamp: 1, Message: msg})
	s.WriteOne(ns, common.Record{Timestamp: 1, Message: msg})
	s.WriteOne(ns, common.Record{Timestamp: 2, Message: common.Message("other")})

	all := s.ReadRange(ns, 0, 100)
	assert.Len(t, all.Records, 2)
}
