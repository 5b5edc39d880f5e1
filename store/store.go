// Package store implements the validator-side, namespace-partitioned,
// capacity-bounded record database each validator uses to answer reads.
package store

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/chainbound/dato/common"
)

// DefaultCapacity is the per-namespace record limit used when a Store is
// constructed without an explicit one.
const DefaultCapacity = 4096

// Store is a namespace-partitioned, bounded, in-memory record database.
// All operations are synchronous and infallible.
type Store struct {
	mu         sync.RWMutex
	capacity   int
	namespaces map[string]*bucket
}

// bucket holds one namespace's records, keyed by RecordDigest with
// insertion-order (FIFO) eviction, plus an auxiliary index from
// MessageDigest to the most-recently-written RecordDigest for that
// message identity, so ReadMessage doesn't need a linear scan.
type bucket struct {
	records     *lru.LRU[common.Digest, common.Record]
	messageToRD map[common.Digest]common.Digest
}

// New creates a Store whose namespaces are created on first write with the
// given per-namespace capacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity, namespaces: make(map[string]*bucket)}
}

func nsKey(namespace common.Namespace) string { return string(namespace) }

// WriteOne inserts record under RecordDigest(namespace, record.Timestamp,
// record.Message). If the namespace's bucket is full, the oldest-inserted
// record is evicted first. A duplicate RecordDigest overwrites the stored
// record and triggers no eviction; it does not keep its original place in
// the eviction order, but moves to the newest position, as if freshly
// inserted.
func (s *Store) WriteOne(namespace common.Namespace, record common.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := nsKey(namespace)
	b, ok := s.namespaces[key]
	if !ok {
		b = s.newBucket()
		s.namespaces[key] = b
	}

	digest := common.RecordDigest(namespace, record.Timestamp, record.Message)
	b.records.Add(digest, record)

	msgDigest := common.MessageDigest(namespace, record.Message)
	b.messageToRD[msgDigest] = digest
}

func (s *Store) newBucket() *bucket {
	b := &bucket{messageToRD: make(map[common.Digest]common.Digest)}
	onEvict := func(evictedKey common.Digest, _ common.Record) {
		// Drop any message-identity index entry that still points at the
		// record being evicted; a later write to the same message will
		// have already overwritten it with a fresher RecordDigest.
		for msgDigest, rd := range b.messageToRD {
			if rd == evictedKey {
				delete(b.messageToRD, msgDigest)
			}
		}
	}
	l, err := lru.NewLRU[common.Digest, common.Record](s.capacity, onEvict)
	if err != nil {
		// Only returns an error for a non-positive size, which New()
		// above already guards against.
		panic(err)
	}
	b.records = l
	return b
}

// ReadRange returns all records in namespace whose timestamp falls in
// [start, end], inclusive on both ends. An unknown namespace yields an
// empty Log rather than an error. Order within the returned Log is
// unspecified.
func (s *Store) ReadRange(namespace common.Namespace, start, end common.Timestamp) common.Log {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.namespaces[nsKey(namespace)]
	if !ok {
		return common.Log{}
	}

	var out common.Log
	for _, digest := range b.records.Keys() {
		record, ok := b.records.Peek(digest)
		if !ok {
			continue
		}
		if record.Timestamp >= start && record.Timestamp <= end {
			out.Records = append(out.Records, record)
		}
	}
	return out
}

// ReadMessage looks up the most-recently-inserted record for msgID within
// namespace. It returns ok=false if no record has ever been written for
// that message identity (or if it has since been evicted).
func (s *Store) ReadMessage(namespace common.Namespace, msgID common.Digest) (common.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.namespaces[nsKey(namespace)]
	if !ok {
		return common.Record{}, false
	}
	recordDigest, ok := b.messageToRD[msgID]
	if !ok {
		return common.Record{}, false
	}
	return b.records.Peek(recordDigest)
}
