// Package shardmap implements a generic, hash-partitioned concurrent
// associative container (spec.md §4.5, C6). The storage engine's per-zone
// cache (C8) is built directly on top of one ShardedMap per zone.
//
// Grounded on the teacher's Shard.OwnsKey FNV-based ownership check
// (internal/shard/shard.go), generalized from "does this one shard own key
// K" into "which of N shards owns K", and from a fixed FNV-1a hash into a
// swappable Hasher, with the teacher's per-object sync.RWMutex lifted to one
// RWMutex per shard rather than one per logical object.
package shardmap

import "sync"

// Hasher reduces a salted byte key to a 64-bit hash used to pick a shard.
// The caller supplies the salt by prefixing or otherwise mixing it into key
// before hashing it; ShardedMap does not itself apply a salt, keeping the
// hash function swappable per spec.md §6's "schemes override" (an alternate
// key-hasher may be substituted per call).
type Hasher func(key []byte) uint64

// HashForm is the canonical salted hash of a key, used to pick a shard. It
// is a pure function of (key bytes, salt, hasher): spec.md §8's
// "deterministic sharding" property.
type HashForm uint64

// Shard is one partition of a ShardedMap: a plain map guarded by its own
// RWMutex. Callers lock it directly to batch several operations under one
// critical section (e.g. the cache bot's "replace entry, then look at what
// was replaced" sequence).
type Shard[V any] struct {
	mu   sync.RWMutex
	data map[string]V
}

// Lock/Unlock/RLock/RUnlock expose the shard's lock directly, mirroring
// spec.md §4.5's "get_shard_using_hash returns a read-write-locked
// reference to exactly one shard".
func (s *Shard[V]) Lock()    { s.mu.Lock() }
func (s *Shard[V]) Unlock()  { s.mu.Unlock() }
func (s *Shard[V]) RLock()   { s.mu.RLock() }
func (s *Shard[V]) RUnlock() { s.mu.RUnlock() }

// Map returns the shard's backing map. Callers must hold Lock or RLock for
// the duration of any access.
func (s *Shard[V]) Map() map[string]V { return s.data }

// ShardedMap is a hash-partitioned concurrent map parameterised by value
// type V. Capacity (the number of shards) is fixed at construction.
type ShardedMap[V any] struct {
	shards []*Shard[V]
	hash   Hasher
}

// New creates a ShardedMap with the given shard count and hasher.
func New[V any](numShards int, hasher Hasher) *ShardedMap[V] {
	if numShards < 1 {
		numShards = 1
	}
	shards := make([]*Shard[V], numShards)
	for i := range shards {
		shards[i] = &Shard[V]{data: make(map[string]V)}
	}
	return &ShardedMap[V]{shards: shards, hash: hasher}
}

// NumShards reports the shard count.
func (m *ShardedMap[V]) NumShards() int { return len(m.shards) }

// Key reduces raw key bytes to a HashForm via the map's hasher. The mapping
// is a pure function: the same bytes through the same hasher always land on
// the same shard (spec.md §4.5 invariant).
func (m *ShardedMap[V]) Key(keyBytes []byte) HashForm { return HashForm(m.hash(keyBytes)) }

// ShardIndex reduces a HashForm to a shard ordinal.
func (m *ShardedMap[V]) ShardIndex(h HashForm) int { return int(uint64(h) % uint64(len(m.shards))) }

// GetShardUsingHash returns the single shard owning h.
func (m *ShardedMap[V]) GetShardUsingHash(h HashForm) *Shard[V] {
	return m.shards[m.ShardIndex(h)]
}

// ShardAt returns the shard at a specific ordinal (used by operator
// commands that must visit every shard, e.g. dump-cache).
func (m *ShardedMap[V]) ShardAt(i int) *Shard[V] { return m.shards[i] }

// Get looks up rawKey (reduced to a shard via h) for a value.
func (m *ShardedMap[V]) Get(h HashForm, rawKey string) (V, bool) {
	s := m.GetShardUsingHash(h)
	s.RLock()
	defer s.RUnlock()
	v, ok := s.data[rawKey]
	return v, ok
}

// InsertUsingHash stores val under rawKey in the shard h maps to, returning
// whether a prior entry existed (and its value, for callers that need to
// act on what was replaced — e.g. scheduling the old file region for gc).
func (m *ShardedMap[V]) InsertUsingHash(h HashForm, rawKey string, val V) (prior V, existed bool) {
	s := m.GetShardUsingHash(h)
	s.Lock()
	defer s.Unlock()
	prior, existed = s.data[rawKey]
	s.data[rawKey] = val
	return prior, existed
}

// Delete removes rawKey from the shard h maps to.
func (m *ShardedMap[V]) Delete(h HashForm, rawKey string) {
	s := m.GetShardUsingHash(h)
	s.Lock()
	defer s.Unlock()
	delete(s.data, rawKey)
}

// Clear empties every shard (used by the operator "clear caches" command).
func (m *ShardedMap[V]) Clear() {
	for _, s := range m.shards {
		s.Lock()
		s.data = make(map[string]V)
		s.Unlock()
	}
}

// Len sums the entry count across every shard.
func (m *ShardedMap[V]) Len() int {
	total := 0
	for _, s := range m.shards {
		s.RLock()
		total += len(s.data)
		s.RUnlock()
	}
	return total
}
