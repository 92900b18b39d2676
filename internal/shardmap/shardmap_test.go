package shardmap

import (
	"strconv"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"
)

func xxHasher(key []byte) uint64 { return xxhash.Sum64(key) }

func TestShardedMapInsertGetDelete(t *testing.T) {
	m := New[string](8, xxHasher)

	for i := 0; i < 100; i++ {
		key := "key-" + strconv.Itoa(i)
		h := m.Key([]byte(key))
		_, existed := m.InsertUsingHash(h, key, "value-"+strconv.Itoa(i))
		require.False(t, existed)
	}
	require.Equal(t, 100, m.Len())

	for i := 0; i < 100; i++ {
		key := "key-" + strconv.Itoa(i)
		h := m.Key([]byte(key))
		v, ok := m.Get(h, key)
		require.True(t, ok)
		require.Equal(t, "value-"+strconv.Itoa(i), v)
	}

	h0 := m.Key([]byte("key-0"))
	m.Delete(h0, "key-0")
	_, ok := m.Get(h0, "key-0")
	require.False(t, ok)
	require.Equal(t, 99, m.Len())
}

func TestShardedMapDeterministicShardAssignment(t *testing.T) {
	m := New[int](16, xxHasher)
	h1 := m.Key([]byte("stable-key"))
	h2 := m.Key([]byte("stable-key"))
	require.Equal(t, h1, h2)
	require.Equal(t, m.ShardIndex(h1), m.ShardIndex(h2))
}

func TestShardedMapInsertReturnsPriorValue(t *testing.T) {
	m := New[int](4, xxHasher)
	h := m.Key([]byte("a"))
	_, existed := m.InsertUsingHash(h, "a", 1)
	require.False(t, existed)
	prior, existed := m.InsertUsingHash(h, "a", 2)
	require.True(t, existed)
	require.Equal(t, 1, prior)
}

func TestShardedMapClear(t *testing.T) {
	m := New[int](4, xxHasher)
	for i := 0; i < 10; i++ {
		key := "k" + strconv.Itoa(i)
		m.InsertUsingHash(m.Key([]byte(key)), key, i)
	}
	require.Equal(t, 10, m.Len())
	m.Clear()
	require.Equal(t, 0, m.Len())
}

func TestShardDirectLockingBatchesOperations(t *testing.T) {
	m := New[int](4, xxHasher)
	h := m.Key([]byte("batched"))
	s := m.GetShardUsingHash(h)

	s.Lock()
	s.Map()["batched"] = 42
	s.Unlock()

	v, ok := m.Get(h, "batched")
	require.True(t, ok)
	require.Equal(t, 42, v)
}

func TestShardAtCoversEveryShard(t *testing.T) {
	m := New[int](4, xxHasher)
	for i := 0; i < 50; i++ {
		key := "k" + strconv.Itoa(i)
		m.InsertUsingHash(m.Key([]byte(key)), key, i)
	}
	total := 0
	for i := 0; i < m.NumShards(); i++ {
		s := m.ShardAt(i)
		s.RLock()
		total += len(s.Map())
		s.RUnlock()
	}
	require.Equal(t, 50, total)
}

func TestSingleShardClampsToOne(t *testing.T) {
	m := New[int](0, xxHasher)
	require.Equal(t, 1, m.NumShards())
}
