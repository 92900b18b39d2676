package ozone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/ozone/internal/daticle"
)

// TestNormalizeKeyIsDeterministic verifies the same key, hasher, and salt
// always normalise to the same canonical Daticle and hash bytes (spec.md
// §8's deterministic sharding property starts here).
func TestNormalizeKeyIsDeterministic(t *testing.T) {
	key := daticle.Str("user:42")
	c1, h1 := NormalizeKey(key, nil, nil)
	c2, h2 := NormalizeKey(key, nil, nil)
	assert.True(t, daticle.Equal(c1, c2))
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 8)
}

// TestNormalizeKeyDiffersBySalt verifies salt participates in the hash, so
// two callers using distinct salts never collide on the same key bytes.
func TestNormalizeKeyDiffersBySalt(t *testing.T) {
	key := daticle.Str("user:42")
	_, h1 := NormalizeKey(key, nil, []byte("salt-a"))
	_, h2 := NormalizeKey(key, nil, []byte("salt-b"))
	assert.NotEqual(t, h1, h2)
}

// TestChooseHashIsStableAndInRange verifies ChooseHash always returns a
// zone/shard pair within the configured bounds, and is a pure function of
// its inputs.
func TestChooseHashIsStableAndInRange(t *testing.T) {
	_, hb := NormalizeKey(daticle.Str("order:1001"), nil, nil)
	numZones, shardsPerZone := 4, 8

	zone, shard := ChooseHash(hb, numZones, shardsPerZone)
	require.True(t, int(zone) < numZones)
	require.True(t, shard < shardsPerZone)

	zone2, shard2 := ChooseHash(hb, numZones, shardsPerZone)
	assert.Equal(t, zone, zone2)
	assert.Equal(t, shard, shard2)
}

// TestChooseHashZeroTotalIsSafe verifies a degenerate zero-zone or
// zero-shard configuration returns the zero route rather than panicking on
// a modulo-by-zero.
func TestChooseHashZeroTotalIsSafe(t *testing.T) {
	zone, shard := ChooseHash([]byte{1, 2, 3}, 0, 0)
	assert.Equal(t, 0, int(zone))
	assert.Equal(t, 0, shard)
}
