package ozone

import (
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/ozone/internal/bot"
	"github.com/dreamware/ozone/internal/daticle"
)

// TestInitZoneEmptyDirStartsAtFileZero verifies a fresh zone directory
// initialises to an empty live file numbered 0.
func TestInitZoneEmptyDirStartsAtFileZero(t *testing.T) {
	zd, err := NewZoneDir(t.TempDir(), bot.ZoneInd(0))
	require.NoError(t, err)
	cache := NewZoneCache(2, 16, testHasher)

	fr, err := InitZone(zd, 1<<20, cache, nil, nil)
	require.NoError(t, err)
	defer fr.Close()

	assert.Equal(t, int64(0), fr.Live().FileNum())
	assert.Equal(t, 0, cache.Len())
}

// TestInitZoneRebuildsFromIndexFile verifies a well-formed index file is
// streamed at init and every key lands back in the cache pointing at its
// correct location.
func TestInitZoneRebuildsFromIndexFile(t *testing.T) {
	zd, err := NewZoneDir(t.TempDir(), bot.ZoneInd(0))
	require.NoError(t, err)

	lf, err := OpenLiveFile(zd, 0, 1<<20, nil)
	require.NoError(t, err)
	keys := []string{"k1", "k2", "k3"}
	locs := make(map[string]FileLocation)
	for _, k := range keys {
		loc, err := lf.Append(WriteRequest{
			KeyDaticleBytes:   daticle.Encode(daticle.Str(k)),
			ValueDaticleBytes: daticle.Encode(daticle.Str("value-" + k)),
			Meta:              NowMeta(1),
		})
		require.NoError(t, err)
		locs[k] = loc
	}
	require.NoError(t, lf.Close())

	cache := NewZoneCache(2, 16, testHasher)
	fr, err := InitZone(zd, 1<<20, cache, nil, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer fr.Close()

	assert.Equal(t, len(keys), cache.Len())
	for _, k := range keys {
		keyBytes := daticle.Encode(daticle.Str(k))
		h := cache.Key(keyBytes)
		entry, _, found := cache.Lookup(h, string(keyBytes))
		require.True(t, found)
		assert.Equal(t, locs[k].StartOff, entry.Loc.StartOff)
	}
}

// TestInitZoneFallsBackToDataFileScan verifies a missing/corrupt index file
// is repaired by rescanning the data file directly, and the cache still
// ends up with every key.
func TestInitZoneFallsBackToDataFileScan(t *testing.T) {
	zd, err := NewZoneDir(t.TempDir(), bot.ZoneInd(0))
	require.NoError(t, err)

	lf, err := OpenLiveFile(zd, 0, 1<<20, nil)
	require.NoError(t, err)
	_, err = lf.Append(WriteRequest{
		KeyDaticleBytes:   daticle.Encode(daticle.Str("k1")),
		ValueDaticleBytes: daticle.Encode(daticle.Str("v1")),
		Meta:              NowMeta(1),
	})
	require.NoError(t, err)
	require.NoError(t, lf.Close())

	require.NoError(t, os.Remove(zd.IndexPath(0)))

	cache := NewZoneCache(2, 16, testHasher)
	fr, err := InitZone(zd, 1<<20, cache, nil, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer fr.Close()

	assert.Equal(t, 1, cache.Len())
}

// TestRunGCReclaimsOldRegions verifies a full gc pass: superseded records
// are dropped, live records survive with updated locations, and the cache
// observes the new locations for keys it still holds.
func TestRunGCReclaimsOldRegions(t *testing.T) {
	zd, err := NewZoneDir(t.TempDir(), bot.ZoneInd(0))
	require.NoError(t, err)
	cache := NewZoneCache(2, 16, testHasher)

	fr, err := NewFileRegistry(zd, 0, 1<<20)
	require.NoError(t, err)
	defer fr.Close()

	k1 := daticle.Encode(daticle.Str("k1"))
	k2 := daticle.Encode(daticle.Str("k2"))

	loc1a, err := fr.Live().Append(WriteRequest{KeyDaticleBytes: k1, ValueDaticleBytes: daticle.Encode(daticle.Str("v1-old")), Meta: NowMeta(1)})
	require.NoError(t, err)
	loc2, err := fr.Live().Append(WriteRequest{KeyDaticleBytes: k2, ValueDaticleBytes: daticle.Encode(daticle.Str("v2")), Meta: NowMeta(1)})
	require.NoError(t, err)
	loc1b, err := fr.Live().Append(WriteRequest{KeyDaticleBytes: k1, ValueDaticleBytes: daticle.Encode(daticle.Str("v1-new")), Meta: NowMeta(1)})
	require.NoError(t, err)

	h1 := cache.Key(k1)
	h2 := cache.Key(k2)
	cache.Insert(h1, string(k1), CacheEntry{Loc: loc1b}, nil)
	cache.Insert(h2, string(k2), CacheEntry{Loc: loc2}, nil)
	require.NoError(t, fr.Live().State.MarkOld(loc1a.StartOff))

	newNum, err := fr.ForceRotate()
	require.NoError(t, err)
	require.Equal(t, int64(1), newNum)

	result, err := RunGC(fr, cache, 0, nil, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.FileNum)
	assert.Greater(t, result.BytesReclaimed, int64(0))

	entry1, _, found1 := cache.Lookup(h1, string(k1))
	require.True(t, found1)
	assert.Equal(t, int64(0), entry1.Loc.FileNum)
	assert.NotEqual(t, loc1b.StartOff, entry1.Loc.StartOff, "gc must have relocated the surviving record")

	entry2, _, found2 := cache.Lookup(h2, string(k2))
	require.True(t, found2)
	assert.Equal(t, int64(0), entry2.Loc.FileNum)
}

// TestRunGCRefusesLiveFile verifies gc never targets the currently-live
// file.
func TestRunGCRefusesLiveFile(t *testing.T) {
	fr := newTestRegistry(t, 1<<20)
	cache := NewZoneCache(2, 16, testHasher)
	_, err := RunGC(fr, cache, 0, nil, nil)
	assert.Error(t, err)
}
