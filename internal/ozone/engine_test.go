package ozone

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/ozone/internal/bot"
	"github.com/dreamware/ozone/internal/daticle"
	"github.com/dreamware/ozone/internal/ozerr"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := Default()
	cfg.RootDir = t.TempDir()
	cfg.NumZones = 2
	cfg.NumCBotsPerZone = 2
	cfg.NumWBotsPerZone = 2
	cfg.NumRBotsPerZone = 2
	cfg.DataFileMaxBytes = 1 << 20
	cfg.CacheLRUSize = 64
	cfg.Chunk.ThresholdBytes = 32
	cfg.Chunk.ChunkSize = 8
	cfg.BotRequestTimeout = Duration{2 * time.Second}

	e, err := New(cfg, nil)
	require.NoError(t, err)
	e.Start(50 * time.Millisecond)
	t.Cleanup(e.Stop)
	return e
}

// TestEnginePutGetRoundTrip verifies a small value stored via Put comes back
// unchanged from Get.
func TestEnginePutGetRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	key := daticle.Str("user:42")
	val := daticle.Str("hello, ozone")

	putResp := e.Put(key, val, 1, SchemesOverride{})
	m, err := putResp.RecvTimeout(time.Second)
	require.NoError(t, err)
	require.Equal(t, bot.Ok, m.Kind)

	getResp := e.Get(key, SchemesOverride{})
	gm, err := getResp.RecvTimeout(time.Second)
	require.NoError(t, err)
	require.Equal(t, bot.Value, gm.Kind)
	got, ok := gm.Payload.(daticle.Value)
	require.True(t, ok)
	assert.Equal(t, val, got)
}

// TestEnginePutChunksLargeValue verifies a value exceeding the configured
// chunk threshold round-trips through the bunch-key fan-out read path.
func TestEnginePutChunksLargeValue(t *testing.T) {
	e := newTestEngine(t)
	key := daticle.Str("big-blob")
	big := strings.Repeat("x", 500)
	val := daticle.Str(big)

	putResp := e.Put(key, val, 1, SchemesOverride{})
	m, err := putResp.RecvTimeout(time.Second)
	require.NoError(t, err)
	require.Equal(t, bot.Ok, m.Kind)

	getResp := e.Get(key, SchemesOverride{})
	gm, err := getResp.RecvTimeout(time.Second)
	require.NoError(t, err)
	require.Equal(t, bot.Value, gm.Kind)
	got, ok := gm.Payload.(daticle.Value)
	require.True(t, ok)
	assert.Equal(t, big, got.AsStr())
}

// TestEngineDeleteThenGetReportsMissing verifies a deleted key's tombstone
// is decoded as an ozerr.Missing error on the subsequent Get, not as a
// value.
func TestEngineDeleteThenGetReportsMissing(t *testing.T) {
	e := newTestEngine(t)
	key := daticle.Str("gone")
	val := daticle.Str("will be deleted")

	putResp := e.Put(key, val, 1, SchemesOverride{})
	_, err := putResp.RecvTimeout(time.Second)
	require.NoError(t, err)

	delResp := e.Delete(key, 1, SchemesOverride{})
	dm, err := delResp.RecvTimeout(time.Second)
	require.NoError(t, err)
	require.Equal(t, bot.Ok, dm.Kind)

	getResp := e.Get(key, SchemesOverride{})
	gm, err := getResp.RecvTimeout(time.Second)
	require.NoError(t, err)
	require.Equal(t, bot.Error, gm.Kind)
	assert.True(t, ozerr.Is(gm.Err, ozerr.Missing))
}

// TestEnginePutGetWithEncryptionOverride verifies a Put/Get pair sharing a
// SecretboxEncryptor override round-trips, and that the stored bytes are
// unreadable without it.
func TestEnginePutGetWithEncryptionOverride(t *testing.T) {
	e := newTestEngine(t)
	var key32 [32]byte
	copy(key32[:], []byte("0123456789abcdef0123456789abcdef"))
	enc := NewSecretboxEncryptor(key32)
	override := SchemesOverride{Encryptor: enc}

	key := daticle.Str("secret")
	val := daticle.Str("top secret payload")

	putResp := e.Put(key, val, 1, override)
	_, err := putResp.RecvTimeout(time.Second)
	require.NoError(t, err)

	getResp := e.Get(key, override)
	gm, err := getResp.RecvTimeout(time.Second)
	require.NoError(t, err)
	got, ok := gm.Payload.(daticle.Value)
	require.True(t, ok)
	assert.Equal(t, val, got)

	getNoKey := e.Get(key, SchemesOverride{})
	gm2, err := getNoKey.RecvTimeout(time.Second)
	require.NoError(t, err)
	assert.Equal(t, bot.Error, gm2.Kind)
}

// TestEnginePingReportsEveryBotAlive verifies Ping's fan-out/fan-in reports
// every bot across every zone as alive under normal operation.
func TestEnginePingReportsEveryBotAlive(t *testing.T) {
	e := newTestEngine(t)
	alive, total := e.Ping()
	assert.Equal(t, total, alive)
	assert.Greater(t, total, 0)
}

// TestEngineForceNewLiveFileAddsFileToEveryZone verifies the operator
// command rotates every zone's live file regardless of size.
func TestEngineForceNewLiveFileAddsFileToEveryZone(t *testing.T) {
	e := newTestEngine(t)
	before, err := e.ListFiles()
	require.NoError(t, err)

	require.NoError(t, e.ForceNewLiveFile())

	after, err := e.ListFiles()
	require.NoError(t, err)
	for zoneInd, nums := range before {
		assert.Greater(t, len(after[zoneInd]), len(nums))
	}
}

// TestEngineClearCachesEmptiesDumpedEntries verifies ClearCaches followed by
// DumpCache reports no entries left in any zone's shards, even though the
// underlying data file still holds the record.
func TestEngineClearCachesEmptiesDumpedEntries(t *testing.T) {
	e := newTestEngine(t)
	key := daticle.Str("k")
	val := daticle.Str("v")
	putResp := e.Put(key, val, 1, SchemesOverride{})
	_, err := putResp.RecvTimeout(time.Second)
	require.NoError(t, err)

	e.ClearCaches()

	dump := e.DumpCache()
	for _, shards := range dump {
		for _, entries := range shards {
			assert.Empty(t, entries)
		}
	}
}
