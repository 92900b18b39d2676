package ozone

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dreamware/ozone/internal/shardmap"
)

// CacheEntryKind discriminates the two shapes a CacheEntry can take
// (spec.md §3.2).
type CacheEntryKind uint8

const (
	// LocatedValue is the steady-state entry: a value durably written to a
	// known FileLocation, optionally with its bytes held inline.
	LocatedValue CacheEntryKind = iota
	// PendingWrite is a placeholder used during an optimistic insert,
	// before the writer has confirmed the append landed.
	PendingWrite
)

// CacheEntry is the value a cache shard stores per key (spec.md §3.2, §4.7).
type CacheEntry struct {
	Kind CacheEntryKind
	Loc  FileLocation
}

// ZoneCache is one zone's cache: shardmap.ShardedMap[CacheEntry] holds the
// durable key -> location index, and a hashicorp/golang-lru/v2 cache per
// shard bounds the opportunistic in-line value-bytes store (spec.md §4.7's
// "optional value bytes implement an opportunistic value cache" — bounded
// independently of the location map, which must never silently evict a
// live key's location).
type ZoneCache struct {
	locations *shardmap.ShardedMap[CacheEntry]
	inline    []*lru.Cache[string, []byte]
	hasher    shardmap.Hasher
}

// NewZoneCache creates a ZoneCache with numShards cache-bot shards, each
// with an inline-value LRU bounded to lruSize entries.
func NewZoneCache(numShards, lruSize int, hasher Hasher) *ZoneCache {
	if lruSize <= 0 {
		lruSize = 1
	}
	inline := make([]*lru.Cache[string, []byte], numShards)
	for i := range inline {
		c, _ := lru.New[string, []byte](lruSize)
		inline[i] = c
	}
	h := func(b []byte) uint64 { return hasher(b) }
	return &ZoneCache{
		locations: shardmap.New[CacheEntry](numShards, h),
		inline:    inline,
		hasher:    h,
	}
}

// Key reduces rawKey to the HashForm selecting its owning shard.
func (zc *ZoneCache) Key(rawKey []byte) shardmap.HashForm { return zc.locations.Key(rawKey) }

// ShardIndex reports which cache-bot ordinal owns h.
func (zc *ZoneCache) ShardIndex(h shardmap.HashForm) int { return zc.locations.ShardIndex(h) }

// Lookup returns the entry for rawKey and, if held, its inline value bytes.
func (zc *ZoneCache) Lookup(h shardmap.HashForm, rawKey string) (CacheEntry, []byte, bool) {
	entry, ok := zc.locations.Get(h, rawKey)
	if !ok {
		return CacheEntry{}, nil, false
	}
	idx := zc.ShardIndex(h)
	if inline, ok := zc.inline[idx].Get(rawKey); ok {
		return entry, inline, true
	}
	return entry, nil, true
}

// InsertResult reports what an Insert replaced, so the caller can decide
// whether an old file region needs scheduling for gc (spec.md §4.7's
// insert contract).
type InsertResult struct {
	PriorExisted  bool
	PriorLocation FileLocation
}

// Insert implements the cache bot's insert contract (spec.md §4.7): store
// the new location (and, opportunistically, inline value bytes), and report
// whether a prior entry existed so the caller can schedule its old region
// for deletion on the owning file bot.
func (zc *ZoneCache) Insert(h shardmap.HashForm, rawKey string, entry CacheEntry, inlineValue []byte) InsertResult {
	prior, existed := zc.locations.InsertUsingHash(h, rawKey, entry)
	idx := zc.ShardIndex(h)
	if inlineValue != nil {
		zc.inline[idx].Add(rawKey, inlineValue)
	} else {
		zc.inline[idx].Remove(rawKey)
	}
	return InsertResult{PriorExisted: existed, PriorLocation: prior.Loc}
}

// Delete removes rawKey's entry entirely (used for tombstone collection
// once a deleted key's record itself becomes eligible for gc).
func (zc *ZoneCache) Delete(h shardmap.HashForm, rawKey string) {
	zc.locations.Delete(h, rawKey)
	zc.inline[zc.ShardIndex(h)].Remove(rawKey)
}

// Clear empties every shard's location map and inline-value cache (the
// operator "clear caches" command, spec.md §4.11). Locations are not
// rebuilt from the index files: a lookup of a key that has not been written
// since the Clear finds no entry, and a Get of it reports ozerr.Missing.
func (zc *ZoneCache) Clear() {
	zc.locations.Clear()
	for _, c := range zc.inline {
		c.Purge()
	}
}

// UpdateIfSameFile implements the gc cache-update contract (spec.md §4.10
// step 4): if the cached location for rawKey still points at fileNum,
// replace it with newLoc and report true; otherwise the key was superseded
// during gc and the update is declined.
func (zc *ZoneCache) UpdateIfSameFile(h shardmap.HashForm, rawKey string, fileNum int64, newLoc FileLocation) (updated bool) {
	shard := zc.locations.GetShardUsingHash(h)
	shard.Lock()
	defer shard.Unlock()
	cur, ok := shard.Map()[rawKey]
	if !ok || cur.Loc.FileNum != fileNum {
		return false
	}
	cur.Loc = newLoc
	shard.Map()[rawKey] = cur
	return true
}

// DumpShard returns a snapshot of one shard's location entries, keyed by
// raw key bytes (the operator "dump cache" command, spec.md §4.11).
func (zc *ZoneCache) DumpShard(ord int) map[string]CacheEntry {
	shard := zc.locations.ShardAt(ord)
	shard.RLock()
	defer shard.RUnlock()
	out := make(map[string]CacheEntry, len(shard.Map()))
	for k, v := range shard.Map() {
		out[k] = v
	}
	return out
}

// NumShards reports the cache-bot count for this zone.
func (zc *ZoneCache) NumShards() int { return zc.locations.NumShards() }

// Len reports the total number of cached keys across all shards.
func (zc *ZoneCache) Len() int { return zc.locations.Len() }
