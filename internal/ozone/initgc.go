package ozone

import (
	"encoding/binary"
	"os"

	"go.uber.org/zap"

	"github.com/dreamware/ozone/internal/daticle"
	"github.com/dreamware/ozone/internal/ozerr"
	"github.com/dreamware/ozone/internal/shardmap"
)

// InitZone rebuilds cache and FileRegistry state for one zone at process
// start (spec.md §4.10 "Initialisation"). For each file number found in
// zoneDir, it streams the index file if well-formed; otherwise it falls
// back to scanning the data file directly and rewrites a correct index
// file as it goes. The highest-numbered file becomes the live file.
func InitZone(zoneDir ZoneDir, maxBytes int64, cache *ZoneCache, csum Checksummer, log *zap.SugaredLogger) (*FileRegistry, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	nums, err := zoneDir.ListFileNums()
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return NewFileRegistry(zoneDir, 0, maxBytes)
	}

	states := make(map[int64]*FileState, len(nums))
	for _, num := range nums {
		st, err := scanIndexFile(zoneDir, num, cache, csum)
		if err != nil {
			log.Warnw("index file malformed or missing, rescanning data file",
				"zone_dir", zoneDir.Path, "file", num, "error", err)
			st, err = rescanDataFile(zoneDir, num, cache, csum)
			if err != nil {
				return nil, err
			}
		}
		states[num] = st
	}

	liveNum := nums[len(nums)-1]
	fr, err := NewFileRegistryWithState(zoneDir, liveNum, maxBytes, states[liveNum])
	if err != nil {
		return nil, err
	}
	for _, num := range nums[:len(nums)-1] {
		fr.RegisterState(num, states[num])
	}
	return fr, nil
}

// scanIndexFile streams (key, location) pairs from fileNum's index file,
// inserting each into cache and accumulating a FileState. It returns an
// error if the file is empty, missing, malformed, or its scanned byte
// total does not equal the file's actual size (spec.md §4.10's end-of-scan
// verification).
func scanIndexFile(zoneDir ZoneDir, fileNum int64, cache *ZoneCache, csum Checksummer) (*FileState, error) {
	path := zoneDir.IndexPath(fileNum)
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return nil, ozerr.New(ozerr.Missing, "index file missing or empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ozerr.Wrap(ozerr.IO, err, "reading index file")
	}

	st := NewFileState(fileNum)
	var scanned int64
	rest := data
	for len(rest) > 0 {
		sk, loc, remaining, recLen, err := decodeIndexEntry(fileNum, rest, csum)
		if err != nil {
			return nil, err
		}
		h := cache.Key(sk.KeyBytes)
		cache.Insert(h, string(sk.KeyBytes), CacheEntry{Kind: LocatedValue, Loc: loc}, nil)
		st.RecordAppend(loc.StartOff, loc.RecordLen(), recLen)
		scanned += recLen
		rest = remaining
	}
	if scanned != info.Size() {
		return nil, ozerr.New(ozerr.Mismatch, "index scan total does not match file size")
	}
	return st, nil
}

// decodeIndexEntry decodes one [csum_K|meta|key_daticle_bytes|location_record|csum_L]
// index record (spec.md §6) off the front of b, returning the decoded key,
// location, the bytes remaining, and the exact byte length this record
// consumed (used both to advance the index-file scan and to size the
// rewritten index record during data-file fallback rescanning).
func decodeIndexEntry(fileNum int64, b []byte, csum Checksummer) (StoredKey, FileLocation, []byte, int64, error) {
	if csum == nil {
		csum = defaultChecksummer
	}
	sk, afterKey, err := DecodeStoredKey(b, csum)
	if err != nil {
		return StoredKey{}, FileLocation{}, nil, 0, err
	}
	consumedKey := len(b) - len(afterKey)
	loc, afterLoc, err := DecodeLocationRecord(fileNum, afterKey)
	if err != nil {
		return StoredKey{}, FileLocation{}, nil, 0, err
	}
	if len(afterLoc) < 8 {
		return StoredKey{}, FileLocation{}, nil, 0, ozerr.New(ozerr.Decode, "short index record checksum")
	}
	framed := b[:consumedKey+24]
	wantSum := binary.BigEndian.Uint64(afterLoc[:8])
	if csum(framed) != wantSum {
		return StoredKey{}, FileLocation{}, nil, 0, ozerr.New(ozerr.Mismatch, "index record checksum mismatch")
	}
	recLen := int64(consumedKey + 24 + 8)
	return sk, loc, afterLoc[8:], recLen, nil
}

// encodeIndexEntry is the rewrite-side counterpart of decodeIndexEntry,
// matching exactly what LiveFile.Append writes (writer.go), so a rebuilt
// index file is indistinguishable from one built by ordinary writes.
func encodeIndexEntry(storedKeyBytes []byte, loc FileLocation, csum Checksummer) []byte {
	if csum == nil {
		csum = defaultChecksummer
	}
	record := append(append([]byte{}, storedKeyBytes...), EncodeLocationRecord(loc)...)
	sum := csum(record)
	sumBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(sumBytes, sum)
	return append(record, sumBytes...)
}

// rescanDataFile falls back to reading key records directly out of
// fileNum's data file, counting each following value record's byte length
// without parsing it (daticle.ByteLen), synthesising a FileLocation,
// inserting into cache, and simultaneously rewriting a correct index file
// (spec.md §4.10's fallback path).
func rescanDataFile(zoneDir ZoneDir, fileNum int64, cache *ZoneCache, csum Checksummer) (*FileState, error) {
	if csum == nil {
		csum = defaultChecksummer
	}
	path := zoneDir.DataPath(fileNum)
	info, err := os.Stat(path)
	if err != nil {
		return nil, ozerr.Wrap(ozerr.IO, err, "stat data file during rescan")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ozerr.Wrap(ozerr.IO, err, "reading data file during rescan")
	}

	idxFile, err := os.OpenFile(zoneDir.IndexPath(fileNum), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, ozerr.Wrap(ozerr.IO, err, "truncating index file for rebuild")
	}
	defer idxFile.Close()

	st := NewFileState(fileNum)
	var scanned int64
	rest := data
	for len(rest) > 0 {
		sk, afterKey, err := DecodeStoredKey(rest, csum)
		if err != nil {
			return nil, err
		}
		consumedKey := int64(len(rest) - len(afterKey))
		valLen, err := daticle.ByteLen(afterKey)
		if err != nil {
			return nil, ozerr.Wrap(ozerr.Decode, err, "measuring value length during rescan")
		}
		if len(afterKey) < valLen+8 {
			return nil, ozerr.New(ozerr.Decode, "truncated value record during rescan")
		}
		storedValueLen := int64(valLen + 8)

		loc := FileLocation{
			FileNum:  fileNum,
			StartOff: scanned,
			KeyLen:   consumedKey,
			ValueLen: storedValueLen,
		}
		storedKeyBytes := rest[:consumedKey]
		idxRecord := encodeIndexEntry(storedKeyBytes, loc, csum)
		if _, err := idxFile.Write(idxRecord); err != nil {
			return nil, ozerr.Wrap(ozerr.IO, err, "writing rebuilt index record")
		}
		st.RecordAppend(loc.StartOff, loc.RecordLen(), int64(len(idxRecord)))

		h := cache.Key(sk.KeyBytes)
		cache.Insert(h, string(sk.KeyBytes), CacheEntry{Kind: LocatedValue, Loc: loc}, nil)

		scanned += loc.RecordLen()
		rest = afterKey[storedValueLen:]
	}
	if scanned != info.Size() {
		return nil, ozerr.New(ozerr.Mismatch, "data file rescan total does not match file size")
	}
	return st, nil
}

// GCResult reports what one garbage-collection pass reclaimed (spec.md
// §4.10 step 7's GcCompleted payload).
type GCResult struct {
	FileNum          int64
	OldDataSize      int64
	NewDataSize      int64
	BytesReclaimed   int64
	IndexSizeDelta   int64
}

// RunGC performs one online garbage-collection pass over fileNum's data
// file (spec.md §4.10 "Garbage collection"). It never touches fr's live
// file. The three resolutions DESIGN.md records for spec.md §9's open
// questions are implemented exactly here: cache updates are applied by
// calling cache.UpdateIfSameFile directly, once per key encountered during
// the rescan after the rename, rather than by messaging the zone's cache
// bots; an empty compacted file is treated
// as ozerr.Bug rather than completed, matching the precondition that an
// empty file should already have been removed by the file bot; and an
// invalid bunch key is never synthesised here in the first place, since
// gc operates purely on stored byte regions, not on decoded PartKeys.
func RunGC(fr *FileRegistry, cache *ZoneCache, fileNum int64, csum Checksummer, log *zap.SugaredLogger) (GCResult, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if fr.IsLive(fileNum) {
		return GCResult{}, ozerr.New(ozerr.Bug, "cannot gc the live file")
	}
	st, ok := fr.State(fileNum)
	if !ok {
		return GCResult{}, ozerr.New(ozerr.Missing, "no file state for file number")
	}
	zoneDir := fr.ZoneDir()
	oldSize := st.DataSize()
	oldSum := st.OldSum()

	oldData, err := os.Open(zoneDir.DataPath(fileNum))
	if err != nil {
		return GCResult{}, ozerr.Wrap(ozerr.IO, err, "opening data file for gc read")
	}
	defer oldData.Close()
	gcFile, err := os.OpenFile(zoneDir.GCPath(fileNum), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return GCResult{}, ozerr.Wrap(ozerr.IO, err, "creating gc output file")
	}

	var newOffset int64
	for _, start := range st.Starts() {
		state, length, _ := st.At(start)
		if state.Kind == Old {
			st.mu.Lock()
			delete(st.regions, start)
			st.removeStartLocked(start)
			st.mu.Unlock()
			continue
		}
		buf := make([]byte, length)
		if _, err := oldData.ReadAt(buf, start); err != nil {
			gcFile.Close()
			return GCResult{}, ozerr.Wrap(ozerr.IO, err, "reading cur region during gc")
		}
		if _, err := gcFile.Write(buf); err != nil {
			gcFile.Close()
			return GCResult{}, ozerr.Wrap(ozerr.IO, err, "writing cur region during gc")
		}
		if err := st.MarkMoved(start, newOffset); err != nil {
			gcFile.Close()
			return GCResult{}, err
		}
		newOffset += length
	}
	if err := gcFile.Close(); err != nil {
		return GCResult{}, ozerr.Wrap(ozerr.IO, err, "closing gc output file")
	}

	newSize := newOffset
	if newSize == 0 {
		return GCResult{}, ozerr.New(ozerr.Bug, "compacted file is empty; should have been removed by the file bot")
	}
	if newSize >= oldSize {
		return GCResult{}, ozerr.New(ozerr.Bug, "gc did not shrink the file")
	}
	if oldSize-newSize != oldSum {
		return GCResult{}, ozerr.New(ozerr.Mismatch, "bytes removed during gc does not equal recorded old_sum")
	}
	if st.HasOldRegions() {
		return GCResult{}, ozerr.New(ozerr.Bug, "old regions remain after gc copy pass")
	}

	newData, err := os.ReadFile(zoneDir.GCPath(fileNum))
	if err != nil {
		return GCResult{}, ozerr.Wrap(ozerr.IO, err, "reading gc output file for index rebuild")
	}
	fresh := NewFileState(fileNum)
	var idxBuf []byte
	var scanned int64
	// pendingCacheUpdates is applied only after the compacted file has been
	// renamed into place: reconciling the cache to post-compaction offsets
	// any earlier would let a concurrent reader resolve a cache entry to an
	// offset that is only valid in the not-yet-renamed .gc file, and open
	// the still-present old data file at that offset instead — a spurious
	// checksum Mismatch rather than a real corruption.
	type pendingCacheUpdate struct {
		h       shardmap.HashForm
		rawKey  string
		fileNum int64
		loc     FileLocation
	}
	var pendingCacheUpdates []pendingCacheUpdate
	rest := newData
	for len(rest) > 0 {
		sk, afterKey, err := DecodeStoredKey(rest, csum)
		if err != nil {
			return GCResult{}, err
		}
		consumedKey := int64(len(rest) - len(afterKey))
		valLen, err := daticle.ByteLen(afterKey)
		if err != nil {
			return GCResult{}, ozerr.Wrap(ozerr.Decode, err, "measuring value length during gc rescan")
		}
		storedValueLen := int64(valLen + 8)

		loc := FileLocation{FileNum: fileNum, StartOff: scanned, KeyLen: consumedKey, ValueLen: storedValueLen}
		storedKeyBytes := rest[:consumedKey]
		idxRecord := encodeIndexEntry(storedKeyBytes, loc, csum)
		idxBuf = append(idxBuf, idxRecord...)
		fresh.RecordAppend(loc.StartOff, loc.RecordLen(), int64(len(idxRecord)))

		h := cache.Key(sk.KeyBytes)
		pendingCacheUpdates = append(pendingCacheUpdates, pendingCacheUpdate{h: h, rawKey: string(sk.KeyBytes), fileNum: fileNum, loc: loc})

		scanned += loc.RecordLen()
		rest = afterKey[storedValueLen:]
	}

	if err := os.Rename(zoneDir.GCPath(fileNum), zoneDir.DataPath(fileNum)); err != nil {
		return GCResult{}, ozerr.Wrap(ozerr.IO, err, "renaming gc output over data file")
	}
	tmpIdx := zoneDir.IndexPath(fileNum) + ".gc"
	if err := os.WriteFile(tmpIdx, idxBuf, 0o644); err != nil {
		return GCResult{}, ozerr.Wrap(ozerr.IO, err, "writing rebuilt index file")
	}
	if err := os.Rename(tmpIdx, zoneDir.IndexPath(fileNum)); err != nil {
		return GCResult{}, ozerr.Wrap(ozerr.IO, err, "renaming rebuilt index file")
	}

	for _, u := range pendingCacheUpdates {
		if !cache.UpdateIfSameFile(u.h, u.rawKey, u.fileNum, u.loc) {
			log.Debugw("gc declined cache update for superseded key", "file", fileNum)
		}
	}

	oldIndexSize := st.IndexSize()
	fr.ReplaceState(fileNum, fresh)

	return GCResult{
		FileNum:        fileNum,
		OldDataSize:    oldSize,
		NewDataSize:    newSize,
		BytesReclaimed: oldSize - newSize,
		IndexSizeDelta: oldIndexSize - fresh.IndexSize(),
	}, nil
}
