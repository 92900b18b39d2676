package ozone

import (
	"sync"

	"github.com/dreamware/ozone/internal/ozerr"
)

// FileRegistry is the File bot's state: every FileState this zone's files
// have, plus the one currently-live file writers append to (spec.md §4.6).
// One FileRegistry models one zone's complete file-state ownership,
// since file numbers (unlike cache/key hashes) are sequential and small in
// count, making a single owning structure per zone the natural shape; each
// zone runs a single File bot, which works through this registry.
type FileRegistry struct {
	mu       sync.RWMutex
	zoneDir  ZoneDir
	maxBytes int64
	states   map[int64]*FileState
	liveNum  int64
	live     *LiveFile
}

// NewFileRegistry opens or creates startFileNum as the live file and returns a
// FileRegistry ready to accept writes. Callers that already know about
// prior files (from Init, see initgc.go) register them via RegisterState.
func NewFileRegistry(zoneDir ZoneDir, startFileNum, maxBytes int64) (*FileRegistry, error) {
	return NewFileRegistryWithState(zoneDir, startFileNum, maxBytes, nil)
}

// NewFileRegistryWithState is like NewFileRegistry but installs preState as
// the live file's FileState, used by Init when resuming a zone whose
// highest-numbered file already has accumulated regions (spec.md §4.10).
func NewFileRegistryWithState(zoneDir ZoneDir, startFileNum, maxBytes int64, preState *FileState) (*FileRegistry, error) {
	live, err := OpenLiveFile(zoneDir, startFileNum, maxBytes, preState)
	if err != nil {
		return nil, err
	}
	fr := &FileRegistry{
		zoneDir: zoneDir, maxBytes: maxBytes,
		states:  map[int64]*FileState{startFileNum: live.State},
		liveNum: startFileNum, live: live,
	}
	return fr, nil
}

// RegisterState adds a FileState for a file discovered during Init that is
// not (yet) the live file.
func (fr *FileRegistry) RegisterState(fileNum int64, st *FileState) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.states[fileNum] = st
}

// State returns the FileState tracked for fileNum, if any.
func (fr *FileRegistry) State(fileNum int64) (*FileState, bool) {
	fr.mu.RLock()
	defer fr.mu.RUnlock()
	st, ok := fr.states[fileNum]
	return st, ok
}

// Live returns the currently-live file writers append to.
func (fr *FileRegistry) Live() *LiveFile {
	fr.mu.RLock()
	defer fr.mu.RUnlock()
	return fr.live
}

// IsLive reports whether fileNum is the currently-live file (gc never
// targets it — spec.md §4.10 only ever hands the gc bot a file that has
// already rotated out of live status).
func (fr *FileRegistry) IsLive(fileNum int64) bool {
	fr.mu.RLock()
	defer fr.mu.RUnlock()
	return fileNum == fr.liveNum
}

// ZoneDir returns the directory this registry's files live in.
func (fr *FileRegistry) ZoneDir() ZoneDir {
	fr.mu.RLock()
	defer fr.mu.RUnlock()
	return fr.zoneDir
}

// MarkOldAt marks the region starting at start in fileNum's FileState as
// Old, implementing the cache bot's "schedule the old region for deletion"
// step of the insert contract (spec.md §4.7 step 1).
func (fr *FileRegistry) MarkOldAt(fileNum, start int64) error {
	st, ok := fr.State(fileNum)
	if !ok {
		return ozerr.New(ozerr.Missing, "no file state for file number")
	}
	return st.MarkOld(start)
}

// RotateIfNeeded opens fileNum+1 as the new live file if the current one
// has reached maxBytes (spec.md §4.6's live-file rotation); the previous
// LiveFile's handles are not closed. It reports the new file number, or the unchanged
// current number if no rotation occurred.
func (fr *FileRegistry) RotateIfNeeded() (int64, error) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if !fr.live.NeedsRotation() {
		return fr.liveNum, nil
	}
	nextNum := fr.liveNum + 1
	next, err := OpenLiveFile(fr.zoneDir, nextNum, fr.maxBytes, nil)
	if err != nil {
		return fr.liveNum, err
	}
	fr.states[nextNum] = next.State
	fr.liveNum = nextNum
	fr.live = next
	return nextNum, nil
}

// ForceRotate opens fileNum+1 as the new live file unconditionally, leaving
// the previous LiveFile's handles open; it is the operator "new live file" command (spec.md
// §4.11), unlike RotateIfNeeded which only rotates once DataFileMaxBytes is
// reached.
func (fr *FileRegistry) ForceRotate() (int64, error) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	nextNum := fr.liveNum + 1
	next, err := OpenLiveFile(fr.zoneDir, nextNum, fr.maxBytes, nil)
	if err != nil {
		return fr.liveNum, err
	}
	fr.states[nextNum] = next.State
	fr.liveNum = nextNum
	fr.live = next
	return nextNum, nil
}

// GCCandidate reports the lowest-numbered file whose old-byte ratio
// exceeds threshold, excluding the live file (gc never targets the file
// currently being appended to), or ok=false if none qualifies.
func (fr *FileRegistry) GCCandidate(threshold float64) (fileNum int64, ok bool) {
	fr.mu.RLock()
	defer fr.mu.RUnlock()
	best := int64(-1)
	for num, st := range fr.states {
		if num == fr.liveNum {
			continue
		}
		if st.GCRatio() > threshold {
			if best == -1 || num < best {
				best = num
			}
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

// ReplaceState installs fresh as the FileState for fileNum after a
// successful gc pass (spec.md §4.10 step 5-6).
func (fr *FileRegistry) ReplaceState(fileNum int64, fresh *FileState) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.states[fileNum] = fresh
}

// Close closes the current live file's handles. Files tracked only by
// FileState have no open handle; the handles of live files replaced by an
// earlier rotation are not closed here.
func (fr *FileRegistry) Close() error {
	fr.mu.RLock()
	defer fr.mu.RUnlock()
	return fr.live.Close()
}
