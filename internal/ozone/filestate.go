package ozone

import (
	"sort"
	"sync"

	"github.com/dreamware/ozone/internal/ozerr"
)

// DataStateKind discriminates the three states a data-file region can be in
// (spec.md §4.6).
type DataStateKind uint8

const (
	// Cur is a live region: the record it spans is the current value for
	// its key.
	Cur DataStateKind = iota
	// Old is a superseded region awaiting gc.
	Old
	// Moved marks a region being relocated during an active compaction
	// pass; NewOffset names where it has been copied to.
	Moved
)

// DataState is the state of one byte region within a data file.
type DataState struct {
	Kind      DataStateKind
	NewOffset int64 // meaningful only when Kind == Moved
}

// region records the extent and bookkeeping for a single start offset.
type region struct {
	start, length int64
	state         DataState
}

// FileState tracks per-data-file region accounting: which byte ranges are
// Cur, Old, or Moved, the cumulative size of Old regions, and the current
// data/index file sizes (spec.md §4.6). Start offsets are kept in an
// ordered structure (sorted slice + index) so iteration yields positions in
// scan order, per spec.md §9's "FileState benefits from an ordered map
// keyed by start offset" guidance.
type FileState struct {
	mu          sync.RWMutex
	FileNum     int64
	starts      []int64 // sorted
	regions     map[int64]*region
	oldSum      int64
	dataSize    int64
	indexSize   int64
}

// NewFileState creates an empty FileState for fileNum.
func NewFileState(fileNum int64) *FileState {
	return &FileState{FileNum: fileNum, regions: make(map[int64]*region)}
}

// RecordAppend registers a freshly appended Cur region of the given length
// starting at start, and grows DataSize/IndexSize accordingly.
func (fs *FileState) RecordAppend(start, length int64, indexRecordLen int64) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.insertLocked(start, length, DataState{Kind: Cur})
	if start+length > fs.dataSize {
		fs.dataSize = start + length
	}
	fs.indexSize += indexRecordLen
}

func (fs *FileState) insertLocked(start, length int64, st DataState) {
	if _, exists := fs.regions[start]; !exists {
		i := sort.Search(len(fs.starts), func(i int) bool { return fs.starts[i] >= start })
		fs.starts = append(fs.starts, 0)
		copy(fs.starts[i+1:], fs.starts[i:])
		fs.starts[i] = start
	}
	fs.regions[start] = &region{start: start, length: length, state: st}
}

// MarkOld transitions the region at start from Cur to Old, adding its
// length to OldSum. It is a no-op (returns ozerr.Missing) if no region
// starts at start.
func (fs *FileState) MarkOld(start int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	r, ok := fs.regions[start]
	if !ok {
		return ozerr.New(ozerr.Missing, "no region at offset")
	}
	if r.state.Kind == Old {
		return nil
	}
	r.state = DataState{Kind: Old}
	fs.oldSum += r.length
	return nil
}

// MarkMoved transitions the Cur region at oldStart to Moved(newStart),
// used during an active compaction pass.
func (fs *FileState) MarkMoved(oldStart, newStart int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	r, ok := fs.regions[oldStart]
	if !ok {
		return ozerr.New(ozerr.Missing, "no region at offset")
	}
	r.state = DataState{Kind: Moved, NewOffset: newStart}
	return nil
}

// CollapseMoved finalises a Moved(newStart) region back to a plain Cur
// region addressed by newStart, once the cache has observed the move
// (spec.md §4.6's "later collapsing back to Cur(new_start)").
func (fs *FileState) CollapseMoved(oldStart int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	r, ok := fs.regions[oldStart]
	if !ok || r.state.Kind != Moved {
		return ozerr.New(ozerr.Bug, "region is not in Moved state")
	}
	newStart := r.state.NewOffset
	length := r.length
	delete(fs.regions, oldStart)
	fs.removeStartLocked(oldStart)
	fs.insertLocked(newStart, length, DataState{Kind: Cur})
	return nil
}

func (fs *FileState) removeStartLocked(start int64) {
	for i, s := range fs.starts {
		if s == start {
			fs.starts = append(fs.starts[:i], fs.starts[i+1:]...)
			return
		}
	}
}

// Starts returns every tracked start offset in ascending order.
func (fs *FileState) Starts() []int64 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	out := make([]int64, len(fs.starts))
	copy(out, fs.starts)
	return out
}

// At returns the region state and length recorded at start.
func (fs *FileState) At(start int64) (DataState, int64, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	r, ok := fs.regions[start]
	if !ok {
		return DataState{}, 0, false
	}
	return r.state, r.length, true
}

// OldSum reports the cumulative byte size of all Old regions.
func (fs *FileState) OldSum() int64 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.oldSum
}

// DataSize reports the current data-file size.
func (fs *FileState) DataSize() int64 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.dataSize
}

// IndexSize reports the current index-file size.
func (fs *FileState) IndexSize() int64 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.indexSize
}

// GCRatio reports OldSum/DataSize, the ratio a gc-activation threshold is
// compared against (spec.md §4.10). A zero-size file reports ratio 0.
func (fs *FileState) GCRatio() float64 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.dataSize == 0 {
		return 0
	}
	return float64(fs.oldSum) / float64(fs.dataSize)
}

// HasOldRegions reports whether any region is still marked Old (used by gc
// to confirm its own postcondition — spec.md §4.10 step 3).
func (fs *FileState) HasOldRegions() bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	for _, s := range fs.starts {
		if fs.regions[s].state.Kind == Old {
			return true
		}
	}
	return false
}

// ResetAfterGC replaces this FileState's bookkeeping in place with a fresh
// one built from a completed gc pass (spec.md §4.10 step 6: "resets
// old-accounting").
func (fs *FileState) ResetAfterGC(fresh *FileState) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fresh.mu.RLock()
	fs.starts = fresh.starts
	fs.regions = fresh.regions
	fs.oldSum = fresh.oldSum
	fs.dataSize = fresh.dataSize
	fs.indexSize = fresh.indexSize
	fresh.mu.RUnlock()
}
