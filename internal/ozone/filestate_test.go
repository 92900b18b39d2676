package ozone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFileStateRecordAppendGrowsSizes verifies RecordAppend tracks both the
// cumulative data size and index size as regions are appended.
func TestFileStateRecordAppendGrowsSizes(t *testing.T) {
	fs := NewFileState(0)
	fs.RecordAppend(0, 100, 40)
	fs.RecordAppend(100, 50, 30)

	assert.Equal(t, int64(150), fs.DataSize())
	assert.Equal(t, int64(70), fs.IndexSize())
	assert.Equal(t, []int64{0, 100}, fs.Starts())
}

// TestMarkOldAccumulatesOldSum verifies marking a region Old adds its
// length to OldSum exactly once, even if marked old twice.
func TestMarkOldAccumulatesOldSum(t *testing.T) {
	fs := NewFileState(0)
	fs.RecordAppend(0, 100, 40)

	require.NoError(t, fs.MarkOld(0))
	assert.Equal(t, int64(100), fs.OldSum())

	require.NoError(t, fs.MarkOld(0))
	assert.Equal(t, int64(100), fs.OldSum(), "marking old twice must not double count")
}

// TestMarkOldMissingRegionFails verifies MarkOld reports a missing region
// rather than silently doing nothing.
func TestMarkOldMissingRegionFails(t *testing.T) {
	fs := NewFileState(0)
	assert.Error(t, fs.MarkOld(999))
}

// TestMarkMovedThenCollapse verifies the Moved->Cur(new_start) lifecycle gc
// uses while relocating a region.
func TestMarkMovedThenCollapse(t *testing.T) {
	fs := NewFileState(0)
	fs.RecordAppend(0, 100, 40)

	require.NoError(t, fs.MarkMoved(0, 500))
	state, length, ok := fs.At(0)
	require.True(t, ok)
	assert.Equal(t, Moved, state.Kind)
	assert.Equal(t, int64(500), state.NewOffset)
	assert.Equal(t, int64(100), length)

	require.NoError(t, fs.CollapseMoved(0))
	_, _, stillAtOld := fs.At(0)
	assert.False(t, stillAtOld)
	newState, newLength, ok := fs.At(500)
	require.True(t, ok)
	assert.Equal(t, Cur, newState.Kind)
	assert.Equal(t, int64(100), newLength)
}

// TestGCRatioZeroSizeFile verifies GCRatio reports 0 rather than NaN/Inf for
// an empty file.
func TestGCRatioZeroSizeFile(t *testing.T) {
	fs := NewFileState(0)
	assert.Equal(t, float64(0), fs.GCRatio())
}

// TestGCRatioReflectsOldProportion verifies the ratio computation itself.
func TestGCRatioReflectsOldProportion(t *testing.T) {
	fs := NewFileState(0)
	fs.RecordAppend(0, 50, 10)
	fs.RecordAppend(50, 50, 10)
	require.NoError(t, fs.MarkOld(0))

	assert.InDelta(t, 0.5, fs.GCRatio(), 0.001)
}

// TestHasOldRegionsReflectsState verifies HasOldRegions tracks the current
// region table rather than a stale snapshot.
func TestHasOldRegionsReflectsState(t *testing.T) {
	fs := NewFileState(0)
	fs.RecordAppend(0, 50, 10)
	assert.False(t, fs.HasOldRegions())

	require.NoError(t, fs.MarkOld(0))
	assert.True(t, fs.HasOldRegions())
}

// TestResetAfterGCReplacesBookkeeping verifies ResetAfterGC wholesale swaps
// in a fresh FileState's accounting.
func TestResetAfterGCReplacesBookkeeping(t *testing.T) {
	fs := NewFileState(0)
	fs.RecordAppend(0, 100, 40)
	require.NoError(t, fs.MarkOld(0))

	fresh := NewFileState(0)
	fresh.RecordAppend(0, 40, 40)

	fs.ResetAfterGC(fresh)
	assert.Equal(t, int64(40), fs.DataSize())
	assert.Equal(t, int64(0), fs.OldSum())
	assert.False(t, fs.HasOldRegions())
}
