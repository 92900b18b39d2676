package ozone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/ozone/internal/bot"
	"github.com/dreamware/ozone/internal/daticle"
)

func newTestRegistry(t *testing.T, maxBytes int64) *FileRegistry {
	t.Helper()
	zd, err := NewZoneDir(t.TempDir(), bot.ZoneInd(0))
	require.NoError(t, err)
	fr, err := NewFileRegistry(zd, 0, maxBytes)
	require.NoError(t, err)
	t.Cleanup(func() { fr.Close() })
	return fr
}

// TestFileRegistryRotateIfNeeded verifies rotation opens the next file
// number as live once the current live file exceeds its max size, and
// leaves the prior file's state reachable via State.
func TestFileRegistryRotateIfNeeded(t *testing.T) {
	fr := newTestRegistry(t, 8)
	req := WriteRequest{
		KeyDaticleBytes:   daticle.Encode(daticle.Str("k")),
		ValueDaticleBytes: daticle.Encode(daticle.U64(1)),
		Meta:              NowMeta(1),
	}
	_, err := fr.Live().Append(req)
	require.NoError(t, err)

	newNum, err := fr.RotateIfNeeded()
	require.NoError(t, err)
	assert.Equal(t, int64(1), newNum)
	assert.Equal(t, int64(1), fr.Live().FileNum())
	assert.True(t, fr.IsLive(1))
	assert.False(t, fr.IsLive(0))

	_, ok := fr.State(0)
	assert.True(t, ok)
}

// TestFileRegistryRotateIfNeededNoop verifies RotateIfNeeded is a no-op
// while the live file is under its max size.
func TestFileRegistryRotateIfNeededNoop(t *testing.T) {
	fr := newTestRegistry(t, 1<<20)
	newNum, err := fr.RotateIfNeeded()
	require.NoError(t, err)
	assert.Equal(t, int64(0), newNum)
}

// TestFileRegistryForceRotateAlwaysRotates verifies ForceRotate opens a new
// live file regardless of size, the operator "new live file" command.
func TestFileRegistryForceRotateAlwaysRotates(t *testing.T) {
	fr := newTestRegistry(t, 1<<20)
	newNum, err := fr.ForceRotate()
	require.NoError(t, err)
	assert.Equal(t, int64(1), newNum)
	assert.Equal(t, int64(1), fr.Live().FileNum())
}

// TestFileRegistryMarkOldAtUnknownFileFails verifies MarkOldAt reports a
// missing file state rather than panicking.
func TestFileRegistryMarkOldAtUnknownFileFails(t *testing.T) {
	fr := newTestRegistry(t, 1<<20)
	assert.Error(t, fr.MarkOldAt(42, 0))
}

// TestFileRegistryGCCandidateExcludesLiveFile verifies GCCandidate never
// names the live file even if it happens to have a high old-byte ratio.
func TestFileRegistryGCCandidateExcludesLiveFile(t *testing.T) {
	fr := newTestRegistry(t, 1<<20)
	live := fr.Live()
	live.State.RecordAppend(0, 100, 40)
	require.NoError(t, live.State.MarkOld(0))

	_, ok := fr.GCCandidate(0.1)
	assert.False(t, ok)
}

// TestFileRegistryGCCandidatePicksLowestQualifying verifies GCCandidate
// returns the lowest-numbered non-live file whose ratio exceeds threshold.
func TestFileRegistryGCCandidatePicksLowestQualifying(t *testing.T) {
	fr := newTestRegistry(t, 1<<20)
	st1 := NewFileState(1)
	st1.RecordAppend(0, 100, 40)
	require.NoError(t, st1.MarkOld(0))
	fr.RegisterState(1, st1)

	st2 := NewFileState(2)
	st2.RecordAppend(0, 100, 40)
	require.NoError(t, st2.MarkOld(0))
	fr.RegisterState(2, st2)

	num, ok := fr.GCCandidate(0.1)
	require.True(t, ok)
	assert.Equal(t, int64(1), num)
}
