package ozone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/ozone/internal/bot"
	"github.com/dreamware/ozone/internal/daticle"
)

func openTestLiveFile(t *testing.T) *LiveFile {
	t.Helper()
	zd, err := NewZoneDir(t.TempDir(), bot.ZoneInd(0))
	require.NoError(t, err)
	lf, err := OpenLiveFile(zd, 0, 1<<20, nil)
	require.NoError(t, err)
	t.Cleanup(func() { lf.Close() })
	return lf
}

// TestLiveFileAppendReturnsLocation verifies Append writes both the data
// and index records and returns a FileLocation describing the data record.
func TestLiveFileAppendReturnsLocation(t *testing.T) {
	lf := openTestLiveFile(t)
	req := WriteRequest{
		KeyDaticleBytes:   daticle.Encode(daticle.Str("k1")),
		ValueDaticleBytes: daticle.Encode(daticle.U64(7)),
		Meta:              NowMeta(1),
	}

	loc, err := lf.Append(req)
	require.NoError(t, err)
	assert.Equal(t, int64(0), loc.FileNum)
	assert.Equal(t, int64(0), loc.StartOff)
	assert.Equal(t, lf.State.DataSize(), loc.RecordLen())
}

// TestLiveFileAppendAdvancesState verifies successive appends grow
// FileState's DataSize monotonically and never overlap offsets.
func TestLiveFileAppendAdvancesState(t *testing.T) {
	lf := openTestLiveFile(t)
	req := WriteRequest{
		KeyDaticleBytes:   daticle.Encode(daticle.Str("k1")),
		ValueDaticleBytes: daticle.Encode(daticle.U64(1)),
		Meta:              NowMeta(1),
	}

	loc1, err := lf.Append(req)
	require.NoError(t, err)
	loc2, err := lf.Append(req)
	require.NoError(t, err)

	assert.Equal(t, loc1.StartOff+loc1.RecordLen(), loc2.StartOff)
}

// TestLiveFileNeedsRotation verifies NeedsRotation reports true once the
// configured max size is reached.
func TestLiveFileNeedsRotation(t *testing.T) {
	zd, err := NewZoneDir(t.TempDir(), bot.ZoneInd(0))
	require.NoError(t, err)
	lf, err := OpenLiveFile(zd, 0, 8, nil)
	require.NoError(t, err)
	defer lf.Close()

	req := WriteRequest{
		KeyDaticleBytes:   daticle.Encode(daticle.Str("k")),
		ValueDaticleBytes: daticle.Encode(daticle.U64(1)),
		Meta:              NowMeta(1),
	}
	_, err = lf.Append(req)
	require.NoError(t, err)
	assert.True(t, lf.NeedsRotation())
}
