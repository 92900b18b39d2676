package ozone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/ozone/internal/bot"
	"github.com/dreamware/ozone/internal/daticle"
)

// TestReadFromLiveFileRoundTrip verifies a value appended via LiveFile.Append
// reads back correctly through the live-file fast path.
func TestReadFromLiveFileRoundTrip(t *testing.T) {
	lf := openTestLiveFile(t)
	wantValue := daticle.Encode(daticle.Str("hello, ozone"))
	loc, err := lf.Append(WriteRequest{
		KeyDaticleBytes:   daticle.Encode(daticle.Str("k1")),
		ValueDaticleBytes: wantValue,
		Meta:              NowMeta(1),
	})
	require.NoError(t, err)

	got, err := ReadFromLiveFile(lf, loc, nil)
	require.NoError(t, err)
	assert.Equal(t, wantValue, got)
}

// TestReadFromLiveFileWrongFileNumFails verifies a location naming a
// different file number than the open LiveFile is rejected rather than
// silently misread.
func TestReadFromLiveFileWrongFileNumFails(t *testing.T) {
	lf := openTestLiveFile(t)
	_, err := ReadFromLiveFile(lf, FileLocation{FileNum: 99}, nil)
	assert.Error(t, err)
}

// TestReadValueAtOpensFileDirectly verifies ReadValueAt (the non-live-file
// path) reads the same bytes a live-file read would, for a closed file.
func TestReadValueAtOpensFileDirectly(t *testing.T) {
	zd, err := NewZoneDir(t.TempDir(), bot.ZoneInd(0))
	require.NoError(t, err)
	lf, err := OpenLiveFile(zd, 0, 1<<20, nil)
	require.NoError(t, err)

	wantValue := daticle.Encode(daticle.U64(123))
	loc, err := lf.Append(WriteRequest{
		KeyDaticleBytes:   daticle.Encode(daticle.Str("k1")),
		ValueDaticleBytes: wantValue,
		Meta:              NowMeta(1),
	})
	require.NoError(t, err)
	require.NoError(t, lf.Close())

	got, err := ReadValueAt(zd, loc, nil)
	require.NoError(t, err)
	assert.Equal(t, wantValue, got)
}
