package daticle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkJoinRoundTrip(t *testing.T) {
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	cfg := ChunkConfig{ThresholdBytes: 30, ChunkSize: 30}
	ch, ok := Chunk(data, cfg)
	require.True(t, ok)
	require.Equal(t, uint64(4), ch.Bunch.NumParts)
	require.Len(t, ch.Chunks, 4)
	require.Equal(t, 10, len(ch.Bytes[3]))

	joined, err := Join(ch.Bunch, ch.Bytes)
	require.NoError(t, err)
	require.Equal(t, data, joined)
}

func TestChunkBelowThresholdIsUnchunked(t *testing.T) {
	data := make([]byte, 10)
	_, ok := Chunk(data, ChunkConfig{ThresholdBytes: 30, ChunkSize: 30})
	require.False(t, ok)
}

func TestChunkPadLast(t *testing.T) {
	data := make([]byte, 70)
	cfg := ChunkConfig{ThresholdBytes: 30, ChunkSize: 30, PadLast: true}
	ch, ok := Chunk(data, cfg)
	require.True(t, ok)
	for _, c := range ch.Bytes {
		require.Equal(t, 30, len(c))
	}
	joined, err := Join(ch.Bunch, ch.Bytes)
	require.NoError(t, err)
	require.Len(t, joined, 70)
}

func TestPartKeyValueRoundTrip(t *testing.T) {
	data := make([]byte, 100)
	ch, ok := Chunk(data, ChunkConfig{ThresholdBytes: 30, ChunkSize: 30})
	require.True(t, ok)
	v := ch.Bunch.AsValue()
	pk, ok := PartKeyFromValue(v)
	require.True(t, ok)
	require.Equal(t, ch.Bunch, pk)
}

func TestPartKeyInvalidNumParts(t *testing.T) {
	pk := PartKey{NumParts: 0, PartSize: 10}
	require.False(t, pk.Valid())
}
