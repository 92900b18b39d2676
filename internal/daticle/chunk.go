package daticle

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/dreamware/ozone/internal/ozerr"
)

// ChunkConfig controls how the chunker splits a byte buffer (spec.md §4.3).
type ChunkConfig struct {
	ThresholdBytes int  // buffers at or below this size are never chunked
	ChunkSize      int  // target size of each chunk, except possibly the last
	PadLast        bool // pad the last chunk to ChunkSize (e.g. for block ciphers)
}

// PartKey is the 5-tuple spec.md §3.2 calls a "bunch key": SetID identifies
// one chunked write; Index 0 denotes the bunch key itself, indices 1..NumParts
// denote the chunk keys sharing the same SetID. DataLength and PartSize let
// Join trim the last chunk's padding without guessing.
type PartKey struct {
	SetID     uuid.UUID
	Index     uint64
	DataLen   uint64
	NumParts  uint64
	PartSize  uint64
}

// AsValue encodes a PartKey as the six-element u64 tuple Daticle (UTup64x6)
// the reader path recognises when fanning out a chunked read (spec.md §4.9
// step 4). SetID is folded into two u64 halves to keep the tuple
// homogeneous, so the five fields occupy six slots.
func (pk PartKey) AsValue() Value {
	hi := binary.BigEndian.Uint64(pk.SetID[:8])
	lo := binary.BigEndian.Uint64(pk.SetID[8:])
	v, _ := UTup(8, []uint64{hi, lo, pk.Index, pk.DataLen, pk.NumParts, pk.PartSize})
	return v
}

// PartKeyFromValue decodes a PartKey back from its UTup64x6 Daticle
// form, or reports ok=false if v isn't shaped like one (spec.md §9's open
// question: a malformed PartKey is reported, never guessed at).
func PartKeyFromValue(v Value) (PartKey, bool) {
	width, arity, ok := IsUTup(v.kind)
	if !ok || width != 8 || arity != 6 {
		return PartKey{}, false
	}
	u := v.AsUTup()
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[:8], u[0])
	binary.BigEndian.PutUint64(id[8:], u[1])
	return PartKey{SetID: id, Index: u[2], DataLen: u[3], NumParts: u[4], PartSize: u[5]}, true
}

// Valid reports whether pk's arithmetic is internally consistent: NumParts
// must be > 0, and the declared DataLen must fit within NumParts*PartSize
// (the last part may be shorter than PartSize unless padded).
func (pk PartKey) Valid() bool {
	if pk.NumParts == 0 || pk.PartSize == 0 {
		return false
	}
	return pk.DataLen <= pk.NumParts*pk.PartSize
}

// Chunked is the result of splitting a buffer: the bunch key (PartKey with
// Index 0) and one byte slice per chunk key (PartKey with Index 1..NumParts).
type Chunked struct {
	Bunch  PartKey
	Chunks []PartKey
	Bytes  [][]byte
}

// Chunk splits data per cfg. If len(data) <= cfg.ThresholdBytes, Chunk
// reports ok=false: the caller should store data unchunked.
func Chunk(data []byte, cfg ChunkConfig) (Chunked, bool) {
	if len(data) <= cfg.ThresholdBytes {
		return Chunked{}, false
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = cfg.ThresholdBytes
	}
	numParts := (len(data) + chunkSize - 1) / chunkSize
	setID := uuid.New()

	bunch := PartKey{
		SetID: setID, Index: 0,
		DataLen: uint64(len(data)), NumParts: uint64(numParts), PartSize: uint64(chunkSize),
	}
	chunks := make([]PartKey, numParts)
	bytesOut := make([][]byte, numParts)
	for i := 0; i < numParts; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(data) {
			end = len(data)
		}
		part := data[start:end]
		if cfg.PadLast && len(part) < chunkSize {
			padded := make([]byte, chunkSize)
			copy(padded, part)
			part = padded
		}
		bytesOut[i] = part
		chunks[i] = PartKey{
			SetID: setID, Index: uint64(i + 1),
			DataLen: uint64(len(data)), NumParts: uint64(numParts), PartSize: uint64(chunkSize),
		}
	}
	return Chunked{Bunch: bunch, Chunks: chunks, Bytes: bytesOut}, true
}

// Join reassembles a buffer from a bunch key and its chunks' bytes, given in
// ascending Index order, trimming any PadLast padding using bunch.DataLen.
func Join(bunch PartKey, parts [][]byte) ([]byte, error) {
	if !bunch.Valid() {
		return nil, ozerr.New(ozerr.Mismatch, "invalid bunch key arithmetic")
	}
	if uint64(len(parts)) != bunch.NumParts {
		return nil, ozerr.New(ozerr.Mismatch, "wrong number of chunk parts")
	}
	out := make([]byte, 0, bunch.DataLen)
	for _, p := range parts {
		out = append(out, p...)
	}
	if uint64(len(out)) < bunch.DataLen {
		return nil, ozerr.New(ozerr.Mismatch, "joined data shorter than declared length")
	}
	return out[:bunch.DataLen], nil
}
