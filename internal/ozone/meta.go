package ozone

import (
	"encoding/binary"
	"time"

	"github.com/dreamware/ozone/internal/daticle"
	"github.com/dreamware/ozone/internal/ozerr"
)

// UIDLen is the fixed width of a Meta's user-id field (spec.md §6: "uid_bytes
// (UIDL fixed)").
const UIDLen = 8

// Meta is the fixed-width record attached to every stored key: who wrote it
// and when (spec.md §3.2).
type Meta struct {
	UserID    uint64
	Timestamp int64 // unix nanoseconds
}

func (m Meta) encode() []byte {
	buf := make([]byte, UIDLen+8)
	binary.BigEndian.PutUint64(buf[:UIDLen], m.UserID)
	binary.BigEndian.PutUint64(buf[UIDLen:], uint64(m.Timestamp))
	return buf
}

func decodeMeta(b []byte) (Meta, []byte, error) {
	if len(b) < UIDLen+8 {
		return Meta{}, nil, ozerr.New(ozerr.Decode, "short meta record")
	}
	m := Meta{
		UserID:    binary.BigEndian.Uint64(b[:UIDLen]),
		Timestamp: int64(binary.BigEndian.Uint64(b[UIDLen : UIDLen+8])),
	}
	return m, b[UIDLen+8:], nil
}

// NowMeta stamps a Meta for userID at the current time.
func NowMeta(userID uint64) Meta {
	return Meta{UserID: userID, Timestamp: time.Now().UnixNano()}
}

// FileLocation pinpoints a stored value: which file, at what offset, and the
// byte lengths of the key and value records that make it up (spec.md §3.2).
type FileLocation struct {
	FileNum    int64
	StartOff   int64
	KeyLen     int64
	ValueLen   int64
}

// RecordLen is the total byte span of the record FileLocation points at.
func (fl FileLocation) RecordLen() int64 { return fl.KeyLen + fl.ValueLen }

// StoredKey is the on-disk representation of a key record: checksum || meta
// || key-daticle-bytes (spec.md §3.2, §6).
type StoredKey struct {
	Checksum uint64
	Meta     Meta
	KeyBytes []byte
}

// EncodeStoredKey serialises a StoredKey as it appears in both the data file
// and the index file: csum_K(8) || meta || key_daticle_bytes. The checksum
// covers meta || key_daticle_bytes (spec.md §6) and is computed by csum,
// letting a per-call SchemesOverride substitute the checksummer.
func EncodeStoredKey(meta Meta, keyDaticleBytes []byte, csum Checksummer) []byte {
	if csum == nil {
		csum = defaultChecksummer
	}
	framed := append(meta.encode(), keyDaticleBytes...)
	sum := csum(framed)
	out := make([]byte, 8, 8+len(framed))
	binary.BigEndian.PutUint64(out, sum)
	return append(out, framed...)
}

// DecodeStoredKey reads a StoredKey off the front of b, verifying its
// checksum with csum, and returns the bytes remaining after it.
func DecodeStoredKey(b []byte, csum Checksummer) (StoredKey, []byte, error) {
	if csum == nil {
		csum = defaultChecksummer
	}
	if len(b) < 8 {
		return StoredKey{}, nil, ozerr.New(ozerr.Decode, "short stored key header")
	}
	wantSum := binary.BigEndian.Uint64(b[:8])
	rest := b[8:]
	meta, afterMeta, err := decodeMeta(rest)
	if err != nil {
		return StoredKey{}, nil, err
	}
	keyLen, err := daticle.ByteLen(afterMeta)
	if err != nil {
		return StoredKey{}, nil, ozerr.Wrap(ozerr.Decode, err, "measuring stored key daticle length")
	}
	if len(afterMeta) < keyLen {
		return StoredKey{}, nil, ozerr.New(ozerr.Decode, "truncated key daticle bytes")
	}
	keyBytes := afterMeta[:keyLen]
	framed := rest[:len(rest)-len(afterMeta)+keyLen]
	if csum(framed) != wantSum {
		return StoredKey{}, nil, ozerr.New(ozerr.Mismatch, "stored key checksum mismatch")
	}
	return StoredKey{Checksum: wantSum, Meta: meta, KeyBytes: keyBytes}, afterMeta[keyLen:], nil
}

// EncodeStoredValue serialises a StoredValue record: value_daticle_bytes ||
// csum_V (spec.md §3.2, §6), where the checksum covers the value bytes.
func EncodeStoredValue(valueDaticleBytes []byte, csum Checksummer) []byte {
	if csum == nil {
		csum = defaultChecksummer
	}
	sum := csum(valueDaticleBytes)
	out := make([]byte, len(valueDaticleBytes), len(valueDaticleBytes)+8)
	copy(out, valueDaticleBytes)
	sumBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(sumBytes, sum)
	return append(out, sumBytes...)
}

// DecodeStoredValue reads a StoredValue off the front of b, verifying its
// trailing checksum with csum, and returns the bytes remaining after it.
func DecodeStoredValue(b []byte, csum Checksummer) ([]byte, []byte, error) {
	if csum == nil {
		csum = defaultChecksummer
	}
	valLen, err := daticle.ByteLen(b)
	if err != nil {
		return nil, nil, ozerr.Wrap(ozerr.Decode, err, "measuring stored value daticle length")
	}
	if len(b) < valLen+8 {
		return nil, nil, ozerr.New(ozerr.Decode, "truncated stored value record")
	}
	valueBytes := b[:valLen]
	wantSum := binary.BigEndian.Uint64(b[valLen : valLen+8])
	if csum(valueBytes) != wantSum {
		return nil, nil, ozerr.New(ozerr.Mismatch, "stored value checksum mismatch")
	}
	return valueBytes, b[valLen+8:], nil
}

// EncodeLocationRecord serialises a FileLocation as it appears inside an
// index record: start(u64) | klen(u64) | vlen(u64) (spec.md §6).
func EncodeLocationRecord(fl FileLocation) []byte {
	buf := make([]byte, 24)
	binary.BigEndian.PutUint64(buf[0:8], uint64(fl.StartOff))
	binary.BigEndian.PutUint64(buf[8:16], uint64(fl.KeyLen))
	binary.BigEndian.PutUint64(buf[16:24], uint64(fl.ValueLen))
	return buf
}

// DecodeLocationRecord reads a 24-byte location record off the front of b.
// fileNum is not encoded (it is implicit in which index file was read) and
// must be supplied by the caller.
func DecodeLocationRecord(fileNum int64, b []byte) (FileLocation, []byte, error) {
	if len(b) < 24 {
		return FileLocation{}, nil, ozerr.New(ozerr.Decode, "short location record")
	}
	fl := FileLocation{
		FileNum:  fileNum,
		StartOff: int64(binary.BigEndian.Uint64(b[0:8])),
		KeyLen:   int64(binary.BigEndian.Uint64(b[8:16])),
		ValueLen: int64(binary.BigEndian.Uint64(b[16:24])),
	}
	return fl, b[24:], nil
}
