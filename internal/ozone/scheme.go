package ozone

import "github.com/dreamware/ozone/internal/daticle"

// Checksummer computes the integrity checksum stored alongside keys and
// values. The default is daticle.Checksum (xxhash); a SchemesOverride may
// substitute an alternative per call (spec.md §6).
type Checksummer func([]byte) uint64

func defaultChecksummer(b []byte) uint64 { return daticle.Checksum(b) }

// SchemesOverride lets a caller substitute, per Put/Get/Delete call, the
// key-hasher, the encryption scheme, the checksummer, and the chunker
// configuration (spec.md §6, §4.11). Any nil/zero field falls back to the
// Engine's configured default.
type SchemesOverride struct {
	Hasher      Hasher
	Salt        []byte
	Encryptor   Encryptor
	Checksummer Checksummer
	Chunk       *ChunkConfig
}

func (s SchemesOverride) hasher() Hasher {
	if s.Hasher != nil {
		return s.Hasher
	}
	return defaultHasher
}

func (s SchemesOverride) salt() []byte {
	if s.Salt != nil {
		return s.Salt
	}
	return defaultSalt
}

func (s SchemesOverride) checksummer() Checksummer {
	if s.Checksummer != nil {
		return s.Checksummer
	}
	return defaultChecksummer
}
