package ozone

import (
	"github.com/cespare/xxhash/v2"

	"github.com/dreamware/ozone/internal/bot"
	"github.com/dreamware/ozone/internal/daticle"
)

// defaultSalt is mixed into every key hash ahead of hashing, so the mapping
// bytes -> shard is a pure function of (key bytes, salt, hasher) per
// spec.md §8's "deterministic sharding" property, while still being
// distinguishable from a raw unsalted hash of the same bytes used
// elsewhere (e.g. content addressing in an adjacent subsystem).
var defaultSalt = []byte("ozone-key-v1")

// Hasher reduces salted key bytes to a 64-bit digest. The default is
// xxhash; callers may substitute an alternative via SchemesOverride
// (spec.md §6, "optional schemes override... may substitute the
// key-hasher").
type Hasher func(salted []byte) uint64

func defaultHasher(salted []byte) uint64 { return xxhash.Sum64(salted) }

// NormalizeKey reduces a user-facing Daticle key to its canonical on-disk
// form: hash(encode(key) || salt), wrapped in the narrowest BU* Daticle
// that holds it (spec.md §3.2). It also returns the raw hash bytes, used
// unwrapped for shard selection.
func NormalizeKey(key daticle.Value, hasher Hasher, salt []byte) (canonical daticle.Value, hashBytes []byte) {
	if hasher == nil {
		hasher = defaultHasher
	}
	if salt == nil {
		salt = defaultSalt
	}
	encoded := daticle.Encode(key)
	salted := make([]byte, 0, len(encoded)+len(salt))
	salted = append(salted, encoded...)
	salted = append(salted, salt...)
	h := hasher(salted)

	hb := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		hb[i] = byte(h)
		h >>= 8
	}
	return daticle.BU(hb), hb
}

// ChooseHash reduces a canonical key's hash bytes to a (zone, shard)
// routing pair by interpreting the bytes as a big-endian unsigned integer
// and reducing modulo (numZones * shardsPerZone), then splitting the
// remainder into zone (remainder / shardsPerZone) and per-zone shard
// ordinal (remainder % shardsPerZone) (spec.md §3.3).
func ChooseHash(hashBytes []byte, numZones, shardsPerZone int) (bot.ZoneInd, int) {
	var acc uint64
	for _, b := range hashBytes {
		acc = acc<<8 | uint64(b)
	}
	total := uint64(numZones * shardsPerZone)
	if total == 0 {
		return 0, 0
	}
	picked := acc % total
	zone := picked / uint64(shardsPerZone)
	shard := picked % uint64(shardsPerZone)
	return bot.ZoneInd(zone), int(shard)
}
