package daticle

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// CommentStyle distinguishes the two comment delimiter conventions an ABox
// may carry (spec.md §4.2's "comment delimiter pair selection").
type CommentStyle uint8

const (
	// CommentLine is a single-line `# comment` style annotation.
	CommentLine CommentStyle = iota
	// CommentBlock is a delimited `/* comment */` style annotation.
	CommentBlock
)

// Value is a Daticle: a single tagged value drawn from the Kind catalogue.
// Every Value has exactly one Kind; which of the fields below is meaningful
// is determined entirely by Kind (spec invariant i). Values are treated as
// immutable by every codec and engine operation in this module.
type Value struct {
	kind Kind

	num  uint64  // unsigned fixed-width payload, C64, two's-complement for signed
	f    float64 // F32/F64 payload
	big  *big.Int
	dec  decimal.Decimal
	str  string // Str payload, Usr label, ABox comment
	raw  []byte // BU*/BC64/Arr* payload, I128/U128 big-endian 16 bytes
	utup []uint64

	elems []Value // List/Vek/Tup*/Map&OrderedMap-as-pairs/Box/Some/ABox/Usr-inner

	usrCode uint16
	cstyle  CommentStyle
}

// Kind reports the discriminator of v.
func (v Value) Kind() Kind { return v.kind }

// --- AtomLogic ---

// Empty returns the Empty Daticle (no payload).
func Empty() Value { return Value{kind: KindEmpty} }

// Bool returns True or False.
func Bool(b bool) Value {
	if b {
		return Value{kind: KindTrue}
	}
	return Value{kind: KindFalse}
}

// None returns the None Daticle, the empty half of the optional space.
func None() Value { return Value{kind: KindNone} }

// Some wraps child as a present optional value.
func Some(child Value) Value { return Value{kind: KindSome, elems: []Value{child}} }

// AsBool reports v's truth value; only meaningful if Kind is True or False.
func (v Value) AsBool() bool { return v.kind == KindTrue }

// --- AtomFixed ---

func fixedUint(k Kind, u uint64) Value { return Value{kind: k, num: u} }
func fixedInt(k Kind, i int64) Value   { return Value{kind: k, num: uint64(i)} }

func I8(i int8) Value   { return fixedInt(KindI8, int64(i)) }
func U8(u uint8) Value  { return fixedUint(KindU8, uint64(u)) }
func I16(i int16) Value { return fixedInt(KindI16, int64(i)) }
func U16(u uint16) Value {
	return fixedUint(KindU16, uint64(u))
}
func I32(i int32) Value  { return fixedInt(KindI32, int64(i)) }
func U32(u uint32) Value { return fixedUint(KindU32, uint64(u)) }
func I64(i int64) Value  { return fixedInt(KindI64, i) }
func U64(u uint64) Value { return fixedUint(KindU64, u) }

// I128 and U128 carry their 16-byte big-endian two's-complement/magnitude
// representation directly; the model does not widen them into math/big.
func I128(raw [16]byte) Value { return Value{kind: KindI128, raw: raw[:]} }
func U128(raw [16]byte) Value { return Value{kind: KindU128, raw: raw[:]} }

func F32(f float32) Value { return Value{kind: KindF32, f: float64(f)} }
func F64(f float64) Value { return Value{kind: KindF64, f: f} }

// AsI64 returns v's payload reinterpreted as a signed 64-bit integer.
func (v Value) AsI64() int64 { return int64(v.num) }

// AsU64 returns v's payload as an unsigned 64-bit integer (also used for C64).
func (v Value) AsU64() uint64 { return v.num }

// AsF64 returns v's floating-point payload.
func (v Value) AsF64() float64 { return v.f }

// AsRaw128 returns the 16-byte big-endian payload of an I128/U128 value.
func (v Value) AsRaw128() []byte { return v.raw }

// --- AtomVariable ---

// Aint wraps an arbitrary-precision integer.
func Aint(i *big.Int) Value { return Value{kind: KindAint, big: new(big.Int).Set(i)} }

// Adec wraps an arbitrary-precision decimal.
func Adec(d decimal.Decimal) Value { return Value{kind: KindAdec, dec: d} }

// C64 wraps a compressed 64-bit unsigned integer (0-8 byte wire encoding).
func C64(u uint64) Value { return Value{kind: KindC64, num: u} }

// Str wraps a UTF-8 string.
func Str(s string) Value { return Value{kind: KindStr, str: s} }

// AsBig returns the Aint payload.
func (v Value) AsBig() *big.Int { return v.big }

// AsDec returns the Adec payload.
func (v Value) AsDec() decimal.Decimal { return v.dec }

// AsStr returns the Str/Usr-label/ABox-comment string payload.
func (v Value) AsStr() string { return v.str }

// --- MoleculeUnitary ---

// Usr constructs a user-tagged wrapper. inner may be nil.
func Usr(code uint16, label string, inner *Value) Value {
	v := Value{kind: KindUsr, usrCode: code, str: label}
	if inner != nil {
		v.elems = []Value{*inner}
	}
	return v
}

// Box wraps a single child value.
func Box(child Value) Value { return Value{kind: KindBox, elems: []Value{child}} }

// ABox wraps a child value with an attached comment.
func ABox(child Value, style CommentStyle, comment string) Value {
	return Value{kind: KindABox, elems: []Value{child}, cstyle: style, str: comment}
}

// UsrCode returns a Usr value's numeric tag.
func (v Value) UsrCode() uint16 { return v.usrCode }

// Inner returns the wrapped child of Usr/Box/Some/ABox, or nil if absent.
func (v Value) Inner() *Value {
	if len(v.elems) == 0 {
		return nil
	}
	return &v.elems[0]
}

// CommentStyle returns an ABox's comment delimiter style.
func (v Value) CommentStyle() CommentStyle { return v.cstyle }

// --- MoleculeMixed ---

// List wraps a heterogeneous, variable-length sequence of Daticles.
func List(elems []Value) Value { return Value{kind: KindList, elems: elems} }

// Tup constructs a fixed arity-2..10 heterogeneous tuple.
func Tup(elems []Value) (Value, bool) {
	k, ok := tupKindForArity(len(elems))
	if !ok {
		return Value{}, false
	}
	return Value{kind: k, elems: elems}, true
}

func tupKindForArity(n int) (Kind, bool) {
	for k, a := range tupArity {
		if a == n {
			return k, true
		}
	}
	return 0, false
}

// Pair is a single key/value entry of a Map or OrderedMap.
type Pair struct {
	Key, Val Value
}

// Map wraps an unordered Daticle -> Daticle map. Iteration order is
// unspecified for KindMap (see OrderedMap for insertion-order preservation).
func Map(pairs []Pair) Value {
	return Value{kind: KindMap, elems: pairsToElems(pairs)}
}

// OrderedMap wraps a Daticle -> Daticle map that preserves first-insertion
// order across all subsequent reads and serializations (spec invariant v).
func OrderedMap(pairs []Pair) Value {
	return Value{kind: KindOrderedMap, elems: pairsToElems(pairs)}
}

func pairsToElems(pairs []Pair) []Value {
	out := make([]Value, 0, len(pairs)*2)
	for _, p := range pairs {
		out = append(out, p.Key, p.Val)
	}
	return out
}

// Elems returns the element slice of List/Vek/Tup* values.
func (v Value) Elems() []Value { return v.elems }

// Pairs returns the key/value pairs of Map/OrderedMap values, in the order
// they are stored (insertion order for OrderedMap).
func (v Value) Pairs() []Pair {
	pairs := make([]Pair, 0, len(v.elems)/2)
	for i := 0; i+1 < len(v.elems); i += 2 {
		pairs = append(pairs, Pair{Key: v.elems[i], Val: v.elems[i+1]})
	}
	return pairs
}

// MapGet looks up key's value in a Map/OrderedMap using structural equality,
// restricted to the supplied kind set: the value is returned only if its
// Kind is one of kinds (or kinds is empty, meaning "any kind").
func (v Value) MapGet(key Value, kinds ...Kind) (Value, bool) {
	for _, p := range v.Pairs() {
		if !Equal(p.Key, key) {
			continue
		}
		if len(kinds) == 0 {
			return p.Val, true
		}
		for _, k := range kinds {
			if p.Val.kind == k {
				return p.Val, true
			}
		}
		return Value{}, false
	}
	return Value{}, false
}

// --- MoleculeSame ---

// Vek wraps a homogeneous vector; all elems must share the same Kind.
// The empty vector is always valid (no shared kind to violate).
func Vek(elems []Value) (Value, bool) {
	for i := 1; i < len(elems); i++ {
		if elems[i].kind != elems[0].kind {
			return Value{}, false
		}
	}
	return Value{kind: KindVek, elems: elems}, true
}

func buKind(n int) Kind {
	switch {
	case n <= 0xFF:
		return KindBU8
	case n <= 0xFFFF:
		return KindBU16
	case n <= 0xFFFFFFFF:
		return KindBU32
	default:
		return KindBU64
	}
}

// BU constructs a length-prefixed byte vector, choosing the narrowest
// BU8/BU16/BU32/BU64 length-prefix width that fits len(b).
func BU(b []byte) Value { return Value{kind: buKind(len(b)), raw: b} }

// BUWidth constructs a length-prefixed byte vector using a caller-chosen
// prefix width kind (KindBU8..KindBU64), for round-tripping a specific wire
// width rather than the narrowest one.
func BUWidth(k Kind, b []byte) Value { return Value{kind: k, raw: b} }

// BC64 constructs a byte vector whose length is C64-encoded on the wire.
func BC64(b []byte) Value { return Value{kind: KindBC64, raw: b} }

// AsBytes returns the raw byte payload of BU*/BC64/Arr*/I128/U128 values.
func (v Value) AsBytes() []byte { return v.raw }

// Arr constructs a fixed-length byte array Daticle; len(b) must be one of
// {2,3,4,5,6,7,8,9,10,16,32}.
func Arr(b []byte) (Value, bool) {
	for k, n := range arrLens {
		if n == len(b) {
			return Value{kind: k, raw: b}, true
		}
	}
	return Value{}, false
}

// UTup constructs a fixed-length unsigned-integer tuple Daticle; width must
// be 2, 4, or 8 (bytes per element) and len(vals) must be in [2,10].
func UTup(width int, vals []uint64) (Value, bool) {
	for k, s := range utupShapes {
		if s.width == width && s.arity == len(vals) {
			return Value{kind: k, utup: vals}, true
		}
	}
	return Value{}, false
}

// AsUTup returns the element values of a fixed unsigned-integer tuple.
func (v Value) AsUTup() []uint64 { return v.utup }

// Equal reports whether a and b are structurally equal Daticles. Usr values
// are equal iff their code and inner are equal (spec invariant ii): the
// human label is not part of identity.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindEmpty, KindTrue, KindFalse, KindNone:
		return true
	case KindI8, KindU8, KindI16, KindU16, KindI32, KindU32, KindI64, KindU64, KindC64:
		return a.num == b.num
	case KindI128, KindU128:
		return string(a.raw) == string(b.raw)
	case KindF32, KindF64:
		return a.f == b.f
	case KindAint:
		return a.big.Cmp(b.big) == 0
	case KindAdec:
		return a.dec.Equal(b.dec)
	case KindStr:
		return a.str == b.str
	case KindUsr:
		if a.usrCode != b.usrCode {
			return false
		}
		ai, bi := a.Inner(), b.Inner()
		if (ai == nil) != (bi == nil) {
			return false
		}
		if ai == nil {
			return true
		}
		return Equal(*ai, *bi)
	case KindBox, KindSome:
		return Equal(a.elems[0], b.elems[0])
	case KindABox:
		return Equal(a.elems[0], b.elems[0]) && a.cstyle == b.cstyle && a.str == b.str
	case KindList, KindVek, KindMap, KindOrderedMap,
		KindTup2, KindTup3, KindTup4, KindTup5, KindTup6, KindTup7, KindTup8, KindTup9, KindTup10:
		if len(a.elems) != len(b.elems) {
			return false
		}
		if a.kind == KindMap {
			return mapEqualUnordered(a, b)
		}
		for i := range a.elems {
			if !Equal(a.elems[i], b.elems[i]) {
				return false
			}
		}
		return true
	case KindBU8, KindBU16, KindBU32, KindBU64, KindBC64:
		return string(a.raw) == string(b.raw)
	default:
		if _, ok := IsFixedArray(a.kind); ok {
			return string(a.raw) == string(b.raw)
		}
		if _, _, ok := IsUTup(a.kind); ok {
			if len(a.utup) != len(b.utup) {
				return false
			}
			for i := range a.utup {
				if a.utup[i] != b.utup[i] {
					return false
				}
			}
			return true
		}
		return false
	}
}

func mapEqualUnordered(a, b Value) bool {
	ap, bp := a.Pairs(), b.Pairs()
	if len(ap) != len(bp) {
		return false
	}
	used := make([]bool, len(bp))
	for _, pa := range ap {
		found := false
		for j, pb := range bp {
			if used[j] {
				continue
			}
			if Equal(pa.Key, pb.Key) && Equal(pa.Val, pb.Val) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Flatten performs a depth-first, destructive-style traversal that yields
// every atomic (non-container) Daticle reachable from v, in encounter order.
// Containers (List, Vek, Tup*, Map, OrderedMap, Box, Some, ABox, Usr) are
// descended into rather than yielded themselves.
func Flatten(v Value) []Value {
	var out []Value
	var walk func(Value)
	walk = func(x Value) {
		switch x.kind {
		case KindBox, KindSome, KindABox:
			walk(x.elems[0])
		case KindUsr:
			if inner := x.Inner(); inner != nil {
				walk(*inner)
			}
		case KindList, KindVek, KindMap, KindOrderedMap,
			KindTup2, KindTup3, KindTup4, KindTup5, KindTup6, KindTup7, KindTup8, KindTup9, KindTup10:
			for _, e := range x.elems {
				walk(e)
			}
		default:
			out = append(out, x)
		}
	}
	walk(v)
	return out
}
