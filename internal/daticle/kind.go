// Package daticle implements the Daticle value model: a tagged-union value
// type drawn from a fixed, closed catalogue of Kinds, plus binary and text
// codecs and a chunker for splitting large byte strings across the storage
// engine's chunk keys.
//
// The catalogue is organised by case exactly as the specification groups it
// (AtomLogic, AtomFixed, AtomVariable, MoleculeUnitary, MoleculeMixed,
// MoleculeSame); Kind is a one-byte enum and every operation on a Value
// dispatches on Kind through an exhaustive switch rather than an interface
// hierarchy, the same shape the teacher uses for ShardState.
package daticle

import "fmt"

// Kind is the discriminator of a Daticle. The mapping Value -> Kind is total
// and deterministic: every Value has exactly one Kind (spec invariant i).
type Kind uint8

// AtomLogic: no-payload values.
const (
	KindEmpty Kind = iota
	KindTrue
	KindFalse
	KindNone
)

// AtomFixed: fixed-width numerics.
const (
	KindI8 Kind = iota + 10
	KindU8
	KindI16
	KindU16
	KindI32
	KindU32
	KindI64
	KindU64
	KindI128
	KindU128
	KindF32
	KindF64
)

// AtomVariable: arbitrary-precision and length-prefixed scalars.
const (
	KindAint Kind = iota + 30
	KindAdec
	KindC64
	KindStr
)

// MoleculeUnitary: single-child and tagged wrappers.
const (
	KindUsr Kind = iota + 40
	KindBox
	KindSome
	KindABox
)

// MoleculeMixed: heterogeneous containers.
const (
	KindList Kind = iota + 50
	KindTup2
	KindTup3
	KindTup4
	KindTup5
	KindTup6
	KindTup7
	KindTup8
	KindTup9
	KindTup10
	KindMap
	KindOrderedMap
)

// MoleculeSame: homogeneous containers.
const (
	KindVek Kind = iota + 70
	KindBU8
	KindBU16
	KindBU32
	KindBU64
	KindBC64
	// Fixed-length byte arrays, lengths {2,3,4,5,6,7,8,9,10,16,32}.
	KindArr2
	KindArr3
	KindArr4
	KindArr5
	KindArr6
	KindArr7
	KindArr8
	KindArr9
	KindArr10
	KindArr16
	KindArr32
	// Fixed-length unsigned-integer tuples, element types u16/u32/u64,
	// arities 2-10. KindUTup16x2 .. KindUTup16x10, then u32, then u64.
	KindUTup16x2
	KindUTup16x3
	KindUTup16x4
	KindUTup16x5
	KindUTup16x6
	KindUTup16x7
	KindUTup16x8
	KindUTup16x9
	KindUTup16x10
	KindUTup32x2
	KindUTup32x3
	KindUTup32x4
	KindUTup32x5
	KindUTup32x6
	KindUTup32x7
	KindUTup32x8
	KindUTup32x9
	KindUTup32x10
	KindUTup64x2
	KindUTup64x3
	KindUTup64x4
	KindUTup64x5
	KindUTup64x6
	KindUTup64x7
	KindUTup64x8
	KindUTup64x9
	KindUTup64x10
)

// arrLens maps each fixed-byte-array Kind to its element count.
var arrLens = map[Kind]int{
	KindArr2: 2, KindArr3: 3, KindArr4: 4, KindArr5: 5, KindArr6: 6,
	KindArr7: 7, KindArr8: 8, KindArr9: 9, KindArr10: 10, KindArr16: 16, KindArr32: 32,
}

// utupShape is a fixed unsigned-tuple Kind's (element width in bytes, arity);
// utupShapes maps each such Kind to its shape.
type utupShape struct {
	width, arity int
}

var utupShapes = map[Kind]utupShape{
	KindUTup16x2: {2, 2}, KindUTup16x3: {2, 3}, KindUTup16x4: {2, 4}, KindUTup16x5: {2, 5},
	KindUTup16x6: {2, 6}, KindUTup16x7: {2, 7}, KindUTup16x8: {2, 8}, KindUTup16x9: {2, 9}, KindUTup16x10: {2, 10},
	KindUTup32x2: {4, 2}, KindUTup32x3: {4, 3}, KindUTup32x4: {4, 4}, KindUTup32x5: {4, 5},
	KindUTup32x6: {4, 6}, KindUTup32x7: {4, 7}, KindUTup32x8: {4, 8}, KindUTup32x9: {4, 9}, KindUTup32x10: {4, 10},
	KindUTup64x2: {8, 2}, KindUTup64x3: {8, 3}, KindUTup64x4: {8, 4}, KindUTup64x5: {8, 5},
	KindUTup64x6: {8, 6}, KindUTup64x7: {8, 7}, KindUTup64x8: {8, 8}, KindUTup64x9: {8, 9}, KindUTup64x10: {8, 10},
}

// tupArity maps each heterogeneous fixed-tuple Kind to its arity.
var tupArity = map[Kind]int{
	KindTup2: 2, KindTup3: 3, KindTup4: 4, KindTup5: 5, KindTup6: 6,
	KindTup7: 7, KindTup8: 8, KindTup9: 9, KindTup10: 10,
}

// fixedWidth maps each fixed-width numeric Kind to its byte width.
var fixedWidth = map[Kind]int{
	KindI8: 1, KindU8: 1,
	KindI16: 2, KindU16: 2,
	KindI32: 4, KindU32: 4,
	KindI64: 8, KindU64: 8,
	KindI128: 16, KindU128: 16,
	KindF32: 4, KindF64: 8,
}

var kindNames = map[Kind]string{
	KindEmpty: "Empty", KindTrue: "True", KindFalse: "False", KindNone: "None",
	KindI8: "I8", KindU8: "U8", KindI16: "I16", KindU16: "U16",
	KindI32: "I32", KindU32: "U32", KindI64: "I64", KindU64: "U64",
	KindI128: "I128", KindU128: "U128", KindF32: "F32", KindF64: "F64",
	KindAint: "Aint", KindAdec: "Adec", KindC64: "C64", KindStr: "Str",
	KindUsr: "Usr", KindBox: "Box", KindSome: "Some", KindABox: "ABox",
	KindList: "List", KindMap: "Map", KindOrderedMap: "OrderedMap",
	KindTup2: "Tup2", KindTup3: "Tup3", KindTup4: "Tup4", KindTup5: "Tup5",
	KindTup6: "Tup6", KindTup7: "Tup7", KindTup8: "Tup8", KindTup9: "Tup9", KindTup10: "Tup10",
	KindVek: "Vek", KindBU8: "BU8", KindBU16: "BU16", KindBU32: "BU32", KindBU64: "BU64", KindBC64: "BC64",
}

// String renders a Kind's name for diagnostics and the text codec's kindicle.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	if n, ok := arrLens[k]; ok {
		return fmt.Sprintf("Arr%d", n)
	}
	if s, ok := utupShapes[k]; ok {
		return fmt.Sprintf("UTup%dx%d", s.width*8, s.arity)
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsFixedArray reports whether k is one of the fixed-length byte-array kinds
// and returns its element count.
func IsFixedArray(k Kind) (int, bool) {
	n, ok := arrLens[k]
	return n, ok
}

// IsUTup reports whether k is a fixed unsigned-integer tuple kind and
// returns its element width in bytes and arity.
func IsUTup(k Kind) (width, arity int, ok bool) {
	s, ok := utupShapes[k]
	return s.width, s.arity, ok
}

// IsTup reports whether k is one of the heterogeneous fixed tuples and
// returns its arity.
func IsTup(k Kind) (int, bool) {
	n, ok := tupArity[k]
	return n, ok
}

// FixedWidth reports the byte width of a fixed-width numeric Kind.
func FixedWidth(k Kind) (int, bool) {
	w, ok := fixedWidth[k]
	return w, ok
}
