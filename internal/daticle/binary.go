package daticle

import (
	"encoding/binary"
	"math"
	"math/big"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"

	"github.com/dreamware/ozone/internal/ozerr"
)

// c64Base is the first of the 9 reserved wire codes for C64 (base+0..base+8
// payload bytes). It sits well above the highest logical Kind ordinal so the
// two code spaces never collide on the wire.
const c64Base = 200

// Checksum computes the storage layer's checksum over a framed byte region
// (spec.md §4.1 "Checksum integration"). Implemented with xxhash's 64-bit
// hash, the hasher the wider pack (dolt, yellowstone-faithful) already
// depends on for exactly this kind of fast non-cryptographic integrity check.
func Checksum(b []byte) uint64 { return xxhash.Sum64(b) }

// c64Len returns the minimal number of big-endian bytes needed to hold u
// (0 for u == 0).
func c64Len(u uint64) int {
	n := 0
	for u > 0 {
		n++
		u >>= 8
	}
	return n
}

func putC64(buf []byte, u uint64) []byte {
	n := c64Len(u)
	buf = append(buf, byte(c64Base+n))
	for i := n - 1; i >= 0; i-- {
		buf = append(buf, byte(u>>(8*uint(i))))
	}
	return buf
}

func readC64(b []byte) (uint64, []byte, error) {
	if len(b) < 1 {
		return 0, nil, ozerr.New(ozerr.Decode, "c64: truncated")
	}
	code := b[0]
	if code < c64Base || code > c64Base+8 {
		return 0, nil, ozerr.New(ozerr.Decode, "c64: bad code")
	}
	n := int(code - c64Base)
	b = b[1:]
	if len(b) < n {
		return 0, nil, ozerr.New(ozerr.Decode, "c64: truncated payload")
	}
	var u uint64
	for i := 0; i < n; i++ {
		u = (u << 8) | uint64(b[i])
	}
	return u, b[n:], nil
}

// Encode serializes v to its self-framing byte representation: a 1-byte
// kind code followed by v's payload (spec.md §4.1).
func Encode(v Value) []byte { return appendValue(nil, v) }

func appendValue(buf []byte, v Value) []byte {
	switch v.kind {
	case KindEmpty, KindTrue, KindFalse, KindNone:
		return append(buf, byte(v.kind))

	case KindI8, KindU8:
		return append(buf, byte(v.kind), byte(v.num))
	case KindI16, KindU16:
		buf = append(buf, byte(v.kind))
		return binary.BigEndian.AppendUint16(buf, uint16(v.num))
	case KindI32, KindU32:
		buf = append(buf, byte(v.kind))
		return binary.BigEndian.AppendUint32(buf, uint32(v.num))
	case KindI64, KindU64:
		buf = append(buf, byte(v.kind))
		return binary.BigEndian.AppendUint64(buf, v.num)
	case KindI128, KindU128:
		buf = append(buf, byte(v.kind))
		return append(buf, v.raw...)
	case KindF32:
		buf = append(buf, byte(v.kind))
		return binary.BigEndian.AppendUint32(buf, math.Float32bits(float32(v.f)))
	case KindF64:
		buf = append(buf, byte(v.kind))
		return binary.BigEndian.AppendUint64(buf, math.Float64bits(v.f))

	case KindC64:
		return putC64(buf, v.num)
	case KindAint:
		return appendAint(buf, v.big)
	case KindAdec:
		return appendAdec(buf, v.dec)
	case KindStr:
		buf = append(buf, byte(v.kind))
		buf = putC64(buf, uint64(len(v.str)))
		return append(buf, v.str...)

	case KindUsr:
		buf = append(buf, byte(v.kind))
		buf = binary.BigEndian.AppendUint16(buf, v.usrCode)
		if v.str != "" {
			buf = append(buf, 1)
			buf = putC64(buf, uint64(len(v.str)))
			buf = append(buf, v.str...)
		} else {
			buf = append(buf, 0)
		}
		if inner := v.Inner(); inner != nil {
			buf = append(buf, 1)
			buf = appendValue(buf, *inner)
		} else {
			buf = append(buf, 0)
		}
		return buf
	case KindBox, KindSome:
		buf = append(buf, byte(v.kind))
		return appendValue(buf, v.elems[0])
	case KindABox:
		buf = append(buf, byte(v.kind))
		buf = appendValue(buf, v.elems[0])
		buf = append(buf, byte(v.cstyle))
		buf = putC64(buf, uint64(len(v.str)))
		return append(buf, v.str...)

	case KindList, KindVek:
		buf = append(buf, byte(v.kind))
		buf = binary.BigEndian.AppendUint64(buf, uint64(len(v.elems)))
		for _, e := range v.elems {
			buf = appendValue(buf, e)
		}
		return buf
	case KindMap, KindOrderedMap:
		buf = append(buf, byte(v.kind))
		buf = binary.BigEndian.AppendUint64(buf, uint64(len(v.elems)/2))
		for _, e := range v.elems {
			buf = appendValue(buf, e)
		}
		return buf
	case KindTup2, KindTup3, KindTup4, KindTup5, KindTup6, KindTup7, KindTup8, KindTup9, KindTup10:
		buf = append(buf, byte(v.kind))
		for _, e := range v.elems {
			buf = appendValue(buf, e)
		}
		return buf

	case KindBU8:
		buf = append(buf, byte(v.kind), byte(len(v.raw)))
		return append(buf, v.raw...)
	case KindBU16:
		buf = append(buf, byte(v.kind))
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(v.raw)))
		return append(buf, v.raw...)
	case KindBU32:
		buf = append(buf, byte(v.kind))
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(v.raw)))
		return append(buf, v.raw...)
	case KindBU64:
		buf = append(buf, byte(v.kind))
		buf = binary.BigEndian.AppendUint64(buf, uint64(len(v.raw)))
		return append(buf, v.raw...)
	case KindBC64:
		buf = append(buf, byte(v.kind))
		buf = putC64(buf, uint64(len(v.raw)))
		return append(buf, v.raw...)
	}

	if _, ok := IsFixedArray(v.kind); ok {
		buf = append(buf, byte(v.kind))
		return append(buf, v.raw...)
	}
	if width, _, ok := IsUTup(v.kind); ok {
		buf = append(buf, byte(v.kind))
		for _, u := range v.utup {
			for i := width - 1; i >= 0; i-- {
				buf = append(buf, byte(u>>(8*uint(i))))
			}
		}
		return buf
	}
	panic("daticle: unknown kind in Encode")
}

func appendAint(buf []byte, i *big.Int) []byte {
	buf = append(buf, byte(KindAint))
	sign := byte(0)
	if i.Sign() < 0 {
		sign = 1
	}
	buf = append(buf, sign)
	mag := new(big.Int).Abs(i).Bytes()
	buf = putC64(buf, uint64(len(mag)))
	return append(buf, mag...)
}

func appendAdec(buf []byte, d decimal.Decimal) []byte {
	buf = append(buf, byte(KindAdec))
	coeff := d.Coefficient()
	sign := byte(0)
	if coeff.Sign() < 0 {
		sign = 1
	}
	buf = append(buf, sign)
	mag := new(big.Int).Abs(coeff).Bytes()
	buf = putC64(buf, uint64(len(mag)))
	buf = append(buf, mag...)
	return binary.BigEndian.AppendUint32(buf, uint32(d.Exponent()))
}

// Decode parses one self-framing Daticle from the front of b, returning the
// decoded Value and the remaining, unconsumed bytes.
func Decode(b []byte) (Value, []byte, error) {
	if len(b) < 1 {
		return Value{}, nil, ozerr.New(ozerr.Decode, "empty buffer")
	}
	code := b[0]
	if code >= c64Base && code <= c64Base+8 {
		u, rest, err := readC64(b)
		if err != nil {
			return Value{}, nil, err
		}
		return C64(u), rest, nil
	}
	k := Kind(code)
	rest := b[1:]

	switch k {
	case KindEmpty:
		return Empty(), rest, nil
	case KindTrue:
		return Bool(true), rest, nil
	case KindFalse:
		return Bool(false), rest, nil
	case KindNone:
		return None(), rest, nil

	case KindI8, KindU8:
		if len(rest) < 1 {
			return Value{}, nil, ozerr.New(ozerr.Decode, "truncated fixed8")
		}
		num := uint64(rest[0])
		if k == KindI8 {
			num = uint64(int64(int8(rest[0])))
		}
		return Value{kind: k, num: num}, rest[1:], nil
	case KindI16, KindU16:
		if len(rest) < 2 {
			return Value{}, nil, ozerr.New(ozerr.Decode, "truncated fixed16")
		}
		u := binary.BigEndian.Uint16(rest)
		num := uint64(u)
		if k == KindI16 {
			num = uint64(int64(int16(u)))
		}
		return Value{kind: k, num: num}, rest[2:], nil
	case KindI32, KindU32:
		if len(rest) < 4 {
			return Value{}, nil, ozerr.New(ozerr.Decode, "truncated fixed32")
		}
		u := binary.BigEndian.Uint32(rest)
		num := uint64(u)
		if k == KindI32 {
			num = uint64(int64(int32(u)))
		}
		return Value{kind: k, num: num}, rest[4:], nil
	case KindI64, KindU64:
		if len(rest) < 8 {
			return Value{}, nil, ozerr.New(ozerr.Decode, "truncated fixed64")
		}
		return Value{kind: k, num: binary.BigEndian.Uint64(rest)}, rest[8:], nil
	case KindI128, KindU128:
		if len(rest) < 16 {
			return Value{}, nil, ozerr.New(ozerr.Decode, "truncated fixed128")
		}
		raw := append([]byte(nil), rest[:16]...)
		return Value{kind: k, raw: raw}, rest[16:], nil
	case KindF32:
		if len(rest) < 4 {
			return Value{}, nil, ozerr.New(ozerr.Decode, "truncated f32")
		}
		return F32(math.Float32frombits(binary.BigEndian.Uint32(rest))), rest[4:], nil
	case KindF64:
		if len(rest) < 8 {
			return Value{}, nil, ozerr.New(ozerr.Decode, "truncated f64")
		}
		return F64(math.Float64frombits(binary.BigEndian.Uint64(rest))), rest[8:], nil

	case KindAint:
		return decodeAint(rest)
	case KindAdec:
		return decodeAdec(rest)
	case KindStr:
		n, r2, err := readC64(rest)
		if err != nil {
			return Value{}, nil, err
		}
		if uint64(len(r2)) < n {
			return Value{}, nil, ozerr.New(ozerr.Decode, "truncated str")
		}
		return Str(string(r2[:n])), r2[n:], nil

	case KindUsr:
		return decodeUsr(rest)
	case KindBox:
		child, r2, err := Decode(rest)
		if err != nil {
			return Value{}, nil, err
		}
		return Box(child), r2, nil
	case KindSome:
		child, r2, err := Decode(rest)
		if err != nil {
			return Value{}, nil, err
		}
		return Some(child), r2, nil
	case KindABox:
		return decodeABox(rest)

	case KindList, KindVek:
		return decodeSeq(k, rest)
	case KindMap, KindOrderedMap:
		return decodeMap(k, rest)
	case KindTup2, KindTup3, KindTup4, KindTup5, KindTup6, KindTup7, KindTup8, KindTup9, KindTup10:
		arity, _ := IsTup(k)
		elems := make([]Value, 0, arity)
		cur := rest
		for i := 0; i < arity; i++ {
			e, r2, err := Decode(cur)
			if err != nil {
				return Value{}, nil, err
			}
			elems = append(elems, e)
			cur = r2
		}
		return Value{kind: k, elems: elems}, cur, nil

	case KindBU8:
		if len(rest) < 1 {
			return Value{}, nil, ozerr.New(ozerr.Decode, "truncated bu8 len")
		}
		n := int(rest[0])
		rest = rest[1:]
		if len(rest) < n {
			return Value{}, nil, ozerr.New(ozerr.Decode, "truncated bu8 payload")
		}
		raw := append([]byte(nil), rest[:n]...)
		return Value{kind: KindBU8, raw: raw}, rest[n:], nil
	case KindBU16:
		return decodeBUWidth(KindBU16, rest, 2)
	case KindBU32:
		return decodeBUWidth(KindBU32, rest, 4)
	case KindBU64:
		return decodeBUWidth(KindBU64, rest, 8)
	case KindBC64:
		n, r2, err := readC64(rest)
		if err != nil {
			return Value{}, nil, err
		}
		if uint64(len(r2)) < n {
			return Value{}, nil, ozerr.New(ozerr.Decode, "truncated bc64")
		}
		raw := append([]byte(nil), r2[:n]...)
		return Value{kind: KindBC64, raw: raw}, r2[n:], nil
	}

	if n, ok := IsFixedArray(k); ok {
		if len(rest) < n {
			return Value{}, nil, ozerr.New(ozerr.Decode, "truncated fixed array")
		}
		raw := append([]byte(nil), rest[:n]...)
		return Value{kind: k, raw: raw}, rest[n:], nil
	}
	if width, arity, ok := IsUTup(k); ok {
		need := width * arity
		if len(rest) < need {
			return Value{}, nil, ozerr.New(ozerr.Decode, "truncated utup")
		}
		vals := make([]uint64, arity)
		for i := 0; i < arity; i++ {
			var u uint64
			for j := 0; j < width; j++ {
				u = (u << 8) | uint64(rest[i*width+j])
			}
			vals[i] = u
		}
		return Value{kind: k, utup: vals}, rest[need:], nil
	}

	return Value{}, nil, ozerr.New(ozerr.Decode, "unknown kind code")
}

func decodeBUWidth(k Kind, rest []byte, width int) (Value, []byte, error) {
	if len(rest) < width {
		return Value{}, nil, ozerr.New(ozerr.Decode, "truncated bu length prefix")
	}
	var n uint64
	for i := 0; i < width; i++ {
		n = (n << 8) | uint64(rest[i])
	}
	rest = rest[width:]
	if uint64(len(rest)) < n {
		return Value{}, nil, ozerr.New(ozerr.Decode, "truncated bu payload")
	}
	raw := append([]byte(nil), rest[:n]...)
	return Value{kind: k, raw: raw}, rest[n:], nil
}

func decodeAint(rest []byte) (Value, []byte, error) {
	if len(rest) < 1 {
		return Value{}, nil, ozerr.New(ozerr.Decode, "truncated aint sign")
	}
	sign := rest[0]
	rest = rest[1:]
	n, r2, err := readC64(rest)
	if err != nil {
		return Value{}, nil, err
	}
	if uint64(len(r2)) < n {
		return Value{}, nil, ozerr.New(ozerr.Decode, "truncated aint magnitude")
	}
	mag := new(big.Int).SetBytes(r2[:n])
	if sign == 1 {
		mag.Neg(mag)
	}
	return Aint(mag), r2[n:], nil
}

func decodeAdec(rest []byte) (Value, []byte, error) {
	if len(rest) < 1 {
		return Value{}, nil, ozerr.New(ozerr.Decode, "truncated adec sign")
	}
	sign := rest[0]
	rest = rest[1:]
	n, r2, err := readC64(rest)
	if err != nil {
		return Value{}, nil, err
	}
	if uint64(len(r2)) < n {
		return Value{}, nil, ozerr.New(ozerr.Decode, "truncated adec coefficient")
	}
	mag := new(big.Int).SetBytes(r2[:n])
	if sign == 1 {
		mag.Neg(mag)
	}
	r3 := r2[n:]
	if len(r3) < 4 {
		return Value{}, nil, ozerr.New(ozerr.Decode, "truncated adec exponent")
	}
	exp := int32(binary.BigEndian.Uint32(r3))
	return Adec(decimal.NewFromBigInt(mag, exp)), r3[4:], nil
}

func decodeUsr(rest []byte) (Value, []byte, error) {
	if len(rest) < 2 {
		return Value{}, nil, ozerr.New(ozerr.Decode, "truncated usr code")
	}
	code := binary.BigEndian.Uint16(rest)
	rest = rest[2:]
	if len(rest) < 1 {
		return Value{}, nil, ozerr.New(ozerr.Decode, "truncated usr label flag")
	}
	var label string
	if rest[0] == 1 {
		rest = rest[1:]
		n, r2, err := readC64(rest)
		if err != nil {
			return Value{}, nil, err
		}
		if uint64(len(r2)) < n {
			return Value{}, nil, ozerr.New(ozerr.Decode, "truncated usr label")
		}
		label = string(r2[:n])
		rest = r2[n:]
	} else {
		rest = rest[1:]
	}
	if len(rest) < 1 {
		return Value{}, nil, ozerr.New(ozerr.Decode, "truncated usr inner flag")
	}
	var inner *Value
	if rest[0] == 1 {
		rest = rest[1:]
		v, r2, err := Decode(rest)
		if err != nil {
			return Value{}, nil, err
		}
		inner = &v
		rest = r2
	} else {
		rest = rest[1:]
	}
	return Usr(code, label, inner), rest, nil
}

func decodeABox(rest []byte) (Value, []byte, error) {
	child, r2, err := Decode(rest)
	if err != nil {
		return Value{}, nil, err
	}
	if len(r2) < 1 {
		return Value{}, nil, ozerr.New(ozerr.Decode, "truncated abox style")
	}
	style := CommentStyle(r2[0])
	r2 = r2[1:]
	n, r3, err := readC64(r2)
	if err != nil {
		return Value{}, nil, err
	}
	if uint64(len(r3)) < n {
		return Value{}, nil, ozerr.New(ozerr.Decode, "truncated abox comment")
	}
	return ABox(child, style, string(r3[:n])), r3[n:], nil
}

func decodeSeq(k Kind, rest []byte) (Value, []byte, error) {
	if len(rest) < 8 {
		return Value{}, nil, ozerr.New(ozerr.Decode, "truncated seq count")
	}
	n := binary.BigEndian.Uint64(rest)
	cur := rest[8:]
	elems := make([]Value, 0, n)
	for i := uint64(0); i < n; i++ {
		e, r2, err := Decode(cur)
		if err != nil {
			return Value{}, nil, err
		}
		elems = append(elems, e)
		cur = r2
	}
	return Value{kind: k, elems: elems}, cur, nil
}

func decodeMap(k Kind, rest []byte) (Value, []byte, error) {
	if len(rest) < 8 {
		return Value{}, nil, ozerr.New(ozerr.Decode, "truncated map count")
	}
	n := binary.BigEndian.Uint64(rest)
	cur := rest[8:]
	elems := make([]Value, 0, n*2)
	for i := uint64(0); i < n; i++ {
		kk, r2, err := Decode(cur)
		if err != nil {
			return Value{}, nil, err
		}
		vv, r3, err := Decode(r2)
		if err != nil {
			return Value{}, nil, err
		}
		elems = append(elems, kk, vv)
		cur = r3
	}
	return Value{kind: k, elems: elems}, cur, nil
}

// ByteLen reports the length in bytes of the single self-framing Daticle at
// the front of b. It backs the init path's ability to skip a stored value
// record to find the next record's offset (spec.md §4.1 "count bytes
// operation"). Unlike Decode, skipValue never builds a Value, an elems
// slice, a copied raw payload, or a big.Int for anything it passes over —
// it only walks the length-prefix bytes needed to find where the value
// ends, recursing into nested Daticles without allocating them.
func ByteLen(b []byte) (int, error) {
	rest, err := skipValue(b)
	if err != nil {
		return 0, err
	}
	return len(b) - len(rest), nil
}

// skipValue advances past one self-framing Daticle, mirroring Decode's
// kind-code switch branch for branch but returning only the unconsumed
// remainder instead of a decoded Value.
func skipValue(b []byte) ([]byte, error) {
	if len(b) < 1 {
		return nil, ozerr.New(ozerr.Decode, "empty buffer")
	}
	code := b[0]
	if code >= c64Base && code <= c64Base+8 {
		_, rest, err := readC64(b)
		return rest, err
	}
	k := Kind(code)
	rest := b[1:]

	switch k {
	case KindEmpty, KindTrue, KindFalse, KindNone:
		return rest, nil

	case KindI8, KindU8:
		if len(rest) < 1 {
			return nil, ozerr.New(ozerr.Decode, "truncated fixed8")
		}
		return rest[1:], nil
	case KindI16, KindU16:
		if len(rest) < 2 {
			return nil, ozerr.New(ozerr.Decode, "truncated fixed16")
		}
		return rest[2:], nil
	case KindI32, KindU32:
		if len(rest) < 4 {
			return nil, ozerr.New(ozerr.Decode, "truncated fixed32")
		}
		return rest[4:], nil
	case KindI64, KindU64:
		if len(rest) < 8 {
			return nil, ozerr.New(ozerr.Decode, "truncated fixed64")
		}
		return rest[8:], nil
	case KindI128, KindU128:
		if len(rest) < 16 {
			return nil, ozerr.New(ozerr.Decode, "truncated fixed128")
		}
		return rest[16:], nil
	case KindF32:
		if len(rest) < 4 {
			return nil, ozerr.New(ozerr.Decode, "truncated f32")
		}
		return rest[4:], nil
	case KindF64:
		if len(rest) < 8 {
			return nil, ozerr.New(ozerr.Decode, "truncated f64")
		}
		return rest[8:], nil

	case KindAint:
		return skipAintAdec(rest, "aint")
	case KindAdec:
		r, err := skipAintAdec(rest, "adec")
		if err != nil {
			return nil, err
		}
		if len(r) < 4 {
			return nil, ozerr.New(ozerr.Decode, "truncated adec exponent")
		}
		return r[4:], nil
	case KindStr:
		n, r2, err := readC64(rest)
		if err != nil {
			return nil, err
		}
		if uint64(len(r2)) < n {
			return nil, ozerr.New(ozerr.Decode, "truncated str")
		}
		return r2[n:], nil

	case KindUsr:
		return skipUsr(rest)
	case KindBox, KindSome:
		return skipValue(rest)
	case KindABox:
		return skipABox(rest)

	case KindList, KindVek:
		return skipCounted(rest, 1)
	case KindMap, KindOrderedMap:
		return skipCounted(rest, 2)
	case KindTup2, KindTup3, KindTup4, KindTup5, KindTup6, KindTup7, KindTup8, KindTup9, KindTup10:
		arity, _ := IsTup(k)
		cur := rest
		var err error
		for i := 0; i < arity; i++ {
			cur, err = skipValue(cur)
			if err != nil {
				return nil, err
			}
		}
		return cur, nil

	case KindBU8:
		if len(rest) < 1 {
			return nil, ozerr.New(ozerr.Decode, "truncated bu8 len")
		}
		n := int(rest[0])
		rest = rest[1:]
		if len(rest) < n {
			return nil, ozerr.New(ozerr.Decode, "truncated bu8 payload")
		}
		return rest[n:], nil
	case KindBU16:
		return skipBUWidth(rest, 2)
	case KindBU32:
		return skipBUWidth(rest, 4)
	case KindBU64:
		return skipBUWidth(rest, 8)
	case KindBC64:
		n, r2, err := readC64(rest)
		if err != nil {
			return nil, err
		}
		if uint64(len(r2)) < n {
			return nil, ozerr.New(ozerr.Decode, "truncated bc64")
		}
		return r2[n:], nil
	}

	if n, ok := IsFixedArray(k); ok {
		if len(rest) < n {
			return nil, ozerr.New(ozerr.Decode, "truncated fixed array")
		}
		return rest[n:], nil
	}
	if width, arity, ok := IsUTup(k); ok {
		need := width * arity
		if len(rest) < need {
			return nil, ozerr.New(ozerr.Decode, "truncated utup")
		}
		return rest[need:], nil
	}

	return nil, ozerr.New(ozerr.Decode, "unknown kind code")
}

// skipAintAdec advances past the sign byte and C64-framed magnitude shared
// by Aint's and Adec's wire layout.
func skipAintAdec(rest []byte, what string) ([]byte, error) {
	if len(rest) < 1 {
		return nil, ozerr.New(ozerr.Decode, "truncated "+what+" sign")
	}
	rest = rest[1:]
	n, r2, err := readC64(rest)
	if err != nil {
		return nil, err
	}
	if uint64(len(r2)) < n {
		return nil, ozerr.New(ozerr.Decode, "truncated "+what+" magnitude")
	}
	return r2[n:], nil
}

func skipUsr(rest []byte) ([]byte, error) {
	if len(rest) < 2 {
		return nil, ozerr.New(ozerr.Decode, "truncated usr code")
	}
	rest = rest[2:]
	if len(rest) < 1 {
		return nil, ozerr.New(ozerr.Decode, "truncated usr label flag")
	}
	if rest[0] == 1 {
		rest = rest[1:]
		n, r2, err := readC64(rest)
		if err != nil {
			return nil, err
		}
		if uint64(len(r2)) < n {
			return nil, ozerr.New(ozerr.Decode, "truncated usr label")
		}
		rest = r2[n:]
	} else {
		rest = rest[1:]
	}
	if len(rest) < 1 {
		return nil, ozerr.New(ozerr.Decode, "truncated usr inner flag")
	}
	if rest[0] == 1 {
		rest = rest[1:]
		r2, err := skipValue(rest)
		if err != nil {
			return nil, err
		}
		rest = r2
	} else {
		rest = rest[1:]
	}
	return rest, nil
}

func skipABox(rest []byte) ([]byte, error) {
	r2, err := skipValue(rest)
	if err != nil {
		return nil, err
	}
	if len(r2) < 1 {
		return nil, ozerr.New(ozerr.Decode, "truncated abox style")
	}
	r2 = r2[1:]
	n, r3, err := readC64(r2)
	if err != nil {
		return nil, err
	}
	if uint64(len(r3)) < n {
		return nil, ozerr.New(ozerr.Decode, "truncated abox comment")
	}
	return r3[n:], nil
}

// skipCounted advances past a length-prefixed run of elemsPerEntry*n nested
// Daticles (elemsPerEntry is 1 for List/Vek, 2 for Map/OrderedMap key-value
// pairs), matching decodeSeq/decodeMap's count semantics.
func skipCounted(rest []byte, elemsPerEntry int) ([]byte, error) {
	if len(rest) < 8 {
		return nil, ozerr.New(ozerr.Decode, "truncated seq/map count")
	}
	n := binary.BigEndian.Uint64(rest)
	cur := rest[8:]
	total := n * uint64(elemsPerEntry)
	var err error
	for i := uint64(0); i < total; i++ {
		cur, err = skipValue(cur)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func skipBUWidth(rest []byte, width int) ([]byte, error) {
	if len(rest) < width {
		return nil, ozerr.New(ozerr.Decode, "truncated bu length prefix")
	}
	var n uint64
	for i := 0; i < width; i++ {
		n = (n << 8) | uint64(rest[i])
	}
	rest = rest[width:]
	if uint64(len(rest)) < n {
		return nil, ozerr.New(ozerr.Decode, "truncated bu payload")
	}
	return rest[n:], nil
}
