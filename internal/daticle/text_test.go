package daticle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func jdatRoundTrip(t *testing.T, v Value) {
	t.Helper()
	s := EncodeText(v, JDATFull())
	got, err := DecodeText(s)
	require.NoError(t, err, "encoded: %s", s)
	require.True(t, Equal(v, got), "encoded: %s decoded kind %s", s, got.Kind())
}

func TestTextJDATFullRoundTrip(t *testing.T) {
	jdatRoundTrip(t, Empty())
	jdatRoundTrip(t, Bool(true))
	jdatRoundTrip(t, None())
	jdatRoundTrip(t, U8(42))
	jdatRoundTrip(t, I64(-9000))
	jdatRoundTrip(t, Str(`hello "world"`))
	jdatRoundTrip(t, Box(Str("x")))
	jdatRoundTrip(t, Some(U8(1)))
	jdatRoundTrip(t, ABox(U8(5), CommentLine, "note"))
	jdatRoundTrip(t, List([]Value{U8(1), Str("a"), Bool(false)}))
	tup, _ := Tup([]Value{U8(1), Str("x")})
	jdatRoundTrip(t, tup)
	jdatRoundTrip(t, Map([]Pair{{Key: Str("a"), Val: U8(1)}}))
	jdatRoundTrip(t, OrderedMap([]Pair{{Key: Str("z"), Val: U8(1)}, {Key: Str("a"), Val: U8(2)}}))
	jdatRoundTrip(t, Usr(7, "deleted", nil))
	inner := U8(1)
	jdatRoundTrip(t, Usr(7, "deleted", &inner))
	jdatRoundTrip(t, BU([]byte{0xde, 0xad, 0xbe, 0xef}))
	arr, _ := Arr([]byte{1, 2, 3, 4})
	jdatRoundTrip(t, arr)
	ut, _ := UTup(4, []uint64{10, 20, 30})
	jdatRoundTrip(t, ut)
}

func TestTextJSONModeHidesKindiclesExceptAtomLogic(t *testing.T) {
	cfg := EncoderConfig{Mode: ModeJSON, ByteEncoding: Decimal}
	require.Equal(t, "(True)", EncodeText(Bool(true), cfg))
	require.Equal(t, "(Empty)", EncodeText(Empty(), cfg))
	require.Equal(t, `"hi"`, EncodeText(Str("hi"), cfg))
	require.Equal(t, "7", EncodeText(U8(7), cfg))
}

func TestTextMostScopeCollapsesStringsListsMaps(t *testing.T) {
	cfg := EncoderConfig{Mode: ModeDisplay, KindScope: ScopeMost}
	require.Equal(t, `"hi"`, EncodeText(Str("hi"), cfg))
	require.Equal(t, "(U8|7)", EncodeText(U8(7), cfg))
}
