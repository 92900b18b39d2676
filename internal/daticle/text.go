package daticle

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dreamware/ozone/internal/ozerr"
)

// KindScope controls which kindicles ("(Kind|payload)" prefixes) the text
// encoder emits. Nothing never emits a kindicle (payload only); Everything
// always does; Some and Most progressively collapse the kindicle for kinds
// whose payload is self-evident (spec.md §4.2).
type KindScope int

const (
	ScopeNothing KindScope = iota
	ScopeSome
	ScopeMost
	ScopeEverything
)

// ByteEncoding selects how BU*/BC64/Arr* byte payloads render in text mode.
type ByteEncoding int

const (
	Base2x ByteEncoding = iota // hex-pair string, JDAT's default
	BinaryEnc
	Decimal
	Hex
	Octal
)

// TextMode selects the overall output dialect.
type TextMode int

const (
	ModeDisplay TextMode = iota // human-oriented, lossy
	ModeJSON                    // json.org syntax + AtomLogic kindicles, lossy
	ModeJDAT                    // full round-trip syntax
)

// EncoderConfig configures the text encoder (spec.md §4.2).
type EncoderConfig struct {
	Mode          TextMode
	KindScope     KindScope
	UpperCase     bool
	ByteEncoding  ByteEncoding
	MultiLine     bool
	TabString     string
	CommentOpen   string
	CommentClose  string
	UserKindNames map[uint16]string // overrides the rendered Usr kindicle name
}

// JDATFull is the canonical, fully round-tripping configuration: every
// kindicle is shown and bytes render as hex pairs, satisfying spec.md §8's
// "decode(encode(x, JDATFull)) == x" property.
func JDATFull() EncoderConfig {
	return EncoderConfig{
		Mode:         ModeJDAT,
		KindScope:    ScopeEverything,
		ByteEncoding: Base2x,
		CommentOpen:  "#",
		CommentClose: "#",
	}
}

// collapsesKindicle reports whether cfg's scope hides the kindicle for a
// value of kind k.
func collapsesKindicle(cfg EncoderConfig, k Kind) bool {
	switch cfg.KindScope {
	case ScopeEverything:
		return false
	case ScopeNothing:
		return true
	case ScopeSome:
		switch k {
		case KindEmpty, KindTrue, KindFalse, KindNone:
			return true
		}
		return false
	case ScopeMost:
		switch k {
		case KindEmpty, KindTrue, KindFalse, KindNone, KindStr, KindList, KindMap, KindOrderedMap:
			return true
		}
		return false
	}
	return false
}

func kindicleName(cfg EncoderConfig, v Value) string {
	if v.kind == KindUsr && cfg.UserKindNames != nil {
		if n, ok := cfg.UserKindNames[v.usrCode]; ok {
			return n
		}
	}
	name := v.kind.String()
	if cfg.UpperCase {
		return strings.ToUpper(name)
	}
	return name
}

// EncodeText renders v according to cfg. JSON mode never emits a kindicle
// except for AtomLogic values (spec.md §4.2); all other modes follow cfg's
// KindScope.
func EncodeText(v Value, cfg EncoderConfig) string {
	var b strings.Builder
	writeValue(&b, v, cfg)
	return b.String()
}

func writeValue(b *strings.Builder, v Value, cfg EncoderConfig) {
	isAtomLogic := v.kind == KindEmpty || v.kind == KindTrue || v.kind == KindFalse || v.kind == KindNone
	showKindicle := !collapsesKindicle(cfg, v.kind)
	if cfg.Mode == ModeJSON {
		showKindicle = isAtomLogic
	}

	if !showKindicle {
		writePayload(b, v, cfg)
		return
	}
	b.WriteByte('(')
	b.WriteString(kindicleName(cfg, v))
	if hasPayload(v.kind) {
		b.WriteByte('|')
		writePayload(b, v, cfg)
	}
	b.WriteByte(')')
}

func hasPayload(k Kind) bool {
	switch k {
	case KindEmpty, KindTrue, KindFalse, KindNone:
		return false
	}
	return true
}

func writePayload(b *strings.Builder, v Value, cfg EncoderConfig) {
	switch v.kind {
	case KindEmpty, KindTrue, KindFalse, KindNone:
		// no payload
	case KindI8, KindI16, KindI32, KindI64:
		b.WriteString(strconv.FormatInt(v.AsI64(), 10))
	case KindU8, KindU16, KindU32, KindU64, KindC64:
		b.WriteString(strconv.FormatUint(v.AsU64(), 10))
	case KindI128, KindU128:
		bi := new(big.Int).SetBytes(v.raw)
		b.WriteString(bi.String())
	case KindF32, KindF64:
		b.WriteString(strconv.FormatFloat(v.AsF64(), 'g', -1, 64))
	case KindAint:
		b.WriteString(v.big.String())
	case KindAdec:
		b.WriteString(v.dec.String())
	case KindStr:
		b.WriteString(quoteStr(v.str))
	case KindUsr:
		b.WriteString(strconv.FormatUint(uint64(v.usrCode), 10))
		if v.str != "" {
			b.WriteByte(':')
			b.WriteString(quoteStr(v.str))
		}
		if inner := v.Inner(); inner != nil {
			b.WriteByte('=')
			writeValue(b, *inner, cfg)
		}
	case KindBox, KindSome:
		writeValue(b, v.elems[0], cfg)
	case KindABox:
		writeValue(b, v.elems[0], cfg)
		cOpen, cClose := cfg.CommentOpen, cfg.CommentClose
		if v.cstyle == CommentBlock && cfg.Mode == ModeJDAT {
			cOpen, cClose = "*", "*"
		}
		if cOpen == "" {
			cOpen, cClose = "#", "#"
		}
		b.WriteString(cOpen)
		b.WriteString(v.str)
		b.WriteString(cClose)
	case KindList, KindVek:
		b.WriteByte('[')
		for i, e := range v.elems {
			if i > 0 {
				b.WriteByte(',')
			}
			writeValue(b, e, cfg)
		}
		if cfg.Mode == ModeJDAT && len(v.elems) > 0 {
			b.WriteByte(',')
		}
		b.WriteByte(']')
	case KindMap, KindOrderedMap:
		b.WriteByte('{')
		pairs := v.Pairs()
		for i, p := range pairs {
			if i > 0 {
				b.WriteByte(',')
			}
			writeValue(b, p.Key, cfg)
			b.WriteByte(':')
			writeValue(b, p.Val, cfg)
		}
		if cfg.Mode == ModeJDAT && len(pairs) > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('}')
	case KindTup2, KindTup3, KindTup4, KindTup5, KindTup6, KindTup7, KindTup8, KindTup9, KindTup10:
		b.WriteByte('[')
		for i, e := range v.elems {
			if i > 0 {
				b.WriteByte(',')
			}
			writeValue(b, e, cfg)
		}
		b.WriteByte(']')
	case KindBU8, KindBU16, KindBU32, KindBU64, KindBC64:
		writeBytes(b, v.raw, cfg)
	default:
		if _, ok := IsFixedArray(v.kind); ok {
			writeBytes(b, v.raw, cfg)
			return
		}
		if _, _, ok := IsUTup(v.kind); ok {
			b.WriteByte('[')
			for i, u := range v.utup {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteString(strconv.FormatUint(u, 10))
			}
			b.WriteByte(']')
			return
		}
		panic("daticle: unknown kind in writePayload")
	}
}

func writeBytes(b *strings.Builder, raw []byte, cfg EncoderConfig) {
	switch cfg.ByteEncoding {
	case Decimal:
		b.WriteByte('[')
		for i, x := range raw {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(int(x)))
		}
		b.WriteByte(']')
	case Hex:
		b.WriteString("0x")
		b.WriteString(fmt.Sprintf("%x", raw))
	case Octal:
		b.WriteString("0o")
		for _, x := range raw {
			b.WriteString(strconv.FormatInt(int64(x), 8))
		}
	default: // Base2x, BinaryEnc
		b.WriteString(fmt.Sprintf("%x", raw))
	}
}

func quoteStr(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// --- Decoder ---

// DecodeText parses a single Daticle from its canonical "(kindicle|payload)"
// textual form (spec.md §4.2). It accepts the full JDAT grammar regardless
// of what mode produced the text, per the "decoder must accept the full
// format" rule for lossy modes.
func DecodeText(s string) (Value, error) {
	s = strings.TrimSpace(s)
	v, rest, err := parseValue(s)
	if err != nil {
		return Value{}, err
	}
	if strings.TrimSpace(rest) != "" {
		return Value{}, ozerr.New(ozerr.Decode, "trailing text after value")
	}
	return v, nil
}

func parseValue(s string) (Value, string, error) {
	s = strings.TrimLeft(s, " \t\n\r")
	if len(s) == 0 || s[0] != '(' {
		return Value{}, "", ozerr.New(ozerr.Decode, "expected '('")
	}
	end, err := findMatching(s, 0)
	if err != nil {
		return Value{}, "", err
	}
	inner := s[1:end]
	rest := s[end+1:]

	bar := topLevelIndex(inner, '|')
	var name, payload string
	hasPayload := bar >= 0
	if hasPayload {
		name, payload = inner[:bar], inner[bar+1:]
	} else {
		name = inner
	}
	k, ok := kindByName(name)
	if !ok {
		return Value{}, "", ozerr.New(ozerr.Decode, "unknown kindicle "+name)
	}
	v, err := parsePayload(k, payload, hasPayload)
	if err != nil {
		return Value{}, "", err
	}
	return v, rest, nil
}

func kindByName(name string) (Kind, bool) {
	name = strings.TrimSpace(name)
	for k := Kind(0); k < 114; k++ {
		if strings.EqualFold(k.String(), name) {
			return k, true
		}
	}
	return 0, false
}

func parsePayload(k Kind, p string, has bool) (Value, error) {
	switch k {
	case KindEmpty:
		return Empty(), nil
	case KindTrue:
		return Bool(true), nil
	case KindFalse:
		return Bool(false), nil
	case KindNone:
		return None(), nil
	}
	if !has {
		return Value{}, ozerr.New(ozerr.Decode, "missing payload for "+k.String())
	}
	p = strings.TrimSpace(p)
	switch k {
	case KindI8, KindI16, KindI32, KindI64:
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return Value{}, ozerr.Wrap(ozerr.Decode, err, "int payload")
		}
		return Value{kind: k, num: uint64(n)}, nil
	case KindU8, KindU16, KindU32, KindU64, KindC64:
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return Value{}, ozerr.Wrap(ozerr.Decode, err, "uint payload")
		}
		return Value{kind: k, num: n}, nil
	case KindI128, KindU128:
		bi, ok := new(big.Int).SetString(p, 10)
		if !ok {
			return Value{}, ozerr.New(ozerr.Decode, "bad 128-bit literal")
		}
		raw := make([]byte, 16)
		bi.FillBytes(raw)
		return Value{kind: k, raw: raw}, nil
	case KindF32:
		f, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return Value{}, ozerr.Wrap(ozerr.Decode, err, "f32 payload")
		}
		return F32(float32(f)), nil
	case KindF64:
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return Value{}, ozerr.Wrap(ozerr.Decode, err, "f64 payload")
		}
		return F64(f), nil
	case KindAint:
		bi, ok := new(big.Int).SetString(p, 10)
		if !ok {
			return Value{}, ozerr.New(ozerr.Decode, "bad Aint literal")
		}
		return Aint(bi), nil
	case KindAdec:
		d, err := decimal.NewFromString(p)
		if err != nil {
			return Value{}, ozerr.Wrap(ozerr.Decode, err, "bad Adec literal")
		}
		return Adec(d), nil
	case KindStr:
		s, err := unquoteStr(p)
		if err != nil {
			return Value{}, err
		}
		return Str(s), nil
	case KindUsr:
		return parseUsrPayload(p)
	case KindBox:
		child, rest, err := parseValue(p)
		if err != nil {
			return Value{}, err
		}
		if strings.TrimSpace(rest) != "" {
			return Value{}, ozerr.New(ozerr.Decode, "trailing text in Box payload")
		}
		return Box(child), nil
	case KindSome:
		child, rest, err := parseValue(p)
		if err != nil {
			return Value{}, err
		}
		if strings.TrimSpace(rest) != "" {
			return Value{}, ozerr.New(ozerr.Decode, "trailing text in Some payload")
		}
		return Some(child), nil
	case KindABox:
		return parseABoxPayload(p)
	case KindList, KindVek:
		return parseSeqPayload(k, p)
	case KindMap, KindOrderedMap:
		return parseMapPayload(k, p)
	case KindTup2, KindTup3, KindTup4, KindTup5, KindTup6, KindTup7, KindTup8, KindTup9, KindTup10:
		arity, _ := IsTup(k)
		elems, err := parseBracketedValues(p)
		if err != nil {
			return Value{}, err
		}
		if len(elems) != arity {
			return Value{}, ozerr.New(ozerr.Decode, "tuple arity mismatch")
		}
		return Value{kind: k, elems: elems}, nil
	case KindBU8, KindBU16, KindBU32, KindBU64, KindBC64:
		raw, err := parseBytes(p)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: k, raw: raw}, nil
	}
	if _, ok := IsFixedArray(k); ok {
		raw, err := parseBytes(p)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: k, raw: raw}, nil
	}
	if width, arity, ok := IsUTup(k); ok {
		_ = width
		nums, err := parseBracketedNums(p)
		if err != nil {
			return Value{}, err
		}
		if len(nums) != arity {
			return Value{}, ozerr.New(ozerr.Decode, "utup arity mismatch")
		}
		return Value{kind: k, utup: nums}, nil
	}
	return Value{}, ozerr.New(ozerr.Decode, "unsupported kind in decode")
}

func parseUsrPayload(p string) (Value, error) {
	eq := topLevelIndex(p, '=')
	head := p
	var innerText string
	hasInner := false
	if eq >= 0 {
		head, innerText = p[:eq], p[eq+1:]
		hasInner = true
	}
	colon := topLevelIndex(head, ':')
	codeStr := head
	var label string
	if colon >= 0 {
		codeStr = head[:colon]
		l, err := unquoteStr(head[colon+1:])
		if err != nil {
			return Value{}, err
		}
		label = l
	}
	code, err := strconv.ParseUint(strings.TrimSpace(codeStr), 10, 16)
	if err != nil {
		return Value{}, ozerr.Wrap(ozerr.Decode, err, "usr code")
	}
	var inner *Value
	if hasInner {
		v, rest, err := parseValue(innerText)
		if err != nil {
			return Value{}, err
		}
		if strings.TrimSpace(rest) != "" {
			return Value{}, ozerr.New(ozerr.Decode, "trailing text in Usr inner")
		}
		inner = &v
	}
	return Usr(uint16(code), label, inner), nil
}

func parseABoxPayload(p string) (Value, error) {
	child, rest, err := parseValue(p)
	if err != nil {
		return Value{}, err
	}
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 {
		return Value{}, ozerr.New(ozerr.Decode, "missing ABox comment")
	}
	delim := rest[0]
	closeIdx := strings.IndexByte(rest[1:], delim)
	if closeIdx < 0 {
		return Value{}, ozerr.New(ozerr.Decode, "unterminated ABox comment")
	}
	comment := rest[1 : 1+closeIdx]
	style := CommentLine
	if delim == '*' {
		style = CommentBlock
	}
	return ABox(child, style, comment), nil
}

func parseSeqPayload(k Kind, p string) (Value, error) {
	elems, err := parseBracketedValues(p)
	if err != nil {
		return Value{}, err
	}
	if k == KindVek {
		v, ok := Vek(elems)
		if !ok {
			return Value{}, ozerr.New(ozerr.Decode, "Vek elements not homogeneous")
		}
		return v, nil
	}
	return List(elems), nil
}

func parseMapPayload(k Kind, p string) (Value, error) {
	p = strings.TrimSpace(p)
	if len(p) < 2 || p[0] != '{' || p[len(p)-1] != '}' {
		return Value{}, ozerr.New(ozerr.Decode, "expected '{...}'")
	}
	body := p[1 : len(p)-1]
	parts := splitTopLevel(body, ',')
	var pairs []Pair
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		colon := topLevelIndex(part, ':')
		if colon < 0 {
			return Value{}, ozerr.New(ozerr.Decode, "expected 'key:value'")
		}
		key, _, err := parseValue(part[:colon])
		if err != nil {
			return Value{}, err
		}
		val, rest, err := parseValue(part[colon+1:])
		if err != nil {
			return Value{}, err
		}
		if strings.TrimSpace(rest) != "" {
			return Value{}, ozerr.New(ozerr.Decode, "trailing text in map entry")
		}
		pairs = append(pairs, Pair{Key: key, Val: val})
	}
	if k == KindOrderedMap {
		return OrderedMap(pairs), nil
	}
	return Map(pairs), nil
}

func parseBracketedValues(p string) ([]Value, error) {
	p = strings.TrimSpace(p)
	if len(p) < 2 || p[0] != '[' || p[len(p)-1] != ']' {
		return nil, ozerr.New(ozerr.Decode, "expected '[...]'")
	}
	body := p[1 : len(p)-1]
	parts := splitTopLevel(body, ',')
	var out []Value
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, rest, err := parseValue(part)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(rest) != "" {
			return nil, ozerr.New(ozerr.Decode, "trailing text in element")
		}
		out = append(out, v)
	}
	return out, nil
}

func parseBracketedNums(p string) ([]uint64, error) {
	p = strings.TrimSpace(p)
	if len(p) < 2 || p[0] != '[' || p[len(p)-1] != ']' {
		return nil, ozerr.New(ozerr.Decode, "expected '[...]'")
	}
	body := p[1 : len(p)-1]
	parts := splitTopLevel(body, ',')
	var out []uint64
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, ozerr.Wrap(ozerr.Decode, err, "numeric literal")
		}
		out = append(out, n)
	}
	return out, nil
}

func parseBytes(p string) ([]byte, error) {
	p = strings.TrimSpace(p)
	if strings.HasPrefix(p, "[") {
		nums, err := parseBracketedNums(p)
		if err != nil {
			return nil, err
		}
		raw := make([]byte, len(nums))
		for i, n := range nums {
			raw[i] = byte(n)
		}
		return raw, nil
	}
	p = strings.TrimPrefix(p, "0x")
	p = strings.TrimPrefix(p, "0X")
	if len(p)%2 != 0 {
		return nil, ozerr.New(ozerr.Decode, "odd-length hex byte literal")
	}
	raw := make([]byte, len(p)/2)
	for i := range raw {
		n, err := strconv.ParseUint(p[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, ozerr.Wrap(ozerr.Decode, err, "hex byte literal")
		}
		raw[i] = byte(n)
	}
	return raw, nil
}

func unquoteStr(p string) (string, error) {
	p = strings.TrimSpace(p)
	if len(p) < 2 || p[0] != '"' || p[len(p)-1] != '"' {
		return "", ozerr.New(ozerr.Decode, "expected quoted string")
	}
	body := p[1 : len(p)-1]
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
			switch body[i] {
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			default:
				b.WriteByte(body[i])
			}
			continue
		}
		b.WriteByte(body[i])
	}
	return b.String(), nil
}

// findMatching returns the index of the bracket matching s[open], honoring
// nested brackets and quoted strings.
func findMatching(s string, open int) (int, error) {
	openCh := s[open]
	var closeCh byte
	switch openCh {
	case '(':
		closeCh = ')'
	case '[':
		closeCh = ']'
	case '{':
		closeCh = '}'
	default:
		return 0, ozerr.New(ozerr.Decode, "not an opening bracket")
	}
	depth := 0
	inStr := false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inStr {
			if c == '\\' {
				i++
			} else if c == '"' {
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, ozerr.New(ozerr.Decode, "unmatched bracket")
}

// topLevelIndex finds the first occurrence of sep outside any nested
// bracket/quote, or -1 if none.
func topLevelIndex(s string, sep byte) int {
	depth := 0
	inStr := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			if c == '\\' {
				i++
			} else if c == '"' {
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		default:
			if c == sep && depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits s on sep at bracket/quote depth 0, skipping empty
// trailing fields so JDAT's permitted trailing commas parse cleanly.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	inStr := false
	last := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			if c == '\\' {
				i++
			} else if c == '"' {
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		default:
			if c == sep && depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	if last < len(s) {
		parts = append(parts, s[last:])
	}
	return parts
}
