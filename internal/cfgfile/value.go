package cfgfile

import (
	"math"
	"strconv"
	"strings"
)

type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindDouble
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is a single property value. Exactly one of the payload fields is
// meaningful, selected by kind. The zero Value is never stored.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
}

func String(s string) Value  { return Value{kind: KindString, s: s} }
func Int(n int64) Value      { return Value{kind: KindInt, i: n} }
func Double(f float64) Value { return Value{kind: KindDouble, f: f} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsValid() bool { return v.kind != KindInvalid }

func (v Value) AsString() (string, bool)  { return v.s, v.kind == KindString }
func (v Value) AsInt() (int64, bool)      { return v.i, v.kind == KindInt }
func (v Value) AsDouble() (float64, bool) { return v.f, v.kind == KindDouble }
func (v Value) AsBool() (bool, bool)      { return v.b, v.kind == KindBool }

// Text is the natural textual form of the value: strings verbatim, ints
// without a decimal point, doubles always with one.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindDouble:
		return FormatDouble(v.f)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// Equal reports value equality including the tag. NaN doubles compare equal
// to each other.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == o.s
	case KindInt:
		return v.i == o.i
	case KindDouble:
		if math.IsNaN(v.f) && math.IsNaN(o.f) {
			return true
		}
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	default:
		return true
	}
}

func (v Value) GoString() string {
	if v.kind == KindString {
		return strconv.Quote(v.s)
	}
	return v.Text()
}

// FormatDouble renders f so that the parser reads it back as a double.
// Magnitudes in [1e-3, 1e7) use plain decimal and everything else scientific
// notation. The mantissa always carries a '.'.
func FormatDouble(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	abs := math.Abs(f)
	if abs == 0 || (abs >= 1e-3 && abs < 1e7) {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	mant, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}
	return mant + "e" + exp
}
