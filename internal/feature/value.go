// Package feature holds typed attribute values, the per-category feature
// declaration registry and the coercion rules that turn document text into values.
package feature

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

// Value kinds.
const (
	KindNone Kind = iota
	KindInt
	KindReal
	KindText
	KindPoints
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInt:
		return "int"
	case KindReal:
		return "real"
	case KindText:
		return "text"
	case KindPoints:
		return "points"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Point is one coordinate tuple of a region of interest.
type Point []float64

// Value is a tagged attribute value. The zero Value is None.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	pts  []Point
}

// None returns the explicit absence marker.
func None() Value { return Value{} }

// Int returns an integer value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Real returns a real value.
func Real(v float64) Value { return Value{kind: KindReal, f: v} }

// Text returns a string value.
func Text(v string) Value { return Value{kind: KindText, s: v} }

// Points returns a point-sequence value.
func Points(pts []Point) Value { return Value{kind: KindPoints, pts: pts} }

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNone reports whether v is the absence marker.
func (v Value) IsNone() bool { return v.kind == KindNone }

// AsInt returns the integer held by v.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsReal returns the real held by v.
func (v Value) AsReal() (float64, bool) { return v.f, v.kind == KindReal }

// AsText returns the string held by v.
func (v Value) AsText() (string, bool) { return v.s, v.kind == KindText }

// AsPoints returns the point sequence held by v.
func (v Value) AsPoints() ([]Point, bool) { return v.pts, v.kind == KindPoints }

// Float returns a numeric view of Int and Real values.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindReal:
		return v.f, true
	default:
		return 0, false
	}
}

// Equal compares two values. NaN equals NaN.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNone:
		return true
	case KindInt:
		return v.i == o.i
	case KindReal:
		return floatEqual(v.f, o.f)
	case KindText:
		return v.s == o.s
	case KindPoints:
		if len(v.pts) != len(o.pts) {
			return false
		}
		for i := range v.pts {
			if len(v.pts[i]) != len(o.pts[i]) {
				return false
			}
			for j := range v.pts[i] {
				if !floatEqual(v.pts[i][j], o.pts[i][j]) {
					return false
				}
			}
		}
		return true
	}
	return false
}

func floatEqual(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return a == b
}

// String renders v as canonical document text. Points render as their
// flattened coordinates, None as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindReal:
		return FormatFloat(v.f)
	case KindText:
		return v.s
	case KindPoints:
		return FormatPoints(v.pts)
	default:
		return ""
	}
}

// FormatFloat renders f as shortest round-trip decimal text, with the fixed
// tokens NaN, Infinity and -Infinity.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// FormatPoints flattens pts into whitespace-separated coordinate text.
func FormatPoints(pts []Point) string {
	var b strings.Builder
	for _, p := range pts {
		for _, c := range p {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(FormatFloat(c))
		}
	}
	return b.String()
}
