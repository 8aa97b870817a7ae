package feature

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// IDAttr is the node identifier attribute. It is always an integer.
const IDAttr = "ID"

// RawAttr is one attribute as read from the document.
type RawAttr struct {
	Name  string
	Value string
}

// Coerce converts raw text for attribute name in category c.
//
// ID is always an integer. A declared feature is parsed as an integer when
// its flag is true and as a real when false, keeping the raw string when the
// real parse fails. Undeclared attributes stay raw strings.
func Coerce(r *Registry, c Category, name, raw string) (Value, error) {
	if name == IDAttr {
		id, err := ParseInt(raw)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %s=%q", ErrValueFormat, name, raw)
		}
		return Int(id), nil
	}

	d, ok := r.Lookup(c, name)
	if !ok {
		return Text(raw), nil
	}
	isInt, err := d.Integer()
	if err != nil {
		return Value{}, err
	}
	if isInt {
		n, err := ParseInt(raw)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %s %s=%q is not an integer", ErrValueFormat, c, name, raw)
		}
		return Int(n), nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return Text(raw), nil
	}
	return Real(f), nil
}

// CoerceAll coerces every attribute of one element, keeping document order.
func CoerceAll(r *Registry, c Category, attrs []RawAttr) (*Attributes, error) {
	out := NewAttributes()
	for _, a := range attrs {
		v, err := Coerce(r, c, a.Name, a.Value)
		if err != nil {
			return nil, err
		}
		out.Set(a.Name, v)
	}
	return out, nil
}

// ParseInt parses integer text. Integral real text such as "3.0" is accepted.
func ParseInt(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%q is not integral", raw)
	}
	return int64(f), nil
}
