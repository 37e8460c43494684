// Package frame provides the row-ordered, column-named table used by every
// stage of the dataset build.
package frame

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies the dynamic type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindText
	KindBool
)

// Value is a nullable cell. The zero Value is null.
type Value struct {
	kind Kind
	num  float64
	text string
	b    bool
}

// Null is the undefined cell.
var Null = Value{}

// Num returns a numeric cell. NaN is stored as Null.
func Num(f float64) Value {
	if math.IsNaN(f) {
		return Null
	}
	return Value{kind: KindNumber, num: f}
}

// Int returns a numeric cell holding an integer.
func Int(i int) Value {
	return Value{kind: KindNumber, num: float64(i)}
}

// Str returns a text cell.
func Str(s string) Value {
	return Value{kind: KindText, text: s}
}

// Bool returns a boolean cell.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Kind reports the cell type.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the cell is undefined.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float coerces the cell to a number. Booleans map to 0/1 and text is
// parsed; anything else reports false.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Int coerces the cell to an integer. Fractional numbers report false.
func (v Value) Int() (int, bool) {
	f, ok := v.Float()
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// Bool returns the boolean payload and whether the cell is a boolean.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// String renders the cell the way it is written to CSV. Null renders empty.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.text
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return ""
}

// Key returns a canonical form used for joins and grouping, so that 7, 7.0
// and "7" address the same key.
func (v Value) Key() string {
	switch v.kind {
	case KindNumber:
		return "n:" + strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindText:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64); err == nil && !math.IsNaN(f) {
			return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
		}
		return "s:" + v.text
	case KindBool:
		if v.b {
			return "b:1"
		}
		return "b:0"
	}
	return "\x00"
}

// Compare orders two cells: nulls sort last, numbers numerically, booleans
// as numbers, text lexically after numbers.
func Compare(a, b Value) int {
	if a.IsNull() || b.IsNull() {
		switch {
		case a.IsNull() && b.IsNull():
			return 0
		case a.IsNull():
			return 1
		default:
			return -1
		}
	}
	af, aok := numeric(a)
	bf, bok := numeric(b)
	switch {
	case aok && bok:
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case aok:
		return -1
	case bok:
		return 1
	}
	return strings.Compare(a.text, b.text)
}

func numeric(v Value) (float64, bool) {
	if v.kind == KindText {
		return 0, false
	}
	return v.Float()
}

// Infer parses a raw CSV cell: empty is null, numbers become Number,
// true/false become Bool and everything else stays text.
func Infer(raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Null
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Num(f)
	}
	switch strings.ToLower(s) {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	case "null", "none":
		return Null
	}
	return Str(raw)
}
