package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical text form of date values and date column names.
const DateLayout = "2006-01-02"

// Kind identifies the type held by a Value
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindDate
)

// String returns the lowercase kind name
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "null"
	}
}

// Value is a single table cell. The zero Value is null, which is distinct
// from an empty string.
type Value struct {
	kind Kind
	str  string
	num  float64
	date time.Time
}

// Null returns the missing-value marker
func Null() Value { return Value{} }

// String wraps a string cell
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number wraps a numeric cell. NaN is stored as null.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Null()
	}
	return Value{kind: KindNumber, num: f}
}

// Date wraps a date cell, truncated to midnight UTC
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Kind reports the type of the cell
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the cell is missing
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the numeric content and whether the cell is a number
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Time returns the date content and whether the cell is a date
func (v Value) Time() (time.Time, bool) {
	return v.date, v.kind == KindDate
}

// Text returns the string content and whether the cell is a string
func (v Value) Text() (string, bool) {
	return v.str, v.kind == KindString
}

// String renders the cell the way it is written to CSV: null is empty,
// numbers use the shortest exact representation, dates use DateLayout.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindDate:
		return v.date.Format(DateLayout)
	default:
		return ""
	}
}

// Equal reports whether two cells hold the same kind and content.
// Two nulls are equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindDate:
		return v.date.Equal(o.date)
	default:
		return true
	}
}

// Less orders two cells of the same kind. Cells of different kinds are
// ordered by kind so the result is total.
func (v Value) Less(o Value) bool {
	if v.kind != o.kind {
		return v.kind < o.kind
	}
	switch v.kind {
	case KindString:
		return v.str < o.str
	case KindNumber:
		return v.num < o.num
	case KindDate:
		return v.date.Before(o.date)
	default:
		return false
	}
}

// key is a comparable identity for use in maps
func (v Value) key() valueKey {
	switch v.kind {
	case KindDate:
		return valueKey{kind: v.kind, num: float64(v.date.Unix())}
	default:
		return valueKey{kind: v.kind, str: v.str, num: v.num}
	}
}

type valueKey struct {
	kind Kind
	str  string
	num  float64
}

// ValueSet is a membership set of cells
type ValueSet map[valueKey]struct{}

// NewValueSet builds a set from the given cells
func NewValueSet(values ...Value) ValueSet {
	set := make(ValueSet, len(values))
	for _, v := range values {
		set[v.key()] = struct{}{}
	}
	return set
}

// Contains reports whether v is a member of the set
func (s ValueSet) Contains(v Value) bool {
	_, ok := s[v.key()]
	return ok
}

// ParseNumber parses a numeric cell. Only plain decimal and scientific
// notation is accepted; thousands separators are not.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Coerce converts raw text into a cell of the requested kind. Empty text is
// null. Text that cannot be represented in the requested kind stays a string.
func Coerce(s string, kind Kind) Value {
	if s == "" {
		return Null()
	}
	switch kind {
	case KindNumber:
		if f, ok := ParseNumber(s); ok {
			return Number(f)
		}
	case KindDate:
		if t, err := time.Parse(DateLayout, strings.TrimSpace(s)); err == nil {
			return Date(t)
		}
	}
	return String(s)
}
