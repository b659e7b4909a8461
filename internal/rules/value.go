package rules

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for date-typed operand values.
const DateLayout = "2006-01-02"

// ValueKind discriminates the comparable types an operand can resolve to.
type ValueKind int

const (
	// KindUnknown marks an operand that could not be decided (missing
	// stat). An unknown operand makes the whole rule non-matching for the
	// target; it is not an error and never substitutes a zero.
	KindUnknown ValueKind = iota
	KindNumber
	KindString
	KindDate
)

// Value is a resolved operand. The explicit Unknown state replaces the
// implicit nil-propagates-to-false behavior that made the zero-default rule
// for raw counters easy to misclassify.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
	Date time.Time
}

// Unknown returns the undecided value.
func Unknown() Value { return Value{Kind: KindUnknown} }

// Number wraps a float operand.
func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// String wraps a string operand.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Date wraps a date operand, truncated to UTC midnight.
func Date(t time.Time) Value {
	y, m, d := t.UTC().Date()
	return Value{Kind: KindDate, Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string into a date value.
func ParseDate(s string) (Value, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Unknown(), fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(t), nil
}

// IsKnown reports whether the operand resolved to a concrete value.
func (v Value) IsKnown() bool { return v.Kind != KindUnknown }

// Display renders the value for condition-value audit maps.
func (v Value) Display() string {
	switch v.Kind {
	case KindNumber:
		return fmt.Sprintf("%g", v.Num)
	case KindString:
		return v.Str
	case KindDate:
		return v.Date.Format(DateLayout)
	default:
		return ""
	}
}
