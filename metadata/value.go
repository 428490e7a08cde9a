// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metadata

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// Value is a typed attribute or parameter value. A value carries exactly one
// primitive, or a one-level homogeneous array of primitives, or a map with
// string keys and primitive values. Maps are accepted in model and flow
// parameters but are not allowed as tag values.
type Value struct {
	Type BasicType

	Boolean  bool
	Integer  int64
	Float    float64
	Decimal  decimal.Decimal
	String   string
	Date     Date
	Datetime time.Time

	// Items and ElemType are set for ARRAY values only.
	Items    []Value
	ElemType BasicType

	// Map is set for MAP values only.
	Map map[string]Value
}

// BoolValue makes a BOOLEAN value.
func BoolValue(v bool) Value { return Value{Type: BasicTypeBoolean, Boolean: v} }

// IntValue makes an INTEGER value.
func IntValue(v int64) Value { return Value{Type: BasicTypeInteger, Integer: v} }

// FloatValue makes a FLOAT value.
func FloatValue(v float64) Value { return Value{Type: BasicTypeFloat, Float: v} }

// DecimalValue makes a DECIMAL value.
func DecimalValue(v decimal.Decimal) Value { return Value{Type: BasicTypeDecimal, Decimal: v} }

// StringValue makes a STRING value.
func StringValue(v string) Value { return Value{Type: BasicTypeString, String: v} }

// DateValue makes a DATE value.
func DateValue(v Date) Value { return Value{Type: BasicTypeDate, Date: v} }

// DatetimeValue makes a DATETIME value, normalised to UTC.
func DatetimeValue(v time.Time) Value {
	return Value{Type: BasicTypeDatetime, Datetime: v.UTC()}
}

// ArrayValue makes a one-level ARRAY value of the given element type.
func ArrayValue(elemType BasicType, items ...Value) Value {
	return Value{Type: BasicTypeArray, ElemType: elemType, Items: items}
}

// Verify checks the structural rules for a value: a recognized primitive
// type, homogeneous one-level arrays and primitive-valued maps.
func (v Value) Verify() error {
	switch {
	case v.Type.Primitive():
		return nil

	case v.Type == BasicTypeArray:
		if !v.ElemType.Primitive() {
			return ErrInvalidValue.New("array element type must be primitive, got %v", v.ElemType)
		}
		for i, item := range v.Items {
			if item.Type != v.ElemType {
				return ErrInvalidValue.New("array item [%d] has type %v, expected %v", i, item.Type, v.ElemType)
			}
		}
		return nil

	case v.Type == BasicTypeMap:
		for key, item := range v.Map {
			if !item.Type.Primitive() {
				return ErrInvalidValue.New("map entry %q must hold a primitive value, got %v", key, item.Type)
			}
		}
		return nil

	default:
		return ErrInvalidValue.New("value type not set")
	}
}

// Equal compares two values. DECIMAL comparison is numerical. FLOAT
// comparison is exact bit-for-bit equality and is unreliable across encoders.
func (v Value) Equal(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case BasicTypeBoolean:
		return v.Boolean == other.Boolean
	case BasicTypeInteger:
		return v.Integer == other.Integer
	case BasicTypeFloat:
		return v.Float == other.Float
	case BasicTypeDecimal:
		return v.Decimal.Equal(other.Decimal)
	case BasicTypeString:
		return v.String == other.String
	case BasicTypeDate:
		return v.Date == other.Date
	case BasicTypeDatetime:
		return v.Datetime.Equal(other.Datetime)
	case BasicTypeArray:
		if v.ElemType != other.ElemType || len(v.Items) != len(other.Items) {
			return false
		}
		for i := range v.Items {
			if !v.Items[i].Equal(other.Items[i]) {
				return false
			}
		}
		return true
	case BasicTypeMap:
		if len(v.Map) != len(other.Map) {
			return false
		}
		for key, item := range v.Map {
			otherItem, ok := other.Map[key]
			if !ok || !item.Equal(otherItem) {
				return false
			}
		}
		return true
	}
	return false
}

// canonicalDecimal matches the stored form of decimals: optional sign, no
// exponent, no leading zeros, no trailing dot.
var canonicalDecimal = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?$`)

// ParseDecimal parses the canonical text encoding of a DECIMAL value.
// Non-canonical forms such as "1e5", "01.2" or "1." are rejected.
func ParseDecimal(s string) (decimal.Decimal, error) {
	if !canonicalDecimal.MatchString(s) {
		return decimal.Decimal{}, ErrInvalidValue.New("non-canonical decimal %q", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ErrInvalidValue.Wrap(err)
	}
	return d, nil
}

// Date is an ISO local date with no time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses an ISO local date. Offsets, time parts and unpadded
// components are rejected.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil || t.Format("2006-01-02") != s {
		return Date{}, ErrInvalidValue.New("invalid date %q", s)
	}
	return DateOf(t), nil
}

// DateOf truncates a time to its date in the time's own location.
func DateOf(t time.Time) Date {
	year, month, day := t.Date()
	return Date{Year: year, Month: month, Day: day}
}

// String formats the date as ISO.
func (d Date) String() string {
	return d.Time().Format("2006-01-02")
}

// Time returns midnight UTC on the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Before reports whether d is earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// datetime layouts accepted on input, longest first.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseDatetime parses an ISO datetime with optional fraction and optional
// offset. The result is normalised to UTC; inputs with no offset are UTC.
func ParseDatetime(s string) (time.Time, error) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidValue.New("invalid datetime %q", s)
}

// FormatDatetime writes the stored form of a DATETIME: RFC 3339 in UTC with
// nanosecond precision as needed.
func FormatDatetime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
