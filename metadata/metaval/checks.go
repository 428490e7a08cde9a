// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metaval

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tracdap.io/tracmeta/metadata"
)

// MaxLabelLength bounds human-readable labels and descriptions.
const MaxLabelLength = 4096

// Identifier checks the attribute/field/node name form.
func Identifier(v *Context, s string) {
	if !metadata.IsIdentifier(s) {
		v.Fail("[%s] is not a valid identifier", s)
	}
}

// NotTracReserved rejects names owned by the platform: the trac_ prefix in
// any case, and leading underscores.
func NotTracReserved(v *Context, s string) {
	if metadata.IsReservedAttrName(s) {
		v.Fail("[%s] is a reserved name and cannot be set directly", s)
	}
}

// UUID requires a non-nil object id.
func UUID(v *Context, id uuid.UUID) {
	if id == uuid.Nil {
		v.Fail("an object id is required")
	}
}

// UUIDString requires an RFC 4122 form id.
func UUIDString(v *Context, s string) {
	if _, err := uuid.Parse(s); err != nil {
		v.Fail("[%s] is not a valid object id", s)
	}
}

// ISODate checks ISO local date form with no offset.
func ISODate(v *Context, s string) {
	if _, err := metadata.ParseDate(s); err != nil {
		v.Fail("[%s] is not a valid date", s)
	}
}

// ISODatetime checks ISO datetime form, offset optional.
func ISODatetime(v *Context, s string) {
	if _, err := metadata.ParseDatetime(s); err != nil {
		v.Fail("[%s] is not a valid datetime", s)
	}
}

// Decimal checks canonical decimal text form.
func Decimal(v *Context, s string) {
	if _, err := metadata.ParseDecimal(s); err != nil {
		v.Fail("[%s] is not a valid decimal", s)
	}
}

// LabelLengthLimit bounds free-text labels.
func LabelLengthLimit(v *Context, s string) {
	if len(s) > MaxLabelLength {
		v.Fail("label is too long (%d characters, limit %d)", len(s), MaxLabelLength)
	}
}

// MimeType checks the basic type/subtype form.
func MimeType(v *Context, s string) {
	main, sub, ok := strings.Cut(s, "/")
	if !ok || main == "" || sub == "" || strings.ContainsAny(s, " \t") {
		v.Fail("[%s] is not a valid mime type", s)
	}
}

// FileName rejects names that cannot round-trip through common filesystems.
func FileName(v *Context, s string) {
	switch {
	case s == "" || s == "." || s == "..":
		v.Fail("[%s] is not a valid file name", s)
	case strings.ContainsAny(s, `/\:*?"<>|`):
		v.Fail("file name [%s] contains illegal characters", s)
	case hasControlChars(s):
		v.Fail("file name [%s] contains control characters", s)
	case strings.HasSuffix(s, " ") || strings.HasSuffix(s, "."):
		v.Fail("file name [%s] may not end with a space or dot", s)
	}
}

// RelativePath rejects absolute paths, parent traversal, control characters
// and inconsistent separators.
func RelativePath(v *Context, s string) {
	switch {
	case s == "":
		v.Fail("a path is required")
	case strings.HasPrefix(s, "/") || strings.HasPrefix(s, `\`):
		v.Fail("path [%s] must be relative", s)
	case len(s) > 1 && s[1] == ':':
		v.Fail("path [%s] must be relative", s)
	case strings.Contains(s, `\`):
		v.Fail("path [%s] must use forward slashes", s)
	case hasControlChars(s):
		v.Fail("path [%s] contains control characters", s)
	default:
		for _, segment := range strings.Split(s, "/") {
			if segment == "" || segment == "." || segment == ".." {
				v.Fail("path [%s] contains an illegal segment", s)
				return
			}
		}
	}
}

func hasControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}

// PrimitiveType requires a primitive basic type.
func PrimitiveType(v *Context, t metadata.BasicType) {
	if !t.Primitive() {
		v.Fail("%v is not a primitive type", t)
	}
}

// PrimitiveValue requires a well-formed primitive value.
func PrimitiveValue(v *Context, value metadata.Value) {
	if err := value.Verify(); err != nil {
		v.Fail("%v", err)
		return
	}
	if !value.Type.Primitive() {
		v.Fail("a primitive value is required, got %v", value.Type)
	}
}

// TagValue requires a primitive value or a one-level array of primitives,
// the forms allowed as tag attributes.
func TagValue(v *Context, value metadata.Value) {
	if err := value.Verify(); err != nil {
		v.Fail("%v", err)
		return
	}
	if value.Type == metadata.BasicTypeMap {
		v.Fail("map values are not allowed as tag attributes")
	}
	if value.Type == metadata.BasicTypeArray && len(value.Items) == 0 {
		v.Fail("an empty array is not allowed as a tag attribute")
	}
}

// NonZeroEnum requires the enum to be explicitly set.
func NonZeroEnum[T ~int](v *Context, value T) {
	if value == 0 {
		v.Fail("a value is required")
	}
}

// RecognizedEnum requires a known member of the enum.
func RecognizedEnum[T interface {
	~int
	Recognized() bool
}](v *Context, value T) {
	if !value.Recognized() {
		v.Fail("value %d is not recognized", int(value))
	}
}

// Positive requires a strictly positive number.
func Positive[T int | int64 | float64](v *Context, value T) {
	if value <= 0 {
		v.Fail("a positive value is required, got %v", value)
	}
}

// NotNegative requires a number greater than or equal to zero.
func NotNegative[T int | int64 | float64](v *Context, value T) {
	if value < 0 {
		v.Fail("a negative value is not allowed, got %v", value)
	}
}

// PositiveDecimal requires a strictly positive decimal.
func PositiveDecimal(v *Context, value decimal.Decimal) {
	if value.Sign() <= 0 {
		v.Fail("a positive value is required, got %v", value)
	}
}

// NotNegativeDecimal requires a decimal greater than or equal to zero.
func NotNegativeDecimal(v *Context, value decimal.Decimal) {
	if value.Sign() < 0 {
		v.Fail("a negative value is not allowed, got %v", value)
	}
}

// CaseInsensitiveDuplicates fails on names that collide when case-folded.
func CaseInsensitiveDuplicates(v *Context, names []string) {
	seen := make(map[string]string, len(names))
	for _, name := range names {
		folded := strings.ToLower(name)
		if first, ok := seen[folded]; ok {
			v.Fail("[%s] duplicates [%s] (names are case-insensitive)", name, first)
			return
		}
		seen[folded] = name
	}
}

// ListNotEmpty requires at least one element.
func ListNotEmpty[T any](v *Context, items []T) {
	if len(items) == 0 {
		v.Fail("at least one entry is required")
	}
}

// MapNotEmpty requires at least one entry.
func MapNotEmpty[V any](v *Context, entries map[string]V) {
	if len(entries) == 0 {
		v.Fail("at least one entry is required")
	}
}
