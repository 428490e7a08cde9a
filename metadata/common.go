// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

// Package metadata defines the object model for the TRAC metadata catalog:
// object and tag identities, typed attribute values, object definitions and
// the selectors and search expressions that reference them.
package metadata

import (
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/zeebo/errs"
)

var (
	// Error is the default error class for the metadata package.
	Error = errs.Class("metadata")
	// ErrInvalidValue is returned for values that fail type or format rules.
	ErrInvalidValue = errs.Class("metadata: invalid value")
	// ErrInvalidSelector is returned for malformed tag selectors.
	ErrInvalidSelector = errs.Class("metadata: invalid selector")
	// ErrInvalidTagUpdate is returned when a tag update cannot be applied.
	ErrInvalidTagUpdate = errs.Class("metadata: invalid tag update")
)

// ObjectType discriminates the variants of ObjectDefinition.
type ObjectType int

// Object types stored in the catalog.
const (
	ObjectTypeUnset ObjectType = iota
	ObjectTypeData
	ObjectTypeModel
	ObjectTypeFlow
	ObjectTypeJob
	ObjectTypeFile
	ObjectTypeSchema
	ObjectTypeStorage
	ObjectTypeCustom
	ObjectTypeConfig
	ObjectTypeResource
)

var objectTypeNames = map[ObjectType]string{
	ObjectTypeUnset:    "OBJECT_TYPE_NOT_SET",
	ObjectTypeData:     "DATA",
	ObjectTypeModel:    "MODEL",
	ObjectTypeFlow:     "FLOW",
	ObjectTypeJob:      "JOB",
	ObjectTypeFile:     "FILE",
	ObjectTypeSchema:   "SCHEMA",
	ObjectTypeStorage:  "STORAGE",
	ObjectTypeCustom:   "CUSTOM",
	ObjectTypeConfig:   "CONFIG",
	ObjectTypeResource: "RESOURCE",
}

var objectTypeValues = func() map[string]ObjectType {
	values := make(map[string]ObjectType, len(objectTypeNames))
	for typ, name := range objectTypeNames {
		values[name] = typ
	}
	return values
}()

// String returns the wire name of the object type.
func (t ObjectType) String() string {
	if name, ok := objectTypeNames[t]; ok {
		return name
	}
	return "OBJECT_TYPE_UNRECOGNIZED"
}

// Recognized reports whether the object type is a known enum member,
// including the unset zero value.
func (t ObjectType) Recognized() bool {
	_, ok := objectTypeNames[t]
	return ok
}

// ObjectTypes returns every concrete object type in declaration order.
func ObjectTypes() []ObjectType {
	return []ObjectType{
		ObjectTypeData, ObjectTypeModel, ObjectTypeFlow, ObjectTypeJob,
		ObjectTypeFile, ObjectTypeSchema, ObjectTypeStorage, ObjectTypeCustom,
		ObjectTypeConfig, ObjectTypeResource,
	}
}

// ParseObjectType converts a wire name into an ObjectType.
func ParseObjectType(name string) (ObjectType, error) {
	if typ, ok := objectTypeValues[name]; ok {
		return typ, nil
	}
	return ObjectTypeUnset, Error.New("unrecognized object type %q", name)
}

// BasicType enumerates the primitive and composite value types.
type BasicType int

// Basic types for attribute values and schema fields.
const (
	BasicTypeUnset BasicType = iota
	BasicTypeBoolean
	BasicTypeInteger
	BasicTypeFloat
	BasicTypeDecimal
	BasicTypeString
	BasicTypeDate
	BasicTypeDatetime
	BasicTypeArray
	BasicTypeMap
)

var basicTypeNames = map[BasicType]string{
	BasicTypeUnset:    "BASIC_TYPE_NOT_SET",
	BasicTypeBoolean:  "BOOLEAN",
	BasicTypeInteger:  "INTEGER",
	BasicTypeFloat:    "FLOAT",
	BasicTypeDecimal:  "DECIMAL",
	BasicTypeString:   "STRING",
	BasicTypeDate:     "DATE",
	BasicTypeDatetime: "DATETIME",
	BasicTypeArray:    "ARRAY",
	BasicTypeMap:      "MAP",
}

var basicTypeValues = func() map[string]BasicType {
	values := make(map[string]BasicType, len(basicTypeNames))
	for typ, name := range basicTypeNames {
		values[name] = typ
	}
	return values
}()

// String returns the wire name of the basic type.
func (t BasicType) String() string {
	if name, ok := basicTypeNames[t]; ok {
		return name
	}
	return "BASIC_TYPE_UNRECOGNIZED"
}

// Recognized reports whether the basic type is a known enum member.
func (t BasicType) Recognized() bool {
	_, ok := basicTypeNames[t]
	return ok
}

// Primitive reports whether the type is a primitive value type.
func (t BasicType) Primitive() bool {
	switch t {
	case BasicTypeBoolean, BasicTypeInteger, BasicTypeFloat,
		BasicTypeDecimal, BasicTypeString, BasicTypeDate, BasicTypeDatetime:
		return true
	}
	return false
}

// Ordered reports whether the type supports ordered comparison in search.
func (t BasicType) Ordered() bool {
	switch t {
	case BasicTypeInteger, BasicTypeFloat, BasicTypeDecimal,
		BasicTypeString, BasicTypeDate, BasicTypeDatetime:
		return true
	}
	return false
}

// ParseBasicType converts a wire name into a BasicType.
func ParseBasicType(name string) (BasicType, error) {
	if typ, ok := basicTypeValues[name]; ok {
		return typ, nil
	}
	return BasicTypeUnset, Error.New("unrecognized basic type %q", name)
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsIdentifier reports whether name is a valid ASCII identifier, the form
// required for attribute names, field names and flow node names.
func IsIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// ReservedAttrPrefix marks attribute names owned by the platform.
const ReservedAttrPrefix = "trac_"

// Controlled attributes stamped by the write service on every tag.
const (
	AttrCreateTime     = "trac_create_time"
	AttrCreateUserID   = "trac_create_user_id"
	AttrCreateUserName = "trac_create_user_name"
	AttrUpdateTime     = "trac_update_time"
	AttrUpdateUserID   = "trac_update_user_id"
	AttrUpdateUserName = "trac_update_user_name"
)

// IsReservedAttrName reports whether an attribute name is reserved for the
// platform. Reserved names are the trac_ prefix (case-insensitive) and any
// name with a leading underscore.
func IsReservedAttrName(name string) bool {
	if strings.HasPrefix(name, "_") {
		return true
	}
	return strings.HasPrefix(strings.ToLower(name), ReservedAttrPrefix)
}

// sortedKeys returns map keys in sorted order, for deterministic traversal.
func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
