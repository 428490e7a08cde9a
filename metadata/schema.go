// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metadata

import "strings"

// SchemaType discriminates schema variants. Only tabular schemas exist today.
type SchemaType int

// Schema types.
const (
	SchemaTypeUnset SchemaType = iota
	SchemaTypeTable
)

var schemaTypeNames = map[SchemaType]string{
	SchemaTypeUnset: "SCHEMA_TYPE_NOT_SET",
	SchemaTypeTable: "TABLE",
}

// String returns the wire name of the schema type.
func (t SchemaType) String() string {
	if name, ok := schemaTypeNames[t]; ok {
		return name
	}
	return "SCHEMA_TYPE_UNRECOGNIZED"
}

// Recognized reports whether the schema type is a known enum member.
func (t SchemaType) Recognized() bool {
	_, ok := schemaTypeNames[t]
	return ok
}

// SchemaDefinition is the payload of a SCHEMA object and can also be embedded
// directly in a DATA object.
type SchemaDefinition struct {
	SchemaType SchemaType   `json:"schemaType"`
	Table      *TableSchema `json:"table,omitempty"`
}

// TableSchema is an ordered list of typed fields.
type TableSchema struct {
	Fields []FieldSchema `json:"fields"`
}

// FieldByName finds a field by case-insensitive name match.
func (s *TableSchema) FieldByName(name string) (FieldSchema, bool) {
	for _, field := range s.Fields {
		if strings.EqualFold(field.FieldName, name) {
			return field, true
		}
	}
	return FieldSchema{}, false
}

// FieldSchema describes one column of a table schema.
type FieldSchema struct {
	FieldName   string    `json:"fieldName"`
	FieldOrder  int       `json:"fieldOrder"`
	FieldType   BasicType `json:"fieldType"`
	Label       string    `json:"label,omitempty"`
	BusinessKey bool      `json:"businessKey,omitempty"`
	Categorical bool      `json:"categorical,omitempty"`
	NotNull     bool      `json:"notNull,omitempty"`
	FormatCode  string    `json:"formatCode,omitempty"`
}