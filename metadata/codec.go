// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metadata

import (
	"encoding/json"
)

// The wire form of the catalog is JSON. Enums travel as their wire names,
// values as typed unions, definitions as nested documents. Round trips are
// exact for every primitive except FLOAT, where bit-for-bit equality is not
// guaranteed across encoders.

func invertEnum[T comparable](names map[T]string) map[string]T {
	values := make(map[string]T, len(names))
	for value, name := range names {
		values[name] = value
	}
	return values
}

func enumMarshalText[T comparable](names map[T]string, v T, kind string) ([]byte, error) {
	if name, ok := names[v]; ok {
		return []byte(name), nil
	}
	return nil, Error.New("unrecognized %s %v", kind, v)
}

func enumUnmarshalText[T comparable](values map[string]T, data []byte, out *T, kind string) error {
	if v, ok := values[string(data)]; ok {
		*out = v
		return nil
	}
	return Error.New("unrecognized %s %q", kind, string(data))
}

// MarshalText implements encoding.TextMarshaler.
func (t ObjectType) MarshalText() ([]byte, error) {
	return enumMarshalText(objectTypeNames, t, "object type")
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ObjectType) UnmarshalText(data []byte) error {
	return enumUnmarshalText(objectTypeValues, data, t, "object type")
}

// MarshalText implements encoding.TextMarshaler.
func (t BasicType) MarshalText() ([]byte, error) {
	return enumMarshalText(basicTypeNames, t, "basic type")
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *BasicType) UnmarshalText(data []byte) error {
	return enumUnmarshalText(basicTypeValues, data, t, "basic type")
}

var schemaTypeValues = invertEnum(schemaTypeNames)

// MarshalText implements encoding.TextMarshaler.
func (t SchemaType) MarshalText() ([]byte, error) {
	return enumMarshalText(schemaTypeNames, t, "schema type")
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *SchemaType) UnmarshalText(data []byte) error {
	return enumUnmarshalText(schemaTypeValues, data, t, "schema type")
}

var jobTypeValues = invertEnum(jobTypeNames)

// MarshalText implements encoding.TextMarshaler.
func (t JobType) MarshalText() ([]byte, error) {
	return enumMarshalText(jobTypeNames, t, "job type")
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *JobType) UnmarshalText(data []byte) error {
	return enumUnmarshalText(jobTypeValues, data, t, "job type")
}

var flowNodeTypeValues = invertEnum(flowNodeTypeNames)

// MarshalText implements encoding.TextMarshaler.
func (t FlowNodeType) MarshalText() ([]byte, error) {
	return enumMarshalText(flowNodeTypeNames, t, "flow node type")
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *FlowNodeType) UnmarshalText(data []byte) error {
	return enumUnmarshalText(flowNodeTypeValues, data, t, "flow node type")
}

var incarnationStatusValues = invertEnum(incarnationStatusNames)

// MarshalText implements encoding.TextMarshaler.
func (s IncarnationStatus) MarshalText() ([]byte, error) {
	return enumMarshalText(incarnationStatusNames, s, "incarnation status")
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *IncarnationStatus) UnmarshalText(data []byte) error {
	return enumUnmarshalText(incarnationStatusValues, data, s, "incarnation status")
}

var copyStatusValues = invertEnum(copyStatusNames)

// MarshalText implements encoding.TextMarshaler.
func (s CopyStatus) MarshalText() ([]byte, error) {
	return enumMarshalText(copyStatusNames, s, "copy status")
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *CopyStatus) UnmarshalText(data []byte) error {
	return enumUnmarshalText(copyStatusValues, data, s, "copy status")
}

var tagOperationValues = invertEnum(tagOperationNames)

// MarshalText implements encoding.TextMarshaler.
func (op TagOperation) MarshalText() ([]byte, error) {
	return enumMarshalText(tagOperationNames, op, "tag operation")
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (op *TagOperation) UnmarshalText(data []byte) error {
	return enumUnmarshalText(tagOperationValues, data, op, "tag operation")
}

var searchOperatorValues = invertEnum(searchOperatorNames)

// MarshalText implements encoding.TextMarshaler.
func (op SearchOperator) MarshalText() ([]byte, error) {
	return enumMarshalText(searchOperatorNames, op, "search operator")
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (op *SearchOperator) UnmarshalText(data []byte) error {
	return enumUnmarshalText(searchOperatorValues, data, op, "search operator")
}

var logicalOperatorValues = invertEnum(logicalOperatorNames)

// MarshalText implements encoding.TextMarshaler.
func (op LogicalOperator) MarshalText() ([]byte, error) {
	return enumMarshalText(logicalOperatorNames, op, "logical operator")
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (op *LogicalOperator) UnmarshalText(data []byte) error {
	return enumUnmarshalText(logicalOperatorValues, data, op, "logical operator")
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(data []byte) error {
	parsed, err := ParseDate(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// wireValue is the JSON form of a Value.
type wireValue struct {
	Type     BasicType        `json:"type"`
	Boolean  *bool            `json:"boolean,omitempty"`
	Integer  *int64           `json:"integer,omitempty"`
	Float    *float64         `json:"float,omitempty"`
	Decimal  *string          `json:"decimal,omitempty"`
	String   *string          `json:"string,omitempty"`
	Date     *string          `json:"date,omitempty"`
	Datetime *string          `json:"datetime,omitempty"`
	ElemType BasicType        `json:"elemType,omitempty"`
	Items    []Value          `json:"items,omitempty"`
	Map      map[string]Value `json:"map,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	wire := wireValue{Type: v.Type}
	switch v.Type {
	case BasicTypeBoolean:
		wire.Boolean = &v.Boolean
	case BasicTypeInteger:
		wire.Integer = &v.Integer
	case BasicTypeFloat:
		wire.Float = &v.Float
	case BasicTypeDecimal:
		text := v.Decimal.String()
		wire.Decimal = &text
	case BasicTypeString:
		wire.String = &v.String
	case BasicTypeDate:
		text := v.Date.String()
		wire.Date = &text
	case BasicTypeDatetime:
		text := FormatDatetime(v.Datetime)
		wire.Datetime = &text
	case BasicTypeArray:
		wire.ElemType = v.ElemType
		wire.Items = v.Items
		if wire.Items == nil {
			wire.Items = []Value{}
		}
	case BasicTypeMap:
		wire.Map = v.Map
		if wire.Map == nil {
			wire.Map = map[string]Value{}
		}
	default:
		return nil, ErrInvalidValue.New("cannot encode value with type %v", v.Type)
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var wire wireValue
	if err := json.Unmarshal(data, &wire); err != nil {
		return ErrInvalidValue.Wrap(err)
	}

	decoded := Value{Type: wire.Type}
	switch wire.Type {
	case BasicTypeBoolean:
		if wire.Boolean == nil {
			return ErrInvalidValue.New("boolean value missing")
		}
		decoded.Boolean = *wire.Boolean
	case BasicTypeInteger:
		if wire.Integer == nil {
			return ErrInvalidValue.New("integer value missing")
		}
		decoded.Integer = *wire.Integer
	case BasicTypeFloat:
		if wire.Float == nil {
			return ErrInvalidValue.New("float value missing")
		}
		decoded.Float = *wire.Float
	case BasicTypeDecimal:
		if wire.Decimal == nil {
			return ErrInvalidValue.New("decimal value missing")
		}
		parsed, err := ParseDecimal(*wire.Decimal)
		if err != nil {
			return err
		}
		decoded.Decimal = parsed
	case BasicTypeString:
		if wire.String == nil {
			return ErrInvalidValue.New("string value missing")
		}
		decoded.String = *wire.String
	case BasicTypeDate:
		if wire.Date == nil {
			return ErrInvalidValue.New("date value missing")
		}
		parsed, err := ParseDate(*wire.Date)
		if err != nil {
			return err
		}
		decoded.Date = parsed
	case BasicTypeDatetime:
		if wire.Datetime == nil {
			return ErrInvalidValue.New("datetime value missing")
		}
		parsed, err := ParseDatetime(*wire.Datetime)
		if err != nil {
			return err
		}
		decoded.Datetime = parsed
	case BasicTypeArray:
		decoded.ElemType = wire.ElemType
		decoded.Items = wire.Items
	case BasicTypeMap:
		decoded.Map = wire.Map
	default:
		return ErrInvalidValue.New("cannot decode value with type %v", wire.Type)
	}

	if err := decoded.Verify(); err != nil {
		return err
	}
	*v = decoded
	return nil
}

// EncodeDefinition writes the stored form of an object definition.
func EncodeDefinition(def *ObjectDefinition) ([]byte, error) {
	data, err := json.Marshal(def)
	if err != nil {
		return nil, Error.New("unable to encode %v definition: %w", def.ObjectType, err)
	}
	return data, nil
}

// DecodeDefinition reads the stored form of an object definition.
func DecodeDefinition(data []byte) (*ObjectDefinition, error) {
	var def ObjectDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, Error.New("unable to decode definition: %w", err)
	}
	return &def, nil
}
