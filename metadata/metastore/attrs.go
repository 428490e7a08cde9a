// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metastore

import (
	"context"
	"sort"
	"time"

	"tracdap.io/tracmeta/metadata"
)

// scalarAttrIndex marks single-valued attributes in the attr_index column;
// array elements are stored one row per element with their index.
const scalarAttrIndex = -1

// attrValues is the typed column set of one tag_attr row. Exactly one column
// is non-nil, chosen by attrType.
type attrValues struct {
	attrType metadata.BasicType

	valueBoolean  *bool
	valueInteger  *int64
	valueFloat    *float64
	valueDecimal  *string
	valueString   *string
	valueDate     *string
	valueDatetime *time.Time
}

func columnsForValue(v metadata.Value) (attrValues, error) {
	cols := attrValues{attrType: v.Type}
	switch v.Type {
	case metadata.BasicTypeBoolean:
		cols.valueBoolean = &v.Boolean
	case metadata.BasicTypeInteger:
		cols.valueInteger = &v.Integer
	case metadata.BasicTypeFloat:
		cols.valueFloat = &v.Float
	case metadata.BasicTypeDecimal:
		text := v.Decimal.String()
		cols.valueDecimal = &text
	case metadata.BasicTypeString:
		cols.valueString = &v.String
	case metadata.BasicTypeDate:
		text := v.Date.String()
		cols.valueDate = &text
	case metadata.BasicTypeDatetime:
		utc := v.Datetime.UTC()
		cols.valueDatetime = &utc
	default:
		return attrValues{}, ErrInvalidTag.New("attribute values must be primitive, got %v", v.Type)
	}
	return cols, nil
}

func (cols attrValues) args() []any {
	return []any{
		cols.valueBoolean, cols.valueInteger, cols.valueFloat, cols.valueDecimal,
		cols.valueString, cols.valueDate, cols.valueDatetime,
	}
}

// searchArg returns the bound parameter for comparisons against the typed
// column of this attr type.
func (cols attrValues) searchArg() any {
	switch cols.attrType {
	case metadata.BasicTypeBoolean:
		return *cols.valueBoolean
	case metadata.BasicTypeInteger:
		return *cols.valueInteger
	case metadata.BasicTypeFloat:
		return *cols.valueFloat
	case metadata.BasicTypeDecimal:
		return *cols.valueDecimal
	case metadata.BasicTypeString:
		return *cols.valueString
	case metadata.BasicTypeDate:
		return *cols.valueDate
	case metadata.BasicTypeDatetime:
		return *cols.valueDatetime
	}
	return nil
}

// valueColumn names the typed column holding values of the given type.
func valueColumn(attrType metadata.BasicType) string {
	switch attrType {
	case metadata.BasicTypeBoolean:
		return "value_boolean"
	case metadata.BasicTypeInteger:
		return "value_integer"
	case metadata.BasicTypeFloat:
		return "value_float"
	case metadata.BasicTypeDecimal:
		return "value_decimal"
	case metadata.BasicTypeString:
		return "value_string"
	case metadata.BasicTypeDate:
		return "value_date"
	case metadata.BasicTypeDatetime:
		return "value_datetime"
	}
	return ""
}

func insertTagAttrs(ctx context.Context, tx TransactionAdapter, tagPK int64, attrs map[string]metadata.Value) error {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := attrs[name]

		if value.Type == metadata.BasicTypeArray {
			// zero element rows would make the attribute vanish on load
			if len(value.Items) == 0 {
				return ErrInvalidTag.New("attribute [%s] is an empty array", name)
			}
			for i, item := range value.Items {
				if err := insertTagAttrRow(ctx, tx, tagPK, name, i, item); err != nil {
					return err
				}
			}
			continue
		}

		if err := insertTagAttrRow(ctx, tx, tagPK, name, scalarAttrIndex, value); err != nil {
			return err
		}
	}
	return nil
}

func insertTagAttrRow(ctx context.Context, tx TransactionAdapter, tagPK int64, name string, index int, value metadata.Value) error {
	cols, err := columnsForValue(value)
	if err != nil {
		return ErrInvalidTag.New("attribute [%s]: %v", name, err)
	}

	args := append([]any{tagPK, name, index, cols.attrType.String()}, cols.args()...)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO tag_attr (
			tag_fk, attr_name, attr_index, attr_type,
			value_boolean, value_integer, value_float, value_decimal,
			value_string, value_date, value_datetime
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...)
	if err != nil {
		return Error.New("unable to insert attribute [%s]: %w", name, err)
	}
	return nil
}

// loadTagAttrs reads the attribute maps for a set of tag rows in one query.
func loadTagAttrs(ctx context.Context, tx TransactionAdapter, tagPKs []int64) (map[int64]map[string]metadata.Value, error) {
	attrs := make(map[int64]map[string]metadata.Value, len(tagPKs))
	if len(tagPKs) == 0 {
		return attrs, nil
	}

	query := `
		SELECT tag_fk, attr_name, attr_index, attr_type,
			value_boolean, value_integer, value_float, value_decimal,
			value_string, value_date, value_datetime
		FROM tag_attr
		WHERE tag_fk IN (` + placeholders(len(tagPKs)) + `)
		ORDER BY tag_fk, attr_name, attr_index`

	args := make([]any, len(tagPKs))
	for i, pk := range tagPKs {
		args[i] = pk
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Error.New("unable to query attributes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			tagPK    int64
			name     string
			index    int
			typeName string
			cols     = attrValues{}
		)
		err := rows.Scan(&tagPK, &name, &index, &typeName,
			&cols.valueBoolean, &cols.valueInteger, &cols.valueFloat, &cols.valueDecimal,
			&cols.valueString, &cols.valueDate, &cols.valueDatetime)
		if err != nil {
			return nil, Error.New("unable to scan attribute row: %w", err)
		}

		attrType, err := metadata.ParseBasicType(typeName)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		cols.attrType = attrType

		value, err := cols.decode()
		if err != nil {
			return nil, Error.New("attribute [%s]: %w", name, err)
		}

		tagAttrs := attrs[tagPK]
		if tagAttrs == nil {
			tagAttrs = make(map[string]metadata.Value)
			attrs[tagPK] = tagAttrs
		}

		if index == scalarAttrIndex {
			tagAttrs[name] = value
			continue
		}

		// array elements arrive in index order
		existing, ok := tagAttrs[name]
		if !ok {
			existing = metadata.ArrayValue(attrType)
		}
		existing.Items = append(existing.Items, value)
		tagAttrs[name] = existing
	}
	if err := rows.Err(); err != nil {
		return nil, Error.Wrap(err)
	}

	return attrs, nil
}

// decode turns the typed columns back into a primitive value.
func (cols attrValues) decode() (metadata.Value, error) {
	switch cols.attrType {
	case metadata.BasicTypeBoolean:
		if cols.valueBoolean == nil {
			return metadata.Value{}, Error.New("boolean column missing")
		}
		return metadata.BoolValue(*cols.valueBoolean), nil
	case metadata.BasicTypeInteger:
		if cols.valueInteger == nil {
			return metadata.Value{}, Error.New("integer column missing")
		}
		return metadata.IntValue(*cols.valueInteger), nil
	case metadata.BasicTypeFloat:
		if cols.valueFloat == nil {
			return metadata.Value{}, Error.New("float column missing")
		}
		return metadata.FloatValue(*cols.valueFloat), nil
	case metadata.BasicTypeDecimal:
		if cols.valueDecimal == nil {
			return metadata.Value{}, Error.New("decimal column missing")
		}
		parsed, err := metadata.ParseDecimal(*cols.valueDecimal)
		if err != nil {
			return metadata.Value{}, err
		}
		return metadata.DecimalValue(parsed), nil
	case metadata.BasicTypeString:
		if cols.valueString == nil {
			return metadata.Value{}, Error.New("string column missing")
		}
		return metadata.StringValue(*cols.valueString), nil
	case metadata.BasicTypeDate:
		if cols.valueDate == nil {
			return metadata.Value{}, Error.New("date column missing")
		}
		parsed, err := metadata.ParseDate(*cols.valueDate)
		if err != nil {
			return metadata.Value{}, err
		}
		return metadata.DateValue(parsed), nil
	case metadata.BasicTypeDatetime:
		if cols.valueDatetime == nil {
			return metadata.Value{}, Error.New("datetime column missing")
		}
		return metadata.DatetimeValue(*cols.valueDatetime), nil
	}
	return metadata.Value{}, Error.New("unsupported attribute type %v", cols.attrType)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ", "...)
		}
		out = append(out, '?')
	}
	return string(out)
}
