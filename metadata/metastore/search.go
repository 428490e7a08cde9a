// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metastore

import (
	"context"
	"strings"
	"time"

	"tracdap.io/tracmeta/metadata"
	"tracdap.io/tracmeta/shared/dbutil"
)

// Search finds tags whose attributes match the given expression. Results
// carry headers and attributes only; definitions are not loaded. Ordering is
// ascending (objectId, objectVersion, tagVersion).
func (db *DB) Search(ctx context.Context, tenant string, params metadata.SearchParameters) (_ []*metadata.Tag, err error) {
	defer mon.Task()(&ctx)(&err)

	builder := searchBuilder{impl: db.impl}
	query, args, err := builder.build(tenant, params)
	if err != nil {
		return nil, err
	}

	rows, err := db.adapter.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Error.New("unable to run search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		tags   []*metadata.Tag
		tagPKs []int64
	)
	for rows.Next() {
		var (
			tagPK           int64
			header          metadata.TagHeader
			objectTimestamp time.Time
			tagTimestamp    time.Time
		)
		err := rows.Scan(&header.ObjectID,
			&header.ObjectVersion, &objectTimestamp, &header.IsLatestObject,
			&tagPK, &header.TagVersion, &tagTimestamp, &header.IsLatestTag)
		if err != nil {
			return nil, Error.New("unable to scan search result: %w", err)
		}
		header.ObjectType = params.ObjectType
		header.ObjectTimestamp = objectTimestamp.UTC()
		header.TagTimestamp = tagTimestamp.UTC()

		tags = append(tags, &metadata.Tag{Header: header})
		tagPKs = append(tagPKs, tagPK)
	}
	if err := rows.Err(); err != nil {
		return nil, Error.Wrap(err)
	}

	attrs, err := loadTagAttrs(ctx, db.adapter, tagPKs)
	if err != nil {
		return nil, err
	}
	for i, tagPK := range tagPKs {
		tagAttrs := attrs[tagPK]
		if tagAttrs == nil {
			tagAttrs = make(map[string]metadata.Value)
		}
		tags[i].Attrs = tagAttrs
	}
	return tags, nil
}

// searchBuilder translates a search expression tree into one SQL statement.
// Each term becomes an EXISTS subquery over the attribute table, so logical
// operators compose without joins multiplying rows.
type searchBuilder struct {
	impl dbutil.Implementation
	sql  strings.Builder
	args []any
}

func (b *searchBuilder) build(tenant string, params metadata.SearchParameters) (string, []any, error) {
	if params.ObjectType == metadata.ObjectTypeUnset || !params.ObjectType.Recognized() {
		return "", nil, ErrInvalidSearch.New("search requires a recognised object type")
	}
	if params.Search == nil {
		return "", nil, ErrInvalidSearch.New("search requires an expression")
	}

	b.sql.WriteString(`
		SELECT o.object_id,
			d.object_version, d.object_timestamp, d.is_latest,
			t.tag_pk, t.tag_version, t.tag_timestamp, t.is_latest
		FROM object o
		JOIN object_definition d ON d.object_fk = o.object_pk
		JOIN tag t ON t.definition_fk = d.definition_pk
		WHERE o.tenant_code = ? AND o.object_type = ?`)
	b.args = append(b.args, tenant, params.ObjectType.String())

	b.writeVersionScope(params)

	b.sql.WriteString("\n\t\t\tAND ")
	if err := b.writeExpression(params.Search); err != nil {
		return "", nil, err
	}

	b.sql.WriteString("\n\t\tORDER BY o.object_id, d.object_version, t.tag_version")
	return b.sql.String(), b.args, nil
}

// writeVersionScope restricts which (version, tag) rows participate. With no
// cutoff the stored latest flags are authoritative; with searchAsOf the
// latest row is recomputed inside the cutoff window.
func (b *searchBuilder) writeVersionScope(params metadata.SearchParameters) {
	if params.SearchAsOf == nil {
		if !params.PriorVersions {
			b.sql.WriteString(`
			AND d.is_latest = ` + b.impl.BoolLiteral(true))
		}
		if !params.PriorTags {
			b.sql.WriteString(`
			AND t.is_latest = ` + b.impl.BoolLiteral(true))
		}
		return
	}

	asOf := params.SearchAsOf.UTC()

	b.sql.WriteString(`
			AND t.tag_timestamp <= ?`)
	b.args = append(b.args, asOf)

	if !params.PriorVersions {
		b.sql.WriteString(`
			AND d.object_version = (
				SELECT MAX(d2.object_version)
				FROM object_definition d2
				JOIN tag t2 ON t2.definition_fk = d2.definition_pk
				WHERE d2.object_fk = o.object_pk AND t2.tag_timestamp <= ?)`)
		b.args = append(b.args, asOf)
	}
	if !params.PriorTags {
		b.sql.WriteString(`
			AND t.tag_version = (
				SELECT MAX(t3.tag_version)
				FROM tag t3
				WHERE t3.definition_fk = d.definition_pk AND t3.tag_timestamp <= ?)`)
		b.args = append(b.args, asOf)
	}
}

func (b *searchBuilder) writeExpression(expr *metadata.SearchExpression) error {
	switch {
	case expr == nil:
		return ErrInvalidSearch.New("empty expression node")
	case expr.Term != nil && expr.Logical != nil:
		return ErrInvalidSearch.New("expression node is both a term and a logical operator")
	case expr.Term != nil:
		return b.writeTerm(expr.Term)
	case expr.Logical != nil:
		return b.writeLogical(expr.Logical)
	}
	return ErrInvalidSearch.New("empty expression node")
}

func (b *searchBuilder) writeLogical(logical *metadata.LogicalExpression) error {
	switch logical.Operator {
	case metadata.LogicalAND, metadata.LogicalOR:
		if len(logical.Expr) == 0 {
			return ErrInvalidSearch.New("%v expression has no operands", logical.Operator)
		}
		separator := " AND "
		if logical.Operator == metadata.LogicalOR {
			separator = " OR "
		}
		b.sql.WriteString("(")
		for i, sub := range logical.Expr {
			if i > 0 {
				b.sql.WriteString(separator)
			}
			if err := b.writeExpression(sub); err != nil {
				return err
			}
		}
		b.sql.WriteString(")")
		return nil

	case metadata.LogicalNOT:
		if len(logical.Expr) != 1 {
			return ErrInvalidSearch.New("NOT expression requires exactly one operand, got %d", len(logical.Expr))
		}
		b.sql.WriteString("NOT (")
		if err := b.writeExpression(logical.Expr[0]); err != nil {
			return err
		}
		b.sql.WriteString(")")
		return nil
	}
	return ErrInvalidSearch.New("unrecognised logical operator")
}

// writeTerm renders one attribute comparison. EQ and IN match any element of
// a multi-valued attribute; ordered comparisons are restricted to scalar
// rows; NE inverts EQ so a missing attribute also matches.
func (b *searchBuilder) writeTerm(term *metadata.SearchTerm) error {
	if err := verifySearchTerm(term); err != nil {
		return err
	}

	switch term.Operator {
	case metadata.SearchEQ:
		return b.writeExists(term, false)
	case metadata.SearchNE:
		return b.writeExists(term, true)
	case metadata.SearchIN:
		return b.writeIn(term)
	case metadata.SearchGT, metadata.SearchGE, metadata.SearchLT, metadata.SearchLE:
		return b.writeOrdered(term)
	}
	return ErrInvalidSearch.New("unrecognised search operator")
}

func (b *searchBuilder) writeExists(term *metadata.SearchTerm, negate bool) error {
	cols, err := columnsForValue(term.SearchValue)
	if err != nil {
		return ErrInvalidSearch.Wrap(err)
	}

	if negate {
		b.sql.WriteString("NOT ")
	}
	b.sql.WriteString(`EXISTS (
				SELECT 1 FROM tag_attr ta
				WHERE ta.tag_fk = t.tag_pk AND ta.attr_name = ? AND ta.attr_type = ?
				AND ta.` + valueColumn(term.AttrType) + ` = ?)`)
	b.args = append(b.args, term.AttrName, term.AttrType.String(), cols.searchArg())
	return nil
}

func (b *searchBuilder) writeIn(term *metadata.SearchTerm) error {
	items := term.SearchValue.Items
	if term.SearchValue.Type != metadata.BasicTypeArray || len(items) == 0 {
		return ErrInvalidSearch.New("IN requires a non-empty list of search values")
	}

	b.sql.WriteString(`EXISTS (
				SELECT 1 FROM tag_attr ta
				WHERE ta.tag_fk = t.tag_pk AND ta.attr_name = ? AND ta.attr_type = ?
				AND ta.` + valueColumn(term.AttrType) + ` IN (` + placeholders(len(items)) + `))`)
	b.args = append(b.args, term.AttrName, term.AttrType.String())
	for _, item := range items {
		cols, err := columnsForValue(item)
		if err != nil {
			return ErrInvalidSearch.Wrap(err)
		}
		if cols.attrType != term.AttrType {
			return ErrInvalidSearch.New(
				"IN list value of type %v does not match attribute type %v", cols.attrType, term.AttrType)
		}
		b.args = append(b.args, cols.searchArg())
	}
	return nil
}

func (b *searchBuilder) writeOrdered(term *metadata.SearchTerm) error {
	if !term.AttrType.Ordered() {
		return ErrInvalidSearch.New(
			"operator %v is not defined for attribute type %v", term.Operator, term.AttrType)
	}

	cols, err := columnsForValue(term.SearchValue)
	if err != nil {
		return ErrInvalidSearch.Wrap(err)
	}

	var cmp string
	switch term.Operator {
	case metadata.SearchGT:
		cmp = ">"
	case metadata.SearchGE:
		cmp = ">="
	case metadata.SearchLT:
		cmp = "<"
	case metadata.SearchLE:
		cmp = "<="
	}

	// attr_index = -1 keeps ordered comparisons away from array elements.
	// Decimals are stored as canonical text, so they compare as numbers
	// only through an explicit cast.
	column := "ta." + valueColumn(term.AttrType)
	operand := "?"
	if term.AttrType == metadata.BasicTypeDecimal {
		column = "CAST(" + column + " AS NUMERIC)"
		operand = "CAST(? AS NUMERIC)"
	}

	b.sql.WriteString(`EXISTS (
				SELECT 1 FROM tag_attr ta
				WHERE ta.tag_fk = t.tag_pk AND ta.attr_name = ? AND ta.attr_type = ?
				AND ta.attr_index = ? AND ` + column + ` ` + cmp + ` ` + operand + `)`)
	b.args = append(b.args, term.AttrName, term.AttrType.String(), scalarAttrIndex, cols.searchArg())
	return nil
}

func verifySearchTerm(term *metadata.SearchTerm) error {
	switch {
	case !metadata.IsIdentifier(term.AttrName):
		return ErrInvalidSearch.New("attribute name [%s] is not a valid identifier", term.AttrName)
	case !term.AttrType.Primitive():
		return ErrInvalidSearch.New("search terms require a primitive attribute type, got %v", term.AttrType)
	}
	if term.Operator != metadata.SearchIN && term.SearchValue.Type != term.AttrType {
		return ErrInvalidSearch.New(
			"search value of type %v does not match attribute type %v",
			term.SearchValue.Type, term.AttrType)
	}
	return nil
}
