// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metastore_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tracdap.io/tracmeta/metadata"
	"tracdap.io/tracmeta/metadata/metastore"
	"tracdap.io/tracmeta/metadata/metastore/metastoretest"
)

func term(name string, attrType metadata.BasicType, op metadata.SearchOperator, value metadata.Value) *metadata.SearchExpression {
	return &metadata.SearchExpression{Term: &metadata.SearchTerm{
		AttrName:    name,
		AttrType:    attrType,
		Operator:    op,
		SearchValue: value,
	}}
}

func stringTerm(name string, op metadata.SearchOperator, value string) *metadata.SearchExpression {
	return term(name, metadata.BasicTypeString, op, metadata.StringValue(value))
}

func logical(op metadata.LogicalOperator, expr ...*metadata.SearchExpression) *metadata.SearchExpression {
	return &metadata.SearchExpression{Logical: &metadata.LogicalExpression{Operator: op, Expr: expr}}
}

func customSearch(expr *metadata.SearchExpression) metadata.SearchParameters {
	return metadata.SearchParameters{ObjectType: metadata.ObjectTypeCustom, Search: expr}
}

func saveWithAttrs(ctx context.Context, t *testing.T, db *metastore.DB, attrs map[string]metadata.Value) metadata.Tag {
	tag := metastoretest.NewTag(metastoretest.CustomDefinition(), attrs)
	require.NoError(t, db.SaveNewObjects(ctx, metastoretest.DefaultTenant, []metadata.Tag{tag}))
	return tag
}

func resultIDs(tags []*metadata.Tag) []string {
	ids := make([]string, len(tags))
	for i, tag := range tags {
		ids[i] = tag.Header.ObjectID.String()
	}
	return ids
}

func TestSearchByAttr(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		first := saveWithAttrs(ctx, t, db, map[string]metadata.Value{"region": metadata.StringValue("Scotland")})
		second := saveWithAttrs(ctx, t, db, map[string]metadata.Value{"region": metadata.StringValue("Scotland")})
		saveWithAttrs(ctx, t, db, map[string]metadata.Value{"region": metadata.StringValue("Wales")})

		results, err := db.Search(ctx, metastoretest.DefaultTenant,
			customSearch(stringTerm("region", metadata.SearchEQ, "Scotland")))
		require.NoError(t, err)
		require.Len(t, results, 2)

		// results are ordered and carry attributes but no definition
		ids := resultIDs(results)
		require.True(t, sort.StringsAreSorted(ids))
		require.ElementsMatch(t, ids,
			[]string{first.Header.ObjectID.String(), second.Header.ObjectID.String()})
		require.Nil(t, results[0].Definition)
		require.Equal(t, metadata.StringValue("Scotland"), results[0].Attrs["region"])

		// a search against another object type sees nothing
		none, err := db.Search(ctx, metastoretest.DefaultTenant, metadata.SearchParameters{
			ObjectType: metadata.ObjectTypeData,
			Search:     stringTerm("region", metadata.SearchEQ, "Scotland"),
		})
		require.NoError(t, err)
		require.Empty(t, none)
	})
}

func TestSearchNEMatchesMissingAttr(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		saveWithAttrs(ctx, t, db, map[string]metadata.Value{"region": metadata.StringValue("Scotland")})
		other := saveWithAttrs(ctx, t, db, map[string]metadata.Value{"region": metadata.StringValue("Wales")})
		missing := saveWithAttrs(ctx, t, db, map[string]metadata.Value{"owner": metadata.StringValue("risk")})

		results, err := db.Search(ctx, metastoretest.DefaultTenant,
			customSearch(stringTerm("region", metadata.SearchNE, "Scotland")))
		require.NoError(t, err)
		require.ElementsMatch(t, resultIDs(results),
			[]string{other.Header.ObjectID.String(), missing.Header.ObjectID.String()})

		// NE over a multi-valued attribute requires no element to match
		multi := saveWithAttrs(ctx, t, db, map[string]metadata.Value{
			"sector": metadata.ArrayValue(metadata.BasicTypeString,
				metadata.StringValue("UK"), metadata.StringValue("EU")),
		})
		withoutUK, err := db.Search(ctx, metastoretest.DefaultTenant,
			customSearch(stringTerm("sector", metadata.SearchNE, "UK")))
		require.NoError(t, err)
		require.NotContains(t, resultIDs(withoutUK), multi.Header.ObjectID.String())
	})
}

func TestSearchMultiValuedAttrs(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		multi := saveWithAttrs(ctx, t, db, map[string]metadata.Value{
			"sector": metadata.ArrayValue(metadata.BasicTypeString,
				metadata.StringValue("UK"), metadata.StringValue("EU")),
		})
		scalar := saveWithAttrs(ctx, t, db, map[string]metadata.Value{
			"sector": metadata.StringValue("US"),
		})

		// EQ matches any element
		results, err := db.Search(ctx, metastoretest.DefaultTenant,
			customSearch(stringTerm("sector", metadata.SearchEQ, "EU")))
		require.NoError(t, err)
		require.Equal(t, []string{multi.Header.ObjectID.String()}, resultIDs(results))

		// ordered comparisons never match multi-valued attributes
		ordered, err := db.Search(ctx, metastoretest.DefaultTenant,
			customSearch(stringTerm("sector", metadata.SearchGT, "AA")))
		require.NoError(t, err)
		require.Equal(t, []string{scalar.Header.ObjectID.String()}, resultIDs(ordered))
	})
}

func TestSearchOrderedAndIn(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		dec := func(s string) metadata.Value {
			parsed, err := metadata.ParseDecimal(s)
			require.NoError(t, err)
			return metadata.DecimalValue(parsed)
		}

		small := saveWithAttrs(ctx, t, db, map[string]metadata.Value{
			"rows": metadata.IntValue(100), "notional": dec("9.5"),
		})
		large := saveWithAttrs(ctx, t, db, map[string]metadata.Value{
			"rows": metadata.IntValue(5000), "notional": dec("100.25"),
		})

		greater, err := db.Search(ctx, metastoretest.DefaultTenant,
			customSearch(term("rows", metadata.BasicTypeInteger, metadata.SearchGT, metadata.IntValue(100))))
		require.NoError(t, err)
		require.Equal(t, []string{large.Header.ObjectID.String()}, resultIDs(greater))

		atLeast, err := db.Search(ctx, metastoretest.DefaultTenant,
			customSearch(term("rows", metadata.BasicTypeInteger, metadata.SearchGE, metadata.IntValue(100))))
		require.NoError(t, err)
		require.Len(t, atLeast, 2)

		// decimals compare numerically, not lexically
		decimals, err := db.Search(ctx, metastoretest.DefaultTenant,
			customSearch(term("notional", metadata.BasicTypeDecimal, metadata.SearchLT, dec("50"))))
		require.NoError(t, err)
		require.Equal(t, []string{small.Header.ObjectID.String()}, resultIDs(decimals))

		in, err := db.Search(ctx, metastoretest.DefaultTenant,
			customSearch(term("rows", metadata.BasicTypeInteger, metadata.SearchIN,
				metadata.ArrayValue(metadata.BasicTypeInteger,
					metadata.IntValue(5000), metadata.IntValue(7)))))
		require.NoError(t, err)
		require.Equal(t, []string{large.Header.ObjectID.String()}, resultIDs(in))

		// ordered operators require an orderable type
		_, err = db.Search(ctx, metastoretest.DefaultTenant,
			customSearch(term("flag", metadata.BasicTypeBoolean, metadata.SearchGT, metadata.BoolValue(true))))
		require.True(t, metastore.ErrInvalidSearch.Has(err))
	})
}

func TestSearchLogicalOperators(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		both := saveWithAttrs(ctx, t, db, map[string]metadata.Value{
			"region": metadata.StringValue("Scotland"), "owner": metadata.StringValue("risk"),
		})
		regionOnly := saveWithAttrs(ctx, t, db, map[string]metadata.Value{
			"region": metadata.StringValue("Scotland"), "owner": metadata.StringValue("finance"),
		})
		neither := saveWithAttrs(ctx, t, db, map[string]metadata.Value{
			"region": metadata.StringValue("Wales"), "owner": metadata.StringValue("finance"),
		})

		and, err := db.Search(ctx, metastoretest.DefaultTenant, customSearch(
			logical(metadata.LogicalAND,
				stringTerm("region", metadata.SearchEQ, "Scotland"),
				stringTerm("owner", metadata.SearchEQ, "risk"))))
		require.NoError(t, err)
		require.Equal(t, []string{both.Header.ObjectID.String()}, resultIDs(and))

		or, err := db.Search(ctx, metastoretest.DefaultTenant, customSearch(
			logical(metadata.LogicalOR,
				stringTerm("region", metadata.SearchEQ, "Wales"),
				stringTerm("owner", metadata.SearchEQ, "risk"))))
		require.NoError(t, err)
		require.ElementsMatch(t, resultIDs(or),
			[]string{both.Header.ObjectID.String(), neither.Header.ObjectID.String()})

		not, err := db.Search(ctx, metastoretest.DefaultTenant, customSearch(
			logical(metadata.LogicalNOT,
				stringTerm("owner", metadata.SearchEQ, "risk"))))
		require.NoError(t, err)
		require.ElementsMatch(t, resultIDs(not),
			[]string{regionOnly.Header.ObjectID.String(), neither.Header.ObjectID.String()})

		// NOT takes exactly one operand
		_, err = db.Search(ctx, metastoretest.DefaultTenant, customSearch(
			logical(metadata.LogicalNOT,
				stringTerm("region", metadata.SearchEQ, "Wales"),
				stringTerm("owner", metadata.SearchEQ, "risk"))))
		require.True(t, metastore.ErrInvalidSearch.Has(err))
	})
}

func TestSearchVersionScope(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		v1 := saveWithAttrs(ctx, t, db, map[string]metadata.Value{"stage": metadata.StringValue("draft")})

		v2 := metastoretest.NextVersion(v1, metastoretest.Timestamp(time.Hour))
		v2.Attrs["stage"] = metadata.StringValue("final")
		require.NoError(t, db.SaveNewVersions(ctx, metastoretest.DefaultTenant, []metadata.Tag{v2}))

		// by default only the latest version participates
		draft, err := db.Search(ctx, metastoretest.DefaultTenant,
			customSearch(stringTerm("stage", metadata.SearchEQ, "draft")))
		require.NoError(t, err)
		require.Empty(t, draft)

		// priorVersions brings superseded versions back in
		prior, err := db.Search(ctx, metastoretest.DefaultTenant, metadata.SearchParameters{
			ObjectType:    metadata.ObjectTypeCustom,
			Search:        stringTerm("stage", metadata.SearchEQ, "draft"),
			PriorVersions: true,
		})
		require.NoError(t, err)
		require.Len(t, prior, 1)
		require.Equal(t, 1, prior[0].Header.ObjectVersion)

		// priorTags does the same for superseded tags
		t2 := metastoretest.NextTag(v2, metastoretest.Timestamp(2*time.Hour))
		t2.Attrs["stage"] = metadata.StringValue("signed_off")
		require.NoError(t, db.SaveNewTags(ctx, metastoretest.DefaultTenant, []metadata.Tag{t2}))

		finalNow, err := db.Search(ctx, metastoretest.DefaultTenant,
			customSearch(stringTerm("stage", metadata.SearchEQ, "final")))
		require.NoError(t, err)
		require.Empty(t, finalNow)

		priorTags, err := db.Search(ctx, metastoretest.DefaultTenant, metadata.SearchParameters{
			ObjectType: metadata.ObjectTypeCustom,
			Search:     stringTerm("stage", metadata.SearchEQ, "final"),
			PriorTags:  true,
		})
		require.NoError(t, err)
		require.Len(t, priorTags, 1)
		require.Equal(t, 1, priorTags[0].Header.TagVersion)
	})
}

func TestSearchAsOf(t *testing.T) {
	metastoretest.Run(t, func(ctx context.Context, t *testing.T, db *metastore.DB) {
		v1 := saveWithAttrs(ctx, t, db, map[string]metadata.Value{"stage": metadata.StringValue("draft")})

		v2 := metastoretest.NextVersion(v1, metastoretest.Timestamp(time.Hour))
		v2.Attrs["stage"] = metadata.StringValue("final")
		require.NoError(t, db.SaveNewVersions(ctx, metastoretest.DefaultTenant, []metadata.Tag{v2}))

		searchAsOf := func(at time.Time, value string) []*metadata.Tag {
			results, err := db.Search(ctx, metastoretest.DefaultTenant, metadata.SearchParameters{
				ObjectType: metadata.ObjectTypeCustom,
				Search:     stringTerm("stage", metadata.SearchEQ, value),
				SearchAsOf: &at,
			})
			require.NoError(t, err)
			return results
		}

		// a cutoff before any object existed finds nothing
		before := metastoretest.Timestamp(-time.Hour)
		empty, err := db.Search(ctx, metastoretest.DefaultTenant, metadata.SearchParameters{
			ObjectType:    metadata.ObjectTypeCustom,
			Search:        stringTerm("stage", metadata.SearchEQ, "draft"),
			SearchAsOf:    &before,
			PriorVersions: true,
			PriorTags:     true,
		})
		require.NoError(t, err)
		require.Empty(t, empty)

		// within the window v1 is the latest version
		window := searchAsOf(metastoretest.Timestamp(30*time.Minute), "draft")
		require.Len(t, window, 1)
		require.Equal(t, 1, window[0].Header.ObjectVersion)

		// after v2 the draft version no longer counts as latest
		require.Empty(t, searchAsOf(metastoretest.Timestamp(2*time.Hour), "draft"))
		require.Len(t, searchAsOf(metastoretest.Timestamp(2*time.Hour), "final"), 1)
	})
}
