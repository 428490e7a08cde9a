// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metaval_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tracdap.io/tracmeta/metadata"
	"tracdap.io/tracmeta/metadata/metaval"
)

// check runs one primitive against a value and reports whether it passed.
func check[T any](fn func(*metaval.Context, T), value T) bool {
	v := metaval.ForMessage("check", value)
	metaval.Apply(v, fn)
	return !v.Failed()
}

func TestIdentifierCheck(t *testing.T) {
	require.True(t, check(metaval.Identifier, "customer_id"))
	require.True(t, check(metaval.Identifier, "_private"))
	require.True(t, check(metaval.Identifier, "Field9"))

	require.False(t, check(metaval.Identifier, ""))
	require.False(t, check(metaval.Identifier, "9field"))
	require.False(t, check(metaval.Identifier, "has space"))
	require.False(t, check(metaval.Identifier, "has-dash"))
}

func TestNotTracReservedCheck(t *testing.T) {
	require.True(t, check(metaval.NotTracReserved, "business_date"))

	require.False(t, check(metaval.NotTracReserved, "trac_create_time"))
	require.False(t, check(metaval.NotTracReserved, "TRAC_anything"))
	require.False(t, check(metaval.NotTracReserved, "_hidden"))
}

func TestFileNameCheck(t *testing.T) {
	require.True(t, check(metaval.FileName, "report.pdf"))
	require.True(t, check(metaval.FileName, "Q1 results (final)"))

	require.False(t, check(metaval.FileName, ""))
	require.False(t, check(metaval.FileName, "."))
	require.False(t, check(metaval.FileName, ".."))
	require.False(t, check(metaval.FileName, "a/b"))
	require.False(t, check(metaval.FileName, `a\b`))
	require.False(t, check(metaval.FileName, "what?.txt"))
	require.False(t, check(metaval.FileName, "trailing "))
	require.False(t, check(metaval.FileName, "trailing."))
	require.False(t, check(metaval.FileName, "ctrl\x01char"))
}

func TestRelativePathCheck(t *testing.T) {
	require.True(t, check(metaval.RelativePath, "src/model.py"))
	require.True(t, check(metaval.RelativePath, "single_file.py"))

	require.False(t, check(metaval.RelativePath, ""))
	require.False(t, check(metaval.RelativePath, "/absolute/path"))
	require.False(t, check(metaval.RelativePath, `C:\windows\path`))
	require.False(t, check(metaval.RelativePath, `back\slash`))
	require.False(t, check(metaval.RelativePath, "parent/../escape"))
	require.False(t, check(metaval.RelativePath, "double//slash"))
	require.False(t, check(metaval.RelativePath, "./current"))
}

func TestMimeTypeCheck(t *testing.T) {
	require.True(t, check(metaval.MimeType, "text/plain"))
	require.True(t, check(metaval.MimeType, "application/vnd.ms-excel"))

	require.False(t, check(metaval.MimeType, "noslash"))
	require.False(t, check(metaval.MimeType, "/plain"))
	require.False(t, check(metaval.MimeType, "text/"))
	require.False(t, check(metaval.MimeType, "text / plain"))
}

func TestTagValueCheck(t *testing.T) {
	require.True(t, check(metaval.TagValue, metadata.StringValue("plain")))
	require.True(t, check(metaval.TagValue, metadata.ArrayValue(
		metadata.BasicTypeInteger, metadata.IntValue(1), metadata.IntValue(2))))

	require.False(t, check(metaval.TagValue, metadata.Value{Type: metadata.BasicTypeMap}))
	require.False(t, check(metaval.TagValue, metadata.ArrayValue(
		metadata.BasicTypeInteger, metadata.StringValue("mixed"))))

	// an empty array cannot survive a save/load round trip
	require.False(t, check(metaval.TagValue, metadata.ArrayValue(metadata.BasicTypeString)))
}

func TestCaseInsensitiveDuplicatesCheck(t *testing.T) {
	require.True(t, check(metaval.CaseInsensitiveDuplicates, []string{"alpha", "beta"}))
	require.False(t, check(metaval.CaseInsensitiveDuplicates, []string{"Alpha", "ALPHA"}))
}

func TestNumericChecks(t *testing.T) {
	require.True(t, check(metaval.Positive[int], 1))
	require.False(t, check(metaval.Positive[int], 0))
	require.False(t, check(metaval.Positive[int], -1))

	require.True(t, check(metaval.NotNegative[int64], 0))
	require.False(t, check(metaval.NotNegative[int64], -1))
}
