// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metaval_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"tracdap.io/tracmeta/metadata"
	"tracdap.io/tracmeta/metadata/metaval"
)

// validate runs one static validator over a message and returns the outcome.
func validate[T any](fn func(*metaval.Context, T), target T) error {
	v := metaval.ForMessage("test", target)
	metaval.Apply(v, fn)
	return v.Error()
}

func failures(t *testing.T, err error) []metaval.Failure {
	t.Helper()
	verr, ok := err.(*metaval.ValidationError)
	require.True(t, ok, "expected a validation error, got %v", err)
	return verr.Failures
}

func fixedSelector(objectType metadata.ObjectType) *metadata.TagSelector {
	return &metadata.TagSelector{
		ObjectType:    objectType,
		ObjectID:      uuid.New(),
		ObjectVersion: 1,
		TagVersion:    1,
	}
}

func TestTagSelectorValidator(t *testing.T) {
	valid := metadata.LatestSelector(metadata.ObjectTypeData, uuid.New())
	require.NoError(t, validate(metaval.TagSelectorValidator, valid))

	missingID := valid
	missingID.ObjectID = uuid.Nil
	err := validate(metaval.TagSelectorValidator, missingID)
	require.Error(t, err)
	require.Equal(t, "objectId", failures(t, err)[0].Path)

	twoCriteria := valid
	twoCriteria.ObjectVersion = 2
	err = validate(metaval.TagSelectorValidator, twoCriteria)
	require.ErrorContains(t, err, "exactly one of latestObject")

	noTagCriterion := metadata.TagSelector{
		ObjectType:   metadata.ObjectTypeData,
		ObjectID:     uuid.New(),
		LatestObject: true,
	}
	err = validate(metaval.TagSelectorValidator, noTagCriterion)
	require.ErrorContains(t, err, "exactly one of latestTag")

	badVersion := metadata.TagSelector{
		ObjectType:    metadata.ObjectTypeData,
		ObjectID:      uuid.New(),
		ObjectVersion: -1,
		LatestTag:     true,
	}
	err = validate(metaval.TagSelectorValidator, badVersion)
	require.ErrorContains(t, err, "positive value is required")
}

func TestTagUpdatesValidator(t *testing.T) {
	valid := []metadata.TagUpdate{
		{Operation: metadata.CreateOrReplaceAttr, AttrName: "region", Value: ptr(metadata.StringValue("uk"))},
		{Operation: metadata.DeleteAttr, AttrName: "stale_attr"},
		{Operation: metadata.ClearAllAttr},
	}
	require.NoError(t, validate(metaval.TagUpdatesValidator, valid))

	reserved := []metadata.TagUpdate{
		{Operation: metadata.CreateAttr, AttrName: "trac_create_time", Value: ptr(metadata.StringValue("x"))},
	}
	err := validate(metaval.TagUpdatesValidator, reserved)
	require.ErrorContains(t, err, "reserved")

	clearWithName := []metadata.TagUpdate{
		{Operation: metadata.ClearAllAttr, AttrName: "region"},
	}
	err = validate(metaval.TagUpdatesValidator, clearWithName)
	require.ErrorContains(t, err, "must not be set")

	deleteWithValue := []metadata.TagUpdate{
		{Operation: metadata.DeleteAttr, AttrName: "region", Value: ptr(metadata.StringValue("uk"))},
	}
	err = validate(metaval.TagUpdatesValidator, deleteWithValue)
	require.ErrorContains(t, err, "must not be set")

	missingValue := []metadata.TagUpdate{
		{Operation: metadata.AppendAttr, AttrName: "region"},
	}
	err = validate(metaval.TagUpdatesValidator, missingValue)
	require.ErrorContains(t, err, "a value is required")
}

func TestSearchParametersValidator(t *testing.T) {
	valid := metadata.SearchParameters{
		ObjectType: metadata.ObjectTypeData,
		Search: &metadata.SearchExpression{
			Term: &metadata.SearchTerm{
				AttrName:    "region",
				AttrType:    metadata.BasicTypeString,
				Operator:    metadata.SearchEQ,
				SearchValue: metadata.StringValue("uk"),
			},
		},
	}
	require.NoError(t, validate(metaval.SearchParametersValidator, valid))

	missingSearch := metadata.SearchParameters{ObjectType: metadata.ObjectTypeData}
	err := validate(metaval.SearchParametersValidator, missingSearch)
	require.ErrorContains(t, err, "a value is required")

	typeMismatch := valid
	typeMismatch.Search = &metadata.SearchExpression{
		Term: &metadata.SearchTerm{
			AttrName:    "region",
			AttrType:    metadata.BasicTypeString,
			Operator:    metadata.SearchEQ,
			SearchValue: metadata.IntValue(1),
		},
	}
	err = validate(metaval.SearchParametersValidator, typeMismatch)
	require.ErrorContains(t, err, "does not match attribute type")

	orderedBoolean := valid
	orderedBoolean.Search = &metadata.SearchExpression{
		Term: &metadata.SearchTerm{
			AttrName:    "flag",
			AttrType:    metadata.BasicTypeBoolean,
			Operator:    metadata.SearchGT,
			SearchValue: metadata.BoolValue(true),
		},
	}
	err = validate(metaval.SearchParametersValidator, orderedBoolean)
	require.ErrorContains(t, err, "not defined for attribute type")

	emptyIn := valid
	emptyIn.Search = &metadata.SearchExpression{
		Term: &metadata.SearchTerm{
			AttrName:    "region",
			AttrType:    metadata.BasicTypeString,
			Operator:    metadata.SearchIN,
			SearchValue: metadata.ArrayValue(metadata.BasicTypeString),
		},
	}
	err = validate(metaval.SearchParametersValidator, emptyIn)
	require.ErrorContains(t, err, "at least one search value")

	notArity := valid
	notArity.Search = &metadata.SearchExpression{
		Logical: &metadata.LogicalExpression{
			Operator: metadata.LogicalNOT,
			Expr:     []*metadata.SearchExpression{valid.Search, valid.Search},
		},
	}
	err = validate(metaval.SearchParametersValidator, notArity)
	require.ErrorContains(t, err, "NOT requires exactly one operand")

	bothSet := valid
	bothSet.Search = &metadata.SearchExpression{
		Term:    valid.Search.Term,
		Logical: &metadata.LogicalExpression{Operator: metadata.LogicalAND},
	}
	err = validate(metaval.SearchParametersValidator, bothSet)
	require.ErrorContains(t, err, "not both")
}

func TestObjectDefinitionValidator(t *testing.T) {
	valid := &metadata.ObjectDefinition{
		ObjectType: metadata.ObjectTypeCustom,
		Custom:     &metadata.CustomDefinition{SchemaType: "acme_widget", SchemaVersion: 1},
	}
	require.NoError(t, validate(metaval.ObjectDefinitionValidator, valid))

	missingPayload := &metadata.ObjectDefinition{ObjectType: metadata.ObjectTypeCustom}
	err := validate(metaval.ObjectDefinitionValidator, missingPayload)
	require.ErrorContains(t, err, "a value is required")

	strayPayload := &metadata.ObjectDefinition{
		ObjectType: metadata.ObjectTypeCustom,
		Custom:     &metadata.CustomDefinition{SchemaType: "acme_widget", SchemaVersion: 1},
		Config:     &metadata.ConfigDefinition{ConfigType: "stray"},
	}
	err = validate(metaval.ObjectDefinitionValidator, strayPayload)
	require.ErrorContains(t, err, "carries a CONFIG payload")

	unsetType := &metadata.ObjectDefinition{}
	err = validate(metaval.ObjectDefinitionValidator, unsetType)
	require.ErrorContains(t, err, "a value is required")
}

func TestSchemaValidator(t *testing.T) {
	valid := &metadata.SchemaDefinition{
		SchemaType: metadata.SchemaTypeTable,
		Table: &metadata.TableSchema{Fields: []metadata.FieldSchema{
			{FieldName: "customer_id", FieldOrder: 0, FieldType: metadata.BasicTypeString, BusinessKey: true},
			{FieldName: "balance", FieldOrder: 1, FieldType: metadata.BasicTypeDecimal},
		}},
	}
	require.NoError(t, validate(metaval.SchemaValidator, valid))

	noFields := &metadata.SchemaDefinition{
		SchemaType: metadata.SchemaTypeTable,
		Table:      &metadata.TableSchema{},
	}
	err := validate(metaval.SchemaValidator, noFields)
	require.ErrorContains(t, err, "at least one entry is required")

	outOfOrder := &metadata.SchemaDefinition{
		SchemaType: metadata.SchemaTypeTable,
		Table: &metadata.TableSchema{Fields: []metadata.FieldSchema{
			{FieldName: "customer_id", FieldOrder: 1, FieldType: metadata.BasicTypeString},
		}},
	}
	err = validate(metaval.SchemaValidator, outOfOrder)
	require.ErrorContains(t, err, "has order 1, expected 0")

	duplicateNames := &metadata.SchemaDefinition{
		SchemaType: metadata.SchemaTypeTable,
		Table: &metadata.TableSchema{Fields: []metadata.FieldSchema{
			{FieldName: "Amount", FieldOrder: 0, FieldType: metadata.BasicTypeFloat},
			{FieldName: "AMOUNT", FieldOrder: 1, FieldType: metadata.BasicTypeFloat},
		}},
	}
	err = validate(metaval.SchemaValidator, duplicateNames)
	require.ErrorContains(t, err, "case-insensitive")

	missingTable := &metadata.SchemaDefinition{SchemaType: metadata.SchemaTypeTable}
	err = validate(metaval.SchemaValidator, missingTable)
	require.ErrorContains(t, err, "schemaType is TABLE")
}

func TestDataValidator(t *testing.T) {
	valid := &metadata.DataDefinition{
		SchemaID:  fixedSelector(metadata.ObjectTypeSchema),
		StorageID: fixedSelector(metadata.ObjectTypeStorage),
		RowCount:  100,
	}
	require.NoError(t, validate(metaval.DataValidator, valid))

	bothSchemas := &metadata.DataDefinition{
		SchemaID:  fixedSelector(metadata.ObjectTypeSchema),
		Schema:    &metadata.SchemaDefinition{SchemaType: metadata.SchemaTypeTable},
		StorageID: fixedSelector(metadata.ObjectTypeStorage),
	}
	err := validate(metaval.DataValidator, bothSchemas)
	require.ErrorContains(t, err, "not both")

	neitherSchema := &metadata.DataDefinition{StorageID: fixedSelector(metadata.ObjectTypeStorage)}
	err = validate(metaval.DataValidator, neitherSchema)
	require.ErrorContains(t, err, "requires schemaId or an embedded schema")

	wrongRefType := &metadata.DataDefinition{
		SchemaID:  fixedSelector(metadata.ObjectTypeModel),
		StorageID: fixedSelector(metadata.ObjectTypeStorage),
	}
	err = validate(metaval.DataValidator, wrongRefType)
	require.ErrorContains(t, err, "must be of type SCHEMA")

	missingStorage := &metadata.DataDefinition{SchemaID: fixedSelector(metadata.ObjectTypeSchema)}
	err = validate(metaval.DataValidator, missingStorage)
	require.Error(t, err)
	require.Equal(t, "storageId", failures(t, err)[0].Path)
}

func TestFileValidator(t *testing.T) {
	valid := &metadata.FileDefinition{
		Name:      "report.pdf",
		Extension: "pdf",
		MimeType:  "application/pdf",
		Size:      2048,
		StorageID: fixedSelector(metadata.ObjectTypeStorage),
	}
	require.NoError(t, validate(metaval.FileValidator, valid))

	badExtension := *valid
	badExtension.Extension = ".PDF"
	err := validate(metaval.FileValidator, &badExtension)
	require.ErrorContains(t, err, "lower case with no leading dot")

	badName := *valid
	badName.Name = "bad/name.pdf"
	err = validate(metaval.FileValidator, &badName)
	require.ErrorContains(t, err, "illegal characters")

	negativeSize := *valid
	negativeSize.Size = -1
	err = validate(metaval.FileValidator, &negativeSize)
	require.ErrorContains(t, err, "negative value is not allowed")
}

func TestModelValidator(t *testing.T) {
	valid := &metadata.ModelDefinition{
		Language:   "python",
		Repository: "model_repo",
		Path:       "src/pnl",
		EntryPoint: "pnl.PnlModel",
		Parameters: map[string]metadata.ModelParameter{
			"cutoff": {ParamType: metadata.BasicTypeDate},
		},
		Inputs: map[string]metadata.ModelInputSchema{
			"positions": {},
		},
	}
	require.NoError(t, validate(metaval.ModelValidator, valid))

	missingLanguage := *valid
	missingLanguage.Language = ""
	err := validate(metaval.ModelValidator, &missingLanguage)
	require.Error(t, err)
	require.Equal(t, "language", failures(t, err)[0].Path)

	badDefault := *valid
	badDefault.Parameters = map[string]metadata.ModelParameter{
		"cutoff": {ParamType: metadata.BasicTypeDate, DefaultValue: ptr(metadata.IntValue(1))},
	}
	err = validate(metaval.ModelValidator, &badDefault)
	require.ErrorContains(t, err, "does not match parameter type")

	badKey := *valid
	badKey.Inputs = map[string]metadata.ModelInputSchema{"not an identifier": {}}
	err = validate(metaval.ModelValidator, &badKey)
	require.ErrorContains(t, err, "not a valid identifier")
}

func TestJobValidator(t *testing.T) {
	valid := &metadata.JobDefinition{
		JobType: metadata.JobTypeRunModel,
		RunModel: &metadata.RunModelJob{
			Model: fixedSelector(metadata.ObjectTypeModel),
			Parameters: map[string]metadata.Value{
				"cutoff": metadata.StringValue("2025-06-30"),
			},
			Inputs: map[string]*metadata.TagSelector{
				"positions": fixedSelector(metadata.ObjectTypeData),
			},
		},
	}
	require.NoError(t, validate(metaval.JobValidator, valid))

	wrongVariant := &metadata.JobDefinition{
		JobType:     metadata.JobTypeRunModel,
		ImportModel: &metadata.ImportModelJob{Language: "python", Repository: "r", EntryPoint: "e"},
	}
	err := validate(metaval.JobValidator, wrongVariant)
	require.Error(t, err)
	// the matching variant is missing and the stray one is present
	require.Len(t, failures(t, err), 2)

	badInputRef := &metadata.JobDefinition{
		JobType: metadata.JobTypeRunModel,
		RunModel: &metadata.RunModelJob{
			Model: fixedSelector(metadata.ObjectTypeModel),
			Inputs: map[string]*metadata.TagSelector{
				"positions": fixedSelector(metadata.ObjectTypeModel),
			},
		},
	}
	err = validate(metaval.JobValidator, badInputRef)
	require.ErrorContains(t, err, "must be of type DATA")
}

func TestStorageValidator(t *testing.T) {
	now := time.Now().UTC()
	valid := &metadata.StorageDefinition{
		DataItems: map[string]metadata.StorageItem{
			"data/part-0": {Incarnations: []metadata.StorageIncarnation{{
				IncarnationIndex:     0,
				IncarnationTimestamp: now,
				Status:               metadata.IncarnationAvailable,
				Copies: []metadata.StorageCopy{{
					StorageKey:    "DATA_BUCKET",
					StoragePath:   "data/part-0/version-1",
					StorageFormat: "parquet",
					Status:        metadata.CopyAvailable,
					CopyTimestamp: now,
				}},
			}}},
		},
	}
	require.NoError(t, validate(metaval.StorageValidator, valid))

	outOfOrder := &metadata.StorageDefinition{
		DataItems: map[string]metadata.StorageItem{
			"data/part-0": {Incarnations: []metadata.StorageIncarnation{{
				IncarnationIndex: 3,
				Status:           metadata.IncarnationAvailable,
			}}},
		},
	}
	err := validate(metaval.StorageValidator, outOfOrder)
	require.ErrorContains(t, err, "incarnation index 3 out of order")

	noItems := &metadata.StorageDefinition{}
	err = validate(metaval.StorageValidator, noItems)
	require.ErrorContains(t, err, "at least one entry is required")
}

func TestResourceValidator(t *testing.T) {
	valid := &metadata.ResourceDefinition{
		ResourceType: "model_repository",
		Protocol:     "git",
		Secrets:      map[string]string{"token": "alias_in_secret_store"},
	}
	require.NoError(t, validate(metaval.ResourceValidator, valid))

	missingProtocol := *valid
	missingProtocol.Protocol = ""
	err := validate(metaval.ResourceValidator, &missingProtocol)
	require.Error(t, err)
	require.Equal(t, "protocol", failures(t, err)[0].Path)
}

func TestLabelLengthLimit(t *testing.T) {
	longLabel := strings.Repeat("x", metaval.MaxLabelLength+1)
	schema := &metadata.SchemaDefinition{
		SchemaType: metadata.SchemaTypeTable,
		Table: &metadata.TableSchema{Fields: []metadata.FieldSchema{
			{FieldName: "f1", FieldOrder: 0, FieldType: metadata.BasicTypeString, Label: longLabel},
		}},
	}
	err := validate(metaval.SchemaValidator, schema)
	require.ErrorContains(t, err, "label is too long")
}

func ptr[T any](v T) *T { return &v }
