// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metaval

import (
	"maps"
	"slices"
	"strings"

	"tracdap.io/tracmeta/metadata"
)

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// Core message targets in the validation registry.
const (
	TargetTagSelector      = "TagSelector"
	TargetTagUpdates       = "TagUpdates"
	TargetSearchParameters = "SearchParameters"
	TargetObjectDefinition = "ObjectDefinition"
)

func init() {
	Register(ValidationKey{Kind: Static, Target: TargetTagSelector},
		func(v *Context) { Apply(v, TagSelectorValidator) })
	Register(ValidationKey{Kind: Static, Target: TargetTagUpdates},
		func(v *Context) { Apply(v, TagUpdatesValidator) })
	Register(ValidationKey{Kind: Static, Target: TargetSearchParameters},
		func(v *Context) { Apply(v, SearchParametersValidator) })
	Register(ValidationKey{Kind: Static, Target: TargetObjectDefinition},
		func(v *Context) { Apply(v, ObjectDefinitionValidator) })

	Register(ValidationKey{Kind: Static, Target: metadata.ObjectTypeSchema.String()},
		func(v *Context) { Apply(v, SchemaValidator) })
	Register(ValidationKey{Kind: Static, Target: metadata.ObjectTypeData.String()},
		func(v *Context) { Apply(v, DataValidator) })
	Register(ValidationKey{Kind: Static, Target: metadata.ObjectTypeModel.String()},
		func(v *Context) { Apply(v, ModelValidator) })
	Register(ValidationKey{Kind: Static, Target: metadata.ObjectTypeFlow.String()},
		func(v *Context) { Apply(v, FlowValidator) })
	Register(ValidationKey{Kind: Static, Target: metadata.ObjectTypeJob.String()},
		func(v *Context) { Apply(v, JobValidator) })
	Register(ValidationKey{Kind: Static, Target: metadata.ObjectTypeFile.String()},
		func(v *Context) { Apply(v, FileValidator) })
	Register(ValidationKey{Kind: Static, Target: metadata.ObjectTypeStorage.String()},
		func(v *Context) { Apply(v, StorageValidator) })
	Register(ValidationKey{Kind: Static, Target: metadata.ObjectTypeCustom.String()},
		func(v *Context) { Apply(v, CustomValidator) })
	Register(ValidationKey{Kind: Static, Target: metadata.ObjectTypeConfig.String()},
		func(v *Context) { Apply(v, ConfigValidator) })
	Register(ValidationKey{Kind: Static, Target: metadata.ObjectTypeResource.String()},
		func(v *Context) { Apply(v, ResourceValidator) })
}

// TagSelectorValidator checks one selector: a recognised type, an id, and
// exactly one criterion on each axis.
func TagSelectorValidator(v *Context, s metadata.TagSelector) {
	v.Push("objectType", s.ObjectType)
	Apply(v, NonZeroEnum[metadata.ObjectType])
	Apply(v, RecognizedEnum[metadata.ObjectType])
	v.Pop()

	v.Push("objectId", s.ObjectID)
	Apply(v, UUID)
	v.Pop()

	objectCriteria := 0
	if s.LatestObject {
		objectCriteria++
	}
	if s.ObjectVersion != 0 {
		objectCriteria++
		v.Push("objectVersion", s.ObjectVersion)
		Apply(v, Positive[int])
		v.Pop()
	}
	if s.ObjectAsOf != nil {
		objectCriteria++
	}
	if objectCriteria != 1 {
		v.Fail("a selector requires exactly one of latestObject, objectVersion or objectAsOf, got %d", objectCriteria)
		return
	}

	tagCriteria := 0
	if s.LatestTag {
		tagCriteria++
	}
	if s.TagVersion != 0 {
		tagCriteria++
		v.Push("tagVersion", s.TagVersion)
		Apply(v, Positive[int])
		v.Pop()
	}
	if s.TagAsOf != nil {
		tagCriteria++
	}
	if tagCriteria != 1 {
		v.Fail("a selector requires exactly one of latestTag, tagVersion or tagAsOf, got %d", tagCriteria)
	}
}

// TagUpdatesValidator checks a list of attribute updates as supplied on a
// write request. Reserved names are rejected here; controlled attributes are
// stamped by the platform after user updates run.
func TagUpdatesValidator(v *Context, updates []metadata.TagUpdate) {
	for i, update := range updates {
		v.PushRepeatedItem(i, update)
		Apply(v, tagUpdateValidator)
		v.Pop()
	}
}

func tagUpdateValidator(v *Context, u metadata.TagUpdate) {
	v.Push("operation", u.Operation)
	Apply(v, NonZeroEnum[metadata.TagOperation])
	Apply(v, RecognizedEnum[metadata.TagOperation])
	v.Pop()

	if !u.Operation.Recognized() || u.Operation == metadata.TagOperationUnset {
		return
	}

	v.Push("attrName", u.AttrName)
	if u.Operation == metadata.ClearAllAttr {
		v.Omitted()
	} else if v.Required() {
		Apply(v, Identifier)
		Apply(v, NotTracReserved)
	}
	v.Pop()

	v.PushOneOf("value", u.Value)
	switch u.Operation {
	case metadata.DeleteAttr, metadata.ClearAllAttr:
		v.Omitted()
	default:
		if v.Required() {
			Apply(v, func(v *Context, value *metadata.Value) { TagValue(v, *value) })
		}
	}
	v.Pop()
}

// SearchParametersValidator checks a complete search request.
func SearchParametersValidator(v *Context, p metadata.SearchParameters) {
	v.Push("objectType", p.ObjectType)
	Apply(v, NonZeroEnum[metadata.ObjectType])
	Apply(v, RecognizedEnum[metadata.ObjectType])
	v.Pop()

	v.PushOneOf("search", p.Search)
	if v.Required() {
		Apply(v, searchExpressionValidator)
	}
	v.Pop()
}

func searchExpressionValidator(v *Context, e *metadata.SearchExpression) {
	switch {
	case e.Term != nil && e.Logical != nil:
		v.Fail("an expression must be a term or a logical expression, not both")
	case e.Term != nil:
		v.Push("term", e.Term)
		Apply(v, searchTermValidator)
		v.Pop()
	case e.Logical != nil:
		v.Push("logical", e.Logical)
		Apply(v, logicalExpressionValidator)
		v.Pop()
	default:
		v.Fail("an expression must be a term or a logical expression")
	}
}

func searchTermValidator(v *Context, t *metadata.SearchTerm) {
	v.Push("attrName", t.AttrName)
	if v.Required() {
		Apply(v, Identifier)
	}
	v.Pop()

	v.Push("attrType", t.AttrType)
	Apply(v, NonZeroEnum[metadata.BasicType])
	Apply(v, PrimitiveType)
	v.Pop()

	v.Push("operator", t.Operator)
	Apply(v, NonZeroEnum[metadata.SearchOperator])
	Apply(v, RecognizedEnum[metadata.SearchOperator])
	v.Pop()

	if !t.AttrType.Primitive() || !t.Operator.Recognized() || t.Operator == metadata.SearchOperatorUnset {
		return
	}

	v.Push("searchValue", t.SearchValue)
	switch {
	case t.Operator == metadata.SearchIN:
		if t.SearchValue.Type != metadata.BasicTypeArray {
			v.Fail("IN requires a list of search values")
		} else if err := t.SearchValue.Verify(); err != nil {
			v.Fail("%v", err)
		} else if len(t.SearchValue.Items) == 0 {
			v.Fail("IN requires at least one search value")
		} else if t.SearchValue.ElemType != t.AttrType {
			v.Fail("IN list of %v does not match attribute type %v", t.SearchValue.ElemType, t.AttrType)
		}
	case t.Operator.Ordered() && !t.AttrType.Ordered():
		v.Fail("operator %v is not defined for attribute type %v", t.Operator, t.AttrType)
	case t.SearchValue.Type != t.AttrType:
		v.Fail("search value of type %v does not match attribute type %v", t.SearchValue.Type, t.AttrType)
	default:
		Apply(v, PrimitiveValue)
	}
	v.Pop()
}

func logicalExpressionValidator(v *Context, l *metadata.LogicalExpression) {
	v.Push("operator", l.Operator)
	Apply(v, NonZeroEnum[metadata.LogicalOperator])
	Apply(v, RecognizedEnum[metadata.LogicalOperator])
	v.Pop()

	v.PushRepeated("expr", l.Expr)
	switch l.Operator {
	case metadata.LogicalNOT:
		if len(l.Expr) != 1 {
			v.Fail("NOT requires exactly one operand, got %d", len(l.Expr))
		}
	case metadata.LogicalAND, metadata.LogicalOR:
		if len(l.Expr) < 2 {
			v.Fail("%v requires at least two operands, got %d", l.Operator, len(l.Expr))
		}
	}
	v.Pop()

	for i, sub := range l.Expr {
		v.PushRepeatedItem(i, sub)
		if v.Required() {
			Apply(v, searchExpressionValidator)
		}
		v.Pop()
	}
}

// definitionPayloads maps each object kind to its payload extractor, used to
// check that exactly the matching payload is set.
var definitionPayloads = map[metadata.ObjectType]func(*metadata.ObjectDefinition) any{
	metadata.ObjectTypeData:     func(d *metadata.ObjectDefinition) any { return d.Data },
	metadata.ObjectTypeModel:    func(d *metadata.ObjectDefinition) any { return d.Model },
	metadata.ObjectTypeFlow:     func(d *metadata.ObjectDefinition) any { return d.Flow },
	metadata.ObjectTypeJob:      func(d *metadata.ObjectDefinition) any { return d.Job },
	metadata.ObjectTypeFile:     func(d *metadata.ObjectDefinition) any { return d.File },
	metadata.ObjectTypeSchema:   func(d *metadata.ObjectDefinition) any { return d.Schema },
	metadata.ObjectTypeStorage:  func(d *metadata.ObjectDefinition) any { return d.Storage },
	metadata.ObjectTypeCustom:   func(d *metadata.ObjectDefinition) any { return d.Custom },
	metadata.ObjectTypeConfig:   func(d *metadata.ObjectDefinition) any { return d.Config },
	metadata.ObjectTypeResource: func(d *metadata.ObjectDefinition) any { return d.Resource },
}

// ObjectDefinitionValidator checks the envelope and dispatches the payload to
// the registered per-kind validator.
func ObjectDefinitionValidator(v *Context, def *metadata.ObjectDefinition) {
	v.Push("objectType", def.ObjectType)
	Apply(v, NonZeroEnum[metadata.ObjectType])
	Apply(v, RecognizedEnum[metadata.ObjectType])
	v.Pop()

	if def.ObjectType == metadata.ObjectTypeUnset || !def.ObjectType.Recognized() {
		return
	}

	for _, objectType := range metadata.ObjectTypes() {
		if objectType == def.ObjectType {
			continue
		}
		if payload, ok := definitionPayloads[objectType]; ok && !isNil(payload(def)) {
			v.Fail("definition of type %v carries a %v payload", def.ObjectType, objectType)
			return
		}
	}

	v.PushOneOf(strings.ToLower(def.ObjectType.String()), definitionPayloads[def.ObjectType](def))
	if v.Required() {
		ApplyRegistered(v, ValidationKey{Kind: Static, Target: def.ObjectType.String()})
	}
	v.Pop()
}

// SchemaValidator checks a schema payload, embedded or standalone.
func SchemaValidator(v *Context, s *metadata.SchemaDefinition) {
	v.Push("schemaType", s.SchemaType)
	Apply(v, NonZeroEnum[metadata.SchemaType])
	Apply(v, RecognizedEnum[metadata.SchemaType])
	v.Pop()

	v.PushOneOf("table", s.Table)
	if v.IfAndOnlyIf(s.SchemaType == metadata.SchemaTypeTable, "schemaType is TABLE") {
		Apply(v, tableSchemaValidator)
	}
	v.Pop()
}

func tableSchemaValidator(v *Context, t *metadata.TableSchema) {
	v.PushRepeated("fields", t.Fields)
	Apply(v, ListNotEmpty[metadata.FieldSchema])
	v.Pop()

	names := make([]string, 0, len(t.Fields))
	for i, field := range t.Fields {
		names = append(names, field.FieldName)

		v.PushRepeatedItem(i, field)

		v.Push("fieldName", field.FieldName)
		if v.Required() {
			Apply(v, Identifier)
		}
		v.Pop()

		if field.FieldOrder != i {
			v.Fail("field [%s] has order %d, expected %d", field.FieldName, field.FieldOrder, i)
		}

		v.Push("fieldType", field.FieldType)
		Apply(v, NonZeroEnum[metadata.BasicType])
		Apply(v, PrimitiveType)
		v.Pop()

		v.Push("label", field.Label)
		Apply(v, LabelLengthLimit)
		v.Pop()

		v.Pop()
	}

	v.PushRepeated("fields", names)
	Apply(v, CaseInsensitiveDuplicates)
	v.Pop()
}

// DataValidator checks a data payload: a schema by reference or embedded, and
// the storage reference.
func DataValidator(v *Context, d *metadata.DataDefinition) {
	if d.SchemaID != nil && d.Schema != nil {
		v.Fail("a data object takes either schemaId or an embedded schema, not both")
		return
	}
	if d.SchemaID == nil && d.Schema == nil {
		v.Fail("a data object requires schemaId or an embedded schema")
		return
	}

	v.PushOneOf("schemaId", d.SchemaID)
	if v.Optional() {
		Apply(v, selectorOfType(metadata.ObjectTypeSchema))
	}
	v.Pop()

	v.PushOneOf("schema", d.Schema)
	if v.Optional() {
		Apply(v, SchemaValidator)
	}
	v.Pop()

	v.PushOneOf("storageId", d.StorageID)
	if v.Required() {
		Apply(v, selectorOfType(metadata.ObjectTypeStorage))
	}
	v.Pop()

	v.Push("rowCount", d.RowCount)
	Apply(v, NotNegative[int64])
	v.Pop()
}

// selectorOfType checks an embedded selector and its declared type.
func selectorOfType(objectType metadata.ObjectType) func(*Context, *metadata.TagSelector) {
	return func(v *Context, s *metadata.TagSelector) {
		TagSelectorValidator(v, *s)
		if s.ObjectType != metadata.ObjectTypeUnset && s.ObjectType != objectType {
			v.Fail("reference must be of type %v, got %v", objectType, s.ObjectType)
		}
	}
}

// ModelValidator checks a model payload and its calling contract.
func ModelValidator(v *Context, m *metadata.ModelDefinition) {
	for _, field := range []struct {
		name  string
		value string
	}{
		{"language", m.Language},
		{"repository", m.Repository},
		{"entryPoint", m.EntryPoint},
	} {
		v.Push(field.name, field.value)
		v.Required()
		v.Pop()
	}

	v.Push("path", m.Path)
	if v.Optional() {
		Apply(v, RelativePath)
	}
	v.Pop()

	modelParametersValidator(v, "parameters", m.Parameters)
	modelSchemasValidator(v, "inputs", m.Inputs)
	modelSchemasValidator(v, "outputs", m.Outputs)
}

func modelParametersValidator(v *Context, name string, params map[string]metadata.ModelParameter) {
	v.PushMap(name, params)
	defer v.Pop()

	CaseInsensitiveDuplicates(v, sortedKeys(params))

	for _, key := range sortedKeys(params) {
		param := params[key]
		v.PushMapValue(key, param)

		keyedIdentifier(v, key)

		v.Push("paramType", param.ParamType)
		Apply(v, NonZeroEnum[metadata.BasicType])
		Apply(v, PrimitiveType)
		v.Pop()

		v.Push("label", param.Label)
		Apply(v, LabelLengthLimit)
		v.Pop()

		v.PushOneOf("defaultValue", param.DefaultValue)
		if v.Optional() {
			Apply(v, func(v *Context, value *metadata.Value) {
				PrimitiveValue(v, *value)
				if value.Type != param.ParamType {
					v.Fail("default of type %v does not match parameter type %v", value.Type, param.ParamType)
				}
			})
		}
		v.Pop()

		v.Pop()
	}
}

func modelSchemasValidator(v *Context, name string, schemas map[string]metadata.ModelInputSchema) {
	v.PushMap(name, schemas)
	defer v.Pop()

	CaseInsensitiveDuplicates(v, sortedKeys(schemas))

	for _, key := range sortedKeys(schemas) {
		schema := schemas[key]
		v.PushMapValue(key, schema)

		keyedIdentifier(v, key)

		v.PushOneOf("schema", schema.Schema)
		if v.Optional() {
			Apply(v, SchemaValidator)
		}
		v.Pop()

		v.Push("label", schema.Label)
		Apply(v, LabelLengthLimit)
		v.Pop()

		v.Pop()
	}
}

// keyedIdentifier validates a map key as an identifier at the current
// location.
func keyedIdentifier(v *Context, key string) {
	if !metadata.IsIdentifier(key) {
		v.Fail("[%s] is not a valid identifier", key)
	}
}

// JobValidator checks a job payload: the job type and exactly the matching
// variant.
func JobValidator(v *Context, j *metadata.JobDefinition) {
	v.Push("jobType", j.JobType)
	Apply(v, NonZeroEnum[metadata.JobType])
	Apply(v, RecognizedEnum[metadata.JobType])
	v.Pop()

	v.PushOneOf("runModel", j.RunModel)
	if v.IfAndOnlyIf(j.JobType == metadata.JobTypeRunModel, "jobType is RUN_MODEL") {
		Apply(v, runModelValidator)
	}
	v.Pop()

	v.PushOneOf("runFlow", j.RunFlow)
	if v.IfAndOnlyIf(j.JobType == metadata.JobTypeRunFlow, "jobType is RUN_FLOW") {
		Apply(v, runFlowValidator)
	}
	v.Pop()

	v.PushOneOf("importModel", j.ImportModel)
	if v.IfAndOnlyIf(j.JobType == metadata.JobTypeImportModel, "jobType is IMPORT_MODEL") {
		Apply(v, importModelValidator)
	}
	v.Pop()
}

func runModelValidator(v *Context, j *metadata.RunModelJob) {
	v.PushOneOf("model", j.Model)
	if v.Required() {
		Apply(v, selectorOfType(metadata.ObjectTypeModel))
	}
	v.Pop()

	jobValuesValidator(v, "parameters", j.Parameters)
	jobSelectorsValidator(v, "inputs", j.Inputs, metadata.ObjectTypeData)
	jobSelectorsValidator(v, "outputs", j.Outputs, metadata.ObjectTypeData)
}

func runFlowValidator(v *Context, j *metadata.RunFlowJob) {
	v.PushOneOf("flow", j.Flow)
	if v.Required() {
		Apply(v, selectorOfType(metadata.ObjectTypeFlow))
	}
	v.Pop()

	jobSelectorsValidator(v, "models", j.Models, metadata.ObjectTypeModel)
	jobValuesValidator(v, "parameters", j.Parameters)
	jobSelectorsValidator(v, "inputs", j.Inputs, metadata.ObjectTypeData)
	jobSelectorsValidator(v, "outputs", j.Outputs, metadata.ObjectTypeData)
}

func importModelValidator(v *Context, j *metadata.ImportModelJob) {
	v.Push("language", j.Language)
	v.Required()
	v.Pop()

	v.Push("repository", j.Repository)
	v.Required()
	v.Pop()

	v.Push("entryPoint", j.EntryPoint)
	v.Required()
	v.Pop()

	v.Push("path", j.Path)
	if v.Optional() {
		Apply(v, RelativePath)
	}
	v.Pop()
}

func jobValuesValidator(v *Context, name string, values map[string]metadata.Value) {
	v.PushMap(name, values)
	defer v.Pop()

	for _, key := range sortedKeys(values) {
		v.PushMapValue(key, values[key])
		keyedIdentifier(v, key)
		Apply(v, PrimitiveValue)
		v.Pop()
	}
}

func jobSelectorsValidator(v *Context, name string, selectors map[string]*metadata.TagSelector, objectType metadata.ObjectType) {
	v.PushMap(name, selectors)
	defer v.Pop()

	for _, key := range sortedKeys(selectors) {
		v.PushMapValue(key, selectors[key])
		keyedIdentifier(v, key)
		if v.Required() {
			Apply(v, selectorOfType(objectType))
		}
		v.Pop()
	}
}

// FileValidator checks a file payload.
func FileValidator(v *Context, f *metadata.FileDefinition) {
	v.Push("name", f.Name)
	if v.Required() {
		Apply(v, FileName)
	}
	v.Pop()

	v.Push("extension", f.Extension)
	if v.Optional() {
		Apply(v, func(v *Context, ext string) {
			if strings.HasPrefix(ext, ".") || ext != strings.ToLower(ext) {
				v.Fail("extension [%s] must be lower case with no leading dot", ext)
			}
		})
	}
	v.Pop()

	v.Push("mimeType", f.MimeType)
	if v.Required() {
		Apply(v, MimeType)
	}
	v.Pop()

	v.Push("size", f.Size)
	Apply(v, NotNegative[int64])
	v.Pop()

	v.PushOneOf("storageId", f.StorageID)
	if v.Required() {
		Apply(v, selectorOfType(metadata.ObjectTypeStorage))
	}
	v.Pop()
}

// StorageValidator checks a storage payload: data items, their incarnations
// and copies.
func StorageValidator(v *Context, s *metadata.StorageDefinition) {
	v.PushMap("dataItems", s.DataItems)
	Apply(v, MapNotEmpty[metadata.StorageItem])
	v.Pop()

	for _, key := range sortedKeys(s.DataItems) {
		item := s.DataItems[key]
		v.PushMapValue(key, item)

		v.PushRepeated("incarnations", item.Incarnations)
		Apply(v, ListNotEmpty[metadata.StorageIncarnation])
		v.Pop()

		for i, incarnation := range item.Incarnations {
			v.PushRepeatedItem(i, incarnation)

			if incarnation.IncarnationIndex != i {
				v.Fail("incarnation index %d out of order, expected %d", incarnation.IncarnationIndex, i)
			}

			v.Push("status", incarnation.Status)
			Apply(v, NonZeroEnum[metadata.IncarnationStatus])
			Apply(v, RecognizedEnum[metadata.IncarnationStatus])
			v.Pop()

			for c, storageCopy := range incarnation.Copies {
				v.PushRepeatedItem(c, storageCopy)

				v.Push("storageKey", storageCopy.StorageKey)
				v.Required()
				v.Pop()

				v.Push("storagePath", storageCopy.StoragePath)
				if v.Required() {
					Apply(v, RelativePath)
				}
				v.Pop()

				v.Push("status", storageCopy.Status)
				Apply(v, NonZeroEnum[metadata.CopyStatus])
				Apply(v, RecognizedEnum[metadata.CopyStatus])
				v.Pop()

				v.Pop()
			}

			v.Pop()
		}

		v.Pop()
	}
}

// CustomValidator checks a custom payload.
func CustomValidator(v *Context, c *metadata.CustomDefinition) {
	v.Push("schemaType", c.SchemaType)
	if v.Required() {
		Apply(v, Identifier)
	}
	v.Pop()

	v.Push("schemaVersion", c.SchemaVersion)
	Apply(v, Positive[int])
	v.Pop()
}

// ConfigValidator checks a config payload.
func ConfigValidator(v *Context, c *metadata.ConfigDefinition) {
	v.Push("configType", c.ConfigType)
	if v.Required() {
		Apply(v, Identifier)
	}
	v.Pop()
}

// ResourceValidator checks a resource payload. Secret values never appear
// here; the map holds secret store aliases.
func ResourceValidator(v *Context, r *metadata.ResourceDefinition) {
	v.Push("resourceType", r.ResourceType)
	if v.Required() {
		Apply(v, Identifier)
	}
	v.Pop()

	v.Push("protocol", r.Protocol)
	v.Required()
	v.Pop()
}
