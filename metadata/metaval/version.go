// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metaval

import (
	"strings"

	"tracdap.io/tracmeta/metadata"
)

func init() {
	Register(ValidationKey{Kind: Version, Target: TargetObjectDefinition},
		func(v *Context) { ApplyVersion(v, ObjectDefinitionVersionValidator) })

	Register(ValidationKey{Kind: Version, Target: metadata.ObjectTypeData.String()},
		func(v *Context) { ApplyVersion(v, DataVersionValidator) })
	Register(ValidationKey{Kind: Version, Target: metadata.ObjectTypeSchema.String()},
		func(v *Context) { ApplyVersion(v, SchemaVersionValidator) })
	Register(ValidationKey{Kind: Version, Target: metadata.ObjectTypeFile.String()},
		func(v *Context) { ApplyVersion(v, FileVersionValidator) })
	Register(ValidationKey{Kind: Version, Target: metadata.ObjectTypeStorage.String()},
		func(v *Context) { ApplyVersion(v, StorageVersionValidator) })
	Register(ValidationKey{Kind: Version, Target: metadata.ObjectTypeCustom.String()},
		func(v *Context) { ApplyVersion(v, CustomVersionValidator) })
}

// ObjectDefinitionVersionValidator compares a new object version against the
// version it supersedes. The object type is immutable; kinds with extra
// version rules dispatch through the registry, other kinds accept any new
// payload that passed static validation.
func ObjectDefinitionVersionValidator(v *Context, current, prior *metadata.ObjectDefinition) {
	if current.ObjectType != prior.ObjectType {
		v.Fail("object type cannot change between versions (%v -> %v)",
			prior.ObjectType, current.ObjectType)
		return
	}

	key := ValidationKey{Kind: Version, Target: current.ObjectType.String()}
	fn, ok := Lookup(key)
	if !ok {
		return
	}

	extract := definitionPayloads[current.ObjectType]
	v.PushVersion(strings.ToLower(current.ObjectType.String()), extract(current), extract(prior))
	if !v.Done() {
		fn(v)
	}
	v.Pop()
}

// DataVersionValidator checks a new data version: the storage object and the
// schema source are fixed for the life of the object, and the schema itself
// may only evolve compatibly.
func DataVersionValidator(v *Context, current, prior *metadata.DataDefinition) {
	v.PushVersion("storageId", current.StorageID, prior.StorageID)
	sameObjectReference(v)
	v.Pop()

	switch {
	case prior.SchemaID != nil && current.Schema != nil:
		v.Fail("a data object with an external schema cannot switch to an embedded schema")
	case prior.Schema != nil && current.SchemaID != nil:
		v.Fail("a data object with an embedded schema cannot switch to an external schema")
	case prior.SchemaID != nil && current.SchemaID != nil:
		v.PushVersion("schemaId", current.SchemaID, prior.SchemaID)
		sameObjectReference(v)
		v.Pop()
	case prior.Schema != nil && current.Schema != nil:
		v.PushVersion("schema", current.Schema, prior.Schema)
		ApplyVersion(v, SchemaVersionValidator)
		v.Pop()
	}
}

// sameObjectReference fails unless the current and prior selectors point at
// the same object. The referenced version may advance; the identity may not.
func sameObjectReference(v *Context) {
	ApplyVersion(v, func(v *Context, current, prior *metadata.TagSelector) {
		if current == nil || prior == nil {
			if (current == nil) != (prior == nil) {
				v.Fail("a reference cannot be added or removed between versions")
			}
			return
		}
		if current.ObjectID != prior.ObjectID {
			v.Fail("a reference cannot point to a different object between versions (%s -> %s)",
				prior.ObjectID, current.ObjectID)
		}
	})
}

// SchemaVersionValidator checks compatible schema evolution. New versions may
// only append fields: existing fields keep their name, order, type and flags,
// and appended fields cannot introduce new business keys.
func SchemaVersionValidator(v *Context, current, prior *metadata.SchemaDefinition) {
	if current.SchemaType != prior.SchemaType {
		v.Fail("schema type cannot change between versions (%v -> %v)",
			prior.SchemaType, current.SchemaType)
		return
	}

	if current.SchemaType != metadata.SchemaTypeTable || current.Table == nil || prior.Table == nil {
		return
	}

	v.PushVersion("table", current.Table, prior.Table)
	ApplyVersion(v, tableSchemaVersionValidator)
	v.Pop()
}

func tableSchemaVersionValidator(v *Context, current, prior *metadata.TableSchema) {
	for i, priorField := range prior.Fields {
		if i >= len(current.Fields) {
			v.Fail("Field [%s] from the prior schema version has been removed", priorField.FieldName)
			continue
		}

		field := current.Fields[i]
		v.PushRepeated("fields", current.Fields)
		v.PushRepeatedItem(i, field)
		fieldSchemaVersionValidator(v, field, priorField)
		v.Pop()
		v.Pop()
	}

	for i := len(prior.Fields); i < len(current.Fields); i++ {
		field := current.Fields[i]
		if field.BusinessKey {
			v.Fail("new field [%s] cannot be a business key", field.FieldName)
		}
	}
}

// fieldSchemaVersionValidator compares one field against its prior version.
// Renames, case changes, reordering and retyping are all incompatible, as are
// flips of the categorical or business key flags.
func fieldSchemaVersionValidator(v *Context, field, priorField metadata.FieldSchema) {
	if field.FieldName != priorField.FieldName {
		if strings.EqualFold(field.FieldName, priorField.FieldName) {
			v.Fail("field [%s] changes the case of prior field [%s]",
				field.FieldName, priorField.FieldName)
		} else {
			v.Fail("field [%s] renames or reorders prior field [%s]",
				field.FieldName, priorField.FieldName)
		}
		return
	}
	if field.FieldType != priorField.FieldType {
		v.Fail("field [%s] changes type from %v to %v",
			field.FieldName, priorField.FieldType, field.FieldType)
	}
	if field.BusinessKey != priorField.BusinessKey {
		v.Fail("field [%s] changes the business key flag", field.FieldName)
	}
	if field.Categorical != priorField.Categorical {
		v.Fail("field [%s] changes the categorical flag", field.FieldName)
	}
}

// FileVersionValidator checks a new file version. Content and name may change
// but the extension, mime type and storage object are fixed.
func FileVersionValidator(v *Context, current, prior *metadata.FileDefinition) {
	if current.Extension != prior.Extension {
		v.Fail("file extension cannot change between versions (%s -> %s)",
			prior.Extension, current.Extension)
	}
	if current.MimeType != prior.MimeType {
		v.Fail("file mime type cannot change between versions (%s -> %s)",
			prior.MimeType, current.MimeType)
	}

	v.PushVersion("storageId", current.StorageID, prior.StorageID)
	sameObjectReference(v)
	v.Pop()
}

// StorageVersionValidator checks a new storage version. Data items and their
// incarnations are append-only and expunged state is permanent: an expunged
// incarnation or copy can never become available again.
func StorageVersionValidator(v *Context, current, prior *metadata.StorageDefinition) {
	for _, key := range sortedKeys(prior.DataItems) {
		priorItem := prior.DataItems[key]
		item, ok := current.DataItems[key]
		if !ok {
			v.Fail("data item [%s] from the prior version has been removed", key)
			continue
		}

		v.PushMap("dataItems", current.DataItems)
		v.PushMapValue(key, item)
		storageItemVersionValidator(v, key, item, priorItem)
		v.Pop()
		v.Pop()
	}
}

func storageItemVersionValidator(v *Context, key string, item, priorItem metadata.StorageItem) {
	if len(item.Incarnations) < len(priorItem.Incarnations) {
		v.Fail("data item [%s] has fewer incarnations than the prior version", key)
		return
	}

	for i, priorIncarnation := range priorItem.Incarnations {
		incarnation := item.Incarnations[i]

		if priorIncarnation.Status == metadata.IncarnationExpunged &&
			incarnation.Status == metadata.IncarnationAvailable {
			v.Fail("incarnation %d of data item [%s] cannot return from expunged to available", i, key)
		}

		for _, priorCopy := range priorIncarnation.Copies {
			if priorCopy.Status != metadata.CopyExpunged {
				continue
			}
			for _, storageCopy := range incarnation.Copies {
				if storageCopy.StorageKey == priorCopy.StorageKey &&
					storageCopy.StoragePath == priorCopy.StoragePath &&
					storageCopy.Status == metadata.CopyAvailable {
					v.Fail("copy [%s:%s] of data item [%s] cannot return from expunged to available",
						storageCopy.StorageKey, storageCopy.StoragePath, key)
				}
			}
		}
	}
}

// CustomVersionValidator checks a new custom version: the application schema
// type is fixed and the schema version can only move forward.
func CustomVersionValidator(v *Context, current, prior *metadata.CustomDefinition) {
	if current.SchemaType != prior.SchemaType {
		v.Fail("custom schema type cannot change between versions (%s -> %s)",
			prior.SchemaType, current.SchemaType)
	}
	if current.SchemaVersion < prior.SchemaVersion {
		v.Fail("custom schema version cannot decrease between versions (%d -> %d)",
			prior.SchemaVersion, current.SchemaVersion)
	}
}
