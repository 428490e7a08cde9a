// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metaservice

import (
	"tracdap.io/tracmeta/metadata"
	"tracdap.io/tracmeta/metadata/metaval"
)

// Fully-qualified method names of the public metadata API.
const (
	MethodCreateObject  = "tracmeta.api.MetadataService/createObject"
	MethodUpdateObject  = "tracmeta.api.MetadataService/updateObject"
	MethodUpdateTag     = "tracmeta.api.MetadataService/updateTag"
	MethodWriteBatch    = "tracmeta.api.MetadataService/writeBatch"
	MethodReadObject    = "tracmeta.api.MetadataService/readObject"
	MethodReadBatch     = "tracmeta.api.MetadataService/readBatch"
	MethodSearch        = "tracmeta.api.MetadataService/search"
	MethodPlatformInfo  = "tracmeta.api.MetadataService/platformInfo"
	MethodListTenants   = "tracmeta.api.MetadataService/listTenants"
	MethodListResources = "tracmeta.api.MetadataService/listResources"
	MethodResourceInfo  = "tracmeta.api.MetadataService/resourceInfo"
)

// Fully-qualified method names of the trusted metadata API.
const (
	MethodTrustedCreateObject       = "tracmeta.api.TrustedMetadataService/createObject"
	MethodTrustedUpdateObject       = "tracmeta.api.TrustedMetadataService/updateObject"
	MethodTrustedUpdateTag          = "tracmeta.api.TrustedMetadataService/updateTag"
	MethodTrustedWriteBatch         = "tracmeta.api.TrustedMetadataService/writeBatch"
	MethodTrustedPreallocateID      = "tracmeta.api.TrustedMetadataService/preallocateId"
	MethodTrustedCreatePreallocated = "tracmeta.api.TrustedMetadataService/createPreallocatedObject"
)

// Request message targets in the validation registry.
const (
	TargetWriteRequest       = "WriteRequest"
	TargetWriteBatchRequest  = "WriteBatchRequest"
	TargetReadRequest        = "ReadRequest"
	TargetBatchReadRequest   = "BatchReadRequest"
	TargetSearchRequest      = "SearchRequest"
	TargetPreallocateRequest = "PreallocateRequest"
)

func init() {
	metaval.Register(metaval.ValidationKey{Kind: metaval.Static, Target: TargetReadRequest},
		func(v *metaval.Context) { metaval.Apply(v, ReadRequestValidator) })
	metaval.Register(metaval.ValidationKey{Kind: metaval.Static, Target: TargetBatchReadRequest},
		func(v *metaval.Context) { metaval.Apply(v, BatchReadRequestValidator) })
	metaval.Register(metaval.ValidationKey{Kind: metaval.Static, Target: TargetSearchRequest},
		func(v *metaval.Context) { metaval.Apply(v, SearchRequestValidator) })
	metaval.Register(metaval.ValidationKey{Kind: metaval.Static, Target: TargetPreallocateRequest},
		func(v *metaval.Context) { metaval.Apply(v, PreallocateRequestValidator) })
}

// validateWriteRequest checks one mutation entry for its slot. The rules
// differ per slot: creates forbid a prior version, promotions and updates
// require one, update-tag forbids a definition.
func validateWriteRequest(method string, caller Caller, slot slotKind, req WriteRequest) error {
	v := metaval.ForMethod(method, req)

	v.Push("tenant", req.Tenant)
	v.Required()
	v.Pop()

	v.Push("objectType", req.ObjectType)
	metaval.Apply(v, metaval.NonZeroEnum[metadata.ObjectType])
	metaval.Apply(v, metaval.RecognizedEnum[metadata.ObjectType])
	v.Pop()

	v.PushOneOf("priorVersion", req.PriorVersion)
	if slot == slotCreate {
		v.Omitted()
	} else if v.Required() {
		metaval.Apply(v, func(v *metaval.Context, s *metadata.TagSelector) {
			metaval.TagSelectorValidator(v, *s)
			if s.ObjectType != metadata.ObjectTypeUnset && req.ObjectType != metadata.ObjectTypeUnset &&
				s.ObjectType != req.ObjectType {
				v.Fail("priorVersion is of type %v, the request says %v", s.ObjectType, req.ObjectType)
			}
		})
	}
	v.Pop()

	v.PushOneOf("definition", req.Definition)
	if slot == slotUpdateTag {
		v.Omitted()
	} else if v.Required() {
		metaval.Apply(v, func(v *metaval.Context, def *metadata.ObjectDefinition) {
			metaval.ObjectDefinitionValidator(v, def)
			if def.ObjectType != metadata.ObjectTypeUnset && req.ObjectType != metadata.ObjectTypeUnset &&
				def.ObjectType != req.ObjectType {
				v.Fail("definition is of type %v, the request says %v", def.ObjectType, req.ObjectType)
			}
		})
	}
	v.Pop()

	v.PushRepeated("tagUpdates", req.TagUpdates)
	if caller.Trusted {
		metaval.Apply(v, TrustedTagUpdatesValidator)
	} else {
		metaval.Apply(v, metaval.TagUpdatesValidator)
	}
	v.Pop()

	return v.Error()
}

// TrustedTagUpdatesValidator checks tag updates from platform components.
// Trusted callers may set controlled trac_ attributes directly; everything
// else follows the public rules.
func TrustedTagUpdatesValidator(v *metaval.Context, updates []metadata.TagUpdate) {
	for i, update := range updates {
		v.PushRepeatedItem(i, update)
		trustedTagUpdateValidator(v, update)
		v.Pop()
	}
}

func trustedTagUpdateValidator(v *metaval.Context, u metadata.TagUpdate) {
	v.Push("operation", u.Operation)
	metaval.Apply(v, metaval.NonZeroEnum[metadata.TagOperation])
	metaval.Apply(v, metaval.RecognizedEnum[metadata.TagOperation])
	v.Pop()

	if !u.Operation.Recognized() || u.Operation == metadata.TagOperationUnset {
		return
	}

	v.Push("attrName", u.AttrName)
	if u.Operation == metadata.ClearAllAttr {
		v.Omitted()
	} else if v.Required() {
		metaval.Apply(v, metaval.Identifier)
	}
	v.Pop()

	v.PushOneOf("value", u.Value)
	switch u.Operation {
	case metadata.DeleteAttr, metadata.ClearAllAttr:
		v.Omitted()
	default:
		if v.Required() {
			metaval.Apply(v, func(v *metaval.Context, value *metadata.Value) {
				metaval.TagValue(v, *value)
			})
		}
	}
	v.Pop()
}

// ReadRequestValidator checks a single-selector read.
func ReadRequestValidator(v *metaval.Context, req ReadRequest) {
	v.Push("tenant", req.Tenant)
	v.Required()
	v.Pop()

	v.Push("selector", req.Selector)
	metaval.Apply(v, metaval.TagSelectorValidator)
	v.Pop()
}

// BatchReadRequestValidator checks a positional batch read.
func BatchReadRequestValidator(v *metaval.Context, req BatchReadRequest) {
	v.Push("tenant", req.Tenant)
	v.Required()
	v.Pop()

	v.PushRepeated("selectors", req.Selectors)
	metaval.Apply(v, metaval.ListNotEmpty[metadata.TagSelector])
	v.Pop()

	for i, selector := range req.Selectors {
		v.PushRepeated("selectors", req.Selectors)
		v.PushRepeatedItem(i, selector)
		metaval.Apply(v, metaval.TagSelectorValidator)
		v.Pop()
		v.Pop()
	}
}

// SearchRequestValidator checks a search request.
func SearchRequestValidator(v *metaval.Context, req SearchRequest) {
	v.Push("tenant", req.Tenant)
	v.Required()
	v.Pop()

	v.Push("searchParams", req.Search)
	metaval.Apply(v, metaval.SearchParametersValidator)
	v.Pop()
}

// PreallocateRequestValidator checks an id reservation request.
func PreallocateRequestValidator(v *metaval.Context, req PreallocateRequest) {
	v.Push("tenant", req.Tenant)
	v.Required()
	v.Pop()

	v.PushRepeated("objectTypes", req.ObjectTypes)
	metaval.Apply(v, metaval.ListNotEmpty[metadata.ObjectType])
	v.Pop()

	for i, objectType := range req.ObjectTypes {
		v.PushRepeated("objectTypes", req.ObjectTypes)
		v.PushRepeatedItem(i, objectType)
		metaval.Apply(v, metaval.NonZeroEnum[metadata.ObjectType])
		metaval.Apply(v, metaval.RecognizedEnum[metadata.ObjectType])
		v.Pop()
		v.Pop()
	}
}
