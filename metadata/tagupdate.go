// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metadata

// TagOperation enumerates the ways a tag update can change one attribute.
type TagOperation int

// Tag update operations.
const (
	TagOperationUnset TagOperation = iota
	CreateOrReplaceAttr
	CreateAttr
	ReplaceAttr
	AppendAttr
	DeleteAttr
	ClearAllAttr
)

var tagOperationNames = map[TagOperation]string{
	TagOperationUnset:   "TAG_OPERATION_NOT_SET",
	CreateOrReplaceAttr: "CREATE_OR_REPLACE_ATTR",
	CreateAttr:          "CREATE_ATTR",
	ReplaceAttr:         "REPLACE_ATTR",
	AppendAttr:          "APPEND_ATTR",
	DeleteAttr:          "DELETE_ATTR",
	ClearAllAttr:        "CLEAR_ALL_ATTR",
}

// String returns the wire name of the operation.
func (op TagOperation) String() string {
	if name, ok := tagOperationNames[op]; ok {
		return name
	}
	return "TAG_OPERATION_UNRECOGNIZED"
}

// Recognized reports whether the operation is a known enum member.
func (op TagOperation) Recognized() bool {
	_, ok := tagOperationNames[op]
	return ok
}

// TagUpdate is one attribute change in a write request. Value is unused for
// DELETE_ATTR and CLEAR_ALL_ATTR; AttrName is unused for CLEAR_ALL_ATTR.
type TagUpdate struct {
	Operation TagOperation
	AttrName  string
	Value     *Value
}

// ApplyTagUpdates applies a list of updates to an attribute map and returns
// the new map. The input map is not modified. Application is deterministic:
// the same updates against the same map always produce the same result.
func ApplyTagUpdates(attrs map[string]Value, updates []TagUpdate) (map[string]Value, error) {
	next := make(map[string]Value, len(attrs)+len(updates))
	for name, value := range attrs {
		next[name] = value
	}

	for _, update := range updates {
		if err := applyTagUpdate(next, update); err != nil {
			return nil, err
		}
	}
	return next, nil
}

func applyTagUpdate(attrs map[string]Value, update TagUpdate) error {
	prior, exists := attrs[update.AttrName]

	switch update.Operation {
	case CreateOrReplaceAttr:
		attrs[update.AttrName] = *update.Value

	case CreateAttr:
		if exists {
			return ErrInvalidTagUpdate.New("attribute [%s] already exists", update.AttrName)
		}
		attrs[update.AttrName] = *update.Value

	case ReplaceAttr:
		if !exists {
			return ErrInvalidTagUpdate.New("attribute [%s] does not exist", update.AttrName)
		}
		if priorType := attrType(prior); priorType != attrType(*update.Value) {
			return ErrInvalidTagUpdate.New(
				"attribute [%s] cannot change type from %v to %v",
				update.AttrName, priorType, attrType(*update.Value))
		}
		attrs[update.AttrName] = *update.Value

	case AppendAttr:
		if !exists {
			return ErrInvalidTagUpdate.New("attribute [%s] does not exist", update.AttrName)
		}
		appended, err := appendAttr(prior, *update.Value)
		if err != nil {
			return ErrInvalidTagUpdate.New("attribute [%s]: %v", update.AttrName, err)
		}
		attrs[update.AttrName] = appended

	case DeleteAttr:
		if !exists {
			return ErrInvalidTagUpdate.New("attribute [%s] does not exist", update.AttrName)
		}
		delete(attrs, update.AttrName)

	case ClearAllAttr:
		for name := range attrs {
			if !IsReservedAttrName(name) {
				delete(attrs, name)
			}
		}

	default:
		return ErrInvalidTagUpdate.New("unrecognized tag operation %v", update.Operation)
	}

	return nil
}

// attrType reduces a value to the type used for single/multi compatibility
// checks: arrays compare by element type.
func attrType(v Value) BasicType {
	if v.Type == BasicTypeArray {
		return v.ElemType
	}
	return v.Type
}

func appendAttr(prior, extra Value) (Value, error) {
	if attrType(prior) != attrType(extra) {
		return Value{}, Error.New("cannot append %v to %v", attrType(extra), attrType(prior))
	}

	items := make([]Value, 0, len(prior.Items)+len(extra.Items)+2)
	if prior.Type == BasicTypeArray {
		items = append(items, prior.Items...)
	} else {
		items = append(items, prior)
	}
	if extra.Type == BasicTypeArray {
		items = append(items, extra.Items...)
	} else {
		items = append(items, extra)
	}

	return ArrayValue(attrType(prior), items...), nil
}
