// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metadata

import (
	"time"

	"github.com/google/uuid"
)

const (
	// ObjectFirstVersion is the version assigned to a newly created object.
	ObjectFirstVersion = 1
	// TagFirstVersion is the tag version assigned with every new object version.
	TagFirstVersion = 1
)

// TagHeader identifies one row of catalog history: a single
// (objectId, objectVersion, tagVersion) with its timestamps and latest flags.
type TagHeader struct {
	ObjectType      ObjectType `json:"objectType"`
	ObjectID        uuid.UUID  `json:"objectId"`
	ObjectVersion   int        `json:"objectVersion"`
	ObjectTimestamp time.Time  `json:"objectTimestamp"`
	IsLatestObject  bool       `json:"isLatestObject"`
	TagVersion      int        `json:"tagVersion"`
	TagTimestamp    time.Time  `json:"tagTimestamp"`
	IsLatestTag     bool       `json:"isLatestTag"`
}

// Selector returns the fixed-form selector for exactly this header.
func (h TagHeader) Selector() TagSelector {
	return TagSelector{
		ObjectType:    h.ObjectType,
		ObjectID:      h.ObjectID,
		ObjectVersion: h.ObjectVersion,
		TagVersion:    h.TagVersion,
	}
}

// TagSelector references one object version and one tag version. Exactly one
// object criterion (LatestObject, ObjectVersion or ObjectAsOf) and exactly
// one tag criterion (LatestTag, TagVersion or TagAsOf) must be set.
type TagSelector struct {
	ObjectType ObjectType `json:"objectType"`
	ObjectID   uuid.UUID  `json:"objectId"`

	LatestObject  bool       `json:"latestObject,omitempty"`
	ObjectVersion int        `json:"objectVersion,omitempty"`
	ObjectAsOf    *time.Time `json:"objectAsOf,omitempty"`

	LatestTag  bool       `json:"latestTag,omitempty"`
	TagVersion int        `json:"tagVersion,omitempty"`
	TagAsOf    *time.Time `json:"tagAsOf,omitempty"`
}

// LatestSelector makes a selector following the latest object and tag.
func LatestSelector(objectType ObjectType, objectID uuid.UUID) TagSelector {
	return TagSelector{
		ObjectType:   objectType,
		ObjectID:     objectID,
		LatestObject: true,
		LatestTag:    true,
	}
}

// Verify checks that the selector carries a type, an id and exactly one
// criterion on each axis.
func (s TagSelector) Verify() error {
	if s.ObjectType == ObjectTypeUnset {
		return ErrInvalidSelector.New("objectType missing")
	}
	if s.ObjectID == uuid.Nil {
		return ErrInvalidSelector.New("objectId missing")
	}

	objectCriteria := 0
	if s.LatestObject {
		objectCriteria++
	}
	if s.ObjectVersion != 0 {
		if s.ObjectVersion < ObjectFirstVersion {
			return ErrInvalidSelector.New("objectVersion invalid: %d", s.ObjectVersion)
		}
		objectCriteria++
	}
	if s.ObjectAsOf != nil {
		objectCriteria++
	}
	if objectCriteria != 1 {
		return ErrInvalidSelector.New("selector requires exactly one object criterion, got %d", objectCriteria)
	}

	tagCriteria := 0
	if s.LatestTag {
		tagCriteria++
	}
	if s.TagVersion != 0 {
		if s.TagVersion < TagFirstVersion {
			return ErrInvalidSelector.New("tagVersion invalid: %d", s.TagVersion)
		}
		tagCriteria++
	}
	if s.TagAsOf != nil {
		tagCriteria++
	}
	if tagCriteria != 1 {
		return ErrInvalidSelector.New("selector requires exactly one tag criterion, got %d", tagCriteria)
	}

	return nil
}

// Fixed reports whether both criteria name explicit versions. Only fixed
// selectors may be embedded in stored object definitions.
func (s TagSelector) Fixed() bool {
	return s.ObjectVersion >= ObjectFirstVersion && s.TagVersion >= TagFirstVersion
}

// WithFixedVersion returns a copy of the selector pinned to an explicit
// object and tag version.
func (s TagSelector) WithFixedVersion(objectVersion, tagVersion int) TagSelector {
	s.LatestObject = false
	s.ObjectAsOf = nil
	s.ObjectVersion = objectVersion
	s.LatestTag = false
	s.TagAsOf = nil
	s.TagVersion = tagVersion
	return s
}

// Tag is one catalog entry: a header, an optional definition payload and the
// attribute map. Search results may omit the definition.
type Tag struct {
	Header     TagHeader         `json:"header"`
	Definition *ObjectDefinition `json:"definition,omitempty"`
	Attrs      map[string]Value  `json:"attrs,omitempty"`
}

// Clone returns a deep enough copy for the write path: the attribute map is
// copied, the definition pointer is shared (definitions are immutable).
func (t Tag) Clone() Tag {
	attrs := make(map[string]Value, len(t.Attrs))
	for name, value := range t.Attrs {
		attrs[name] = value
	}
	t.Attrs = attrs
	return t
}
