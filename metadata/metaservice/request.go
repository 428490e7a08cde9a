// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metaservice

import (
	"tracdap.io/tracmeta/metadata"
)

// WriteRequest is one mutation of one object: create, create-preallocated,
// update-object or update-tag, depending on the operation it is submitted
// under. PriorVersion names the preallocated id on create-preallocated and
// the version being superseded on updates; it is absent on plain creates.
type WriteRequest struct {
	Tenant       string                     `json:"tenant"`
	ObjectType   metadata.ObjectType        `json:"objectType"`
	PriorVersion *metadata.TagSelector      `json:"priorVersion,omitempty"`
	Definition   *metadata.ObjectDefinition `json:"definition,omitempty"`
	TagUpdates   []metadata.TagUpdate       `json:"tagUpdates,omitempty"`
}

// ReadRequest resolves one selector in one tenant.
type ReadRequest struct {
	Tenant   string               `json:"tenant"`
	Selector metadata.TagSelector `json:"selector"`
}

// BatchReadRequest resolves a list of selectors positionally; the whole
// request fails if any selector fails.
type BatchReadRequest struct {
	Tenant    string                 `json:"tenant"`
	Selectors []metadata.TagSelector `json:"selectors"`
}

// SearchRequest runs one search in one tenant.
type SearchRequest struct {
	Tenant string                    `json:"tenant"`
	Search metadata.SearchParameters `json:"searchParams"`
}

// PreallocateRequest reserves object ids ahead of their content.
type PreallocateRequest struct {
	Tenant      string                `json:"tenant"`
	ObjectTypes []metadata.ObjectType `json:"objectTypes"`
}

// WriteBatchRequest composes the four mutation slots into one transaction,
// executed in slot order: preallocate, create, update-object, update-tag.
// A create entry with a PriorVersion promotes a preallocated id.
type WriteBatchRequest struct {
	Tenant string `json:"tenant"`

	Preallocate   []metadata.ObjectType `json:"preallocate,omitempty"`
	CreateObjects []WriteRequest        `json:"createObjects,omitempty"`
	UpdateObjects []WriteRequest        `json:"updateObjects,omitempty"`
	UpdateTags    []WriteRequest        `json:"updateTags,omitempty"`
}

// WriteBatchResponse returns the committed headers positionally per slot.
type WriteBatchResponse struct {
	PreallocatedIDs []metadata.TagHeader `json:"preallocatedIds,omitempty"`
	CreatedObjects  []metadata.TagHeader `json:"createdObjects,omitempty"`
	UpdatedObjects  []metadata.TagHeader `json:"updatedObjects,omitempty"`
	UpdatedTags     []metadata.TagHeader `json:"updatedTags,omitempty"`
}
