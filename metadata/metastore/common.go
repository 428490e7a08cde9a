// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

// Package metastore implements transactional persistence for the metadata
// catalog: objects, tags, attributes, preallocations and tenants.
package metastore

import (
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
)

var mon = monkit.Package()

var (
	// Error is the default error class for metastore.
	Error = errs.Class("metastore")
	// ErrObjectNotFound is returned when a selector resolves to no row.
	ErrObjectNotFound = errs.Class("object not found")
	// ErrWrongObjectType is returned when a selector's declared type
	// disagrees with the stored type.
	ErrWrongObjectType = errs.Class("wrong object type")
	// ErrAlreadyExists is returned when a write loses to a concurrent write
	// on the same identity, or reuses an id. The losing write must not be
	// retried on behalf of the client.
	ErrAlreadyExists = errs.Class("object already exists")
	// ErrNotPreallocated is returned when promoting an id that was never
	// preallocated or was already promoted.
	ErrNotPreallocated = errs.Class("object not preallocated")
	// ErrTenantNotFound is returned for operations against unknown tenants.
	ErrTenantNotFound = errs.Class("tenant not found")
	// ErrInvalidTag is returned when a tag handed to a save operation is
	// malformed. Save operations expect fully validated tags.
	ErrInvalidTag = errs.Class("metastore: invalid tag")
	// ErrInvalidSearch is returned when a search expression cannot be
	// translated to SQL.
	ErrInvalidSearch = errs.Class("metastore: invalid search")
)

// TenantInfo is one row of the tenant table.
type TenantInfo struct {
	Code        string `json:"tenantCode"`
	Description string `json:"description,omitempty"`
}
