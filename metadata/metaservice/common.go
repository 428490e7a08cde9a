// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

// Package metaservice implements the catalog's service layer: the write
// service orchestrating batched mutations, the read and search service, and
// the request-validation interceptor in front of both.
package metaservice

import (
	"context"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
)

var mon = monkit.Package()

var (
	// Error is the default error class for the service layer.
	Error = errs.Class("metaservice")
	// ErrNotAuthorized is returned when a public caller uses a trusted
	// operation.
	ErrNotAuthorized = errs.Class("metaservice: not authorized")
	// ErrBadRequest is returned for requests that are structurally valid but
	// semantically unusable, outside the validator's scope.
	ErrBadRequest = errs.Class("metaservice: bad request")
	// ErrSuperseded is returned when a concurrent writer committed the same
	// version or tag first. The service never retries on behalf of the caller.
	ErrSuperseded = errs.Class("metaservice: superseded")
	// ErrResourceNotFound is returned when a named resource is not configured.
	ErrResourceNotFound = errs.Class("metaservice: resource not found")
)

// Caller identifies the authenticated principal behind a request. Trusted
// callers are platform components; they may use preallocation and set
// controlled attributes explicitly.
type Caller struct {
	UserID   string
	UserName string
	Trusted  bool
}

type callerKey struct{}

// WithCaller attaches the caller identity to the context.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the caller identity attached to the context.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(Caller)
	return caller, ok
}
