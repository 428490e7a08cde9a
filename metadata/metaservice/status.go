// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metaservice

import (
	"errors"

	"tracdap.io/tracmeta/metadata/metastore"
	"tracdap.io/tracmeta/metadata/metaval"
)

// StatusCode is the user-visible error code of a failed call.
type StatusCode int

// Status codes.
const (
	StatusOK StatusCode = iota
	StatusInvalidArgument
	StatusFailedPrecondition
	StatusNotFound
	StatusAlreadyExists
	StatusPermissionDenied
	StatusInternal
)

var statusCodeNames = map[StatusCode]string{
	StatusOK:                 "OK",
	StatusInvalidArgument:    "INVALID_ARGUMENT",
	StatusFailedPrecondition: "FAILED_PRECONDITION",
	StatusNotFound:           "NOT_FOUND",
	StatusAlreadyExists:      "ALREADY_EXISTS",
	StatusPermissionDenied:   "PERMISSION_DENIED",
	StatusInternal:           "INTERNAL",
}

// String returns the wire name of the status code.
func (c StatusCode) String() string {
	if name, ok := statusCodeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// HTTPStatus returns the HTTP status the gateway sends for this code.
func (c StatusCode) HTTPStatus() int {
	switch c {
	case StatusOK:
		return 200
	case StatusInvalidArgument:
		return 400
	case StatusPermissionDenied:
		return 403
	case StatusNotFound:
		return 404
	case StatusAlreadyExists:
		return 409
	case StatusFailedPrecondition:
		return 412
	default:
		return 500
	}
}

// Status is the outcome reported to the caller: a code, a summary message
// and a structured detail list with per-failure locations.
type Status struct {
	Code    StatusCode        `json:"code"`
	Message string            `json:"message"`
	Details []metaval.Failure `json:"details,omitempty"`
}

// MapError converts an internal error into its user-visible status. Static
// validation maps to InvalidArgument; version and consistency failures and
// superseded writes map to FailedPrecondition; store lookups map to NotFound
// or AlreadyExists; anything unrecognized is Internal with no detail leak.
func MapError(err error) *Status {
	if err == nil {
		return &Status{Code: StatusOK}
	}

	var verr *metaval.ValidationError
	if errors.As(err, &verr) {
		code := StatusInvalidArgument
		if verr.Kind == metaval.Version || verr.Kind == metaval.Consistency {
			code = StatusFailedPrecondition
		}
		return &Status{Code: code, Message: err.Error(), Details: verr.Failures}
	}

	switch {
	case ErrSuperseded.Has(err):
		return &Status{Code: StatusFailedPrecondition, Message: err.Error()}

	case metastore.ErrObjectNotFound.Has(err), metastore.ErrTenantNotFound.Has(err),
		metastore.ErrNotPreallocated.Has(err), ErrResourceNotFound.Has(err):
		return &Status{Code: StatusNotFound, Message: err.Error()}

	case metastore.ErrAlreadyExists.Has(err):
		return &Status{Code: StatusAlreadyExists, Message: err.Error()}

	case metastore.ErrWrongObjectType.Has(err), metastore.ErrInvalidSearch.Has(err),
		metastore.ErrInvalidTag.Has(err), ErrBadRequest.Has(err):
		return &Status{Code: StatusInvalidArgument, Message: err.Error()}

	case ErrNotAuthorized.Has(err):
		return &Status{Code: StatusPermissionDenied, Message: err.Error()}

	default:
		return &Status{Code: StatusInternal, Message: "internal error"}
	}
}
