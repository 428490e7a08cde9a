// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

// Package metaval is the validation framework for the metadata catalog. One
// traversal model serves three classes of check: static (the shape of a
// single message), version (a new object version against its prior) and
// consistency (references against a loaded bundle and platform resources).
//
// Validators are synchronous and pure: consistency checks receive pre-loaded
// state and never touch the store.
package metaval

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a validation pass.
type Kind int

// Validation kinds.
const (
	KindUnset Kind = iota
	Static
	Version
	Consistency
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case Static:
		return "STATIC"
	case Version:
		return "VERSION"
	case Consistency:
		return "CONSISTENCY"
	}
	return "UNSET"
}

// Failure is one recorded problem: the dotted path from the root of the
// validated message and a human-readable explanation.
type Failure struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (f Failure) String() string {
	if f.Path == "" {
		return f.Message
	}
	return f.Path + ": " + f.Message
}

// ValidationError is the outcome of a failed pass: the kind, the short name
// of the root (method or message) and every recorded failure.
type ValidationError struct {
	Kind     Kind
	Name     string
	Failures []Failure
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s validation failed for [%s]", e.Kind, e.Name)
	for _, failure := range e.Failures {
		b.WriteString("; ")
		b.WriteString(failure.String())
	}
	return b.String()
}

// failedValidation reports whether err is a ValidationError of the given kind.
func failedValidation(err error, kind Kind) bool {
	var verr *ValidationError
	return errors.As(err, &verr) && verr.Kind == kind
}

// IsStatic reports whether err is a static validation failure.
func IsStatic(err error) bool { return failedValidation(err, Static) }

// IsVersion reports whether err is a version validation failure.
func IsVersion(err error) bool { return failedValidation(err, Version) }

// IsConsistency reports whether err is a consistency validation failure.
func IsConsistency(err error) bool { return failedValidation(err, Consistency) }
