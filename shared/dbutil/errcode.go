// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package dbutil

import (
	"errors"

	pgxerrcode "github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// ErrorCode classifies an engine error into the classes the store cares
// about; everything else is Other and surfaces as an internal error.
type ErrorCode int

// Error classes common to all engines.
const (
	Other ErrorCode = iota
	UniqueViolation
	ForeignKeyViolation
)

// FromError maps an engine-specific error to its generic code.
func FromError(err error) ErrorCode {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgxerrcode.UniqueViolation:
			return UniqueViolation
		case pgxerrcode.ForeignKeyViolation:
			return ForeignKeyViolation
		}
		return Other
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return UniqueViolation
		case sqlite3.ErrConstraintForeignKey:
			return ForeignKeyViolation
		}
		return Other
	}

	return Other
}

// IsUniqueViolation reports whether the error is a duplicate-key violation.
func IsUniqueViolation(err error) bool {
	return FromError(err) == UniqueViolation
}

// IsConstraintViolation reports whether the error is any constraint
// violation the store understands.
func IsConstraintViolation(err error) bool {
	return FromError(err) != Other
}
