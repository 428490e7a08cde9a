// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

// Package dbutil isolates the differences between the SQL engines that can
// back the metadata store: connection string handling, driver selection and
// engine error-code mapping.
package dbutil

import (
	"strings"

	"github.com/zeebo/errs"
)

// Error is the default error class for dbutil.
var Error = errs.Class("dbutil")

// Implementation identifies a supported SQL engine.
type Implementation int

// Supported implementations.
const (
	Unknown Implementation = iota
	Postgres
	SQLite
)

// String returns the name of the implementation.
func (impl Implementation) String() string {
	switch impl {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	}
	return "unknown"
}

// SplitConnStr determines the implementation and registered driver name for
// a connection string, returning the string to hand to the driver.
func SplitConnStr(connstr string) (driver string, impl Implementation, source string, err error) {
	switch {
	case strings.HasPrefix(connstr, "postgres://"),
		strings.HasPrefix(connstr, "postgresql://"):
		return "pgx", Postgres, connstr, nil

	case strings.HasPrefix(connstr, "sqlite3://"):
		return "sqlite3", SQLite, strings.TrimPrefix(connstr, "sqlite3://"), nil

	case strings.HasPrefix(connstr, "sqlite://"):
		return "sqlite3", SQLite, strings.TrimPrefix(connstr, "sqlite://"), nil

	case connstr == ":memory:", strings.HasPrefix(connstr, "file:"):
		return "sqlite3", SQLite, connstr, nil
	}
	return "", Unknown, "", Error.New("unsupported connection string: %q", connstr)
}

// BoolLiteral renders a boolean literal for the engine. SQLite stores
// booleans as integers.
func (impl Implementation) BoolLiteral(v bool) string {
	if impl == SQLite {
		if v {
			return "1"
		}
		return "0"
	}
	if v {
		return "TRUE"
	}
	return "FALSE"
}
