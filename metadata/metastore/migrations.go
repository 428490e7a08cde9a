// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metastore

import (
	"context"
	"embed"

	"github.com/pressly/goose/v3"

	"tracdap.io/tracmeta/shared/dbutil"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// MigrateToLatest brings the schema up to the current version.
func (db *DB) MigrateToLatest(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	var dialect, dir string
	switch db.impl {
	case dbutil.Postgres:
		dialect, dir = "postgres", "migrations/postgres"
	case dbutil.SQLite:
		dialect, dir = "sqlite3", "migrations/sqlite"
	default:
		return Error.New("unsupported implementation: %v", db.impl)
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return Error.Wrap(err)
	}
	if err := goose.UpContext(ctx, db.db, dir); err != nil {
		return Error.Wrap(err)
	}

	db.log.Debug("Schema migrated to latest version")
	return nil
}
