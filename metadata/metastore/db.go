// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metastore

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers pgx as a database/sql driver.
	_ "github.com/mattn/go-sqlite3"    // registers sqlite3 as a database/sql driver.
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"tracdap.io/tracmeta/shared/dbutil"
)

// Config is a configuration struct for the metadata store.
type Config struct {
	ConnStr         string        `mapstructure:"conn-str"`
	MaxConns        int           `mapstructure:"max-conns"`
	MaxIdleConns    int           `mapstructure:"max-idle-conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn-max-lifetime"`
}

// DB provides access to the metadata catalog. All public write operations
// are single atomic transactions; rows are never updated or deleted apart
// from the latest-flag flips that accompany an insert.
type DB struct {
	log  *zap.Logger
	db   *sql.DB
	impl dbutil.Implementation

	adapter Adapter
}

// Open opens a connection to the metadata store. The engine is chosen from
// the connection string; postgres and sqlite are supported.
func Open(ctx context.Context, log *zap.Logger, config Config) (*DB, error) {
	driver, impl, source, err := dbutil.SplitConnStr(config.ConnStr)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	rawdb, err := sql.Open(driver, source)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	if config.MaxConns > 0 {
		rawdb.SetMaxOpenConns(config.MaxConns)
	}
	if config.MaxIdleConns > 0 {
		rawdb.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		rawdb.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if impl == dbutil.SQLite {
		// sqlite serialises writers; a single connection avoids busy errors
		// under concurrent transactions.
		rawdb.SetMaxOpenConns(1)
	}

	if err := rawdb.PingContext(ctx); err != nil {
		return nil, Error.Wrap(errs.Combine(err, rawdb.Close()))
	}

	if impl == dbutil.SQLite {
		// referential checks are opt-in per connection
		if _, err := rawdb.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			return nil, Error.Wrap(errs.Combine(err, rawdb.Close()))
		}
	}

	db := &DB{
		log:  log,
		db:   rawdb,
		impl: impl,
	}
	switch impl {
	case dbutil.Postgres:
		db.adapter = &PostgresAdapter{log: log, db: rawdb}
	case dbutil.SQLite:
		db.adapter = &SQLiteAdapter{log: log, db: rawdb}
	default:
		return nil, Error.New("unsupported implementation: %v", impl)
	}

	log.Debug("Connected to metadata store", zap.Stringer("implementation", impl))

	return db, nil
}

// Implementation returns the backing engine.
func (db *DB) Implementation() dbutil.Implementation { return db.impl }

// Close releases the underlying connections.
func (db *DB) Close() error {
	return Error.Wrap(db.db.Close())
}

// WithTx runs f inside one transaction; observers outside the transaction
// see either none or all of its rows.
func (db *DB) WithTx(ctx context.Context, f func(context.Context, TransactionAdapter) error) (err error) {
	defer mon.Task()(&ctx)(&err)
	return db.adapter.WithTx(ctx, f)
}
