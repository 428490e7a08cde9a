// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metastore

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"tracdap.io/tracmeta/shared/dbutil"
)

// Queryable is the statement surface shared by direct connections and open
// transactions. Queries are written once with `?` placeholders; each engine
// adapter rewrites them as needed.
type Queryable interface {
	Implementation() dbutil.Implementation
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TransactionAdapter is the statement surface of one open transaction.
// Every statement issued through it commits or rolls back as a unit.
type TransactionAdapter = Queryable

// Adapter is the engine extension point.
type Adapter interface {
	Queryable
	WithTx(ctx context.Context, f func(context.Context, TransactionAdapter) error) error
}

// rawQueryable is implemented by both *sql.DB and *sql.Tx.
type rawQueryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresAdapter runs against postgres through the pgx driver.
type PostgresAdapter struct {
	log *zap.Logger
	db  *sql.DB
}

var _ Adapter = &PostgresAdapter{}

// Implementation returns the engine.
func (p *PostgresAdapter) Implementation() dbutil.Implementation { return dbutil.Postgres }

// ExecContext implements Queryable.
func (p *PostgresAdapter) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return p.db.ExecContext(ctx, postgresRebind(query), args...)
}

// QueryContext implements Queryable.
func (p *PostgresAdapter) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return p.db.QueryContext(ctx, postgresRebind(query), args...)
}

// QueryRowContext implements Queryable.
func (p *PostgresAdapter) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return p.db.QueryRowContext(ctx, postgresRebind(query), args...)
}

// WithTx implements Adapter.
func (p *PostgresAdapter) WithTx(ctx context.Context, f func(context.Context, TransactionAdapter) error) error {
	return withTx(ctx, p.db, func(ctx context.Context, tx *sql.Tx) error {
		return f(ctx, &postgresQueries{tx})
	})
}

type postgresQueries struct {
	target rawQueryable
}

func (p *postgresQueries) Implementation() dbutil.Implementation { return dbutil.Postgres }

func (p *postgresQueries) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return p.target.ExecContext(ctx, postgresRebind(query), args...)
}

func (p *postgresQueries) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return p.target.QueryContext(ctx, postgresRebind(query), args...)
}

func (p *postgresQueries) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return p.target.QueryRowContext(ctx, postgresRebind(query), args...)
}

// SQLiteAdapter runs against sqlite through the mattn driver, mainly for
// embedded and test deployments.
type SQLiteAdapter struct {
	log *zap.Logger
	db  *sql.DB
}

var _ Adapter = &SQLiteAdapter{}

// Implementation returns the engine.
func (s *SQLiteAdapter) Implementation() dbutil.Implementation { return dbutil.SQLite }

// ExecContext implements Queryable.
func (s *SQLiteAdapter) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

// QueryContext implements Queryable.
func (s *SQLiteAdapter) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// QueryRowContext implements Queryable.
func (s *SQLiteAdapter) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

// WithTx implements Adapter.
func (s *SQLiteAdapter) WithTx(ctx context.Context, f func(context.Context, TransactionAdapter) error) error {
	return withTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return f(ctx, &sqliteQueries{tx})
	})
}

type sqliteQueries struct {
	target rawQueryable
}

func (s *sqliteQueries) Implementation() dbutil.Implementation { return dbutil.SQLite }

func (s *sqliteQueries) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.target.ExecContext(ctx, query, args...)
}

func (s *sqliteQueries) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.target.QueryContext(ctx, query, args...)
}

func (s *sqliteQueries) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.target.QueryRowContext(ctx, query, args...)
}

func withTx(ctx context.Context, db *sql.DB, f func(context.Context, *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = Error.Wrap(tx.Commit())
	}()
	return f(ctx, tx)
}

// postgresRebind converts `?` placeholders to postgres ordinal form.
// Question marks inside quoted literals are left alone.
func postgresRebind(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}

	var out strings.Builder
	out.Grow(len(query) + 8)

	ordinal := 0
	inQuote := byte(0)
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case inQuote != 0:
			if ch == inQuote {
				inQuote = 0
			}
			out.WriteByte(ch)
		case ch == '\'' || ch == '"':
			inQuote = ch
			out.WriteByte(ch)
		case ch == '?':
			ordinal++
			out.WriteByte('$')
			out.WriteString(strconv.Itoa(ordinal))
		default:
			out.WriteByte(ch)
		}
	}
	return out.String()
}
