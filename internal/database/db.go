package database

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Queryer is the read/write surface repositories run against. Both *DB and
// *Tx satisfy it, so the same repository methods work inside and outside a
// transaction.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// DB wraps the connection pool with dialect-aware placeholder rewriting.
type DB struct {
	pool    *sql.DB
	dialect Dialect
}

// Open connects using the given dialect and DSN and verifies the connection.
func Open(dialect Dialect, dsn string) (*DB, error) {
	pool, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := pool.Ping(); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	if err := dialect.ConfigureConnection(pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "configure connection")
	}
	return &DB{pool: pool, dialect: dialect}, nil
}

func (db *DB) Close() error { return db.pool.Close() }

// Pool exposes the raw pool for migrations.
func (db *DB) Pool() *sql.DB { return db.pool }

func (db *DB) Dialect() Dialect { return db.dialect }

func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return db.pool.ExecContext(ctx, db.dialect.RewriteQuery(query), args...)
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.pool.QueryContext(ctx, db.dialect.RewriteQuery(query), args...)
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.pool.QueryRowContext(ctx, db.dialect.RewriteQuery(query), args...)
}
