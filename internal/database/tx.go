package database

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Tx wraps sql.Tx with placeholder rewriting and a list of post-commit hooks.
// Hooks run strictly after a successful commit, in registration order, and
// never on rollback. Side effects that must not be observable before the
// state they describe is durable (invite emails, most notably) go through
// AfterCommit.
type Tx struct {
	tx          *sql.Tx
	dialect     Dialect
	afterCommit []func()
	done        bool
}

// Begin starts a transaction.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := db.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin transaction")
	}
	return &Tx{tx: tx, dialect: db.dialect}, nil
}

// AfterCommit registers fn to run once the transaction commits.
func (t *Tx) AfterCommit(fn func()) {
	t.afterCommit = append(t.afterCommit, fn)
}

// Commit commits and then runs the registered hooks.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return err
	}
	t.done = true
	for _, fn := range t.afterCommit {
		fn()
	}
	return nil
}

// Rollback aborts the transaction and discards any registered hooks.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.RewriteQuery(query), args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.RewriteQuery(query), args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.RewriteQuery(query), args...)
}

// InTx runs fn inside a transaction, rolling back if fn returns an error and
// committing (plus post-commit hooks) otherwise.
func (db *DB) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rollback failed: %v", rbErr)
		}
		return err
	}
	return tx.Commit()
}
