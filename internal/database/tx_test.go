package database

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAfterCommitRunsOnCommit(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	fired := 0
	err := db.InTx(ctx, func(tx *Tx) error {
		tx.AfterCommit(func() { fired++ })
		tx.AfterCommit(func() { fired++ })
		_, err := tx.ExecContext(ctx, `INSERT INTO users (id, name, created_at, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`, "u1", "Test")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, fired, "both hooks should run after commit")
}

func TestAfterCommitSkippedOnRollback(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	fired := false
	err := db.InTx(ctx, func(tx *Tx) error {
		tx.AfterCommit(func() { fired = true })
		if _, err := tx.ExecContext(ctx, `INSERT INTO users (id, name, created_at, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`, "u1", "Test"); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.False(t, fired, "hook must not run on rollback")

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count))
	assert.Equal(t, 0, count, "rollback must discard the insert")
}

func TestPostgresPlaceholderRewrite(t *testing.T) {
	d := NewPostgresDialect()
	got := d.RewriteQuery("SELECT id FROM users WHERE email = ? AND deleted_at IS NULL LIMIT ?")
	assert.Equal(t, "SELECT id FROM users WHERE email = $1 AND deleted_at IS NULL LIMIT $2", got)
}
