package database

import (
	"database/sql"
	"fmt"
	"strings"
)

// Dialect abstracts the differences between the production Postgres database
// and the SQLite database the integration tests run against. Repository
// queries are written with `?` placeholders and rewritten per dialect.
type Dialect interface {
	Name() string
	DriverName() string
	RewriteQuery(query string) string
	ConfigureConnection(db *sql.DB) error
}

type postgresDialect struct{}

func NewPostgresDialect() Dialect { return postgresDialect{} }

func (postgresDialect) Name() string       { return "postgres" }
func (postgresDialect) DriverName() string { return "postgres" }

// RewriteQuery converts `?` placeholders to the $1..$n form lib/pq expects.
func (postgresDialect) RewriteQuery(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (postgresDialect) ConfigureConnection(db *sql.DB) error {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return nil
}

type sqliteDialect struct{}

func NewSQLiteDialect() Dialect { return sqliteDialect{} }

func (sqliteDialect) Name() string       { return "sqlite3" }
func (sqliteDialect) DriverName() string { return "sqlite3" }

func (sqliteDialect) RewriteQuery(query string) string { return query }

func (sqliteDialect) ConfigureConnection(db *sql.DB) error {
	// SQLite serializes writes; a single connection avoids table locks.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}
	return nil
}
