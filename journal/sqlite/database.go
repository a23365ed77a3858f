// Package sqlite stores the provisioning journal in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sagarc03/repostore/journal/internal"

	_ "modernc.org/sqlite" // SQLite driver
)

// Database owns the SQLite connection behind a Journal.
type Database struct {
	db    *sql.DB
	table string
}

// Connect opens dsn. The journal table is not created until Migrate.
func Connect(ctx context.Context, dsn, table string) (*Database, error) {
	if err := internal.ValidateTableName(table); err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	return &Database{db: db, table: table}, nil
}

func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Migrate creates the journal table and its indexes when missing.
func (d *Database) Migrate(ctx context.Context) error {
	if err := createJournalTable(ctx, d.db, d.table); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Drop removes the journal table.
func (d *Database) Drop(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdentifier(d.table)))
	if err != nil {
		return fmt.Errorf("drop: %w", err)
	}
	return nil
}

// Validate checks the journal table has the expected columns.
func (d *Database) Validate(ctx context.Context) error {
	if err := validateTableSchema(ctx, d.db, d.table); err != nil {
		return fmt.Errorf("validate schema %s: %w", d.table, err)
	}
	return nil
}

func (d *Database) Journal() *Journal {
	return &Journal{db: d.db, table: d.table}
}

func (d *Database) Close() error {
	return d.db.Close()
}
