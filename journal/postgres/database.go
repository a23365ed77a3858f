// Package postgres stores the provisioning journal in PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/repostore/journal/internal"
)

// Database owns the connection pool behind a Journal.
type Database struct {
	pool  *pgxpool.Pool
	table string
}

// Connect creates a pool for dsn. The journal table is not created until
// Migrate.
func Connect(ctx context.Context, dsn, table string) (*Database, error) {
	if err := internal.ValidateTableName(table); err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &Database{pool: pool, table: table}, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, table string) (*Database, error) {
	if err := internal.ValidateTableName(table); err != nil {
		return nil, fmt.Errorf("new postgres journal: %w", err)
	}
	return &Database{pool: pool, table: table}, nil
}

func (d *Database) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

// Migrate creates the journal table and its index when missing.
func (d *Database) Migrate(ctx context.Context) error {
	if err := createJournalTable(ctx, d.pool, d.table); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Drop removes the journal table.
func (d *Database) Drop(ctx context.Context) error {
	_, err := d.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", pgx.Identifier{d.table}.Sanitize()))
	if err != nil {
		return fmt.Errorf("drop: %w", err)
	}
	return nil
}

// Validate checks the journal table has the expected columns.
func (d *Database) Validate(ctx context.Context) error {
	if err := validateTableSchema(ctx, d.pool, d.table); err != nil {
		return fmt.Errorf("validate schema %s: %w", d.table, err)
	}
	return nil
}

func (d *Database) Journal() *Journal {
	return &Journal{pool: d.pool, table: pgx.Identifier{d.table}.Sanitize()}
}

// Close closes the pool.
func (d *Database) Close() error {
	d.pool.Close()
	return nil
}
