package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/repostore/journal/internal"
)

func createJournalTable(ctx context.Context, pool *pgxpool.Pool, table string) error {
	quoted := pgx.Identifier{table}.Sanitize()
	indexPending := pgx.Identifier{fmt.Sprintf("idx_%s_pending", table)}.Sanitize()

	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL PRIMARY KEY,
			id UUID NOT NULL UNIQUE DEFAULT gen_random_uuid(),
			scheme TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			released_at TIMESTAMPTZ,
			UNIQUE (scheme, name)
		);

		CREATE INDEX IF NOT EXISTS %s
		ON %s (seq)
		WHERE (released_at IS NULL);
	`, quoted, indexPending, quoted)

	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create journal table: %w", err)
	}
	return nil
}

var journalTableSchema = map[string]internal.Column{
	"seq":         {DataType: "bigint"},
	"id":          {DataType: "uuid"},
	"scheme":      {DataType: "text"},
	"name":        {DataType: "text"},
	"created_at":  {DataType: "timestamp with time zone"},
	"released_at": {DataType: "timestamp with time zone", IsNullable: true},
}

func validateTableSchema(ctx context.Context, pool *pgxpool.Pool, table string) error {
	exists, err := tableExists(ctx, pool, table)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("table %s does not exist", table)
	}

	query := `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`

	rows, err := pool.Query(ctx, query, table)
	if err != nil {
		return fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	actual := make(map[string]internal.Column)
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return fmt.Errorf("scan column: %w", err)
		}
		actual[name] = internal.Column{DataType: strings.ToLower(dataType), IsNullable: nullable == "YES"}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	return internal.CompareColumns(table, journalTableSchema, actual)
}

func tableExists(ctx context.Context, pool *pgxpool.Pool, table string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = current_schema()
			AND table_name = $1
		)
	`
	if err := pool.QueryRow(ctx, query, table).Scan(&exists); err != nil {
		return false, fmt.Errorf("check table exists: %w", err)
	}
	return exists, nil
}
