package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sagarc03/repostore/journal/internal"
)

func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

func createJournalTable(ctx context.Context, db *sql.DB, table string) error {
	quoted := quoteIdentifier(table)
	indexPending := quoteIdentifier(fmt.Sprintf("idx_%s_pending", table))

	createTableSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
			id TEXT NOT NULL UNIQUE,
			scheme TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			released_at TEXT,
			UNIQUE (scheme, name)
		)
	`, quoted)

	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	indexSQL := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s ON %s (released_at, seq)
	`, indexPending, quoted)

	if _, err := db.ExecContext(ctx, indexSQL); err != nil {
		return fmt.Errorf("create index pending: %w", err)
	}

	return nil
}

var journalTableSchema = map[string]internal.Column{
	"seq":         {DataType: "integer"},
	"id":          {DataType: "text"},
	"scheme":      {DataType: "text"},
	"name":        {DataType: "text"},
	"created_at":  {DataType: "text"},
	"released_at": {DataType: "text", IsNullable: true},
}

func validateTableSchema(ctx context.Context, db *sql.DB, table string) error {
	exists, err := tableExists(ctx, db, table)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("table %s does not exist", table)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdentifier(table)))
	if err != nil {
		return fmt.Errorf("query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	actual := make(map[string]internal.Column)
	for rows.Next() {
		var (
			cid       int
			name      string
			dataType  string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("scan column: %w", err)
		}
		actual[name] = internal.Column{DataType: strings.ToLower(dataType), IsNullable: notNull == 0}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	return internal.CompareColumns(table, journalTableSchema, actual)
}

func tableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var name string
	err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check table exists: %w", err)
	}
	return true, nil
}
