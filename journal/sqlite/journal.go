package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/repostore"
)

// Journal implements repostore.Journal on a SQLite table.
type Journal struct {
	db    *sql.DB
	table string
}

var _ repostore.Journal = (*Journal)(nil)

func (j *Journal) Record(ctx context.Context, h repostore.ContainerHandle) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, scheme, name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (scheme, name) DO NOTHING`, quoteIdentifier(j.table))

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := j.db.ExecContext(ctx, query, uuid.NewString(), string(h.Scheme), h.Name, now)
	if err != nil {
		return fmt.Errorf("record %s: %w", h, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record %s: rows affected: %w", h, err)
	}
	if n == 0 {
		return fmt.Errorf("record %s: %w", h, repostore.ErrNameCollision)
	}
	return nil
}

func (j *Journal) Release(ctx context.Context, h repostore.ContainerHandle) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s SET released_at = ?
		WHERE scheme = ? AND name = ? AND released_at IS NULL`, quoteIdentifier(j.table))

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := j.db.ExecContext(ctx, query, now, string(h.Scheme), h.Name)
	if err != nil {
		return fmt.Errorf("release %s: %w", h, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release %s: rows affected: %w", h, err)
	}
	if n == 0 {
		return fmt.Errorf("release %s: %w", h, repostore.ErrNotFound)
	}
	return nil
}

func (j *Journal) Pending(ctx context.Context) ([]repostore.ContainerHandle, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT scheme, name FROM %s
		WHERE released_at IS NULL
		ORDER BY seq`, quoteIdentifier(j.table))

	rows, err := j.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pending: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var handles []repostore.ContainerHandle
	for rows.Next() {
		var scheme, name string
		if err := rows.Scan(&scheme, &name); err != nil {
			return nil, fmt.Errorf("pending: scan: %w", err)
		}
		s, err := repostore.ParseScheme(scheme)
		if err != nil {
			return nil, fmt.Errorf("pending: %s: %w", name, err)
		}
		handles = append(handles, repostore.ContainerHandle{Scheme: s, Name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pending: rows: %w", err)
	}

	return handles, nil
}
