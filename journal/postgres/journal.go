package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/repostore"
)

// Journal implements repostore.Journal on a PostgreSQL table.
type Journal struct {
	pool  *pgxpool.Pool
	table string
}

var _ repostore.Journal = (*Journal)(nil)

func (j *Journal) Record(ctx context.Context, h repostore.ContainerHandle) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (scheme, name)
		VALUES ($1, $2)
		ON CONFLICT (scheme, name) DO NOTHING
	`, j.table)

	tag, err := j.pool.Exec(ctx, query, string(h.Scheme), h.Name)
	if err != nil {
		return fmt.Errorf("record %s: %w", h, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record %s: %w", h, repostore.ErrNameCollision)
	}
	return nil
}

func (j *Journal) Release(ctx context.Context, h repostore.ContainerHandle) error {
	query := fmt.Sprintf(`
		UPDATE %s SET released_at = NOW()
		WHERE scheme = $1 AND name = $2 AND released_at IS NULL
	`, j.table)

	tag, err := j.pool.Exec(ctx, query, string(h.Scheme), h.Name)
	if err != nil {
		return fmt.Errorf("release %s: %w", h, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("release %s: %w", h, repostore.ErrNotFound)
	}
	return nil
}

func (j *Journal) Pending(ctx context.Context) ([]repostore.ContainerHandle, error) {
	query := fmt.Sprintf(`
		SELECT scheme, name FROM %s
		WHERE released_at IS NULL
		ORDER BY seq
	`, j.table)

	rows, err := j.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pending: %w", err)
	}

	handles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (repostore.ContainerHandle, error) {
		var scheme, name string
		if err := row.Scan(&scheme, &name); err != nil {
			return repostore.ContainerHandle{}, err
		}
		s, err := repostore.ParseScheme(scheme)
		if err != nil {
			return repostore.ContainerHandle{}, fmt.Errorf("%s: %w", name, err)
		}
		return repostore.ContainerHandle{Scheme: s, Name: name}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("pending: %w", err)
	}
	return handles, nil
}
