package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/sagarc03/repostore"
	"github.com/sagarc03/repostore/journal/postgres"
	"github.com/sagarc03/repostore/journal/sqlite"
)

const (
	TypeNone     = "none"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// ErrDisabled is returned by Connect when the journal type is "none".
var ErrDisabled = errors.New("journal disabled")

type Config struct {
	Type  string `mapstructure:"type" validate:"required,oneof=none sqlite postgres"`
	DSN   string `mapstructure:"dsn" validate:"required_unless=Type none"`
	Table string `mapstructure:"table" validate:"required_unless=Type none"`
}

// Enabled reports whether cfg selects a backend.
func (c Config) Enabled() bool {
	return c.Type != "" && c.Type != TypeNone
}

type database interface {
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Validate(ctx context.Context) error
	Close() error
}

// Connect opens the configured backend, migrates and validates its table,
// and returns the journal with a cleanup function that closes the
// connection.
func Connect(ctx context.Context, cfg Config) (repostore.Journal, func(), error) {
	switch cfg.Type {
	case TypeSQLite:
		db, err := sqlite.Connect(ctx, cfg.DSN, cfg.Table)
		if err != nil {
			return nil, nil, err
		}
		if err := prepare(ctx, db); err != nil {
			return nil, nil, fmt.Errorf("sqlite journal: %w", err)
		}
		return db.Journal(), func() { _ = db.Close() }, nil
	case TypePostgres:
		db, err := postgres.Connect(ctx, cfg.DSN, cfg.Table)
		if err != nil {
			return nil, nil, err
		}
		if err := prepare(ctx, db); err != nil {
			return nil, nil, fmt.Errorf("postgres journal: %w", err)
		}
		return db.Journal(), func() { _ = db.Close() }, nil
	case TypeNone, "":
		return nil, nil, ErrDisabled
	default:
		return nil, nil, fmt.Errorf("unsupported journal type: %s", cfg.Type)
	}
}

func prepare(ctx context.Context, db database) error {
	err := func() error {
		if err := db.Ping(ctx); err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		return db.Validate(ctx)
	}()
	if err != nil {
		_ = db.Close()
	}
	return err
}
