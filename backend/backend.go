// Package backend builds a repostore.Facade whose drivers are configured from
// a single Config. Cloud drivers are created lazily, so a backend that is
// never addressed needs no credentials or settings.
package backend

import (
	"context"
	"log/slog"

	"github.com/sagarc03/repostore"
	"github.com/sagarc03/repostore/absstore"
	"github.com/sagarc03/repostore/filesystem"
	"github.com/sagarc03/repostore/gcsstore"
	"github.com/sagarc03/repostore/s3store"
)

type Config struct {
	S3  s3store.Config  `mapstructure:"s3"`
	GCS gcsstore.Config `mapstructure:"gcs"`
	ABS absstore.Config `mapstructure:"abs"`
}

// Loaders returns one loader per scheme for cfg.
func Loaders(cfg Config, log *slog.Logger) map[repostore.Scheme]repostore.Loader {
	if log == nil {
		log = slog.Default()
	}

	return map[repostore.Scheme]repostore.Loader{
		repostore.SchemeFile: func(context.Context) (repostore.Driver, error) {
			return filesystem.New(filesystem.WithLogger(log)), nil
		},
		repostore.SchemeS3: func(ctx context.Context) (repostore.Driver, error) {
			return s3store.Open(ctx, cfg.S3, log.With(slog.String("scheme", "s3")))
		},
		repostore.SchemeGS: func(ctx context.Context) (repostore.Driver, error) {
			return gcsstore.Open(ctx, cfg.GCS, log.With(slog.String("scheme", "gs")))
		},
		repostore.SchemeABS: func(context.Context) (repostore.Driver, error) {
			return absstore.Open(cfg.ABS, log.With(slog.String("scheme", "abs")))
		},
	}
}

// NewFacade returns a Facade covering every scheme.
func NewFacade(cfg Config, log *slog.Logger) (*repostore.Facade, error) {
	return repostore.NewFacade(Loaders(cfg, log), repostore.WithFacadeLogger(log))
}
