package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/sagarc03/repostore"
	"github.com/sagarc03/repostore/backend"
	"github.com/sagarc03/repostore/config"
	"github.com/sagarc03/repostore/journal"
)

// newFacade builds a facade from the config stored on cmd's context.
func newFacade(cmd *cobra.Command) (*repostore.Facade, *config.Config, error) {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	f, err := backend.NewFacade(cfg.Storage, slog.Default())
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}
	return f, cfg, nil
}

func resolve(cmd *cobra.Command, uri string) (*repostore.Repository, error) {
	f, _, err := newFacade(cmd)
	if err != nil {
		return nil, err
	}
	return f.Resolve(cmd.Context(), uri)
}

// openJournal connects the configured journal. A disabled journal yields a
// nil Journal and a no-op cleanup.
func openJournal(ctx context.Context, cfg *config.Config) (repostore.Journal, func(), error) {
	j, cleanup, err := journal.Connect(ctx, cfg.Journal)
	if errors.Is(err, journal.ErrDisabled) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open journal: %w", err)
	}
	return j, cleanup, nil
}

func newManager(cfg *config.Config, f *repostore.Facade, j repostore.Journal) *repostore.Manager {
	opts := append(cfg.Lifecycle.ManagerOptions(), repostore.WithLogger(slog.Default()))
	if j != nil {
		opts = append(opts, repostore.WithJournal(j))
	}
	return repostore.NewManager(f, opts...)
}

// confirm asks a yes/no question. Any prompt failure, including a closed or
// non-interactive stdin, counts as no.
func confirm(label string) bool {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := prompt.Run()
	return err == nil
}
