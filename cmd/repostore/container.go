package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var mbTrack bool

var mbCmd = &cobra.Command{
	Use:   "mb <uri>",
	Short: "Create the container a repository lives in",
	Long: `Create the bucket, container or directory named by <uri>. An existing
container owned by the caller is not an error.

With --track the container is recorded in the journal so that a later
"repostore teardown" removes it.

Examples:
  repostore mb s3://repostore-test-abc
  repostore mb gs://repostore-test-abc --track`,
	Args: cobra.ExactArgs(1),
	RunE: runMb,
}

var rbForce bool

var rbCmd = &cobra.Command{
	Use:   "rb <uri>",
	Short: "Delete the container a repository lives in",
	Long: `Delete the container named by <uri>. A container that still holds
objects is refused unless --force is given, in which case every object is
deleted first.

Examples:
  repostore rb s3://repostore-test-abc
  repostore rb abs://repostore-test-abc --force`,
	Args: cobra.ExactArgs(1),
	RunE: runRb,
}

func init() {
	mbCmd.Flags().BoolVar(&mbTrack, "track", false, "record the container in the journal")
	rbCmd.Flags().BoolVarP(&rbForce, "force", "f", false, "delete all objects before the container")
}

func runMb(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	f, cfg, err := newFacade(cmd)
	if err != nil {
		return err
	}
	repo, err := f.Resolve(ctx, args[0])
	if err != nil {
		return err
	}

	h, err := repo.CreateContainer(ctx)
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}

	if mbTrack {
		j, cleanup, err := openJournal(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		if j == nil {
			return errors.New("--track needs a journal (journal.type is none)")
		}
		if err := newManager(cfg, f, j).Track(ctx, h); err != nil {
			return err
		}
	}

	slog.Info("container created", "container", h.String(), "tracked", mbTrack)
	return getFormatter().FormatHandles(cmd.OutOrStdout(), "created", handles(h))
}

func runRb(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	repo, err := resolve(cmd, args[0])
	if err != nil {
		return err
	}

	if rbForce {
		if err := repo.DeleteAll(ctx, ""); err != nil {
			_ = getFormatter().FormatDeleteAll(cmd.OutOrStdout(), args[0], err)
			return &exitError{code: 1}
		}
	}

	if err := repo.DeleteContainer(ctx); err != nil {
		return fmt.Errorf("delete container: %w", err)
	}

	slog.Info("container deleted", "uri", args[0])
	return nil
}
