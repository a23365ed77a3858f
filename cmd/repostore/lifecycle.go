package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/repostore"
)

var provisionCreate bool

var provisionCmd = &cobra.Command{
	Use:   "provision <scheme>",
	Short: "Reserve a uniquely named test container",
	Long: `Generate a unique container name for <scheme> (file, s3, gs or abs),
record it in the journal and print it. The container itself is only
created with --create.

Examples:
  repostore provision s3
  repostore provision gs --create --json`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"file", "s3", "gs", "abs"},
	RunE:      runProvision,
}

var teardownYes bool

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Delete every container recorded in the journal",
	Long: `Delete the objects and then the container of every unreleased handle
in the journal. Failures do not stop the remaining containers; each one is
reported and the command exits non-zero.

Examples:
  repostore teardown --yes
  repostore teardown --concurrency 4 --timeout 5m`,
	Args: cobra.NoArgs,
	RunE: runTeardown,
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List containers recorded in the journal and not yet torn down",
	Args:  cobra.NoArgs,
	RunE:  runPending,
}

func init() {
	provisionCmd.Flags().BoolVar(&provisionCreate, "create", false, "also create the container")
	provisionCmd.Flags().String("name-prefix", "", "container name prefix (env: REPOSTORE_LIFECYCLE_NAME_PREFIX)")
	provisionCmd.Flags().Int("suffix-length", 0, "random suffix length (env: REPOSTORE_LIFECYCLE_SUFFIX_LENGTH)")

	teardownCmd.Flags().BoolVarP(&teardownYes, "yes", "y", false, "do not ask for confirmation")
	teardownCmd.Flags().Int("concurrency", 0, "containers torn down at once, 0 for unbounded (env: REPOSTORE_LIFECYCLE_CONCURRENCY)")
	teardownCmd.Flags().Duration("timeout", 0, "overall teardown timeout (env: REPOSTORE_LIFECYCLE_TIMEOUT)")
}

func handles(h ...repostore.ContainerHandle) []repostore.ContainerHandle {
	return h
}

func runProvision(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	scheme, err := repostore.ParseScheme(args[0])
	if err != nil {
		return err
	}

	f, cfg, err := newFacade(cmd)
	if err != nil {
		return err
	}

	j, cleanup, err := openJournal(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	if j == nil {
		slog.Warn("journal disabled, the container will not be torn down by a later teardown")
	}

	name, h, err := newManager(cfg, f, j).Provision(ctx, scheme)
	if err != nil {
		return err
	}

	if provisionCreate {
		d, err := f.Driver(ctx, scheme)
		if err != nil {
			return err
		}
		if _, err := d.CreateContainer(ctx, name); err != nil {
			return fmt.Errorf("create container %s: %w", h, err)
		}
	}

	slog.Debug("container provisioned", "container", h.String(), "created", provisionCreate)
	return getFormatter().FormatHandles(cmd.OutOrStdout(), "provisioned", handles(h))
}

func runTeardown(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	f, cfg, err := newFacade(cmd)
	if err != nil {
		return err
	}

	j, cleanup, err := openJournal(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	if j == nil {
		return errors.New("teardown needs a journal (journal.type is none)")
	}

	m := newManager(cfg, f, j)
	if _, err := m.Restore(ctx); err != nil {
		return err
	}

	pending := m.Handles()
	if len(pending) == 0 {
		return getFormatter().FormatTeardown(cmd.OutOrStdout(), nil, nil)
	}

	if !teardownYes && !confirm(fmt.Sprintf("Delete %d container(s) and everything in them", len(pending))) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled.")
		return nil
	}

	if cfg.Lifecycle.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Lifecycle.Timeout)
		defer cancel()
	}

	err = m.TeardownAll(ctx)
	if fmtErr := getFormatter().FormatTeardown(cmd.OutOrStdout(), pending, err); fmtErr != nil {
		return fmtErr
	}
	if err != nil {
		return &exitError{code: 1}
	}
	return nil
}

func runPending(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	_, cfg, err := newFacade(cmd)
	if err != nil {
		return err
	}

	j, cleanup, err := openJournal(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	if j == nil {
		return errors.New("pending needs a journal (journal.type is none)")
	}

	pending, err := j.Pending(ctx)
	if err != nil {
		return err
	}
	return getFormatter().FormatHandles(cmd.OutOrStdout(), "pending", pending)
}
