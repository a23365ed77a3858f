package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls <uri> [prefix]",
	Short: "List objects under a repository",
	Long: `List every object key under <uri>, optionally restricted to a prefix.
Keys are printed relative to the repository.

Examples:
  repostore ls s3://bucket/repo
  repostore ls gs://bucket/repo metadata/ --json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runLs,
}

var rmYes bool

var rmCmd = &cobra.Command{
	Use:   "rm <uri> [prefix]",
	Short: "Delete every object under a repository",
	Long: `Delete every object under <uri>, optionally restricted to a prefix.
Objects that fail to delete are listed and the command exits non-zero.

Examples:
  repostore rm s3://bucket/repo --yes
  repostore rm file:///tmp/repo metadata/`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRm,
}

func init() {
	rmCmd.Flags().BoolVarP(&rmYes, "yes", "y", false, "do not ask for confirmation")
}

func optionalArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}

func runLs(cmd *cobra.Command, args []string) error {
	repo, err := resolve(cmd, args[0])
	if err != nil {
		return err
	}

	keys, err := repo.Keys(cmd.Context(), optionalArg(args, 1))
	if err != nil {
		return fmt.Errorf("list %s: %w", args[0], err)
	}
	return getFormatter().FormatKeys(cmd.OutOrStdout(), args[0], keys)
}

func runRm(cmd *cobra.Command, args []string) error {
	repo, err := resolve(cmd, args[0])
	if err != nil {
		return err
	}

	prefix := optionalArg(args, 1)
	target := repo.Address().String()
	if prefix != "" {
		target += "/" + prefix
	}

	if !rmYes && !confirm(fmt.Sprintf("Delete every object under %s", target)) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled.")
		return nil
	}

	err = repo.DeleteAll(cmd.Context(), prefix)
	if fmtErr := getFormatter().FormatDeleteAll(cmd.OutOrStdout(), target, err); fmtErr != nil {
		return fmtErr
	}
	if err != nil {
		return &exitError{code: 1}
	}
	return nil
}
