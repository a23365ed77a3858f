package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var existsCmd = &cobra.Command{
	Use:   "exists <uri> <path>",
	Short: "Report whether an object exists",
	Long: `Print true or false depending on whether <path> exists under <uri>.

A backend that cannot be reached is an error, never false.

Examples:
  repostore exists s3://bucket/repo metadata/experiments/e1.json
  repostore exists file:///tmp/repo index.json --json`,
	Args: cobra.ExactArgs(2),
	RunE: runExists,
}

var getOutput string

var getCmd = &cobra.Command{
	Use:   "get <uri> <path>",
	Short: "Download an object",
	Long: `Download <path> under <uri> to stdout or to a local file.

Examples:
  repostore get gs://bucket/repo metadata/experiments/e1.json
  repostore get abs://container/repo data.bin -o data.bin`,
	Args: cobra.ExactArgs(2),
	RunE: runGet,
}

var putCmd = &cobra.Command{
	Use:   "put <uri> <path> [file|-]",
	Short: "Upload an object",
	Long: `Upload a local file, or stdin when the file is "-" or omitted, to <path>
under <uri>. An existing object is replaced.

Examples:
  repostore put s3://bucket/repo metadata/e1.json ./e1.json
  echo '{}' | repostore put file:///tmp/repo index.json`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runPut,
}

func init() {
	getCmd.Flags().StringVarP(&getOutput, "output", "o", "-", "local file to write, - for stdout")
}

func runExists(cmd *cobra.Command, args []string) error {
	f, _, err := newFacade(cmd)
	if err != nil {
		return err
	}

	ok, err := f.Exists(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("exists %s: %w", args[1], err)
	}
	return getFormatter().FormatExists(cmd.OutOrStdout(), args[0], args[1], ok)
}

func runGet(cmd *cobra.Command, args []string) error {
	repo, err := resolve(cmd, args[0])
	if err != nil {
		return err
	}

	data, err := repo.Get(cmd.Context(), args[1])
	if err != nil {
		return fmt.Errorf("get %s: %w", args[1], err)
	}

	if getOutput == "-" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	if err := os.WriteFile(getOutput, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", getOutput, err)
	}
	slog.Info("downloaded", "uri", repo.Address().String(), "path", args[1], "file", getOutput, "size", len(data))
	return nil
}

func runPut(cmd *cobra.Command, args []string) error {
	src := "-"
	if len(args) == 3 {
		src = args[2]
	}

	var (
		data []byte
		err  error
	)
	if src == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(src)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}

	repo, err := resolve(cmd, args[0])
	if err != nil {
		return err
	}

	if err := repo.Put(cmd.Context(), args[1], data); err != nil {
		return fmt.Errorf("put %s: %w", args[1], err)
	}
	slog.Info("uploaded", "uri", repo.Address().String(), "path", args[1], "size", len(data))
	return nil
}
