package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/repostore/config"
)

var version = "dev"

var (
	cfgFiles   []string
	jsonOutput bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:     "repostore",
	Version: version,
	Short:   "Uniform access to repositories on local disk, S3, GCS and Azure Blob",
	Long: `repostore reads and writes repository objects addressed by URI and
manages the lifecycle of throwaway test containers.

Supported URIs:
  file:///abs/path or file://rel/path
  s3://bucket/prefix
  gs://bucket/prefix
  abs://container/prefix`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFiles, cmd.Flags())
		if err != nil {
			return err
		}
		setupLogging(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringSliceVarP(&cfgFiles, "config", "c", nil, "config file(s), later files override earlier ones (default: ./repostore.yaml)")
	pf.BoolVar(&jsonOutput, "json", false, "output as JSON")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
	pf.String("log-level", "", "log level: debug, info, warn, error (env: REPOSTORE_LOG_LEVEL)")
	pf.String("env", "", "environment: dev or production (env: REPOSTORE_ENV)")
	pf.String("journal", "", "journal type: sqlite, postgres, none (env: REPOSTORE_JOURNAL_TYPE)")
	pf.String("journal-dsn", "", "journal connection string (env: REPOSTORE_JOURNAL_DSN)")
	pf.String("s3-endpoint", "", "S3 endpoint URL (env: REPOSTORE_STORAGE_S3_ENDPOINT)")
	pf.String("s3-region", "", "S3 region (env: REPOSTORE_STORAGE_S3_REGION)")
	pf.String("gcs-project", "", "GCS project for bucket creation (env: GOOGLE_CLOUD_PROJECT)")
	pf.String("gcs-endpoint", "", "GCS endpoint URL (env: REPOSTORE_STORAGE_GCS_ENDPOINT)")
	pf.String("abs-url", "", "Azure Blob account URL (env: STORAGE_BLOB_URL)")

	rootCmd.AddCommand(existsCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(mbCmd)
	rootCmd.AddCommand(rbCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(teardownCmd)
	rootCmd.AddCommand(pendingCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		_ = getFormatter().FormatError(os.Stderr, err)
		os.Exit(1)
	}
}

// exitError carries an exit code for failures already reported to the user.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}
