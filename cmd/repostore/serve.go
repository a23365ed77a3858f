package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	repohttp "github.com/sagarc03/repostore/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve repository operations over HTTP",
	Long: `Start an HTTP gateway over the same backends the other commands use.

Routes take the repository URI as the "uri" query parameter:
  GET    /v1/exists?uri=&path=
  GET    /v1/objects?uri=&path=
  PUT    /v1/objects?uri=&path=
  DELETE /v1/objects?uri=&prefix=
  GET    /v1/keys?uri=&prefix=
  PUT    /v1/containers?uri=
  DELETE /v1/containers?uri=&force=true

Set server.token (env: REPOSTORE_SERVER_TOKEN) to require a bearer token.
file:// repositories are only served under server.file_roots, which
requires a token.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default 127.0.0.1:5708, env: REPOSTORE_SERVER_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	f, cfg, err := newFacade(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Server.CheckAccess(); err != nil {
		return err
	}
	if len(cfg.Server.FileRoots) == 0 {
		slog.Info("file:// repositories disabled, set server.file_roots to serve local directories")
	}

	handler := repohttp.NewHandler(cfg.Server.HandlerConfig(), repohttp.NewFacadeStorage(f))

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}

		slog.Info("shutting down server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
	}()

	slog.Info("starting server", "addr", cfg.Server.Addr, "auth", cfg.Server.Token != "")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
