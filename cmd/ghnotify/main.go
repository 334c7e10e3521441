// ghnotify manages the local notification state for watched developers and
// repositories: the CLI edits the store directly and `serve` exposes it to
// the UI over a loopback HTTP API.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sakif/ghnotify/internal/config"
	"github.com/sakif/ghnotify/internal/logging"
	"github.com/sakif/ghnotify/internal/model"
	"github.com/sakif/ghnotify/internal/repository/sqlite"
	"github.com/sakif/ghnotify/internal/server"
	"github.com/sakif/ghnotify/internal/service"
)

// app carries everything a command needs. It is built once per process in
// the root command's pre-run and torn down by close.
type app struct {
	configPath string
	listenAddr string

	// open returns the store handle; tests swap in an in-memory one.
	open func(logger *slog.Logger) *sqlite.DB

	cfg       config.AppConfig
	logger    *slog.Logger
	logCloser io.Closer
	db        *sqlite.DB
	storeErr  error // schema setup failure, reported by commands that need the store

	devs  *service.WatchService[model.DevWatch]
	repos *service.WatchService[model.RepoWatch]
}

func main() {
	a := &app{open: sqlite.Open}
	rootCmd := newRootCmd(a)
	err := rootCmd.Execute()
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ghnotify",
		Short: "Local notification state for watched developers and repositories",
		Long: `ghnotify keeps track of which developers and repositories you watch,
the last item you have read for each and how many newer items are unread.

The state lives in a single SQLite file in the per-user data directory.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.setup(cmd.Context()) },
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to config file (default: per-user config.yaml)")

	rootCmd.AddCommand(newWatchCmd(a, watchKind[model.DevWatch]{
		use:     "dev",
		short:   "Manage watched developers",
		keyName: "LOGIN",
		svc:     func(a *app) *service.WatchService[model.DevWatch] { return a.devs },
	}))
	rootCmd.AddCommand(newWatchCmd(a, watchKind[model.RepoWatch]{
		use:     "repo",
		short:   "Manage watched repositories",
		keyName: "OWNER/NAME",
		svc:     func(a *app) *service.WatchService[model.RepoWatch] { return a.repos },
	}))
	rootCmd.AddCommand(unreadCmd(a))
	rootCmd.AddCommand(schemaCmd(a))
	rootCmd.AddCommand(serveCmd(a))
	rootCmd.AddCommand(configCmd(a))
	return rootCmd
}

func (a *app) setup(ctx context.Context) error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	a.logger, a.logCloser = logging.New(a.cfg.Logging)
	a.db = a.open(a.logger)
	a.storeErr = a.db.EnsureSchema(ctx)

	a.devs = service.NewDevService(a.db.DevWatches(), a.logger)
	a.repos = service.NewRepoService(a.db.RepoWatches(), a.logger)
	return nil
}

// ready reports whether the store can serve requests.
func (a *app) ready() error {
	if a.storeErr != nil {
		return fmt.Errorf("store %s: %w", a.db.Path(), a.storeErr)
	}
	return nil
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("closing store", slog.String("error", err.Error()))
		}
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

func unreadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "Print the total unread count across all watches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.ready(); err != nil {
				return err
			}
			d, err := a.devs.UnreadTotal(cmd.Context())
			if err != nil {
				return err
			}
			r, err := a.repos.UnreadTotal(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "devs: %d\nrepos: %d\ntotal: %d\n", d, r, d+r)
			return nil
		},
	}
}

func schemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create the watch tables if missing and print the store location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.ready(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "store: %s\nschema: ok\n", a.db.Path())
			return nil
		},
	}
}

func serveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local API on a loopback address",
		Long: `Serve the watch state to the UI over HTTP.

The listen address must be a loopback address. If the store is unavailable
the API still starts and answers 503 until it is restarted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.ready(); err != nil {
				a.logger.Warn("serving without a store", slog.String("error", err.Error()))
			}

			addr := a.cfg.API.ListenAddr
			if a.listenAddr != "" {
				addr = a.listenAddr
			}
			srv, err := server.New(server.Config{ListenAddr: addr}, a.logger, a.db)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVarP(&a.listenAddr, "listen", "l", "", "Listen address (default from config, 127.0.0.1:7878)")
	return cmd
}
