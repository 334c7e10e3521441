// Package server wires the watch services into a chi router and serves the
// local API on a loopback address.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/ghnotify/internal/handler"
	"github.com/sakif/ghnotify/internal/logging"
	"github.com/sakif/ghnotify/internal/middleware"
	sqliteRepo "github.com/sakif/ghnotify/internal/repository/sqlite"
	"github.com/sakif/ghnotify/internal/service"
)

// Config holds the API settings.
type Config struct {
	ListenAddr string // e.g. "127.0.0.1:7878"
}

// Server does not own the store handle; the caller opens and closes it.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
}

// New builds the router over db. It fails if cfg.ListenAddr is not a
// loopback address.
func New(cfg Config, logger *slog.Logger, db *sqliteRepo.DB) (*Server, error) {
	if err := checkLoopback(cfg.ListenAddr); err != nil {
		return nil, err
	}
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logging.WithComponent(logger, "api"),
	}
	s.setupRoutes(db)
	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes(db *sqliteRepo.DB) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	devService := service.NewDevService(db.DevWatches(), s.logger)
	repoService := service.NewRepoService(db.RepoWatches(), s.logger)

	devs := handler.NewWatchHandler(devService, handler.DevKey, s.logger)
	repos := handler.NewWatchHandler(repoService, handler.RepoKey, s.logger)
	unread := handler.NewUnreadHandler(devService, repoService, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/devs", devs.HandleList)
		r.Post("/devs", devs.HandleCreate)
		r.Get("/devs/{login}", devs.HandleGet)
		r.Put("/devs/{login}", devs.HandleUpdate)
		r.Delete("/devs/{login}", devs.HandleDelete)
		r.Post("/devs/{login}/read", devs.HandleMarkRead)

		r.Get("/repos", repos.HandleList)
		r.Post("/repos", repos.HandleCreate)
		r.Get("/repos/{owner}/{name}", repos.HandleGet)
		r.Put("/repos/{owner}/{name}", repos.HandleUpdate)
		r.Delete("/repos/{owner}/{name}", repos.HandleDelete)
		r.Post("/repos/{owner}/{name}/read", repos.HandleMarkRead)

		r.Get("/unread", unread.HandleUnread)
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", slog.String("addr", s.config.ListenAddr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("api stopped")
	}
	return nil
}

// checkLoopback refuses to expose the store beyond this machine.
func checkLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("listen address %q is not a loopback address", addr)
	}
	return nil
}
