// Package sqlite implements the watch repositories on top of a single
// on-disk SQLite file, using the pure-Go modernc.org/sqlite driver.
//
// A *DB is the storage handle. It owns the only connection to the file and
// hands out the two repositories bound to it:
//
//	db := sqlite.Open(logger)
//	defer db.Close()
//	if err := db.EnsureSchema(ctx); err != nil { ... }
//	devs := db.DevWatches()
//
// Opening never fails. If the file cannot be opened the handle is kept in
// a "no connection" state and every operation returns an
// apperror.ErrConnection instead.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/sakif/ghnotify/internal/apperror"
	"github.com/sakif/ghnotify/internal/config"
	"github.com/sakif/ghnotify/internal/logging"
)

var errClosed = errors.New("sqlite: handle closed")

// DB is the storage handle.
//
// All store access is serialized behind mu, and the pool is capped at one
// connection, so there is never more than one writer in this process.
type DB struct {
	mu     sync.Mutex
	conn   *sql.DB // nil when there is no live connection
	err    error   // why conn is nil
	path   string
	logger *slog.Logger

	devs  *DevWatches
	repos *RepoWatches
}

// Open returns a handle on the notification store at its fixed per-user
// location (config.DBPath), creating the directory if needed.
func Open(logger *slog.Logger) *DB {
	path, err := config.DBPath()
	if err != nil {
		return newDisconnected("", fmt.Errorf("sqlite: resolving data dir: %w", err), logger)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return newDisconnected(path, fmt.Errorf("sqlite: creating data dir: %w", err), logger)
	}
	return New(path, logger)
}

// New returns a handle on the database at dbPath. ":memory:" gives an
// in-memory database, which is what the tests use.
func New(dbPath string, logger *slog.Logger) *DB {
	conn, err := connect(dbPath)
	if err != nil {
		return newDisconnected(dbPath, err, logger)
	}
	db := newHandle(dbPath, logger)
	db.conn = conn
	db.logger.Debug("store opened", slog.String("path", dbPath))
	return db
}

func newDisconnected(path string, cause error, logger *slog.Logger) *DB {
	db := newHandle(path, logger)
	db.err = cause
	db.logger.Warn("store unavailable",
		slog.String("path", path),
		slog.String("error", cause.Error()),
	)
	return db
}

func newHandle(path string, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.Default()
	}
	db := &DB{
		path:   path,
		logger: logging.WithComponent(logger, "store"),
	}
	db.devs = newDevWatches(db)
	db.repos = newRepoWatches(db)
	return db
}

func connect(dbPath string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}
	return conn, nil
}

// Path returns the database location the handle was opened with.
func (db *DB) Path() string { return db.path }

// Connected reports whether the handle holds a live connection.
func (db *DB) Connected() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn != nil
}

// Err returns the reason the handle has no connection, or nil.
func (db *DB) Err() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.conn != nil {
		return nil
	}
	return db.err
}

// DevWatches returns the developer watch repository bound to this handle.
func (db *DB) DevWatches() *DevWatches { return db.devs }

// RepoWatches returns the repository watch repository bound to this handle.
func (db *DB) RepoWatches() *RepoWatches { return db.repos }

// EnsureSchema creates the backing table of every watch kind if it does not
// exist yet. It is safe to call any number of times. All failures are
// reported together as one ErrConnection.
func (db *DB) EnsureSchema(ctx context.Context) error {
	var errs []error
	if err := db.devs.CreateTable(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := db.repos.CreateTable(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return apperror.Connection("ensure schema", errors.Join(errs...))
	}
	return nil
}

// Close releases the connection. Later operations fail with ErrConnection.
// Closing twice is a no-op.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	db.conn = nil
	db.err = errClosed
	db.logger.Debug("store closed", slog.String("path", db.path))
	return err
}

// withConn runs fn with exclusive use of the connection.
func (db *DB) withConn(op string, fn func(conn *sql.DB) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.conn == nil {
		return apperror.Connection(op, db.err)
	}
	return fn(db.conn)
}
