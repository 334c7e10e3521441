// Package service holds the watch business logic that sits between callers
// (the CLI, the local API, the UI's polling loop) and the store.
//
// WatchService is written once against repository.WatchRepository and is
// instantiated per watch kind with NewDevService / NewRepoService.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/ghnotify/internal/apperror"
	"github.com/sakif/ghnotify/internal/logging"
	"github.com/sakif/ghnotify/internal/model"
	"github.com/sakif/ghnotify/internal/repository"
)

// Activity is what a feed reports for one watch: the newest item id and how
// many items are newer than the marker the watch currently holds.
type Activity struct {
	LatestID string
	Unread   int
}

// FeedSource reports activity for a watch since its stored marker. The
// implementation (remote API client, cache, ...) belongs to the caller.
type FeedSource[T model.Watch[T]] interface {
	Since(ctx context.Context, rec T) (Activity, error)
}

// FeedFunc adapts a plain function to FeedSource.
type FeedFunc[T model.Watch[T]] func(ctx context.Context, rec T) (Activity, error)

func (f FeedFunc[T]) Since(ctx context.Context, rec T) (Activity, error) { return f(ctx, rec) }

// ReconcileReport summarizes one reconciliation cycle.
type ReconcileReport struct {
	CycleID   string
	Checked   int
	Updated   int
	Unchanged int
	Failed    map[string]error // keyed by natural key
}

// WatchService implements watch/unwatch, read tracking and reconciliation
// for one watch kind.
type WatchService[T model.Watch[T]] struct {
	repo     repository.WatchRepository[T]
	kind     string
	validate func(key string) error
	logger   *slog.Logger
}

// NewWatchService returns a service over repo. kind names the watch kind in
// errors and logs; validate checks natural keys.
func NewWatchService[T model.Watch[T]](repo repository.WatchRepository[T], kind string, validate func(string) error, logger *slog.Logger) *WatchService[T] {
	return &WatchService[T]{
		repo:     repo,
		kind:     kind,
		validate: validate,
		logger:   logging.WithComponent(logger, "service").With(slog.String("kind", kind)),
	}
}

// NewDevService returns the service for developer watches.
func NewDevService(repo repository.DevWatchRepository, logger *slog.Logger) *WatchService[model.DevWatch] {
	return NewWatchService(repo, "dev watch", ValidateLogin, logger)
}

// NewRepoService returns the service for repository watches.
func NewRepoService(repo repository.RepoWatchRepository, logger *slog.Logger) *WatchService[model.RepoWatch] {
	return NewWatchService(repo, "repo watch", ValidateFullName, logger)
}

// ValidateLogin checks a developer account name.
func ValidateLogin(login string) error {
	if login == "" {
		return apperror.ValidationFailed("login", "login is required")
	}
	if strings.ContainsAny(login, " \t\n/") {
		return apperror.ValidationFailed("login", fmt.Sprintf("invalid login %q", login))
	}
	return nil
}

// ValidateFullName checks an "owner/name" repository name.
func ValidateFullName(fullName string) error {
	if fullName == "" {
		return apperror.ValidationFailed("fullName", "fullName is required")
	}
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") || strings.ContainsAny(fullName, " \t\n") {
		return apperror.ValidationFailed("fullName", fmt.Sprintf("fullName %q must have the form owner/name", fullName))
	}
	return nil
}

func (s *WatchService[T]) checkKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if err := s.validate(key); err != nil {
		return "", err
	}
	return key, nil
}

// Watch starts watching key with nothing acknowledged yet. Watching an
// entity twice fails with ErrInsert / ErrConflict.
func (s *WatchService[T]) Watch(ctx context.Context, key string) (T, error) {
	var zero T
	key, err := s.checkKey(key)
	if err != nil {
		return zero, err
	}

	rec := zero.WithKey(key).WithProgress("", 0)
	if _, err := s.repo.Insert(ctx, rec); err != nil {
		return zero, fmt.Errorf("watching %s: %w", key, err)
	}
	s.logger.Info("watch added", slog.String("key", key))
	return rec, nil
}

// Unwatch stops watching key. A key that is not watched fails with ErrDelete.
func (s *WatchService[T]) Unwatch(ctx context.Context, key string) error {
	var zero T
	key, err := s.checkKey(key)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, zero.WithKey(key)); err != nil {
		return fmt.Errorf("unwatching %s: %w", key, err)
	}
	s.logger.Info("watch removed", slog.String("key", key))
	return nil
}

// Get returns the watch for key, or apperror.ErrNotFound.
func (s *WatchService[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T
	key, err := s.checkKey(key)
	if err != nil {
		return zero, err
	}
	rec, ok, err := s.repo.Find(ctx, key)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, apperror.NotFound(s.kind, key)
	}
	return rec, nil
}

// List returns every watch in storage order.
func (s *WatchService[T]) List(ctx context.Context) ([]T, error) {
	return s.repo.FindAll(ctx)
}

// Put stores rec as-is over the existing watch with the same key.
func (s *WatchService[T]) Put(ctx context.Context, rec T) error {
	if _, err := s.checkKey(rec.Key()); err != nil {
		return err
	}
	if rec.Unread() < 0 {
		return apperror.ValidationFailed("unreadCount", "unreadCount must not be negative")
	}
	return s.repo.Update(ctx, rec)
}

// MarkRead acknowledges everything up to marker and clears the unread
// count. An empty marker keeps the stored one.
func (s *WatchService[T]) MarkRead(ctx context.Context, key, marker string) (T, error) {
	var zero T
	rec, err := s.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	if marker == "" {
		marker = rec.ReadMarker()
	}
	rec = rec.WithProgress(marker, 0)
	if err := s.repo.Update(ctx, rec); err != nil {
		return zero, err
	}
	s.logger.Debug("watch marked read", slog.String("key", rec.Key()), slog.String("marker", marker))
	return rec, nil
}

// UnreadTotal sums the unread counts of every watch of this kind.
func (s *WatchService[T]) UnreadTotal(ctx context.Context) (int, error) {
	all, err := s.repo.FindAll(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, rec := range all {
		total += rec.Unread()
	}
	return total, nil
}

// Reconcile asks src for the activity of every watch and stores the result.
//
// A watch with no marker yet takes the feed's latest id as its baseline
// with nothing unread. Otherwise the marker is kept and the unread count is
// replaced by the feed's count. Per-watch failures are collected in the
// report; only a failure to list the watches (or a cancelled context) is
// returned as an error.
func (s *WatchService[T]) Reconcile(ctx context.Context, src FeedSource[T]) (ReconcileReport, error) {
	report := ReconcileReport{CycleID: xid.New().String(), Failed: map[string]error{}}
	l := s.logger.With(slog.String("cycle", report.CycleID))

	all, err := s.repo.FindAll(ctx)
	if err != nil {
		l.Error("reconcile: listing watches failed", slog.String("error", err.Error()))
		return report, fmt.Errorf("reconcile: %w", err)
	}

	for _, rec := range all {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		act, err := src.Since(ctx, rec)
		if err != nil {
			report.Failed[rec.Key()] = err
			l.Warn("reconcile: feed failed", slog.String("key", rec.Key()), slog.String("error", err.Error()))
			continue
		}

		next, changed := advance(rec, act)
		if !changed {
			report.Unchanged++
			continue
		}
		if err := s.repo.Update(ctx, next); err != nil {
			if errors.Is(err, apperror.ErrConnection) {
				return report, fmt.Errorf("reconcile: %w", err)
			}
			report.Failed[rec.Key()] = err
			continue
		}
		report.Updated++
	}

	l.Info("reconcile finished",
		slog.Int("checked", report.Checked),
		slog.Int("updated", report.Updated),
		slog.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func advance[T model.Watch[T]](rec T, act Activity) (T, bool) {
	unread := act.Unread
	if unread < 0 {
		unread = 0
	}
	if rec.ReadMarker() == "" {
		if act.LatestID == "" {
			return rec, false
		}
		return rec.WithProgress(act.LatestID, 0), true
	}
	if unread == rec.Unread() {
		return rec, false
	}
	return rec.WithProgress(rec.ReadMarker(), unread), true
}
