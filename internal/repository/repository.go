package repository

import (
	"context"

	"github.com/sakif/ghnotify/internal/model"
)

// WatchRepository is the CRUD contract shared by every watch kind.
// Records are addressed by their natural key.
//
// Errors are *apperror.AppError values:
//   - CreateTable: ErrConnection
//   - Insert:      ErrInsert (ErrConflict in the chain for a duplicate key), ErrNilInData
//   - Delete:      ErrDelete when the key is missing or more than one row matched
//   - Find:        ErrSearch; a missing key is (zero, false, nil)
//   - FindAll:     ErrSearch; an empty table is an empty, non-nil slice
//   - Update:      ErrUpdate when no row matched, ErrNilInData
//
// Any operation on a handle with no live connection fails with ErrConnection.
type WatchRepository[T model.Keyed] interface {
	CreateTable(ctx context.Context) error
	Insert(ctx context.Context, rec T) (int64, error)
	Delete(ctx context.Context, rec T) error
	Find(ctx context.Context, key string) (T, bool, error)
	FindAll(ctx context.Context) ([]T, error)
	Update(ctx context.Context, rec T) error
}

// DevWatchRepository stores developer watches keyed by login.
type DevWatchRepository = WatchRepository[model.DevWatch]

// RepoWatchRepository stores repository watches keyed by "owner/name".
type RepoWatchRepository = WatchRepository[model.RepoWatch]
