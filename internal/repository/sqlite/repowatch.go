package sqlite

import (
	"database/sql"

	"github.com/sakif/ghnotify/internal/apperror"
	"github.com/sakif/ghnotify/internal/model"
	"github.com/sakif/ghnotify/internal/repository"
)

var _ repository.RepoWatchRepository = (*RepoWatches)(nil)

// RepoWatches stores repository watches, keyed by "owner/name".
//
// Unlike DevWatches, Insert and Update refuse a record whose
// LastReadCommitSHA is nil (ErrNilInData) before touching the table. The
// column itself is nullable, so rows written by other tools may still read
// back with a nil marker.
type RepoWatches struct {
	watchTable[model.RepoWatch]
}

func newRepoWatches(db *DB) *RepoWatches {
	return &RepoWatches{watchTable: newWatchTable(db, watchSchema[model.RepoWatch]{
		table:     "reposNoti",
		resource:  "repo watch",
		keyCol:    "fullName",
		markerCol: "lastReadCommitSha",
		countCol:  "unreadCount",
		ddl: `
			CREATE TABLE IF NOT EXISTS reposNoti (
				fullName          TEXT NOT NULL UNIQUE,
				lastReadCommitSha TEXT,
				unreadCount       INTEGER NOT NULL DEFAULT 0 CHECK (unreadCount >= 0)
			)`,
		values: func(r model.RepoWatch) (any, int, error) {
			if r.LastReadCommitSHA == nil {
				return nil, 0, apperror.NilInData("repo watch", "lastReadCommitSha")
			}
			return *r.LastReadCommitSHA, r.UnreadCount, nil
		},
		scan: func(row scanner) (model.RepoWatch, error) {
			var (
				r   model.RepoWatch
				sha sql.NullString
			)
			if err := row.Scan(&r.FullName, &sha, &r.UnreadCount); err != nil {
				return r, err
			}
			if sha.Valid {
				r.LastReadCommitSHA = model.Marker(sha.String)
			}
			return r, nil
		},
	})}
}
