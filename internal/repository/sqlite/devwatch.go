package sqlite

import (
	"github.com/sakif/ghnotify/internal/model"
	"github.com/sakif/ghnotify/internal/repository"
)

var _ repository.DevWatchRepository = (*DevWatches)(nil)

// DevWatches stores developer watches, keyed by login.
// An empty LastReadID is a valid marker and is stored as-is.
type DevWatches struct {
	watchTable[model.DevWatch]
}

func newDevWatches(db *DB) *DevWatches {
	return &DevWatches{watchTable: newWatchTable(db, watchSchema[model.DevWatch]{
		table:     "devsNoti",
		resource:  "dev watch",
		keyCol:    "login",
		markerCol: "lastReadId",
		countCol:  "unreadCount",
		ddl: `
			CREATE TABLE IF NOT EXISTS devsNoti (
				login       TEXT NOT NULL UNIQUE,
				lastReadId  TEXT NOT NULL DEFAULT '',
				unreadCount INTEGER NOT NULL DEFAULT 0 CHECK (unreadCount >= 0)
			)`,
		values: func(d model.DevWatch) (any, int, error) {
			return d.LastReadID, d.UnreadCount, nil
		},
		scan: func(row scanner) (model.DevWatch, error) {
			var d model.DevWatch
			err := row.Scan(&d.Login, &d.LastReadID, &d.UnreadCount)
			return d, err
		},
	})}
}
