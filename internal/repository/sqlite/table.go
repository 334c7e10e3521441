package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/ghnotify/internal/apperror"
	"github.com/sakif/ghnotify/internal/model"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// watchSchema describes how one watch kind maps onto its table. Every
// watch table has the same three columns: a unique natural key, a read
// marker and an unread count.
type watchSchema[T model.Keyed] struct {
	table     string
	resource  string // used in error messages and logs
	keyCol    string
	markerCol string
	countCol  string
	ddl       string

	// values returns the marker and count to write, or an
	// apperror.ErrNilInData when a required field is absent.
	values func(rec T) (marker any, count int, err error)
	scan   func(row scanner) (T, error)
}

// watchTable implements repository.WatchRepository for any watch kind.
type watchTable[T model.Keyed] struct {
	db     *DB
	schema watchSchema[T]

	insertSQL string
	updateSQL string
	deleteSQL string
	findSQL   string
	findAll   string
}

func newWatchTable[T model.Keyed](db *DB, s watchSchema[T]) watchTable[T] {
	cols := fmt.Sprintf("%s, %s, %s", s.keyCol, s.markerCol, s.countCol)
	return watchTable[T]{
		db:        db,
		schema:    s,
		insertSQL: fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?)`, s.table, cols),
		updateSQL: fmt.Sprintf(`UPDATE %s SET %s = ?, %s = ? WHERE %s = ?`, s.table, s.markerCol, s.countCol, s.keyCol),
		deleteSQL: fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, s.table, s.keyCol),
		findSQL:   fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`, cols, s.table, s.keyCol),
		findAll:   fmt.Sprintf(`SELECT %s FROM %s ORDER BY rowid`, cols, s.table),
	}
}

// CreateTable creates the backing table if it does not exist.
func (t *watchTable[T]) CreateTable(ctx context.Context) error {
	op := "create table " + t.schema.table
	err := t.db.withConn(op, func(conn *sql.DB) error {
		if _, err := conn.ExecContext(ctx, t.schema.ddl); err != nil {
			return apperror.Connection(op, err)
		}
		return nil
	})
	t.logResult("create_table", "", err)
	return err
}

// Insert adds rec and returns its row id. A duplicate key fails with
// ErrInsert and has ErrConflict in its chain.
func (t *watchTable[T]) Insert(ctx context.Context, rec T) (int64, error) {
	key := rec.Key()
	var rowID int64
	err := t.db.withConn("insert", func(conn *sql.DB) error {
		marker, count, err := t.schema.values(rec)
		if err != nil {
			return err
		}
		res, err := conn.ExecContext(ctx, t.insertSQL, key, marker, count)
		if err != nil {
			return apperror.InsertFailed(t.schema.resource, key, classify(err))
		}
		rowID, err = res.LastInsertId()
		if err != nil {
			return apperror.InsertFailed(t.schema.resource, key, err)
		}
		if rowID <= 0 {
			return apperror.InsertFailed(t.schema.resource, key, fmt.Errorf("unexpected row id %d", rowID))
		}
		return nil
	})
	t.logResult("insert", key, err)
	if err != nil {
		return 0, err
	}
	return rowID, nil
}

// Delete removes the record with rec's key. Exactly one row must go away;
// anything else rolls the delete back and fails with ErrDelete.
func (t *watchTable[T]) Delete(ctx context.Context, rec T) error {
	key := rec.Key()
	err := t.db.withConn("delete", func(conn *sql.DB) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return apperror.DeleteFailed(t.schema.resource, key, err)
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx, t.deleteSQL, key)
		if err != nil {
			return apperror.DeleteFailed(t.schema.resource, key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return apperror.DeleteFailed(t.schema.resource, key, err)
		}
		switch {
		case n == 0:
			return apperror.DeleteFailed(t.schema.resource, key, errors.New("no such watch"))
		case n > 1:
			return apperror.DeleteFailed(t.schema.resource, key, fmt.Errorf("%d rows matched a unique key", n))
		}
		if err := tx.Commit(); err != nil {
			return apperror.DeleteFailed(t.schema.resource, key, err)
		}
		return nil
	})
	t.logResult("delete", key, err)
	return err
}

// Find returns the record with the given key. A missing key is not an
// error: ok is false.
func (t *watchTable[T]) Find(ctx context.Context, key string) (rec T, ok bool, err error) {
	err = t.db.withConn("find", func(conn *sql.DB) error {
		found, scanErr := t.schema.scan(conn.QueryRowContext(ctx, t.findSQL, key))
		switch {
		case errors.Is(scanErr, sql.ErrNoRows):
			return nil
		case scanErr != nil:
			return apperror.SearchFailed(t.schema.resource, scanErr)
		}
		rec, ok = found, true
		return nil
	})
	t.logResult("find", key, err)
	return rec, ok, err
}

// FindAll returns every record in storage order. An empty table gives an
// empty, non-nil slice.
func (t *watchTable[T]) FindAll(ctx context.Context) ([]T, error) {
	out := make([]T, 0)
	err := t.db.withConn("find all", func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx, t.findAll)
		if err != nil {
			return apperror.SearchFailed(t.schema.resource, err)
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := t.schema.scan(rows)
			if err != nil {
				return apperror.SearchFailed(t.schema.resource, err)
			}
			out = append(out, rec)
		}
		if err := rows.Err(); err != nil {
			return apperror.SearchFailed(t.schema.resource, err)
		}
		return nil
	})
	t.logResult("find_all", "", err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update overwrites the marker and unread count of the record with rec's
// key. The key itself never changes.
func (t *watchTable[T]) Update(ctx context.Context, rec T) error {
	key := rec.Key()
	err := t.db.withConn("update", func(conn *sql.DB) error {
		marker, count, err := t.schema.values(rec)
		if err != nil {
			return err
		}
		res, err := conn.ExecContext(ctx, t.updateSQL, marker, count, key)
		if err != nil {
			return apperror.UpdateFailed(t.schema.resource, key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return apperror.UpdateFailed(t.schema.resource, key, err)
		}
		if n == 0 {
			return apperror.UpdateFailed(t.schema.resource, key, errors.New("no such watch"))
		}
		return nil
	})
	t.logResult("update", key, err)
	return err
}

func (t *watchTable[T]) logResult(op, key string, err error) {
	attrs := []any{
		slog.String("op", op),
		slog.String("table", t.schema.table),
	}
	if key != "" {
		attrs = append(attrs, slog.String("key", key))
	}
	if err != nil {
		t.db.logger.Warn("store operation failed", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	t.db.logger.Debug("store operation", attrs...)
}

// classify marks unique-key violations with apperror.ErrConflict.
func classify(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %w", apperror.ErrConflict, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var se *moderncsqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
