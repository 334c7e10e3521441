package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/sakif/ghnotify/internal/apperror"
	"github.com/sakif/ghnotify/internal/model"
)

// insertTestDev inserts d and fails the test if it errors.
func insertTestDev(t *testing.T, db *DB, d model.DevWatch) int64 {
	t.Helper()
	id, err := db.DevWatches().Insert(context.Background(), d)
	if err != nil {
		t.Fatalf("failed to insert test dev watch: %v", err)
	}
	return id
}

// =========================================================================
// INSERT
// =========================================================================

func TestDevInsert_ReturnsPositiveRowID(t *testing.T) {
	db := newTestDB(t)

	id := insertTestDev(t, db, model.DevWatch{Login: "alice", LastReadID: "", UnreadCount: 0})
	if id <= 0 {
		t.Errorf("Insert() row id = %d, want > 0", id)
	}
}

func TestDevInsert_EmptyMarkerIsAccepted(t *testing.T) {
	db := newTestDB(t)
	insertTestDev(t, db, model.DevWatch{Login: "alice"})

	got, ok, err := db.DevWatches().Find(context.Background(), "alice")
	if err != nil || !ok {
		t.Fatalf("Find() = %v, %v, %v", got, ok, err)
	}
	if got.LastReadID != "" {
		t.Errorf("LastReadID = %q, want empty", got.LastReadID)
	}
}

func TestDevInsert_DuplicateLogin(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	insertTestDev(t, db, model.DevWatch{Login: "alice", LastReadID: "ev_1"})

	_, err := db.DevWatches().Insert(ctx, model.DevWatch{Login: "alice", LastReadID: "ev_2", UnreadCount: 9})
	if !errors.Is(err, apperror.ErrInsert) {
		t.Fatalf("Insert() duplicate error = %v, want ErrInsert", err)
	}
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Insert() duplicate error = %v, want ErrConflict in chain", err)
	}

	all, err := db.DevWatches().FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll() error = %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("len(FindAll()) = %d, want 1", len(all))
	}
	if all[0].LastReadID != "ev_1" {
		t.Errorf("LastReadID = %q, want the original %q", all[0].LastReadID, "ev_1")
	}
}

func TestDevInsert_NegativeUnreadRejected(t *testing.T) {
	db := newTestDB(t)

	_, err := db.DevWatches().Insert(context.Background(), model.DevWatch{Login: "alice", UnreadCount: -1})
	if !errors.Is(err, apperror.ErrInsert) {
		t.Errorf("Insert() error = %v, want ErrInsert", err)
	}
	if errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Insert() error = %v, a CHECK failure is not a conflict", err)
	}
}

// =========================================================================
// FIND
// =========================================================================

func TestDevFind_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	want := model.DevWatch{Login: "alice", LastReadID: "ev_7", UnreadCount: 4}
	insertTestDev(t, db, want)

	got, ok, err := db.DevWatches().Find(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if !ok {
		t.Fatal("Find() ok = false, want true")
	}
	if got != want {
		t.Errorf("Find() = %+v, want %+v", got, want)
	}
}

func TestDevFind_NotFoundIsNotAnError(t *testing.T) {
	db := newTestDB(t)

	got, ok, err := db.DevWatches().Find(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Find() error = %v, want nil", err)
	}
	if ok {
		t.Errorf("Find() ok = true, got %+v", got)
	}
}

func TestDevFindAll_EmptyIsEmptySlice(t *testing.T) {
	db := newTestDB(t)

	all, err := db.DevWatches().FindAll(context.Background())
	if err != nil {
		t.Fatalf("FindAll() error = %v", err)
	}
	if all == nil {
		t.Fatal("FindAll() = nil, want empty non-nil slice")
	}
	if len(all) != 0 {
		t.Errorf("len(FindAll()) = %d, want 0", len(all))
	}
}

func TestDevFindAll_StorageOrder(t *testing.T) {
	db := newTestDB(t)
	for _, login := range []string{"carol", "alice", "bob"} {
		insertTestDev(t, db, model.DevWatch{Login: login})
	}

	all, err := db.DevWatches().FindAll(context.Background())
	if err != nil {
		t.Fatalf("FindAll() error = %v", err)
	}
	want := []string{"carol", "alice", "bob"}
	if len(all) != len(want) {
		t.Fatalf("len(FindAll()) = %d, want %d", len(all), len(want))
	}
	for i, login := range want {
		if all[i].Login != login {
			t.Errorf("FindAll()[%d].Login = %q, want %q", i, all[i].Login, login)
		}
	}
}

func TestDevFindAll_ClosedHandleIsConnectionError(t *testing.T) {
	db := newTestDB(t)
	db.Close()

	all, err := db.DevWatches().FindAll(context.Background())
	if !errors.Is(err, apperror.ErrConnection) {
		t.Fatalf("FindAll() on closed handle error = %v, want ErrConnection", err)
	}
	if all != nil {
		t.Errorf("FindAll() = %v on failure, want nil", all)
	}
}

func TestDevFindAll_QueryFailureIsSearchError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	insertTestDev(t, db, model.DevWatch{Login: "alice"})

	err := db.withConn("drop", func(conn *sql.DB) error {
		_, err := conn.ExecContext(ctx, `DROP TABLE devsNoti`)
		return err
	})
	if err != nil {
		t.Fatalf("dropping devsNoti: %v", err)
	}

	all, err := db.DevWatches().FindAll(ctx)
	if !errors.Is(err, apperror.ErrSearch) {
		t.Fatalf("FindAll() error = %v, want ErrSearch", err)
	}
	if errors.Is(err, apperror.ErrConnection) {
		t.Errorf("FindAll() error = %v, must not be ErrConnection", err)
	}
	if all != nil {
		t.Errorf("FindAll() = %v on failure, want nil", all)
	}

	_, ok, err := db.DevWatches().Find(ctx, "alice")
	if !errors.Is(err, apperror.ErrSearch) {
		t.Fatalf("Find() error = %v, want ErrSearch", err)
	}
	if ok {
		t.Error("Find() ok = true on failure")
	}
}

// =========================================================================
// UPDATE
// =========================================================================

func TestDevUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	insertTestDev(t, db, model.DevWatch{Login: "alice", LastReadID: "ev_1", UnreadCount: 1})
	insertTestDev(t, db, model.DevWatch{Login: "bob", LastReadID: "ev_9", UnreadCount: 9})

	if err := db.DevWatches().Update(ctx, model.DevWatch{Login: "alice", LastReadID: "ev_42", UnreadCount: 3}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _, _ := db.DevWatches().Find(ctx, "alice")
	if want := (model.DevWatch{Login: "alice", LastReadID: "ev_42", UnreadCount: 3}); got != want {
		t.Errorf("after Update() = %+v, want %+v", got, want)
	}

	other, _, _ := db.DevWatches().Find(ctx, "bob")
	if want := (model.DevWatch{Login: "bob", LastReadID: "ev_9", UnreadCount: 9}); other != want {
		t.Errorf("untouched row = %+v, want %+v", other, want)
	}
}

func TestDevUpdate_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.DevWatches().Update(context.Background(), model.DevWatch{Login: "ghost", LastReadID: "x"})
	if !errors.Is(err, apperror.ErrUpdate) {
		t.Errorf("Update() error = %v, want ErrUpdate", err)
	}
}

// =========================================================================
// DELETE
// =========================================================================

func TestDevDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	insertTestDev(t, db, model.DevWatch{Login: "alice"})
	insertTestDev(t, db, model.DevWatch{Login: "bob"})

	if err := db.DevWatches().Delete(ctx, model.DevWatch{Login: "alice"}); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, ok, err := db.DevWatches().Find(ctx, "alice"); err != nil || ok {
		t.Errorf("Find() after Delete = ok %v, err %v; want not found", ok, err)
	}
	all, _ := db.DevWatches().FindAll(ctx)
	if len(all) != 1 {
		t.Errorf("len(FindAll()) = %d, want 1", len(all))
	}
}

func TestDevDelete_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.DevWatches().Delete(context.Background(), model.DevWatch{Login: "ghost"})
	if !errors.Is(err, apperror.ErrDelete) {
		t.Errorf("Delete() error = %v, want ErrDelete", err)
	}
}

// =========================================================================
// LIFECYCLE
// =========================================================================

func TestDevFullLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	devs := db.DevWatches()

	id, err := devs.Insert(ctx, model.DevWatch{Login: "alice", LastReadID: "", UnreadCount: 0})
	if err != nil || id <= 0 {
		t.Fatalf("Insert() = %d, %v", id, err)
	}

	if err := devs.Update(ctx, model.DevWatch{Login: "alice", LastReadID: "ev_42", UnreadCount: 3}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, ok, err := devs.Find(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("Find() = %v, %v, %v", got, ok, err)
	}
	if want := (model.DevWatch{Login: "alice", LastReadID: "ev_42", UnreadCount: 3}); got != want {
		t.Errorf("Find() = %+v, want %+v", got, want)
	}

	if err := devs.Delete(ctx, got); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, ok, err := devs.Find(ctx, "alice"); err != nil || ok {
		t.Errorf("Find() after Delete = ok %v, err %v; want not found", ok, err)
	}
}
