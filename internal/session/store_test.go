package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/natemcgrady/web-based-ide/internal/database"
)

func openTestStore(t *testing.T) *DatabaseStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&database.SessionRow{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewDatabaseStore(db)
}

func testSession(sessionID, userID string) *Session {
	now := time.Now().UTC().Truncate(time.Second)
	return &Session{
		SessionID: sessionID,
		UserID:    userID,
		ProjectID: "proj-1",
		SandboxID: "sbx-" + sessionID,
		Status:    StatusReady,
		Cwd:       "/workspace",
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(2 * time.Hour),
	}
}

// The two backends must behave identically through the Store interface.
func eachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("database", func(t *testing.T) { fn(t, openTestStore(t)) })
}

func TestStore_GetAbsentReturnsNilNil(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		sess, err := store.Get(context.Background(), "nope")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if sess != nil {
			t.Fatalf("Get absent = %+v, want nil", sess)
		}
	})
}

func TestStore_UpsertRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		sess := testSession("sess-1", "user-1")
		if err := store.Upsert(ctx, sess, time.Hour); err != nil {
			t.Fatalf("Upsert: %v", err)
		}

		got, err := store.Get(ctx, "sess-1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got == nil || got.UserID != "user-1" || got.Status != StatusReady || got.Cwd != "/workspace" {
			t.Fatalf("round trip mismatch: %+v", got)
		}

		// Upsert overwrites in place.
		sess.Status = StatusBusy
		sess.Cwd = "/workspace/app"
		if err := store.Upsert(ctx, sess, time.Hour); err != nil {
			t.Fatalf("second Upsert: %v", err)
		}
		got, err = store.Get(ctx, "sess-1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Status != StatusBusy || got.Cwd != "/workspace/app" {
			t.Fatalf("overwrite mismatch: %+v", got)
		}
	})
}

func TestStore_ListByUser(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		for _, id := range []string{"sess-1", "sess-2"} {
			if err := store.Upsert(ctx, testSession(id, "user-1"), time.Hour); err != nil {
				t.Fatalf("Upsert %s: %v", id, err)
			}
		}
		if err := store.Upsert(ctx, testSession("sess-3", "user-2"), time.Hour); err != nil {
			t.Fatalf("Upsert sess-3: %v", err)
		}

		sessions, err := store.ListByUser(ctx, "user-1")
		if err != nil {
			t.Fatalf("ListByUser: %v", err)
		}
		if len(sessions) != 2 {
			t.Fatalf("got %d sessions for user-1, want 2", len(sessions))
		}

		all, err := store.All(ctx)
		if err != nil {
			t.Fatalf("All: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("got %d sessions total, want 3", len(all))
		}
	})
}

func TestStore_RemoveIsIdempotent(t *testing.T) {
	eachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		if err := store.Upsert(ctx, testSession("sess-1", "user-1"), time.Hour); err != nil {
			t.Fatalf("Upsert: %v", err)
		}

		for i := 0; i < 2; i++ {
			if err := store.Remove(ctx, "sess-1", "user-1"); err != nil {
				t.Fatalf("Remove #%d: %v", i+1, err)
			}
		}

		sess, err := store.Get(ctx, "sess-1")
		if err != nil || sess != nil {
			t.Fatalf("Get after Remove = %+v, %v", sess, err)
		}
		sessions, err := store.ListByUser(ctx, "user-1")
		if err != nil || len(sessions) != 0 {
			t.Fatalf("ListByUser after Remove = %+v, %v", sessions, err)
		}
	})
}

func TestMemoryStore_CloneIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	sess := testSession("sess-1", "user-1")
	if err := store.Upsert(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	sess.Status = StatusError
	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusReady {
		t.Fatalf("store record mutated through caller copy: %s", got.Status)
	}

	got.Status = StatusError
	again, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again.Status != StatusReady {
		t.Fatalf("store record mutated through returned copy: %s", again.Status)
	}
}

func TestDatabaseStore_ExpiredRowsReadAsMisses(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	current := time.Now()
	store.now = func() time.Time { return current }

	if err := store.Upsert(ctx, testSession("sess-1", "user-1"), time.Minute); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if sess, err := store.Get(ctx, "sess-1"); err != nil || sess == nil {
		t.Fatalf("fresh row missing: %+v, %v", sess, err)
	}

	current = current.Add(2 * time.Minute)

	if sess, err := store.Get(ctx, "sess-1"); err != nil || sess != nil {
		t.Fatalf("expired row visible through Get: %+v, %v", sess, err)
	}
	if sessions, err := store.ListByUser(ctx, "user-1"); err != nil || len(sessions) != 0 {
		t.Fatalf("expired row visible through ListByUser: %+v, %v", sessions, err)
	}

	// All keeps expired rows visible: the cleanup sweep iterates All and is
	// responsible for deleting them.
	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 || all[0].SessionID != "sess-1" {
		t.Fatalf("expired row hidden from All: %+v", all)
	}

	// A fresh Upsert for the same id revives the record with a new TTL.
	if err := store.Upsert(ctx, testSession("sess-1", "user-1"), time.Minute); err != nil {
		t.Fatalf("revive Upsert: %v", err)
	}
	if sess, err := store.Get(ctx, "sess-1"); err != nil || sess == nil {
		t.Fatalf("revived row missing: %+v, %v", sess, err)
	}
}
