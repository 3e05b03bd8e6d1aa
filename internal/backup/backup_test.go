package backup

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "CREATE TABLE test (id INTEGER PRIMARY KEY, value TEXT)"); err != nil {
		t.Fatalf("creating table: %v", err)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO test (value) VALUES ('hello')"); err != nil {
		t.Fatalf("inserting row: %v", err)
	}
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestCreate(t *testing.T) {
	db := setupTestDB(t)
	dir := filepath.Join(t.TempDir(), "backups")
	svc := NewService(db, dir, 7, 0, testLogger())

	snap, err := svc.Create(context.Background())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if snap.Name == "" {
		t.Error("expected non-empty name")
	}
	if snap.Size == 0 {
		t.Error("expected non-zero size")
	}

	// The snapshot must be a readable SQLite database.
	snapDB, err := sql.Open("sqlite", filepath.Join(dir, snap.Name))
	if err != nil {
		t.Fatalf("opening snapshot: %v", err)
	}
	defer snapDB.Close()

	var value string
	err = snapDB.QueryRowContext(context.Background(), "SELECT value FROM test WHERE id = 1").Scan(&value)
	if err != nil {
		t.Fatalf("querying snapshot: %v", err)
	}
	if value != "hello" {
		t.Errorf("expected 'hello', got %q", value)
	}
}

func TestListNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	dir := filepath.Join(t.TempDir(), "backups")
	svc := NewService(db, dir, 7, 0, testLogger())

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(context.Background()); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
		time.Sleep(1100 * time.Millisecond) // filename timestamps have second precision
	}

	snaps, err := svc.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snaps))
	}
	if !snaps[0].CreatedAt.After(snaps[1].CreatedAt) {
		t.Error("expected snapshots sorted newest first")
	}
}

func TestListMissingDir(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, filepath.Join(t.TempDir(), "nonexistent"), 7, 0, testLogger())

	snaps, err := svc.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snaps) != 0 {
		t.Errorf("expected 0 snapshots, got %d", len(snaps))
	}
}

func TestPruneByCount(t *testing.T) {
	db := setupTestDB(t)
	dir := filepath.Join(t.TempDir(), "backups")
	svc := NewService(db, dir, 2, 0, testLogger())

	for i := 0; i < 4; i++ {
		if _, err := svc.Create(context.Background()); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
		time.Sleep(1100 * time.Millisecond)
	}

	if err := svc.Prune(); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	snaps, err := svc.List()
	if err != nil {
		t.Fatalf("List after prune: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots after prune, got %d", len(snaps))
	}
}

func TestPruneByAge(t *testing.T) {
	db := setupTestDB(t)
	dir := filepath.Join(t.TempDir(), "backups")
	svc := NewService(db, dir, 100, 30, testLogger())

	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}

	recent := "crossmatch-" + time.Now().UTC().Format("20060102-150405") + ".db"
	if err := os.WriteFile(filepath.Join(dir, recent), []byte("recent"), 0o644); err != nil {
		t.Fatal(err)
	}

	oldTime := time.Now().UTC().AddDate(0, 0, -60)
	old := "crossmatch-" + oldTime.Format("20060102-150405") + ".db"
	if err := os.WriteFile(filepath.Join(dir, old), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := svc.Prune(); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	snaps, err := svc.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot after age prune, got %d", len(snaps))
	}
	if snaps[0].Name != recent {
		t.Errorf("expected recent snapshot to survive, got %s", snaps[0].Name)
	}
}

func TestListIgnoresForeignFiles(t *testing.T) {
	db := setupTestDB(t)
	dir := filepath.Join(t.TempDir(), "backups")
	svc := NewService(db, dir, 7, 0, testLogger())

	if _, err := svc.Create(context.Background()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "other-20260101-000000.db"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	snaps, err := svc.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}
}
