package history_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gifconv/internal/history"
	"gifconv/internal/orchestrator"
	"gifconv/internal/testsupport"
	"gifconv/internal/transcoder"
)

func TestRecordRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	output := filepath.Join(t.TempDir(), "clip.gif")
	if err := os.WriteFile(output, []byte("GIF89a-data"), 0o644); err != nil {
		t.Fatal(err)
	}
	queued := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	job := orchestrator.Job{
		ID:        "job-1",
		Kind:      orchestrator.JobConvert,
		Status:    orchestrator.JobRunning,
		Request:   transcoder.Request{InputPath: "/videos/clip.mp4", OutputPath: output, Width: 320, Height: 240, FrameRate: 10},
		QueuedAt:  queued,
		StartedAt: queued.Add(time.Second),
	}
	if err := store.RecordStart(ctx, job); err != nil {
		t.Fatalf("RecordStart: %v", err)
	}

	job.Status = orchestrator.JobSucceeded
	job.FinishedAt = queued.Add(3 * time.Second)
	if err := store.RecordFinish(ctx, job); err != nil {
		t.Fatalf("RecordFinish: %v", err)
	}

	entry, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Status != "succeeded" || entry.Kind != "convert" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.Width != 320 || entry.Height != 240 || entry.FrameRate != 10 {
		t.Fatalf("unexpected parameters %+v", entry)
	}
	if entry.OutputBytes != int64(len("GIF89a-data")) {
		t.Fatalf("expected output size, got %d", entry.OutputBytes)
	}
	if !entry.QueuedAt.Equal(queued) || entry.Duration() != 2*time.Second {
		t.Fatalf("unexpected times %+v", entry)
	}
	if store.Path() != cfg.HistoryPath() {
		t.Fatalf("expected db at %s, got %s", cfg.HistoryPath(), store.Path())
	}
}

func TestRecordFinishWithoutStartAndFailureKind(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()

	now := time.Now()
	job := orchestrator.Job{
		ID:         "probe-1",
		Kind:       orchestrator.JobProbe,
		Status:     orchestrator.JobFailed,
		Request:    transcoder.Request{InputPath: "/videos/song.m4a"},
		Err:        &transcoder.ProbeError{Path: "/videos/song.m4a", Err: transcoder.ErrNoVideoInfo},
		QueuedAt:   now,
		StartedAt:  now,
		FinishedAt: now.Add(time.Millisecond),
	}
	if err := store.RecordFinish(ctx, job); err != nil {
		t.Fatalf("RecordFinish: %v", err)
	}
	entry, err := store.Get(ctx, "probe-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.ErrorKind != "probe" || entry.ErrorMessage == "" || entry.Status != "failed" {
		t.Fatalf("unexpected failure entry %+v", entry)
	}
}

func TestListCountsAndPrune(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		job := orchestrator.Job{
			ID:       id,
			Kind:     orchestrator.JobConvert,
			Status:   orchestrator.JobRunning,
			Request:  transcoder.Request{InputPath: id + ".mp4", OutputPath: id + ".gif"},
			QueuedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := store.RecordStart(ctx, job); err != nil {
			t.Fatalf("RecordStart %s: %v", id, err)
		}
	}

	entries, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "c" || entries[1].ID != "b" {
		t.Fatalf("expected newest first, got %+v", entries)
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts["running"] != 3 {
		t.Fatalf("unexpected counts %v", counts)
	}

	removed, err := store.Prune(ctx, base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 pruned, got %d", removed)
	}
	if _, err := store.Get(ctx, "a"); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	job := orchestrator.Job{ID: "persisted", Kind: orchestrator.JobProbe, Status: orchestrator.JobRunning, Request: transcoder.Request{InputPath: "x.mp4"}}
	if err := store.RecordStart(context.Background(), job); err != nil {
		t.Fatalf("RecordStart: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.Get(context.Background(), "persisted"); err != nil {
		t.Fatalf("expected persisted entry, got %v", err)
	}
}

func TestMigrationsRecordedOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	version, err := store.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected schema version 2, got %d", version)
	}

	again, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()

	db := openRaw(t, store.Path())
	var rows int
	var checksum, appliedAt string
	if err := db.QueryRow("SELECT COUNT(1) FROM schema_migrations").Scan(&rows); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if rows != 2 {
		t.Fatalf("expected 2 recorded migrations, got %d", rows)
	}
	if err := db.QueryRow("SELECT checksum, applied_at FROM schema_migrations WHERE version = 1").Scan(&checksum, &appliedAt); err != nil {
		t.Fatalf("read migration row: %v", err)
	}
	if len(checksum) != 64 || appliedAt == "" {
		t.Fatalf("unexpected migration row checksum=%q applied_at=%q", checksum, appliedAt)
	}
}

func TestMigrationChecksumMismatchIsRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	path := store.Path()
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db := openRaw(t, path)
	if _, err := db.Exec("UPDATE schema_migrations SET checksum = 'edited' WHERE version = 1"); err != nil {
		t.Fatalf("tamper checksum: %v", err)
	}

	if _, err := history.Open(cfg); err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
}

func TestNewerSchemaIsRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	path := store.Path()
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db := openRaw(t, path)
	if _, err := db.Exec("INSERT INTO schema_migrations (version, name, checksum, applied_at) VALUES (99, 'future', 'x', '')"); err != nil {
		t.Fatalf("insert future migration: %v", err)
	}

	if _, err := history.Open(cfg); err == nil || !strings.Contains(err.Error(), "newer than supported") {
		t.Fatalf("expected newer schema error, got %v", err)
	}
}

func openRaw(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
