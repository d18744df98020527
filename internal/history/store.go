package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"gifconv/internal/config"
	"gifconv/internal/orchestrator"
)

// ErrNotFound reports an unknown job ID.
var ErrNotFound = errors.New("job not found")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	timeLayout              = time.RFC3339Nano
)

// Store persists job history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Entry is one persisted job.
type Entry struct {
	ID              string
	Kind            string
	Status          string
	InputPath       string
	OutputPath      string
	Width           int
	Height          int
	FrameRate       float64
	ProbedWidth     int
	ProbedHeight    int
	ProbedFrameRate float64
	ErrorKind       string
	ErrorMessage    string
	OutputBytes     int64
	QueuedAt        time.Time
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Duration returns the run time of a finished entry.
func (e Entry) Duration() time.Duration {
	if e.StartedAt.IsZero() || e.FinishedAt.IsZero() {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// Open initializes or connects to the history database for cfg.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.HistoryPath())
}

// OpenPath opens the database at dbPath, applying pending migrations.
func OpenPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordStart inserts or replaces the row for a job that began running.
func (s *Store) RecordStart(ctx context.Context, job orchestrator.Job) error {
	return s.exec(ctx, `INSERT INTO jobs (
		id, kind, status, input_path, output_path, width, height, frame_rate, queued_at, started_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET status = excluded.status, started_at = excluded.started_at`,
		job.ID,
		string(job.Kind),
		string(job.Status),
		job.Request.InputPath,
		job.Request.OutputPath,
		job.Request.Width,
		job.Request.Height,
		job.Request.FrameRate,
		formatTime(job.QueuedAt),
		nullableTime(job.StartedAt),
	)
}

// RecordFinish stores the outcome of a finished job.
func (s *Store) RecordFinish(ctx context.Context, job orchestrator.Job) error {
	var outputBytes int64
	if job.Kind == orchestrator.JobConvert && job.Succeeded() {
		if info, err := os.Stat(job.Request.OutputPath); err == nil {
			outputBytes = info.Size()
		}
	}
	errorKind := ""
	if !job.Succeeded() {
		errorKind = orchestrator.FailureKind(job.Err)
	}
	res, err := s.execResult(ctx, `UPDATE jobs SET
		status = ?, probed_width = ?, probed_height = ?, probed_frame_rate = ?,
		error_kind = ?, error_message = ?, output_bytes = ?, finished_at = ?
		WHERE id = ?`,
		string(job.Status),
		job.Info.Width,
		job.Info.Height,
		job.Info.FrameRate,
		errorKind,
		job.ErrorMessage(),
		outputBytes,
		nullableTime(job.FinishedAt),
		job.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// The start event was lost; insert the complete row instead.
		if err := s.RecordStart(ctx, job); err != nil {
			return err
		}
		return s.RecordFinish(ctx, job)
	}
	return nil
}

const selectColumns = `id, kind, status, input_path, output_path, width, height, frame_rate,
	probed_width, probed_height, probed_frame_rate, error_kind, error_message, output_bytes,
	queued_at, started_at, finished_at`

// List returns up to limit entries, newest first. A non-positive limit
// returns every entry.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := "SELECT " + selectColumns + " FROM jobs ORDER BY queued_at DESC, id"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return entries, nil
}

// Get returns the entry with the given ID.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+selectColumns+" FROM jobs WHERE id = ?", id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return entry, err
}

// Counts returns the number of entries per status.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT status, COUNT(1) FROM jobs GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan job count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Prune deletes entries queued before cutoff and returns the number removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execResult(ctx, "DELETE FROM jobs WHERE queued_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e                 Entry
		queued            string
		started, finished sql.NullString
	)
	err := row.Scan(
		&e.ID, &e.Kind, &e.Status, &e.InputPath, &e.OutputPath, &e.Width, &e.Height, &e.FrameRate,
		&e.ProbedWidth, &e.ProbedHeight, &e.ProbedFrameRate, &e.ErrorKind, &e.ErrorMessage, &e.OutputBytes,
		&queued, &started, &finished,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan job: %w", err)
	}
	e.QueuedAt = parseTime(queued)
	if started.Valid {
		e.StartedAt = parseTime(started.String)
	}
	if finished.Valid {
		e.FinishedAt = parseTime(finished.String)
	}
	return e, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execResult(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, fmt.Errorf("write history: %w", err)
	}
	return res, nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	_, err := s.execResult(ctx, query, args...)
	return err
}
