// Package fileindex is the durable catalog of scanned files, signatures,
// groups, and merge transactions (spec.md §3, §4.1, component C1). It is
// the only component that owns persistent rows; every other package in this
// module deals exclusively in value copies returned from here.
//
// Grounded on the teacher's database.go (modernc.org/sqlite, a single-writer
// schema) and on tonimelisma-onedrive-go's internal/sync package for the
// migration runner (migrations.go) and the append-only transaction ledger
// (ledger.go) — adapted here from an upload/sync action queue to a
// duplicate-merge transaction log with undo.
package fileindex

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config bounds the undo policy (spec.md §9: "a transaction is undoable iff
// state == committed AND now <= undoDeadline AND its position <= undo_depth").
type Config struct {
	RetentionDays int // not read by FileIndex; each transaction's stored undoDeadline comes from merge.Policies.RetentionDays
	UndoDepth     int // only the newest UndoDepth committed transactions are undoable
}

func DefaultConfig() Config {
	return Config{RetentionDays: 30, UndoDepth: 1}
}

// FileIndex is a handle to the sqlite-backed store. The underlying driver is
// CGO-free (modernc.org/sqlite), matching the teacher's choice, so the
// binary cross-compiles without a C toolchain.
type FileIndex struct {
	db     *sql.DB
	logger *slog.Logger
	cfg    Config
}

// Open creates or migrates the database at path and returns a ready FileIndex.
// A single writer connection is enforced (SetMaxOpenConns(1)) because sqlite
// serializes writers anyway and this avoids SQLITE_BUSY churn under the
// worker pools upstream of this package (spec.md §5 shared-resource policy).
func Open(ctx context.Context, path string, cfg Config, logger *slog.Logger) (*FileIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("fileindex: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("fileindex: schema refused to open: %w", err)
	}

	return &FileIndex{db: db, logger: logger, cfg: cfg}, nil
}

func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("fileindex: migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("fileindex: migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("fileindex: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("fileindex: applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

func (fi *FileIndex) Close() error { return fi.db.Close() }

// withRetry retries fn on a busy/locked conflict with exponential backoff,
// up to 5 attempts, per spec.md §7 IndexConflict handling.
func withRetry(ctx context.Context, fn func() error) error {
	const maxAttempts = 5
	backoff := 20 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isConflict(lastErr) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("fileindex: index conflict after %d attempts: %w", maxAttempts, lastErr)
}

func isConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database table is locked")
}
