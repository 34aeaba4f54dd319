// Package history keeps a journal of applied migration fixes in an embedded
// SQLite database.
//
// The journal lives outside the repository (the user cache directory by
// default) so recording a fix never dirties the work tree the next fix
// depends on being clean.
//
// Example:
//
//	j, err := history.Open(history.DefaultPath())
//	if err != nil {
//	    return err
//	}
//	defer j.Close()
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Mschirtzinger/migfix/internal/resolver"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const schema = `
CREATE TABLE IF NOT EXISTS fixes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	repo_root TEXT NOT NULL,
	app TEXT NOT NULL,
	old_name TEXT NOT NULL,
	new_name TEXT NOT NULL,
	seed INTEGER NOT NULL,
	start_name TEXT NOT NULL,
	base TEXT NOT NULL DEFAULT '',
	applied_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fixes_repo ON fixes(repo_root, id);
`

// Entry is one renamed migration.
type Entry struct {
	ID        int64
	RepoRoot  string
	App       string
	OldName   string
	NewName   string
	Seed      int
	StartName string
	Base      string
	AppliedAt time.Time
}

// Journal is an open fix journal.
type Journal struct {
	conn *sql.DB
	path string
	now  func() time.Time
}

// DefaultPath returns the journal location under the user cache directory,
// falling back to the temp directory.
func DefaultPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "migfix", "history.db")
}

// Open opens or creates the journal at path.
//
// The caller MUST call Close() when done.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping history: %w", err)
	}

	j := &Journal{conn: conn, path: path, now: time.Now}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = j.Close()
			return nil, fmt.Errorf("failed to configure history (%s): %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return j, nil
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.path
}

// Close checkpoints the WAL and closes the database.
func (j *Journal) Close() error {
	if j.conn == nil {
		return nil
	}

	_, _ = j.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")

	if err := j.conn.Close(); err != nil {
		return fmt.Errorf("failed to close history: %w", err)
	}
	j.conn = nil
	return nil
}

// Record stores every renamed step of plan in one transaction. Steps that
// only rewrote a dependency are not recorded.
func (j *Journal) Record(ctx context.Context, repoRoot, base string, plan *resolver.Plan) error {
	tx, err := j.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	appliedAt := j.now().UTC().Format(time.RFC3339Nano)
	for _, s := range plan.Steps {
		if s.OldName == s.NewName {
			continue
		}
		_, err := tx.ExecContext(ctx, `
		INSERT INTO fixes (repo_root, app, old_name, new_name, seed, start_name, base, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			repoRoot, plan.App, s.OldName, s.NewName, plan.Seed, plan.StartName, base, appliedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to record %s: %w", s.OldName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history: %w", err)
	}
	return nil
}

// List returns the most recent entries for repoRoot, newest first. An empty
// repoRoot lists every repository; limit <= 0 means no limit.
func (j *Journal) List(ctx context.Context, repoRoot string, limit int) ([]Entry, error) {
	query := `
	SELECT id, repo_root, app, old_name, new_name, seed, start_name, base, applied_at
	FROM fixes
	WHERE (? = '' OR repo_root = ?)
	ORDER BY id DESC`
	args := []any{repoRoot, repoRoot}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			applied string
		)
		if err := rows.Scan(&e.ID, &e.RepoRoot, &e.App, &e.OldName, &e.NewName, &e.Seed, &e.StartName, &e.Base, &applied); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		if e.AppliedAt, err = time.Parse(time.RFC3339Nano, applied); err != nil {
			return nil, fmt.Errorf("bad applied_at %q: %w", applied, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
