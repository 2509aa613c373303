// Package journal keeps a SQLite history of materialization runs.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentic-research/scaffold/api"
)

// DefaultFile is the journal name inside the output root.
const DefaultFile = ".scaffold-journal.db"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	finished_at INTEGER NOT NULL,
	success INTEGER NOT NULL,
	message TEXT NOT NULL,
	created INTEGER NOT NULL DEFAULT 0,
	modified INTEGER NOT NULL DEFAULT 0,
	unchanged INTEGER NOT NULL DEFAULT 0,
	deleted INTEGER NOT NULL DEFAULT 0,
	bytes INTEGER NOT NULL DEFAULT 0,
	errors INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id, id);

CREATE TABLE IF NOT EXISTS files (
	run_id INTEGER NOT NULL REFERENCES runs(id),
	path TEXT NOT NULL,
	status TEXT NOT NULL,
	digest TEXT NOT NULL,
	size INTEGER NOT NULL,
	written INTEGER NOT NULL,
	backup TEXT
);
CREATE INDEX IF NOT EXISTS idx_files_run ON files(run_id);
`

// Run summarizes one recorded materialization.
type Run struct {
	ID         int64
	SessionID  string
	FinishedAt time.Time
	Success    bool
	Message    string
	Created    int
	Modified   int
	Unchanged  int
	Deleted    int
	Bytes      int64
	Errors     int
}

// Journal implements engine.Recorder. The database is opened on first use,
// so a Journal that is never written to leaves no file behind.
type Journal struct {
	path string
	mu   sync.Mutex
	db   *sql.DB
	now  func() time.Time
}

// New returns a journal backed by the database at path without touching disk.
func New(path string) *Journal {
	return &Journal{path: path, now: time.Now}
}

// Open opens (or creates) the journal database at path right away.
func Open(path string) (*Journal, error) {
	j := New(path)
	if _, err := j.conn(); err != nil {
		return nil, err
	}
	return j, nil
}

// Path returns the database file.
func (j *Journal) Path() string { return j.path }

// conn opens the database once. Callers hold j.mu, except Open.
func (j *Journal) conn() (*sql.DB, error) {
	if j.db != nil {
		return j.db, nil
	}
	if dir := filepath.Dir(j.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", j.path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", j.path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	j.db = db
	return db, nil
}

// Record stores res and its per-file outcomes in one transaction.
func (j *Journal) Record(ctx context.Context, res api.Result) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	db, err := j.conn()
	if err != nil {
		return err
	}

	var created, modified, unchanged, deleted int
	var bytes int64
	for _, f := range res.Files {
		switch f.Status {
		case api.StatusCreated:
			created++
		case api.StatusModified:
			modified++
		case api.StatusUnchanged:
			unchanged++
		case api.StatusDeleted:
			deleted++
		}
		if f.Written {
			bytes += f.Size
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	out, err := tx.ExecContext(ctx, `
		INSERT INTO runs (session_id, finished_at, success, message, created, modified, unchanged, deleted, bytes, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.SessionID, j.now().UnixNano(), res.Success, res.Message,
		created, modified, unchanged, deleted, bytes, len(res.Errors),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	runID, err := out.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO files (run_id, path, status, digest, size, written, backup) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, f := range res.Files {
		var backup *string
		if f.Backup != "" {
			b := f.Backup
			backup = &b
		}
		if _, err := stmt.ExecContext(ctx, runID, f.Path, f.Status, f.Digest, f.Size, f.Written, backup); err != nil {
			return fmt.Errorf("insert file %s: %w", f.Path, err)
		}
	}
	return tx.Commit()
}

// Runs lists recorded runs, newest first. An empty sessionID lists all sessions.
func (j *Journal) Runs(ctx context.Context, sessionID string, limit int) ([]Run, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	db, err := j.conn()
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, session_id, finished_at, success, message, created, modified, unchanged, deleted, bytes, errors
		FROM runs
		WHERE ? = '' OR session_id = ?
		ORDER BY id DESC
		LIMIT ?`, sessionID, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished int64
		if err := rows.Scan(&r.ID, &r.SessionID, &finished, &r.Success, &r.Message,
			&r.Created, &r.Modified, &r.Unchanged, &r.Deleted, &r.Bytes, &r.Errors); err != nil {
			return nil, err
		}
		r.FinishedAt = time.Unix(0, finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Files returns the per-file outcomes of one run in write order.
func (j *Journal) Files(ctx context.Context, runID int64) ([]api.FileOutcome, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	db, err := j.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT path, status, digest, size, written, COALESCE(backup, '')
		FROM files WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var files []api.FileOutcome
	for rows.Next() {
		var f api.FileOutcome
		if err := rows.Scan(&f.Path, &f.Status, &f.Digest, &f.Size, &f.Written, &f.Backup); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// Close releases the database. It is a no-op when nothing was opened.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}
