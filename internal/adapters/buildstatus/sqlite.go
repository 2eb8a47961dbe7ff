// Package buildstatus stores the build queue in a sqlite database.
package buildstatus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	domain "github.com/felixgeelhaar/makeomatic/internal/domain/buildstatus"
)

const schema = `
CREATE TABLE IF NOT EXISTS build_status (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_name TEXT,
	status INTEGER,
	priority INTEGER,
	type TEXT,
	revision TEXT,
	url TEXT,
	script TEXT
);

CREATE INDEX IF NOT EXISTS idx_build_status_status ON build_status(status);
CREATE INDEX IF NOT EXISTS idx_build_status_script ON build_status(script);
`

const columns = "id, project_name, status, priority, type, revision, url, script"

// SQLiteStore implements the build queue store on sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens or creates the database at path and migrates its schema.
func Open(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database folder: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps in-memory databases alive and serializes
	// writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate build status: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save inserts builds in one transaction and assigns their IDs.
func (s *SQLiteStore) Save(ctx context.Context, builds []*domain.Build) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO build_status (project_name, status, priority, type, revision, url, script)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(builds))
	for _, b := range builds {
		res, err := stmt.ExecContext(ctx, b.Project, int(b.Status), b.Priority, b.BuildType, b.Revision, b.URL, b.Script)
		if err != nil {
			return fmt.Errorf("insert build: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert build: %w", err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	for i, b := range builds {
		b.ID = ids[i]
	}
	return nil
}

// Update writes every field of b.
func (s *SQLiteStore) Update(ctx context.Context, b *domain.Build) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE build_status
		SET project_name = ?, status = ?, priority = ?, type = ?, revision = ?, url = ?, script = ?
		WHERE id = ?`,
		b.Project, int(b.Status), b.Priority, b.BuildType, b.Revision, b.URL, b.Script, b.ID)
	if err != nil {
		return fmt.Errorf("update build %d: %w", b.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update build %d: %w", b.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update build %d: %w", b.ID, domain.ErrNotFound)
	}
	return nil
}

// ByStatus lists the builds in status, highest priority first, then in
// insertion order.
func (s *SQLiteStore) ByStatus(ctx context.Context, status domain.Status) ([]*domain.Build, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+columns+" FROM build_status WHERE status = ? ORDER BY priority DESC, id ASC", int(status))
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	defer rows.Close()

	builds := make([]*domain.Build, 0)
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

// Newest returns the build of script inserted last.
func (s *SQLiteStore) Newest(ctx context.Context, script string) (*domain.Build, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+columns+" FROM build_status WHERE script = ? ORDER BY id DESC LIMIT 1", script)
	b, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return b, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(r scanner) (*domain.Build, error) {
	var (
		b                                     domain.Build
		status, priority                      sql.NullInt64
		project, bt, revision, url, scriptCol sql.NullString
	)
	if err := r.Scan(&b.ID, &project, &status, &priority, &bt, &revision, &url, &scriptCol); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan build: %w", err)
	}
	b.Project = project.String
	b.Status = domain.Status(status.Int64)
	b.Priority = int(priority.Int64)
	b.BuildType = bt.String
	b.Revision = revision.String
	b.URL = url.String
	b.Script = scriptCol.String
	return &b, nil
}

var _ domain.Store = (*SQLiteStore)(nil)
