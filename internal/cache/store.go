// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache persists pipeline state under a single cache directory.
// Completed span searches, extraction status, and run history live in a
// SQLite database; per-DOI artifacts (metadata, analysis output, failure
// records) live in a two-level directory tree keyed by DOI prefix and
// suffix. A crawl interrupted and restarted re-queries nothing that
// already completed.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/toolsweep/internal/interval"
	"github.com/pdiddy/toolsweep/pkg/types"
)

const dbFile = "crawl.db"

// Store manages the cache directory and its SQLite database.
type Store struct {
	db  *sql.DB
	dir string
}

// Open opens or creates the cache at dir. It creates the directory and
// the database schema if they do not exist.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: dir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Dir returns the cache directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS searches (
			query TEXT NOT NULL,
			span_start TEXT NOT NULL,
			span_end TEXT NOT NULL,
			dois TEXT NOT NULL,
			fetched_at TEXT NOT NULL,
			PRIMARY KEY (query, span_start, span_end)
		)`,
		`CREATE TABLE IF NOT EXISTS extractions (
			doi TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			attempts INTEGER NOT NULL,
			reason TEXT,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			query TEXT,
			span_start TEXT,
			span_end TEXT,
			interval_days INTEGER,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			succeeded INTEGER,
			failed INTEGER
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SearchEntry returns the cached DOI list for (query, span). The second
// return value reports whether the span has a completed entry; an empty
// DOI list with true means the search ran and found nothing.
func (s *Store) SearchEntry(ctx context.Context, query string, span interval.Span) ([]string, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT dois FROM searches WHERE query = ? AND span_start = ? AND span_end = ?`,
		query, span.Start.Format(interval.DateLayout), span.End.Format(interval.DateLayout),
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying search entry: %w", err)
	}

	var dois []string
	if err := json.Unmarshal([]byte(raw), &dois); err != nil {
		return nil, false, fmt.Errorf("decoding cached DOI list for %s: %w", span.Key(), err)
	}
	return dois, true, nil
}

// PutSearchEntry records a completed span search. Entries are
// write-once: a span that already has an entry is left untouched, so a
// crawl can never overwrite results it fetched earlier.
func (s *Store) PutSearchEntry(ctx context.Context, query string, span interval.Span, dois []string) error {
	if dois == nil {
		dois = []string{}
	}
	raw, err := json.Marshal(dois)
	if err != nil {
		return fmt.Errorf("encoding DOI list: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO searches (query, span_start, span_end, dois, fetched_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(query, span_start, span_end) DO NOTHING`,
		query, span.Start.Format(interval.DateLayout), span.End.Format(interval.DateLayout),
		string(raw), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording search entry: %w", err)
	}
	return nil
}

// SpanEntry is one span's cached result, as returned by SpanEntries.
type SpanEntry struct {
	Span interval.Span
	DOIs []string

	// OK reports whether the span has a completed entry.
	OK bool
}

// SpanEntries reads the cached entries for spans, in the order given.
// Spans without a completed entry come back with OK false.
func (s *Store) SpanEntries(ctx context.Context, query string, spans []interval.Span) ([]SpanEntry, error) {
	entries := make([]SpanEntry, 0, len(spans))
	for _, sp := range spans {
		dois, ok, err := s.SearchEntry(ctx, query, sp)
		if err != nil {
			return nil, err
		}
		entries = append(entries, SpanEntry{Span: sp, DOIs: dois, OK: ok})
	}
	return entries, nil
}

// MarkExtraction upserts the extraction status of a DOI.
func (s *Store) MarkExtraction(ctx context.Context, doi string, status types.ExtractionStatus, attempts int, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extractions (doi, status, attempts, reason, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(doi) DO UPDATE SET
			status=excluded.status, attempts=excluded.attempts,
			reason=excluded.reason, updated_at=excluded.updated_at`,
		doi, string(status), attempts, reason, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording extraction status for %s: %w", doi, err)
	}
	return nil
}

// ExtractionStatus returns the recorded status of a DOI. The second
// return value reports whether the DOI has any record at all.
func (s *Store) ExtractionStatus(ctx context.Context, doi string) (types.ExtractionStatus, bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM extractions WHERE doi = ?`, doi,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying extraction status for %s: %w", doi, err)
	}
	return types.ExtractionStatus(status), true, nil
}

// ExtractionCounts returns how many DOIs sit in each extraction state.
func (s *Store) ExtractionCounts(ctx context.Context) (map[types.ExtractionStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM extractions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting extractions: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.ExtractionStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning extraction counts: %w", err)
		}
		counts[types.ExtractionStatus(status)] = n
	}
	return counts, rows.Err()
}

// RecordRun inserts a run record at the start of a pipeline invocation.
func (s *Store) RecordRun(ctx context.Context, rec types.RunRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, query, span_start, span_end, interval_days, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Kind), rec.Query, rec.StartDate, rec.EndDate,
		rec.IntervalDays, rec.StartedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", rec.ID, err)
	}
	return nil
}

// FinishRun stamps a run record with its completion time and outcome counts.
func (s *Store) FinishRun(ctx context.Context, id string, succeeded, failed int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, succeeded = ?, failed = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), succeeded, failed, id,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", id, err)
	}
	return nil
}

// LastRun returns the most recently started run of the given kind. The
// second return value reports whether any such run exists. The extract
// stage uses it to pick up the DOIs of the latest crawl when invoked
// without arguments.
func (s *Store) LastRun(ctx context.Context, kind types.RunKind) (types.RunRecord, bool, error) {
	var rec types.RunRecord
	var kindStr, startedAt string
	var query, spanStart, spanEnd, finishedAt sql.NullString
	var days, succeeded, failed sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, kind, query, span_start, span_end, interval_days, started_at, finished_at, succeeded, failed
		 FROM runs WHERE kind = ? ORDER BY started_at DESC LIMIT 1`, string(kind),
	).Scan(&rec.ID, &kindStr, &query, &spanStart, &spanEnd, &days,
		&startedAt, &finishedAt, &succeeded, &failed)
	if err == sql.ErrNoRows {
		return types.RunRecord{}, false, nil
	}
	if err != nil {
		return types.RunRecord{}, false, fmt.Errorf("querying last %s run: %w", kind, err)
	}

	rec.Kind = types.RunKind(kindStr)
	rec.Query = query.String
	rec.StartDate = spanStart.String
	rec.EndDate = spanEnd.String
	rec.IntervalDays = int(days.Int64)
	rec.Succeeded = int(succeeded.Int64)
	rec.Failed = int(failed.Int64)
	if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
		rec.StartedAt = t
	}
	if finishedAt.Valid {
		if t, err := time.Parse(time.RFC3339, finishedAt.String); err == nil {
			rec.FinishedAt = t
		}
	}
	return rec, true, nil
}

// WriteArtifact atomically writes a named file under the given
// subdirectory of the cache. The data is written to a temporary file
// and renamed into place, so readers never observe a partial artifact.
func (s *Store) WriteArtifact(subdir, name string, data []byte) error {
	dir := filepath.Join(s.dir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temporary file: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("moving artifact into place: %w", err)
	}
	return nil
}

// ArtifactDir returns the absolute directory holding a DOI's
// artifacts, given its cache-relative subdirectory.
func (s *Store) ArtifactDir(subdir string) string {
	return filepath.Join(s.dir, subdir)
}

// HasArtifact reports whether the named file exists under subdir.
func (s *Store) HasArtifact(subdir, name string) bool {
	info, err := os.Stat(filepath.Join(s.dir, subdir, name))
	return err == nil && !info.IsDir()
}

// ReadArtifact returns the contents of the named file under subdir.
func (s *Store) ReadArtifact(subdir, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dir, subdir, name))
}

// RemoveArtifact deletes the named file under subdir. A missing file is
// not an error.
func (s *Store) RemoveArtifact(subdir, name string) error {
	err := os.Remove(filepath.Join(s.dir, subdir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing artifact: %w", err)
	}
	return nil
}

// WalkArtifacts calls fn for every file named name in the cache tree,
// passing the artifact's directory relative to the cache root and the
// file contents. Iteration order follows the filesystem walk (lexical
// by path). Walking stops at the first error from fn.
func (s *Store) WalkArtifacts(name string, fn func(dir string, data []byte) error) error {
	return filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != name {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		rel, err := filepath.Rel(s.dir, filepath.Dir(path))
		if err != nil {
			return err
		}
		return fn(rel, data)
	})
}
