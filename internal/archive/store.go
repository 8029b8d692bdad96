// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive keeps normalized records in a local SQLite database so
// search results survive the in-memory cache and can be listed, filtered
// and exported later.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/ndl-search/pkg/types"
)

// ErrNotFound is returned by Get for an unknown record ID.
var ErrNotFound = errors.New("record not found")

// Store manages the archive database.
type Store struct {
	db         *sql.DB
	maxResults int
	now        func() time.Time
}

// Open opens or creates the archive at cfg.Path, creating the parent
// directory and schema as needed.
func Open(cfg types.ArchiveConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("archive path is empty")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating archive directory")
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	s := &Store{db: db, maxResults: 100, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating schema")
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			creators TEXT,
			subjects TEXT,
			issued_date TEXT,
			language TEXT,
			publisher TEXT,
			identifiers TEXT,
			holdings TEXT,
			provider TEXT,
			license TEXT,
			schema_name TEXT,
			retrieved_at TEXT,
			archived_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_language ON records(language)`,
		`CREATE INDEX IF NOT EXISTS idx_records_archived_at ON records(archived_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "executing schema statement")
		}
	}
	return nil
}

// Save upserts records in one transaction and returns how many were
// written. A record already archived under the same ID is replaced.
func (s *Store) Save(ctx context.Context, records []types.NormalizedRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (id, title, creators, subjects, issued_date, language, publisher,
			identifiers, holdings, provider, license, schema_name, retrieved_at, archived_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, creators=excluded.creators, subjects=excluded.subjects,
			issued_date=excluded.issued_date, language=excluded.language,
			publisher=excluded.publisher, identifiers=excluded.identifiers,
			holdings=excluded.holdings, provider=excluded.provider, license=excluded.license,
			schema_name=excluded.schema_name, retrieved_at=excluded.retrieved_at,
			archived_at=excluded.archived_at`)
	if err != nil {
		return 0, errors.Wrap(err, "preparing upsert")
	}
	defer stmt.Close()

	archivedAt := s.now().UTC().Format(time.RFC3339Nano)
	for _, r := range records {
		if r.ID == "" || r.Title == "" {
			return 0, errors.Newf("record %q is missing an id or title", r.ID)
		}
		retrievedAt := ""
		if !r.Source.RetrievedAt.IsZero() {
			retrievedAt = r.Source.RetrievedAt.UTC().Format(time.RFC3339Nano)
		}
		_, err := stmt.ExecContext(ctx,
			r.ID, r.Title, marshalJSON(r.Creators), marshalJSON(r.Subjects),
			r.IssuedDate, r.Language, r.Publisher,
			marshalJSON(r.Identifiers), marshalJSON(r.Holdings),
			r.Source.Provider, r.Source.License, r.Source.Schema,
			retrievedAt, archivedAt,
		)
		if err != nil {
			return 0, errors.Wrapf(err, "upserting record %s", r.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "committing records")
	}
	return len(records), nil
}

// Get returns the archived record with the given ID.
func (s *Store) Get(ctx context.Context, id string) (types.NormalizedRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.NormalizedRecord{}, errors.Wrapf(ErrNotFound, "record %s", id)
	}
	if err != nil {
		return types.NormalizedRecord{}, errors.Wrap(err, "looking up record")
	}
	return rec, nil
}

// Count returns the number of archived records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM records`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "counting records")
	}
	return n, nil
}

// marshalJSON encodes v for a TEXT column. Nil and empty values are
// stored as NULL.
func marshalJSON(v any) sql.NullString {
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return sql.NullString{}
		}
	case map[string]string:
		if len(t) == 0 {
			return sql.NullString{}
		}
	case []types.Holding:
		if len(t) == 0 {
			return sql.NullString{}
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}
