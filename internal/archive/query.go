// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/pdiddy/ndl-search/pkg/types"
)

// QueryOptions filters List. Empty fields match everything.
type QueryOptions struct {
	// Title matches records whose title contains the text.
	Title string
	// Language matches the language code exactly.
	Language string
	// Creator matches records listing this creator.
	Creator string
	// Subject matches records listing this subject.
	Subject string
	// Limit caps the result count. Zero uses the store default.
	Limit int
}

const selectColumns = `SELECT id, title, creators, subjects, issued_date, language, publisher,
	identifiers, holdings, provider, license, schema_name, retrieved_at`

// List returns archived records matching opts, most recently archived first.
func (s *Store) List(ctx context.Context, opts QueryOptions) ([]types.NormalizedRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = s.maxResults
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(selectColumns + ` FROM records WHERE 1=1`)

	if opts.Title != "" {
		qb.WriteString(` AND instr(title, ?) > 0`)
		args = append(args, opts.Title)
	}
	if opts.Language != "" {
		qb.WriteString(` AND language = ?`)
		args = append(args, opts.Language)
	}
	if opts.Creator != "" {
		qb.WriteString(` AND EXISTS (SELECT 1 FROM json_each(records.creators) WHERE value = ?)`)
		args = append(args, opts.Creator)
	}
	if opts.Subject != "" {
		qb.WriteString(` AND EXISTS (SELECT 1 FROM json_each(records.subjects) WHERE value = ?)`)
		args = append(args, opts.Subject)
	}

	qb.WriteString(` ORDER BY archived_at DESC, id LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying archive")
	}
	defer rows.Close()

	records := []types.NormalizedRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning row")
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (types.NormalizedRecord, error) {
	var (
		rec                                  types.NormalizedRecord
		creators, subjects, ids, holdings    sql.NullString
		issued, lang, publisher              sql.NullString
		provider, license, schema, retrieved sql.NullString
	)
	if err := sc.Scan(
		&rec.ID, &rec.Title, &creators, &subjects, &issued, &lang, &publisher,
		&ids, &holdings, &provider, &license, &schema, &retrieved,
	); err != nil {
		return types.NormalizedRecord{}, err
	}

	rec.Creators = []string{}
	unmarshalJSON(creators, &rec.Creators)
	unmarshalJSON(subjects, &rec.Subjects)
	unmarshalJSON(ids, &rec.Identifiers)
	unmarshalJSON(holdings, &rec.Holdings)
	rec.IssuedDate = issued.String
	rec.Language = lang.String
	rec.Publisher = publisher.String
	rec.Source = types.SourceMeta{
		Provider: provider.String,
		License:  license.String,
		Schema:   schema.String,
	}
	if retrieved.Valid && retrieved.String != "" {
		if t, err := time.Parse(time.RFC3339Nano, retrieved.String); err == nil {
			rec.Source.RetrievedAt = t
		}
	}
	return rec, nil
}

func unmarshalJSON(ns sql.NullString, dst any) {
	if !ns.Valid || ns.String == "" {
		return
	}
	_ = json.Unmarshal([]byte(ns.String), dst)
}
