// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/ndl-search/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(types.ArchiveConfig{Path: filepath.Join(t.TempDir(), "nested", "archive.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var retrieved = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func teaBook() types.NormalizedRecord {
	return types.NormalizedRecord{
		ID:          "ndl:030474683",
		Title:       "茶の本",
		Creators:    []string{"岡倉, 覚三", "村岡, 博"},
		Subjects:    []string{"茶道"},
		IssuedDate:  "1961",
		Language:    "jpn",
		Publisher:   "岩波書店",
		Identifiers: map[string]string{"NDLBibID": "030474683"},
		Holdings:    []types.Holding{{LibraryName: "国立国会図書館", CallNumber: "KD791"}},
		Source:      types.SourceMeta{Provider: "NDL", RetrievedAt: retrieved, License: "NDL Terms of Use", Schema: "dcndl"},
	}
}

func englishBook() types.NormalizedRecord {
	return types.NormalizedRecord{
		ID:       "ndl:000000001",
		Title:    "The Book of Tea",
		Creators: []string{"Okakura, Kakuzo"},
		Subjects: []string{"Tea ceremony", "茶道"},
		Language: "eng",
		Source:   types.SourceMeta{Provider: "NDL"},
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open(types.ArchiveConfig{})
	assert.Error(t, err)
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.Save(ctx, []types.NormalizedRecord{teaBook()})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Get(ctx, "ndl:030474683")
	require.NoError(t, err)
	assert.Equal(t, teaBook(), got)
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "ndl:nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSaveUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, []types.NormalizedRecord{teaBook()})
	require.NoError(t, err)

	updated := teaBook()
	updated.Title = "茶の本 改版"
	updated.Holdings = nil
	_, err = s.Save(ctx, []types.NormalizedRecord{updated})
	require.NoError(t, err)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := s.Get(ctx, updated.ID)
	require.NoError(t, err)
	assert.Equal(t, "茶の本 改版", got.Title)
	assert.Nil(t, got.Holdings)
}

func TestSaveEmptyAndInvalid(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.Save(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.Save(ctx, []types.NormalizedRecord{teaBook(), {ID: "ndl:x"}})
	require.Error(t, err)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "failed save rolls back the whole batch")
}

func TestListFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Save(ctx, []types.NormalizedRecord{teaBook(), englishBook()})
	require.NoError(t, err)

	tests := []struct {
		name string
		opts QueryOptions
		want []string
	}{
		{"all", QueryOptions{}, []string{"ndl:000000001", "ndl:030474683"}},
		{"language", QueryOptions{Language: "eng"}, []string{"ndl:000000001"}},
		{"creator", QueryOptions{Creator: "岡倉, 覚三"}, []string{"ndl:030474683"}},
		{"shared subject", QueryOptions{Subject: "茶道"}, []string{"ndl:000000001", "ndl:030474683"}},
		{"title substring", QueryOptions{Title: "Tea"}, []string{"ndl:000000001"}},
		{"no match", QueryOptions{Language: "fre"}, []string{}},
		{"limit", QueryOptions{Limit: 1}, []string{"ndl:000000001"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := s.List(ctx, tt.opts)
			require.NoError(t, err)
			ids := []string{}
			for _, r := range recs {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestListNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.now = func() time.Time { return retrieved }
	_, err := s.Save(ctx, []types.NormalizedRecord{englishBook()})
	require.NoError(t, err)

	s.now = func() time.Time { return retrieved.Add(time.Hour) }
	_, err = s.Save(ctx, []types.NormalizedRecord{teaBook()})
	require.NoError(t, err)

	recs, err := s.List(ctx, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "ndl:030474683", recs[0].ID)
}

func TestExportYAML(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Save(ctx, []types.NormalizedRecord{teaBook(), englishBook()})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, s.ExportYAML(ctx, &buf, QueryOptions{Language: "jpn", Limit: 1}))

	var got []types.NormalizedRecord
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "茶の本", got[0].Title)
	assert.Equal(t, retrieved, got[0].Source.RetrievedAt)
}

func TestExportJSON(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Save(ctx, []types.NormalizedRecord{teaBook(), englishBook()})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, s.ExportJSON(ctx, &buf, QueryOptions{}))

	var got []types.NormalizedRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Len(t, got, 2)
}

func TestExportEmptyArchive(t *testing.T) {
	s := openTestStore(t)
	var buf bytes.Buffer
	require.NoError(t, s.ExportJSON(context.Background(), &buf, QueryOptions{}))
	assert.Equal(t, "[]\n", buf.String())
}
