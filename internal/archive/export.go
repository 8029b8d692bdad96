// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
	"go.yaml.in/yaml/v3"
)

const exportLimit = 100000

// ExportYAML writes every record matching opts to w as a YAML sequence.
// opts.Limit is ignored.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, opts QueryOptions) error {
	opts.Limit = exportLimit
	records, err := s.List(ctx, opts)
	if err != nil {
		return errors.Wrap(err, "querying for export")
	}
	data, err := yaml.Marshal(records)
	if err != nil {
		return errors.Wrap(err, "marshaling YAML")
	}
	_, err = w.Write(data)
	return err
}

// ExportJSON writes every record matching opts to w as an indented JSON
// array. opts.Limit is ignored.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer, opts QueryOptions) error {
	opts.Limit = exportLimit
	records, err := s.List(ctx, opts)
	if err != nil {
		return errors.Wrap(err, "querying for export")
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling JSON")
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
