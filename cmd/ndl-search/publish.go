// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/ndl-search/internal/archive"
	"github.com/pdiddy/ndl-search/internal/publish"
	"github.com/pdiddy/ndl-search/pkg/types"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Post records from a file or the archive to the publish sink",
	Long: `Publish posts normalized records to the configured sink in batches of at
most 50. Records come from a JSON or YAML file (--file, "-" for stdin), or
from the local archive (--from-archive) with the same filters as
"archive list".

The sink's per-record results are printed as JSON. A 401 response is skipped
with a warning unless --strict-auth is set.`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().String("file", "", `records file (.json, .yaml or .yml); "-" reads JSON from stdin`)
	publishCmd.Flags().Bool("from-archive", false, "publish records from the local archive")
	publishCmd.Flags().String("token", "", "bearer token (default from config or secrets)")
	publishCmd.Flags().Bool("strict-auth", false, "fail on 401 instead of skipping")
	addArchiveFilterFlags(publishCmd)
	publishCmd.MarkFlagsMutuallyExclusive("file", "from-archive")
	publishCmd.MarkFlagsOneRequired("file", "from-archive")

	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	records, err := publishSource(ctx, cmd)
	if err != nil {
		return err
	}

	token, _ := cmd.Flags().GetString("token")
	strict, _ := cmd.Flags().GetBool("strict-auth")

	p := publish.New(cfg.Publish, nil, logger)
	logger.Info("publishing records", zap.Int("count", len(records)), zap.String("endpoint", p.Endpoint()))
	res, err := p.Publish(ctx, records, publish.Options{
		Token:      publishToken(token),
		StrictAuth: strict,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !res.Success {
		return errors.Newf("publish sink reported failures for %d record(s)", failedCount(res))
	}
	return nil
}

func publishSource(ctx context.Context, cmd *cobra.Command) ([]types.NormalizedRecord, error) {
	if on, _ := cmd.Flags().GetBool("from-archive"); on {
		store, err := archive.Open(cfg.Archive)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.List(ctx, archiveQueryFromFlags(cmd))
	}

	path, _ := cmd.Flags().GetString("file")
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, errors.Wrap(err, "reading stdin")
		}
		return decodeRecords(data, ".json")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return decodeRecords(data, filepath.Ext(path))
}

// decodeRecords accepts either a bare list of records or an object with a
// "records" list, the shape the sink itself receives.
func decodeRecords(data []byte, ext string) ([]types.NormalizedRecord, error) {
	var (
		list    []types.NormalizedRecord
		wrapped types.PublishRequest
	)

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &list); err == nil {
			return list, nil
		}
		if err := yaml.Unmarshal(data, &wrapped); err != nil {
			return nil, errors.Wrap(err, "decoding YAML records")
		}
		return wrapped.Records, nil
	case ".json", "":
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &list); err != nil {
				return nil, errors.Wrap(err, "decoding JSON records")
			}
			return list, nil
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, errors.Wrap(err, "decoding JSON records")
		}
		return wrapped.Records, nil
	}
	return nil, errors.Newf("unsupported records file extension %q: use .json, .yaml or .yml", ext)
}
