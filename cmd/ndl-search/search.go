// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/ndl-search/internal/archive"
	"github.com/pdiddy/ndl-search/internal/cache"
	"github.com/pdiddy/ndl-search/internal/mapper"
	"github.com/pdiddy/ndl-search/internal/publish"
	"github.com/pdiddy/ndl-search/internal/ratelimit"
	"github.com/pdiddy/ndl-search/internal/search"
	"github.com/pdiddy/ndl-search/internal/sru"
	"github.com/pdiddy/ndl-search/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [cql]",
	Short: "Search NDL Search with a CQL query",
	Long: `Search validates a CQL query, sends it to the NDL Search SRU endpoint and
prints the normalized records. Only the fields title, creator, subject,
isbn, issued and language are allowed, wildcards are rejected, and a query
may combine at most ten OR conditions.

Results can also be saved to the local archive (--archive) and posted to the
publish sink (--publish).`,
	Example: `  ndl-search search 'title="茶道" AND issued>="2000"'
  ndl-search search --cql 'creator="岡倉"' --max-results 50 --holdings --json`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("cql", "", "CQL query (alternatively pass it as the argument)")
	searchCmd.Flags().Int("max-results", 0, "maximum records to return, 1-200 (default from config)")
	searchCmd.Flags().Int("start", 0, "1-based position of the first record")
	searchCmd.Flags().String("schema", "", "record schema to request (default from config)")
	searchCmd.Flags().Bool("holdings", false, "include library holdings")
	searchCmd.Flags().Bool("json", false, "output records as JSON")
	searchCmd.Flags().Bool("yaml", false, "output records as YAML")
	searchCmd.Flags().Bool("archive", false, "save records to the local archive")
	searchCmd.Flags().Bool("publish", false, "post records to the publish sink")
	searchCmd.Flags().String("token", "", "bearer token for --publish (default from config or secrets)")
	searchCmd.Flags().Bool("strict-auth", false, "fail --publish on 401 instead of skipping")
	searchCmd.MarkFlagsMutuallyExclusive("json", "yaml")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := requestFromFlags(cmd, args)
	if err != nil {
		return err
	}

	svc := newSearchService(cfg, logger)
	defer svc.Close()

	page, err := svc.DoPage(ctx, req)
	if err != nil {
		return err
	}
	records := page.Records

	if err := writePage(cmd, page, os.Stdout); err != nil {
		return err
	}

	if on, _ := cmd.Flags().GetBool("archive"); on {
		if err := archiveRecords(ctx, records); err != nil {
			return err
		}
	}
	if on, _ := cmd.Flags().GetBool("publish"); on {
		if err := publishRecords(ctx, cmd, records); err != nil {
			return err
		}
	}
	return nil
}

// requestFromFlags builds the loose parameter map the service accepts and
// normalizes it, so flags and stored parameter files share one path.
func requestFromFlags(cmd *cobra.Command, args []string) (search.Request, error) {
	query, _ := cmd.Flags().GetString("cql")
	if query == "" {
		query = strings.Join(args, " ")
	}
	if strings.TrimSpace(query) == "" {
		return search.Request{}, errors.New("provide a CQL query as an argument or with --cql")
	}

	maxResults, _ := cmd.Flags().GetInt("max-results")
	if maxResults == 0 {
		maxResults = cfg.Search.MaxResults
	}
	start, _ := cmd.Flags().GetInt("start")
	schema, _ := cmd.Flags().GetString("schema")
	holdings, _ := cmd.Flags().GetBool("holdings")

	p := search.Params{
		"cql":             query,
		"maximumRecords":  maxResults,
		"startRecord":     start,
		"includeHoldings": holdings,
		"source":          string(types.SourceRule),
	}
	if schema != "" {
		p["recordSchema"] = schema
	}
	return search.NormalizeParams(p), nil
}

// newSearchService wires the pipeline stages from c.
func newSearchService(c types.PipelineConfig, log *zap.Logger) *search.Service {
	return search.NewService(search.Deps{
		Fetcher: sru.NewClient(c.Search, nil, log),
		Mapper:  mapper.New(log),
		Limiter: ratelimit.New(c.RateLimit),
		Cache:   cache.New[search.Page](c.Cache),
		Log:     log,
		Observer: func(e search.Event) {
			log.Debug("search step", zap.String("event", string(e.Kind)), zap.Int("count", e.Count))
		},
		Background: true,
	})
}

func writePage(cmd *cobra.Command, page search.Page, w io.Writer) error {
	if on, _ := cmd.Flags().GetBool("json"); on {
		return search.FormatJSON(page.Records, w)
	}
	if on, _ := cmd.Flags().GetBool("yaml"); on {
		return search.FormatYAML(page.Records, w)
	}
	search.FormatPage(page, w)
	return nil
}

func archiveRecords(ctx context.Context, records []types.NormalizedRecord) error {
	store, err := archive.Open(cfg.Archive)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Save(ctx, records)
	if err != nil {
		return err
	}
	logger.Info("archived records", zap.Int("count", n), zap.String("path", cfg.Archive.Path))
	return nil
}

func publishRecords(ctx context.Context, cmd *cobra.Command, records []types.NormalizedRecord) error {
	token, _ := cmd.Flags().GetString("token")
	strict, _ := cmd.Flags().GetBool("strict-auth")

	p := publish.New(cfg.Publish, nil, logger)
	res, err := p.Publish(ctx, records, publish.Options{
		Token:      publishToken(token),
		StrictAuth: strict,
	})
	if err != nil {
		return err
	}
	logger.Info("published records",
		zap.Int("count", len(records)),
		zap.Int("results", len(res.Results)),
		zap.Bool("success", res.Success))
	if !res.Success {
		return errors.Newf("publish sink reported failures for %d record(s)", failedCount(res))
	}
	return nil
}

// publishToken resolves the bearer token: flag, then config, then the
// secrets directory.
func publishToken(flag string) string {
	return loadedSecrets.PublishToken(flag, cfg.Publish.Token)
}

func failedCount(res types.PublishResult) int {
	n := 0
	for _, r := range res.Results {
		if r.Status >= 400 {
			n++
		}
	}
	return n
}
