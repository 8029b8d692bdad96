// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search is the entry point of the pipeline: it validates a query,
// applies the rate limit, consults the cache, and on a miss fetches and
// maps records from the SRU endpoint.
//
// The steps always run in that order. A cache hit returns without a fetch,
// and every outcome of a fetch, an empty record list included, is cached.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/ndl-search/internal/apperr"
	"github.com/pdiddy/ndl-search/internal/cache"
	"github.com/pdiddy/ndl-search/internal/logging"
	"github.com/pdiddy/ndl-search/internal/mapper"
	"github.com/pdiddy/ndl-search/internal/ratelimit"
	"github.com/pdiddy/ndl-search/internal/sru"
	"github.com/pdiddy/ndl-search/internal/validate"
	"github.com/pdiddy/ndl-search/pkg/types"
)

// RateKeyLength is the number of characters of the validated query used
// as the rate-limit key.
const RateKeyLength = 50

// Fetcher retrieves a raw response for a validated query. *sru.Client
// implements it.
type Fetcher interface {
	FetchWith(ctx context.Context, q types.ValidatedQuery, opts sru.FetchOptions) (types.RawSearchResult, error)
}

// RecordMapper turns a raw payload into records. *mapper.Mapper implements it.
type RecordMapper interface {
	Map(payload string, includeHoldings bool) ([]types.NormalizedRecord, error)
}

// Page is one page of results together with the server's paging header.
type Page struct {
	Records []types.NormalizedRecord
	// Total is the server's numberOfRecords, 0 when it reported none.
	Total int
	// Next is the server's nextRecordPosition, 0 on the last page.
	Next int
}

func (p Page) clone() Page {
	p.Records = types.CloneRecords(p.Records)
	return p
}

// RecordCache is the cache type shared by the service.
type RecordCache = cache.Cache[Page]

// Deps wires a Service. Fetcher is required; the rest default.
type Deps struct {
	Fetcher  Fetcher
	Mapper   RecordMapper
	Limiter  *ratelimit.Limiter
	Cache    *RecordCache
	Log      *zap.Logger
	Observer Observer

	// Background starts the limiter and cache sweeps. Close stops them.
	Background bool
}

// Request is a normalized search request.
type Request struct {
	Query           string
	Source          types.QuerySource
	MaxResults      int
	StartRecord     int
	Schema          string
	IncludeHoldings bool
}

// Service runs searches. It is safe for concurrent use.
type Service struct {
	fetcher  Fetcher
	mapper   RecordMapper
	limiter  *ratelimit.Limiter
	cache    *RecordCache
	log      *zap.Logger
	observer Observer
}

// NewService builds a Service from d. A nil Limiter or Cache is replaced
// by one with default settings.
func NewService(d Deps) *Service {
	log := logging.OrNop(d.Log).With(zap.String(logging.FieldComponent, "search"))
	s := &Service{
		fetcher:  d.Fetcher,
		mapper:   d.Mapper,
		limiter:  d.Limiter,
		cache:    d.Cache,
		log:      log,
		observer: d.Observer,
	}
	if s.mapper == nil {
		s.mapper = mapper.New(d.Log)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.New(types.DefaultPipelineConfig().RateLimit)
	}
	if s.cache == nil {
		s.cache = cache.New[Page](types.DefaultPipelineConfig().Cache)
	}
	if d.Background {
		s.limiter.Start()
		s.cache.Start()
	}
	return s
}

// Close stops the background sweeps. It is safe to call more than once.
func (s *Service) Close() {
	s.limiter.Stop()
	s.cache.Stop()
}

// CacheStats reports the record cache counters.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// Search runs candidate through the pipeline, returning at most
// maxResults records (clamped to the allowed range).
func (s *Service) Search(ctx context.Context, candidate types.QueryCandidate, maxResults int) ([]types.NormalizedRecord, error) {
	return s.Do(ctx, Request{
		Query:      candidate.Text,
		Source:     candidate.Source,
		MaxResults: maxResults,
	})
}

// Do runs req through validation, rate limiting, the cache and, on a
// miss, the fetch and map steps. Errors from validation, the limiter, the
// fetch and the mapper are returned unchanged. The returned records are
// the caller's own copy; changing them never affects the cache.
func (s *Service) Do(ctx context.Context, req Request) ([]types.NormalizedRecord, error) {
	p, err := s.DoPage(ctx, req)
	if err != nil {
		return nil, err
	}
	return p.Records, nil
}

// DoPage is Do returning the server's hit count and next position along
// with the records.
func (s *Service) DoPage(ctx context.Context, req Request) (Page, error) {
	vq, verr := validate.Validate(req.Query, req.MaxResults)
	if verr != nil {
		s.emit(Event{Kind: EventValidationFailed, Query: req.Query, Err: verr})
		s.log.Debug("query rejected",
			zap.String(logging.FieldQuery, req.Query),
			zap.String("kind", string(verr.Kind)))
		return Page{}, apperr.Validation(verr)
	}

	rk := RateKey(vq.Text)
	if res := s.limiter.Check(rk); !res.Allowed {
		s.emit(Event{Kind: EventRateLimited, Query: vq.Text, Key: rk, RetryAfter: res.RetryAfter})
		s.log.Warn("rate limit exceeded",
			zap.String(logging.FieldKey, rk),
			zap.Int(logging.FieldRetryAfter, res.RetryAfter))
		return Page{}, apperr.RateLimited(res.RetryAfter)
	}

	ck := CacheKey(vq, req)
	if hit, ok := s.cache.Get(ck); ok {
		s.emit(Event{Kind: EventCacheHit, Query: vq.Text, Key: ck, Count: len(hit.Records)})
		s.log.Debug("cache hit", zap.String(logging.FieldKey, ck), zap.Int(logging.FieldCount, len(hit.Records)))
		return hit.clone(), nil
	}
	s.emit(Event{Kind: EventCacheMiss, Query: vq.Text, Key: ck})
	s.log.Debug("cache miss", zap.String(logging.FieldKey, ck))

	raw, err := s.fetcher.FetchWith(ctx, vq, sru.FetchOptions{
		StartRecord: req.StartRecord,
		Schema:      req.Schema,
	})
	if err != nil {
		return Page{}, err
	}
	s.emit(Event{Kind: EventFetched, Query: vq.Text, Key: ck})

	recs, err := s.mapper.Map(raw.Payload, req.IncludeHoldings)
	if err != nil {
		return Page{}, err
	}
	s.emit(Event{Kind: EventMapped, Query: vq.Text, Key: ck, Count: len(recs)})

	page := Page{Records: recs}
	if env, err := mapper.ParseEnvelope(raw.Payload); err == nil {
		page.Total = env.NumberOfRecords
		page.Next = env.NextRecordPosition
	}

	s.cache.Set(ck, page.clone(), 0)
	return page, nil
}

// RateKey truncates text to RateKeyLength characters.
func RateKey(text string) string {
	r := []rune(text)
	if len(r) > RateKeyLength {
		r = r[:RateKeyLength]
	}
	return string(r)
}

// CacheKey extends cache.SearchKey with the request options that change
// the mapped result.
func CacheKey(vq types.ValidatedQuery, req Request) string {
	key := cache.SearchKey(vq.Text, vq.MaxResults)
	if req.StartRecord > 1 {
		key += fmt.Sprintf(":start=%d", req.StartRecord)
	}
	if req.Schema != "" {
		key += ":schema=" + req.Schema
	}
	if req.IncludeHoldings {
		key += ":holdings"
	}
	return key
}

func (s *Service) emit(e Event) {
	if s.observer != nil {
		s.observer(e)
	}
}
