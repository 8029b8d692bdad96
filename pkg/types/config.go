package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout bounds a single request attempt.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "ndl-search/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// SearchConfig holds settings for the remote SRU search client.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the SRU endpoint.
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// RecordSchema is sent as recordSchema (default "dcndl").
	RecordSchema string `json:"record_schema" yaml:"record_schema" mapstructure:"record_schema"`

	// MaxResults is the default maximumRecords when a caller sets none (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// MaxRetries is the number of retries after the first attempt. 0 selects
	// the default (3); a negative value disables retries.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// RateLimitConfig holds settings for the sliding-window rate limiter.
type RateLimitConfig struct {
	// Window is the length of the sliding window (default 1m).
	Window time.Duration `json:"window" yaml:"window" mapstructure:"window"`

	// MaxRequests is the number of requests admitted per key per window (default 30).
	MaxRequests int `json:"max_requests" yaml:"max_requests" mapstructure:"max_requests"`

	// CleanupInterval is how often stale keys are removed (default 1m).
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval" mapstructure:"cleanup_interval"`

	// KeyPrefix is prepended to every key (default "ndl:").
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix" mapstructure:"key_prefix"`
}

// CacheConfig holds settings for the search result cache.
type CacheConfig struct {
	// TTL is the default time-to-live of an entry (default 30m).
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`

	// MaxSize is the maximum number of entries (default 1000).
	MaxSize int `json:"max_size" yaml:"max_size" mapstructure:"max_size"`

	// CleanupInterval is how often expired entries are swept (default 5m).
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
}

// PublishConfig holds settings for the batching publisher.
type PublishConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the downstream sink API root; records are posted to BaseURL + "/publish".
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Token is the optional bearer token.
	Token string `json:"token,omitempty" yaml:"token,omitempty" mapstructure:"token"`

	// StrictAuth turns a 401 into an error instead of an empty success.
	StrictAuth bool `json:"strict_auth" yaml:"strict_auth" mapstructure:"strict_auth"`

	// BatchSize is the maximum number of records per POST (default 50).
	BatchSize int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`

	// MaxRetries is the number of retries per batch. 0 selects the default
	// (2); a negative value disables retries.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// RateLimitRPS paces batch POSTs. Set to <=0 to disable.
	RateLimitRPS float64 `json:"rate_limit_rps" yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// ArchiveConfig holds settings for the local SQLite record archive.
type ArchiveConfig struct {
	// Path is the SQLite database file.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	JSON  bool   `json:"json" yaml:"json" mapstructure:"json"`
	Level string `json:"level" yaml:"level" mapstructure:"level"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Search    SearchConfig    `json:"search" yaml:"search" mapstructure:"search"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`
	Cache     CacheConfig     `json:"cache" yaml:"cache" mapstructure:"cache"`
	Publish   PublishConfig   `json:"publish" yaml:"publish" mapstructure:"publish"`
	Archive   ArchiveConfig   `json:"archive" yaml:"archive" mapstructure:"archive"`
	Log       LogConfig       `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultPipelineConfig returns the configuration used when nothing is overridden.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Search: SearchConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   15 * time.Second,
				UserAgent: "ndl-search/dev",
			},
			BaseURL:      "https://ndlsearch.ndl.go.jp/api/sru",
			RecordSchema: "dcndl",
			MaxResults:   20,
			MaxRetries:   3,
		},
		RateLimit: RateLimitConfig{
			Window:          time.Minute,
			MaxRequests:     30,
			CleanupInterval: time.Minute,
			KeyPrefix:       "ndl:",
		},
		Cache: CacheConfig{
			TTL:             30 * time.Minute,
			MaxSize:         1000,
			CleanupInterval: 5 * time.Minute,
		},
		Publish: PublishConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   10 * time.Second,
				UserAgent: "ndl-search/dev",
			},
			BaseURL:    "http://localhost:3000/api/v1",
			BatchSize:  50,
			MaxRetries: 2,
		},
		Archive: ArchiveConfig{
			Path: "./data/ndl-search.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
