// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/pdiddy/ndl-search/pkg/types"
)

// envPrefix namespaces environment overrides, e.g. NDL_SEARCH_PUBLISH_BASE_URL.
const envPrefix = "NDL_SEARCH"

// legacyEnv maps config keys to the unprefixed variable names deployments
// of the earlier service already set.
var legacyEnv = map[string]string{
	"search.base_url":      "NDL_BASE_URL",
	"search.record_schema": "NDL_RECORD_SCHEMA",
	"search.max_results":   "NDL_MAX_RECORDS",
	"search.max_retries":   "HTTP_RETRY",
	"publish.base_url":     "MCP_API_URL",
	"publish.token":        "MCP_API_TOKEN",
	"archive.path":         "SQLITE_PATH",
	"log.level":            "LOG_LEVEL",
}

// configureViper installs defaults and environment bindings on v.
func configureViper(v *viper.Viper) {
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, legacy)
	}
}

// setDefaults registers every key so environment variables can override
// keys that no config file mentions.
func setDefaults(v *viper.Viper) {
	d := types.DefaultPipelineConfig()

	v.SetDefault("search.timeout", d.Search.Timeout)
	v.SetDefault("search.user_agent", "ndl-search/"+version)
	v.SetDefault("search.base_url", d.Search.BaseURL)
	v.SetDefault("search.record_schema", d.Search.RecordSchema)
	v.SetDefault("search.max_results", d.Search.MaxResults)
	v.SetDefault("search.max_retries", d.Search.MaxRetries)

	v.SetDefault("rate_limit.window", d.RateLimit.Window)
	v.SetDefault("rate_limit.max_requests", d.RateLimit.MaxRequests)
	v.SetDefault("rate_limit.cleanup_interval", d.RateLimit.CleanupInterval)
	v.SetDefault("rate_limit.key_prefix", d.RateLimit.KeyPrefix)

	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.max_size", d.Cache.MaxSize)
	v.SetDefault("cache.cleanup_interval", d.Cache.CleanupInterval)

	v.SetDefault("publish.timeout", d.Publish.Timeout)
	v.SetDefault("publish.user_agent", "ndl-search/"+version)
	v.SetDefault("publish.base_url", d.Publish.BaseURL)
	v.SetDefault("publish.token", "")
	v.SetDefault("publish.strict_auth", d.Publish.StrictAuth)
	v.SetDefault("publish.batch_size", d.Publish.BatchSize)
	v.SetDefault("publish.max_retries", d.Publish.MaxRetries)
	v.SetDefault("publish.rate_limit_rps", d.Publish.RateLimitRPS)

	v.SetDefault("archive.path", d.Archive.Path)

	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("log.level", d.Log.Level)
}

// loadConfig decodes v into a PipelineConfig and checks the values that
// would otherwise fail later with a less helpful message.
func loadConfig(v *viper.Viper) (types.PipelineConfig, error) {
	var c types.PipelineConfig
	if err := v.Unmarshal(&c); err != nil {
		return types.PipelineConfig{}, errors.Wrap(err, "decoding configuration")
	}
	if c.Search.BaseURL == "" {
		return types.PipelineConfig{}, errors.New("search.base_url must be set")
	}
	if c.Search.MaxResults < 1 || c.Search.MaxResults > 200 {
		return types.PipelineConfig{}, errors.Newf("search.max_results must be between 1 and 200, got %d", c.Search.MaxResults)
	}
	if err := checkRetries("search.max_retries", c.Search.MaxRetries); err != nil {
		return types.PipelineConfig{}, err
	}
	if c.Publish.BaseURL == "" {
		return types.PipelineConfig{}, errors.New("publish.base_url must be set")
	}
	if err := checkRetries("publish.max_retries", c.Publish.MaxRetries); err != nil {
		return types.PipelineConfig{}, err
	}
	return c, nil
}

// checkRetries bounds a max_retries value. 0 selects the stage default and
// -1 disables retries.
func checkRetries(key string, n int) error {
	if n < -1 || n > 5 {
		return errors.Newf("%s must be between -1 and 5, got %d", key, n)
	}
	return nil
}
