// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pdiddy/ndl-search/pkg/types"
)

// Params is a loosely typed search request as decoded from JSON, YAML or
// command-line flags. Several historical spellings exist for the same
// field; NormalizeParams resolves them.
type Params map[string]any

// Accepted spellings per field, most preferred first.
var (
	queryKeys    = []string{"cql", "query"}
	maxKeys      = []string{"maximumRecords", "maxRecords", "maxResults", "max_results"}
	startKeys    = []string{"startRecord", "start_record"}
	schemaKeys   = []string{"recordSchema", "format"}
	holdingsKeys = []string{"includeHoldings", "include_holdings"}
)

// NormalizeParams maps p into a Request. Unknown keys are ignored and
// values of the wrong type leave the field at its zero value.
func NormalizeParams(p Params) Request {
	req := Request{
		Query:           strings.TrimSpace(stringParam(p, queryKeys)),
		MaxResults:      intParam(p, maxKeys),
		StartRecord:     intParam(p, startKeys),
		Schema:          stringParam(p, schemaKeys),
		IncludeHoldings: boolParam(p, holdingsKeys),
	}
	if src := stringParam(p, []string{"source"}); src != "" {
		req.Source = types.QuerySource(src)
	}
	return req
}

func lookup(p Params, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := p[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func stringParam(p Params, keys []string) string {
	v, ok := lookup(p, keys)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	}
	return ""
}

func intParam(p Params, keys []string) int {
	v, ok := lookup(p, keys)
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case uint64:
		return int(t)
	case float64:
		return int(t)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func boolParam(p Params, keys []string) bool {
	v, ok := lookup(p, keys)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return err == nil && b
	case int:
		return t != 0
	case float64:
		return t != 0
	}
	return false
}
