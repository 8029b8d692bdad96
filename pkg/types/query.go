// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the ndl-search pipeline:
// query candidates and validated queries, raw search payloads, normalized
// bibliographic records, publish results, and stage configuration.
package types

import (
	"fmt"
	"net/http"
)

// QuerySource identifies what produced a query candidate.
type QuerySource string

const (
	SourceRule   QuerySource = "rule"
	SourceModel  QuerySource = "model"
	SourceHybrid QuerySource = "hybrid"
)

// QueryCandidate is a CQL query produced outside the core (rule extraction
// or a language model). It is never modified after construction.
type QueryCandidate struct {
	Text   string      `json:"text" yaml:"text"`
	Source QuerySource `json:"source,omitempty" yaml:"source,omitempty"`
}

// ValidatedQuery is a CQL query that passed validation. Only the validator
// constructs one; MaxResults is always within [1, 200].
type ValidatedQuery struct {
	Text       string `json:"text" yaml:"text"`
	MaxResults int    `json:"max_results" yaml:"max_results"`
}

// ValidationKind classifies a rejected query.
type ValidationKind string

const (
	ValidationTooLong          ValidationKind = "TOO_LONG"
	ValidationDisallowedField  ValidationKind = "DISALLOWED_FIELD"
	ValidationWildcardTooBroad ValidationKind = "WILDCARD_TOO_BROAD"
	ValidationPotentialDdos    ValidationKind = "POTENTIAL_DDOS"
	ValidationInvalidSyntax    ValidationKind = "INVALID_SYNTAX"
)

// ValidationError describes why a candidate query was rejected. The
// validator returns it as a value; it also satisfies error so callers
// further up can wrap it.
type ValidationError struct {
	Kind    ValidationKind `json:"kind" yaml:"kind"`
	Message string         `json:"message" yaml:"message"`
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// RawSearchResult is the unparsed response of one remote search call.
type RawSearchResult struct {
	Payload string
	Status  int
	Headers http.Header
}
