// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validate checks candidate CQL queries against an allow-list
// grammar before anything is sent upstream. Validation is pure: it never
// performs I/O and returns rejections as values.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/ndl-search/pkg/types"
)

const (
	MaxQueryLength     = 1024
	MaxOrConditions    = 10
	DefaultMaxResults  = 20
	AbsoluteMaxResults = 200
)

// allowedFields is matched case-sensitively; "TITLE" is not "title".
var allowedFields = []string{"title", "creator", "subject", "isbn", "issued", "language"}

var (
	fieldRe      = regexp.MustCompile(`\b([A-Za-z]+)\s*(?:>=|<=|=|>|<)`)
	orRe         = regexp.MustCompile(`(?i)\bOR\b`)
	danglingRe   = regexp.MustCompile(`(?:>=|<=|=|>|<)\s*$`)
	pipesRe      = regexp.MustCompile(`\|{3,}`)
	bracketsRe   = regexp.MustCompile(`[{}\[\]]`)
	assignmentRe = regexp.MustCompile(`\w+\s*=\s*[^=]+`)
)

// AllowedFields returns the searchable fields in a stable order.
func AllowedFields() []string {
	out := make([]string, len(allowedFields))
	copy(out, allowedFields)
	return out
}

func isAllowed(field string) bool {
	for _, f := range allowedFields {
		if f == field {
			return true
		}
	}
	return false
}

// Validate checks text and returns the validated query, or a non-nil
// *types.ValidationError describing the first failed check. Checks run in
// a fixed order: length, wildcard, fields, OR count, syntax.
//
// maxResults <= 0 selects DefaultMaxResults; larger values are capped at
// AbsoluteMaxResults.
func Validate(text string, maxResults int) (types.ValidatedQuery, *types.ValidationError) {
	if n := utf8.RuneCountInString(text); n > MaxQueryLength {
		return types.ValidatedQuery{}, &types.ValidationError{
			Kind:    types.ValidationTooLong,
			Message: fmt.Sprintf("CQL query is too long. Maximum length: %d characters", MaxQueryLength),
			Details: map[string]any{"length": n},
		}
	}

	if strings.Contains(text, "*") {
		return types.ValidatedQuery{}, &types.ValidationError{
			Kind:    types.ValidationWildcardTooBroad,
			Message: `Wildcard "*" is not allowed`,
			Details: map[string]any{"pattern": "*"},
		}
	}

	for _, m := range fieldRe.FindAllStringSubmatch(text, -1) {
		if field := m[1]; !isAllowed(field) {
			return types.ValidatedQuery{}, &types.ValidationError{
				Kind: types.ValidationDisallowedField,
				Message: fmt.Sprintf("Field %q is not allowed. Allowed fields: %s",
					field, strings.Join(allowedFields, ", ")),
				Details: map[string]any{"field": field},
			}
		}
	}

	// n OR operators join n+1 conditions.
	orCount := len(orRe.FindAllStringIndex(text, -1)) + 1
	if orCount > MaxOrConditions {
		return types.ValidatedQuery{}, &types.ValidationError{
			Kind:    types.ValidationPotentialDdos,
			Message: fmt.Sprintf("Too many OR conditions (%d). Maximum allowed: %d", orCount, MaxOrConditions),
			Details: map[string]any{"orCount": orCount},
		}
	}

	if !wellFormed(text) {
		return types.ValidatedQuery{}, &types.ValidationError{
			Kind:    types.ValidationInvalidSyntax,
			Message: "CQL syntax is invalid",
			Details: map[string]any{"text": text},
		}
	}

	return types.ValidatedQuery{Text: text, MaxResults: clamp(maxResults)}, nil
}

// Candidate validates a query candidate's text.
func Candidate(c types.QueryCandidate, maxResults int) (types.ValidatedQuery, *types.ValidationError) {
	return Validate(c.Text, maxResults)
}

func wellFormed(text string) bool {
	switch {
	case danglingRe.MatchString(text):
		return false
	case pipesRe.MatchString(text), bracketsRe.MatchString(text):
		return false
	case !assignmentRe.MatchString(text):
		return false
	}
	return true
}

func clamp(n int) int {
	if n <= 0 {
		return DefaultMaxResults
	}
	if n > AbsoluteMaxResults {
		return AbsoluteMaxResults
	}
	return n
}
