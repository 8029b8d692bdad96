// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"maps"
	"slices"
	"time"
)

// RecordIDPrefix namespaces every NormalizedRecord ID.
const RecordIDPrefix = "ndl:"

// NormalizedRecord is one bibliographic record mapped from the remote
// search response. Title is never empty: records without a title are
// dropped during mapping.
type NormalizedRecord struct {
	// ID is "ndl:" + the native NDLBibID, or "ndl:" + a random UUID when the
	// source carried none.
	ID string `json:"id" yaml:"id"`

	Title      string   `json:"title" yaml:"title"`
	Creators   []string `json:"creators" yaml:"creators"`
	Subjects   []string `json:"subjects,omitempty" yaml:"subjects,omitempty"`
	IssuedDate string   `json:"issued_date,omitempty" yaml:"issued_date,omitempty"`
	Language   string   `json:"language,omitempty" yaml:"language,omitempty"`
	Publisher  string   `json:"publisher,omitempty" yaml:"publisher,omitempty"`

	// Identifiers holds typed native identifiers keyed by type
	// (e.g. "NDLBibID", "ISBN").
	Identifiers map[string]string `json:"identifiers,omitempty" yaml:"identifiers,omitempty"`

	// Holdings is only populated when the caller asked for holdings.
	Holdings []Holding `json:"holdings,omitempty" yaml:"holdings,omitempty"`

	Source SourceMeta `json:"source" yaml:"source"`
}

// Clone returns a deep copy of r.
func (r NormalizedRecord) Clone() NormalizedRecord {
	r.Creators = slices.Clone(r.Creators)
	r.Subjects = slices.Clone(r.Subjects)
	r.Identifiers = maps.Clone(r.Identifiers)
	r.Holdings = slices.Clone(r.Holdings)
	return r
}

// CloneRecords deep-copies recs. A nil slice stays nil.
func CloneRecords(recs []NormalizedRecord) []NormalizedRecord {
	if recs == nil {
		return nil
	}
	out := make([]NormalizedRecord, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}

// Holding is the availability of a record at one library.
type Holding struct {
	LibraryName  string `json:"library_name" yaml:"library_name"`
	LibraryCode  string `json:"library_code,omitempty" yaml:"library_code,omitempty"`
	CallNumber   string `json:"call_number,omitempty" yaml:"call_number,omitempty"`
	Availability string `json:"availability,omitempty" yaml:"availability,omitempty"`
	Location     string `json:"location,omitempty" yaml:"location,omitempty"`
	MaterialType string `json:"material_type,omitempty" yaml:"material_type,omitempty"`
	OPACURL      string `json:"opac_url,omitempty" yaml:"opac_url,omitempty"`
}

// SourceMeta records where and when a record was retrieved.
type SourceMeta struct {
	Provider    string    `json:"provider" yaml:"provider"`
	RetrievedAt time.Time `json:"retrieved_at" yaml:"retrieved_at"`
	License     string    `json:"license,omitempty" yaml:"license,omitempty"`
	Schema      string    `json:"schema,omitempty" yaml:"schema,omitempty"`
}
