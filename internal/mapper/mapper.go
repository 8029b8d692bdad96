// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mapper turns NDL SRU responses into normalized records.
//
// The dcndl schema mixes the dcterms and dc element families for the same
// concept and lets a value appear as plain text, as rdf:Description/rdf:value
// or behind a foaf:Agent. Extraction therefore tries each shape in turn and
// never assumes a field is present.
package mapper

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/ndl-search/internal/apperr"
	"github.com/pdiddy/ndl-search/internal/logging"
	"github.com/pdiddy/ndl-search/pkg/types"
)

const (
	// Provider is recorded in every record's SourceMeta.
	Provider = "NDL"
	// License is recorded in every record's SourceMeta.
	License = "NDL Terms of Use"
	// Schema is the record schema the mapper understands.
	Schema = "dcndl"
)

// Envelope is the SRU response header.
type Envelope struct {
	// NumberOfRecords is the total hit count reported by the server.
	NumberOfRecords int
	// NextRecordPosition is 0 when there are no further pages.
	NextRecordPosition int
	// Records is the number of record entries in this page.
	Records int
}

// Mapper maps SRU payloads to records.
type Mapper struct {
	Log *zap.Logger

	now   func() time.Time
	newID func() string
}

// New returns a Mapper logging skipped records to log. A nil log discards.
func New(log *zap.Logger) *Mapper {
	return &Mapper{
		Log:   logging.OrNop(log).With(zap.String(logging.FieldComponent, "mapper")),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// MapRecords maps payload with a Mapper that does not log.
func MapRecords(payload string, includeHoldings bool) ([]types.NormalizedRecord, error) {
	return New(nil).Map(payload, includeHoldings)
}

// ParseEnvelope reads the hit count and paging position of a response.
// A payload without a searchRetrieveResponse root yields a zero Envelope.
func ParseEnvelope(payload string) (Envelope, error) {
	root, err := parseTree(payload)
	if err != nil {
		return Envelope{}, apperr.Parse("parsing SRU response", err)
	}
	if root.name.Local != "searchRetrieveResponse" {
		return Envelope{}, nil
	}

	var env Envelope
	env.NumberOfRecords = atoi(root.child("numberOfRecords"))
	env.NextRecordPosition = atoi(root.child("nextRecordPosition"))
	if recs := root.child("records"); recs != nil {
		for _, c := range recs.children {
			if c.name.Local == "record" {
				env.Records++
			}
		}
	}
	return env, nil
}

// Map parses payload and returns one record per record entry that carries
// a title. A response without a records collection maps to an empty list.
// Unparsable markup, at the top level or inside an embedded recordData
// block, fails the whole call with a parse error.
func (m *Mapper) Map(payload string, includeHoldings bool) ([]types.NormalizedRecord, error) {
	root, err := parseTree(payload)
	if err != nil {
		return nil, apperr.Parse("parsing SRU response", err)
	}

	out := []types.NormalizedRecord{}
	if root.name.Local != "searchRetrieveResponse" {
		return out, nil
	}
	recs := root.child("records")
	if recs == nil {
		return out, nil
	}

	retrieved := m.now().UTC()
	for i, entry := range recs.children {
		if entry.name.Local != "record" {
			continue
		}
		rdf, err := resolveRDF(entry.child("recordData"))
		if err != nil {
			return nil, err
		}
		if rdf == nil {
			m.Log.Warn("skipping record without RDF description", zap.Int("index", i))
			continue
		}

		rec, ok := m.mapRDF(rdf, includeHoldings)
		if !ok {
			m.Log.Warn("skipping record without title", zap.Int("index", i))
			continue
		}
		rec.Source = types.SourceMeta{
			Provider:    Provider,
			RetrievedAt: retrieved,
			License:     License,
			Schema:      Schema,
		}
		out = append(out, rec)
	}
	return out, nil
}

// resolveRDF returns the rdf:RDF element inside a recordData block. When
// the block was packed as a string its text is parsed once more.
func resolveRDF(data *node) (*node, error) {
	if data == nil {
		return nil, nil
	}
	if len(data.children) > 0 {
		return data.find(nsRDF, "RDF"), nil
	}

	text := strings.TrimSpace(data.text)
	if text == "" {
		return nil, nil
	}
	nested, err := parseTree(text)
	if err != nil {
		return nil, apperr.Parse("parsing nested record data", err)
	}
	return nested.find(nsRDF, "RDF"), nil
}

// mapRDF builds a record from the first BibResource with a title.
func (m *Mapper) mapRDF(rdf *node, includeHoldings bool) (types.NormalizedRecord, bool) {
	var bib *node
	var title string
	for _, b := range rdf.all(nsDCNDL, "BibResource") {
		if t := firstValue(b, "title", nsDCTerms, nsDC); t != "" {
			bib, title = b, t
			break
		}
	}
	if bib == nil {
		return types.NormalizedRecord{}, false
	}

	rec := types.NormalizedRecord{
		Title:      title,
		Creators:   agentNames(bib, "creator"),
		Subjects:   subjects(bib),
		IssuedDate: firstValue(bib, "issued", nsDCTerms),
		Language:   firstValue(bib, "language", nsDCTerms, nsDC),
		Publisher:  agentName(bib.first(nsDCTerms, "publisher")),
	}

	ids := identifiers(bib)
	if len(ids) > 0 {
		rec.Identifiers = ids
	}
	if native := ids["NDLBibID"]; native != "" {
		rec.ID = types.RecordIDPrefix + native
	} else {
		rec.ID = types.RecordIDPrefix + m.newID()
	}

	if includeHoldings {
		rec.Holdings = holdings(rdf)
	}
	return rec, true
}

// firstValue returns the first non-empty value of a child named local,
// trying each namespace in order.
func firstValue(n *node, local string, spaces ...ns) string {
	for _, s := range spaces {
		for _, c := range n.all(s, local) {
			if v := c.value(); v != "" {
				return v
			}
		}
	}
	return ""
}

// identifiers collects dcterms:identifier values keyed by the type named
// in their rdf:datatype.
func identifiers(bib *node) map[string]string {
	ids := map[string]string{}
	for _, c := range bib.all(nsDCTerms, "identifier") {
		v := c.value()
		if v == "" {
			continue
		}
		kind := identifierKind(c.attr("datatype"))
		if kind == "" {
			continue
		}
		if _, seen := ids[kind]; !seen {
			ids[kind] = v
		}
	}
	return ids
}

func identifierKind(datatype string) string {
	switch {
	case strings.Contains(datatype, "NDLBibID"):
		return "NDLBibID"
	case strings.Contains(datatype, "ISBN"):
		return "ISBN"
	case strings.Contains(datatype, "ISSN"):
		return "ISSN"
	case strings.Contains(datatype, "JPNO"):
		return "JPNO"
	}
	return ""
}

// agentName resolves a name given as text, as foaf:Agent/foaf:name, or as
// a bare foaf:name.
func agentName(n *node) string {
	if n == nil {
		return ""
	}
	if v := n.value(); v != "" {
		return v
	}
	if v := n.first(nsFOAF, "Agent").first(nsFOAF, "name").value(); v != "" {
		return v
	}
	return n.first(nsFOAF, "name").value()
}

// agentNames returns the de-duplicated agent names of the dcterms and dc
// elements called local, dcterms first.
func agentNames(bib *node, local string) []string {
	names := []string{}
	seen := map[string]bool{}
	for _, s := range []ns{nsDCTerms, nsDC} {
		for _, c := range bib.all(s, local) {
			name := agentName(c)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func subjects(bib *node) []string {
	var out []string
	seen := map[string]bool{}
	for _, s := range []ns{nsDCTerms, nsDC} {
		for _, c := range bib.all(s, "subject") {
			v := c.value()
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// holdings reads the dcndl:Item siblings of the BibResource. An item
// without a resolvable holding agent name is skipped.
func holdings(rdf *node) []types.Holding {
	var out []types.Holding
	for _, item := range rdf.all(nsDCNDL, "Item") {
		agentNode := item.first(nsDCNDL, "holdingAgent")
		name := agentName(agentNode)
		if name == "" {
			continue
		}

		agent := agentNode.first(nsFOAF, "Agent")
		code := firstValue(agent, "libraryCode", nsDCNDL)
		if code == "" {
			code = firstValue(agent, "libraryIdentifier", nsDCNDL)
		}

		h := types.Holding{
			LibraryName:  name,
			LibraryCode:  code,
			CallNumber:   firstValue(item, "callNumber", nsDCNDL),
			Availability: firstValue(item, "availability", nsDCNDL),
			Location:     firstValue(item, "location", nsDCNDL),
			MaterialType: materialType(item.first(nsDCNDL, "materialType")),
			OPACURL:      item.first(nsRDFS, "seeAlso").attr("resource"),
		}
		out = append(out, h)
	}
	return out
}

func materialType(n *node) string {
	if v := n.value(); v != "" {
		return v
	}
	if v := n.attr("label"); v != "" {
		return v
	}
	return n.attr("resource")
}

func atoi(n *node) int {
	if n == nil {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(n.text))
	if err != nil {
		return 0
	}
	return v
}
