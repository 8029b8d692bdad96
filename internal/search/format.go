// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/ndl-search/pkg/types"
)

// FormatTable writes records as a human-readable table to w.
func FormatTable(records []types.NormalizedRecord, w io.Writer) {
	FormatPage(Page{Records: records}, w)
}

// FormatPage writes p as a table. The footer carries the server's hit
// count and the next start position when the page is not the whole result.
func FormatPage(p Page, w io.Writer) {
	records := p.Records
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-20s  %-40s  %-20s  %-10s  %s\n",
		"#", "ID", "Title", "Creators", "Issued", "Lang")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for i, r := range records {
		fmt.Fprintf(w, "%-4d  %-20s  %-40s  %-20s  %-10s  %s\n",
			i+1, truncate(r.ID, 20), truncate(r.Title, 40), formatCreators(r.Creators), r.IssuedDate, r.Language)
		for _, h := range r.Holdings {
			fmt.Fprintf(w, "      @ %s", h.LibraryName)
			if h.CallNumber != "" {
				fmt.Fprintf(w, " [%s]", h.CallNumber)
			}
			if h.Availability != "" {
				fmt.Fprintf(w, " %s", h.Availability)
			}
			fmt.Fprintln(w)
		}
	}

	switch {
	case p.Next > 0 && p.Total > len(records):
		fmt.Fprintf(w, "\n%d of %d records (next page: --start %d)\n", len(records), p.Total, p.Next)
	case p.Total > len(records):
		fmt.Fprintf(w, "\n%d of %d records\n", len(records), p.Total)
	default:
		fmt.Fprintf(w, "\n%d records\n", len(records))
	}
}

// FormatJSON writes records as indented JSON to w.
func FormatJSON(records []types.NormalizedRecord, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// FormatYAML writes records as a YAML sequence to w.
func FormatYAML(records []types.NormalizedRecord, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return err
	}
	return enc.Close()
}

func formatCreators(creators []string) string {
	switch len(creators) {
	case 0:
		return ""
	case 1:
		return truncate(creators[0], 20)
	default:
		return truncate(creators[0], 14) + " et al."
	}
}

// truncate shortens s to max characters, counting runes so multi-byte
// titles are never cut mid-character.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}
