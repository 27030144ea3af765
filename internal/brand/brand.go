// Package brand holds the canonical equipment-brand table used to tag
// ingested chunks and to power the query-time brand filter.
package brand

import "strings"

// canonical is the small fixed table of brand names this deployment knows
// about. Folder and filename matching is case-insensitive substring against
// these entries.
var canonical = []string{
	"Otis",
	"Orona",
	"Schindler",
	"ThyssenKrupp",
	"KONE",
	"Mitsubishi",
	"Fujitec",
}

// Canonical returns the fixed brand table, in priority order.
func Canonical() []string {
	out := make([]string, len(canonical))
	copy(out, canonical)
	return out
}

// FromFolder matches a containing folder name against the canonical table.
// Returns "" when no brand matches.
func FromFolder(folder string) string {
	return matchAny(folder)
}

// FromFilename matches a filename against the canonical table.
// Returns "" when no brand matches.
func FromFilename(filename string) string {
	return matchAny(filename)
}

// Resolve applies spec §4.6's brand-assignment precedence: explicit
// parameter, then containing folder, then filename; "" if none match.
func Resolve(explicit, folder, filename string) string {
	if explicit != "" {
		return explicit
	}
	if b := FromFolder(folder); b != "" {
		return b
	}
	return FromFilename(filename)
}

func matchAny(s string) string {
	lower := strings.ToLower(s)
	for _, b := range canonical {
		if strings.Contains(lower, strings.ToLower(b)) {
			return b
		}
	}
	return ""
}

// MatchesFilter implements the case-insensitive substring brand filter over
// metadata.source ∪ metadata.brandName described in spec §4.5.
func MatchesFilter(filter, source, brandName string) bool {
	if filter == "" {
		return true
	}
	f := strings.ToLower(filter)
	return strings.Contains(strings.ToLower(source), f) || strings.Contains(strings.ToLower(brandName), f)
}
