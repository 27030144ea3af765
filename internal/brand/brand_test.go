package brand

import "testing"

func TestFromFolderMatchesCaseInsensitive(t *testing.T) {
	if got := FromFolder("OTIS-manuals"); got != "Otis" {
		t.Fatalf("expected Otis, got %q", got)
	}
	if got := FromFolder("misc"); got != "" {
		t.Fatalf("expected no match, got %q", got)
	}
}

func TestFromFilenameMatchesSubstring(t *testing.T) {
	if got := FromFilename("schindler_5500_manual.pdf"); got != "Schindler" {
		t.Fatalf("expected Schindler, got %q", got)
	}
}

func TestResolvePrecedence(t *testing.T) {
	if got := Resolve("Explicit", "Otis", "schindler.pdf"); got != "Explicit" {
		t.Fatalf("expected explicit brand to win, got %q", got)
	}
	if got := Resolve("", "Otis-folder", "schindler.pdf"); got != "Otis" {
		t.Fatalf("expected folder brand to win over filename, got %q", got)
	}
	if got := Resolve("", "", "kone_manual.pdf"); got != "KONE" {
		t.Fatalf("expected filename brand when folder is empty, got %q", got)
	}
	if got := Resolve("", "", "unknown.pdf"); got != "" {
		t.Fatalf("expected empty string when nothing matches, got %q", got)
	}
}

func TestMatchesFilter(t *testing.T) {
	if !MatchesFilter("", "any-source.pdf", "AnyBrand") {
		t.Fatalf("expected an empty filter to match everything")
	}
	if !MatchesFilter("otis", "OTIS-manual.pdf", "") {
		t.Fatalf("expected a case-insensitive source match")
	}
	if !MatchesFilter("kone", "manual.pdf", "KONE") {
		t.Fatalf("expected a case-insensitive brand name match")
	}
	if MatchesFilter("fujitec", "otis-manual.pdf", "Otis") {
		t.Fatalf("expected no match when neither field contains the filter")
	}
}

func TestCanonicalReturnsDefensiveCopy(t *testing.T) {
	list := Canonical()
	list[0] = "mutated"
	if Canonical()[0] == "mutated" {
		t.Fatalf("expected Canonical to return a copy, not the backing array")
	}
}
