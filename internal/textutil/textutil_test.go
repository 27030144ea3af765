package textutil

import "testing"

func TestNormalizeCollapsesCRLFBlankLinesAndSpaces(t *testing.T) {
	in := "linha um\r\nlinha dois\r\n\n\n\nlinha   com    espacos"
	got := Normalize(in)
	if want := "linha um\nlinha dois\n\nlinha com espacos"; got != want {
		t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
	}
}

func TestNormalizedPrefixLowercasesCollapsesAndTruncates(t *testing.T) {
	got := NormalizedPrefix("  Hello   WORLD  ", 5)
	if got != "hello" {
		t.Fatalf("expected truncation to 5 runes of the collapsed lowercase text, got %q", got)
	}
}

func TestNormalizedPrefixShorterThanLimit(t *testing.T) {
	got := NormalizedPrefix("Hi there", 100)
	if got != "hi there" {
		t.Fatalf("expected full collapsed lowercase text, got %q", got)
	}
}

func TestRepairMojibakeFixesLatin1Misdecode(t *testing.T) {
	// "café" UTF-8-encoded and then mis-decoded as Latin-1 yields "cafÃ©".
	mangled := "cafÃ©"
	got := RepairMojibake(mangled)
	if got != "café" {
		t.Fatalf("RepairMojibake(%q) = %q, want %q", mangled, got, "café")
	}
}

func TestRepairMojibakeLeavesCleanTextUnchanged(t *testing.T) {
	clean := "texto limpo sem problemas"
	if got := RepairMojibake(clean); got != clean {
		t.Fatalf("expected clean text to pass through unchanged, got %q", got)
	}
}

func TestTokenizeStripsDiacriticsAndShortTokens(t *testing.T) {
	got := Tokenize("Substituição do Fusível, código E042!")
	want := []string{"substituicao", "do", "fusivel", "codigo", "e042"}
	if len(got) != len(want) {
		t.Fatalf("Tokenize returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Tokenize returned %v, want %v", got, want)
		}
	}
}

func TestTokenizeDropsSingleCharTokens(t *testing.T) {
	got := Tokenize("a bb c dd")
	want := []string{"bb", "dd"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Tokenize(%q) = %v, want %v", "a bb c dd", got, want)
	}
}
