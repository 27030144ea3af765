// Package textutil holds the text-normalization, mojibake-repair, and
// tokenization helpers shared by the extractor, chunker, and vector store.
package textutil

import (
	"regexp"
	"strings"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reBlankLines = regexp.MustCompile(`\n{3,}`)
	reSpaces     = regexp.MustCompile(` {2,}`)
	reNonAlnum   = regexp.MustCompile(`[^a-z0-9]+`)
)

// Normalize applies spec §4.3's combined-text normalization: CRLF→LF, runs
// of ≥3 blank lines collapsed to 2, non-breaking spaces→spaces, runs of ≥2
// spaces collapsed to 1.
func Normalize(text string) string {
	s := reCRLF.ReplaceAllString(text, "\n")
	s = strings.ReplaceAll(s, " ", " ")
	s = reBlankLines.ReplaceAllString(s, "\n\n")
	s = reSpaces.ReplaceAllString(s, " ")
	return s
}

// NormalizedPrefix lowercases, collapses whitespace, and truncates to n
// runes — the signature used for chunk dedup (240), the embedding LRU key
// (300), and the embedded store's normalized source-name comparison.
func NormalizedPrefix(text string, n int) string {
	collapsed := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	r := []rune(collapsed)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

// mojibakeScore counts characters symptomatic of UTF-8 text that was
// mis-decoded as Latin-1 somewhere upstream.
func mojibakeScore(s string) int {
	score := 0
	for _, r := range s {
		switch {
		case r == '�':
			score++
		case r == 'Ã' || r == 'Â':
			score++
		case r >= 0x80 && r <= 0x9F: // C1 control range
			score++
		}
	}
	return score
}

// residualReplacements is the small ordered fallback table for mojibake
// pairs that survive the Latin-1 re-decode pass.
var residualReplacements = []struct{ from, to string }{
	{"Ã©", "é"}, {"Ã¡", "á"}, {"Ã£", "ã"}, {"Ã§", "ç"}, {"Ã³", "ó"},
	{"Ã­", "í"}, {"Ãº", "ú"}, {"Ã¢", "â"}, {"â€™", "'"}, {"â€œ", "\""}, {"â€", "\""},
}

// RepairMojibake re-decodes text that looks like UTF-8 interpreted as
// Latin-1, per spec §9: interpret bytes as Latin-1, re-encode as UTF-8, and
// keep the result only if it lowers the mojibake score. Falls back to a
// residual replacement table.
func RepairMojibake(s string) string {
	if candidate := latin1Redecode(s); candidate != "" && mojibakeScore(candidate) < mojibakeScore(s) {
		s = candidate
	}
	for _, rep := range residualReplacements {
		s = strings.ReplaceAll(s, rep.from, rep.to)
	}
	return s
}

// latin1Redecode treats each rune of s as a Latin-1 code point and
// re-assembles the resulting bytes as UTF-8. Returns "" if s contains runes
// outside the Latin-1 range (the re-decode is not applicable).
func latin1Redecode(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r > 0xFF {
			return ""
		}
		b.WriteByte(byte(r))
	}
	return b.String()
}

// diacriticFold covers the accented characters that appear in Portuguese
// technical manuals; BM25 tokenization is diacritic-insensitive per spec §4.5.
var diacriticFold = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u',
	'ç': 'c', 'ñ': 'n',
	'Á': 'a', 'À': 'a', 'Â': 'a', 'Ã': 'a', 'Ä': 'a',
	'É': 'e', 'È': 'e', 'Ê': 'e', 'Ë': 'e',
	'Í': 'i', 'Ì': 'i', 'Î': 'i', 'Ï': 'i',
	'Ó': 'o', 'Ò': 'o', 'Ô': 'o', 'Õ': 'o', 'Ö': 'o',
	'Ú': 'u', 'Ù': 'u', 'Û': 'u', 'Ü': 'u',
	'Ç': 'c', 'Ñ': 'n',
}

func stripDiacritics(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if folded, ok := diacriticFold[r]; ok {
			b.WriteRune(folded)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Tokenize implements the BM25 tokenizer of spec §4.5: strip diacritics,
// lowercase, split on non-alphanumerics, drop tokens shorter than 2.
func Tokenize(s string) []string {
	stripped := stripDiacritics(strings.ToLower(s))
	fields := reNonAlnum.Split(stripped, -1)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}
