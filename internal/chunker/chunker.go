// Package chunker implements C4: splits normalized page text into
// fault-code, semantic, and page-window chunks with overlap, and
// deduplicates across all three families.
package chunker

import (
	"regexp"
	"strings"

	"github.com/adverant/nexus/manualqa/internal/textutil"
)

// ChunkType enumerates spec §3's chunkType values.
type ChunkType string

const (
	TypeSemantic   ChunkType = "semantic"
	TypePageWindow ChunkType = "page_window"
	TypeFaultCode  ChunkType = "fault_code"
	TypeFallback   ChunkType = "fallback"
)

// Chunk is the chunker's output unit, pre-embedding.
type Chunk struct {
	Content    string
	ChunkType  ChunkType
	ChunkIndex int
	Page       int
	FaultCode  string
}

const (
	semanticWindowSize    = 1000
	semanticWindowOverlap = 200
	pageWindowSize        = 1200
	pageWindowOverlap     = 220
	dedupSignatureLen     = 240
	minChunkLen           = 25
)

var (
	reFaultCodeLine = regexp.MustCompile(`(?i)^\d{3,4}[a-zA-Z]|(falha|erro|fault|code|c[oó]digo)\s*[:#-]?\s*\S+|^[A-Za-z]\s*-?\s*\d{2,4}`)
	reHeading       = regexp.MustCompile(`(?im)^(\d+(\.\d+)*\s+\S|[A-ZÀ-Ú ]{6,}$|#{1,6}\s|---\s*P[áa]gina\s+\d+|CAP[IÍ]TULO\s+\d+|SE[ÇC][ÃA]O\s+\d+|PARTE\s+\d+)`)
)

// page represents one extracted page's normalized text, keyed by page
// number, the unit the chunker operates on.
type page struct {
	Number int
	Text   string
}

// Chunker splits page blocks into the three chunk families and deduplicates.
type Chunker struct {
	seen map[string]bool
}

// New constructs a Chunker for a single ingestion (the dedup set is scoped
// per-ingestion per spec §4.4).
func New() *Chunker {
	return &Chunker{seen: map[string]bool{}}
}

// ChunkDocument splits the combined, already-normalized document text
// (marked with "--- Página N ---" boundaries) into chunks.
func (c *Chunker) ChunkDocument(combinedText string) []Chunk {
	pages := splitIntoPages(combinedText)

	var chunks []Chunk
	index := 0

	for _, p := range pages {
		for _, content := range c.extractFaultCodeChunks(p.Text) {
			if c.tryEmit(&chunks, &index, content.text, TypeFaultCode, p.Number, content.code) {
				continue
			}
		}
		for _, content := range c.extractSemanticChunks(p.Text) {
			c.tryEmit(&chunks, &index, content, TypeSemantic, p.Number, "")
		}
		for _, content := range slidingWindow(p.Text, pageWindowSize, pageWindowOverlap) {
			c.tryEmit(&chunks, &index, content, TypePageWindow, p.Number, "")
		}
	}

	if len(chunks) == 0 {
		for _, content := range slidingWindow(combinedText, pageWindowSize, pageWindowOverlap) {
			c.tryEmit(&chunks, &index, content, TypeFallback, 0, "")
		}
	}

	return chunks
}

func (c *Chunker) tryEmit(chunks *[]Chunk, index *int, content string, t ChunkType, page int, faultCode string) bool {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < minChunkLen {
		return false
	}
	sig := textutil.NormalizedPrefix(trimmed, dedupSignatureLen)
	if c.seen[sig] {
		return false
	}
	c.seen[sig] = true
	*chunks = append(*chunks, Chunk{
		Content:    trimmed,
		ChunkType:  t,
		ChunkIndex: *index,
		Page:       page,
		FaultCode:  faultCode,
	})
	*index++
	return true
}

var rePageMarker = regexp.MustCompile(`(?m)^--- P[áa]gina (\d+)(?: \(OCR\))? ---$`)

func splitIntoPages(text string) []page {
	matches := rePageMarker.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return []page{{Number: 0, Text: text}}
	}

	var pages []page
	for i, m := range matches {
		numStr := text[m[2]:m[3]]
		start := m[1]
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		num := parseIntSafe(numStr)
		pages = append(pages, page{Number: num, Text: strings.TrimSpace(text[start:end])})
	}
	return pages
}

func parseIntSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}

type faultCodeMatch struct {
	text string
	code string
}

// extractFaultCodeChunks finds lines matching a technical code pattern and
// emits 2-before/4-after context windows prefixed "CÓDIGO <code>", verbatim.
func (c *Chunker) extractFaultCodeChunks(pageText string) []faultCodeMatch {
	lines := strings.Split(pageText, "\n")
	var out []faultCodeMatch
	for i, line := range lines {
		if !reFaultCodeLine.MatchString(line) {
			continue
		}
		code := extractCode(line)
		start := max(0, i-2)
		end := min(len(lines), i+5)
		window := strings.Join(lines[start:end], "\n")
		out = append(out, faultCodeMatch{
			text: "CÓDIGO " + code + "\n" + window,
			code: code,
		})
	}
	return out
}

var reCodeToken = regexp.MustCompile(`\d{2,4}[A-Za-z]?|[A-Za-z]\s*-?\s*\d{2,4}`)

func extractCode(line string) string {
	m := reCodeToken.FindString(line)
	return strings.TrimSpace(m)
}

// extractSemanticChunks splits a page at heading-like boundaries, then
// windows each resulting section.
func (c *Chunker) extractSemanticChunks(pageText string) []string {
	sections := splitAtHeadings(pageText)
	var out []string
	for _, s := range sections {
		out = append(out, slidingWindow(s, semanticWindowSize, semanticWindowOverlap)...)
	}
	return out
}

func splitAtHeadings(text string) []string {
	idx := reHeading.FindAllStringIndex(text, -1)
	if len(idx) == 0 {
		return []string{text}
	}
	var sections []string
	start := 0
	for _, loc := range idx {
		if loc[0] > start {
			sections = append(sections, text[start:loc[0]])
		}
		start = loc[0]
	}
	sections = append(sections, text[start:])
	return sections
}

// slidingWindow windows text at the given size/overlap, aligning breakpoints
// to the nearest paragraph, line, or sentence boundary per spec §4.4.
func slidingWindow(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if len(text) <= size {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	var windows []string
	pos := 0
	for pos < len(text) {
		end := pos + size
		if end >= len(text) {
			windows = append(windows, text[pos:])
			break
		}
		end = alignBoundary(text, end)
		windows = append(windows, text[pos:end])
		next := end - overlap
		if next <= pos {
			next = end
		}
		pos = next
	}
	return windows
}

// alignBoundary nudges a cut point back to the nearest paragraph, line, or
// sentence boundary within a small lookback window.
func alignBoundary(text string, pos int) int {
	const lookback = 200
	from := max(0, pos-lookback)
	window := text[from:pos]

	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		return from + i + 2
	}
	if i := strings.LastIndex(window, "\n"); i >= 0 {
		return from + i + 1
	}
	if i := strings.LastIndex(window, ". "); i >= 0 {
		return from + i + 2
	}
	return pos
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
