package chunker

import (
	"strings"
	"testing"
)

func TestChunkDocumentSplitsOnPageMarkers(t *testing.T) {
	doc := "--- Página 1 ---\n" + strings.Repeat("conteúdo da primeira página. ", 10) +
		"\n--- Página 2 ---\n" + strings.Repeat("conteúdo da segunda página. ", 10)

	c := New()
	chunks := c.ChunkDocument(doc)
	if len(chunks) == 0 {
		t.Fatalf("expected at least one chunk")
	}

	pages := map[int]bool{}
	for _, ch := range chunks {
		pages[ch.Page] = true
	}
	if !pages[1] || !pages[2] {
		t.Fatalf("expected chunks from both pages, got pages %v", pages)
	}
}

func TestChunkDocumentDeduplicatesAcrossFamilies(t *testing.T) {
	c := New()
	text := strings.Repeat("a", minChunkLen+5)
	chunks1 := c.ChunkDocument(text)
	if len(chunks1) != 1 {
		t.Fatalf("expected the semantic and page-window views of the same text to collapse into one chunk, got %d", len(chunks1))
	}
	chunks2 := c.ChunkDocument(text) // same Chunker instance, same dedup set
	total := len(chunks1) + len(chunks2)
	if len(chunks2) != 0 {
		t.Fatalf("expected the second identical document to be fully deduplicated, got %d chunks (total %d)", len(chunks2), total)
	}
}

func TestChunkDocumentExtractsFaultCode(t *testing.T) {
	doc := "--- Página 1 ---\n" +
		"texto antes\ntexto antes\n" +
		"falha: E042 sobre-corrente detectada\n" +
		strings.Repeat("linha de contexto adicional. ", 5)

	c := New()
	chunks := c.ChunkDocument(doc)

	var found bool
	for _, ch := range chunks {
		if ch.ChunkType == TypeFaultCode {
			found = true
			if !strings.Contains(ch.Content, "CÓDIGO") {
				t.Fatalf("expected fault-code chunk to be prefixed with CÓDIGO, got %q", ch.Content)
			}
		}
	}
	if !found {
		t.Fatalf("expected at least one fault-code chunk, got types %+v", chunkTypes(chunks))
	}
}

func TestChunkDocumentChunksTextWithoutPageMarkers(t *testing.T) {
	c := New()
	chunks := c.ChunkDocument(strings.Repeat("plain unstructured text without markers. ", 50))
	if len(chunks) == 0 {
		t.Fatalf("expected text without page markers to still produce chunks")
	}
}

func TestChunkDocumentEmptyInput(t *testing.T) {
	c := New()
	chunks := c.ChunkDocument("")
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(chunks))
	}
}

func TestSlidingWindowAlignsToBoundary(t *testing.T) {
	text := strings.Repeat("a", 900) + ".\n\n" + strings.Repeat("b", 900)
	windows := slidingWindow(text, 1000, 200)
	if len(windows) < 2 {
		t.Fatalf("expected at least 2 windows for text longer than the window size, got %d", len(windows))
	}
	if !strings.HasSuffix(windows[0], ".\n\n") {
		t.Fatalf("expected the first window to end at the paragraph boundary, got suffix %q", windows[0][len(windows[0])-5:])
	}
}

func TestSlidingWindowShortTextReturnsSingleWindow(t *testing.T) {
	windows := slidingWindow("short text", 1000, 200)
	if len(windows) != 1 || windows[0] != "short text" {
		t.Fatalf("expected a single unmodified window, got %v", windows)
	}
}

func chunkTypes(chunks []Chunk) []ChunkType {
	out := make([]ChunkType, len(chunks))
	for i, c := range chunks {
		out[i] = c.ChunkType
	}
	return out
}
