package retrieval

import "testing"

func TestBuildClarificationSkipsSuppliedSignals(t *testing.T) {
	c := buildClarification([]string{"a.pdf", "b.pdf"}, []string{"LCB"}, nil)
	for _, q := range c.Questions {
		if q == clarificationCatalog[0].question {
			t.Fatalf("expected board question to be skipped when a board token is present")
		}
	}
}

func TestBuildClarificationCapsIndexedSources(t *testing.T) {
	sources := make([]string, 30)
	for i := range sources {
		sources[i] = "manual.pdf"
	}
	c := buildClarification(sources, nil, nil)
	if len(c.IndexedSources) != clarificationIndexCap {
		t.Fatalf("expected indexed sources capped at %d, got %d", clarificationIndexCap, len(c.IndexedSources))
	}
}

func TestBuildClarificationCapsQuestions(t *testing.T) {
	c := buildClarification(nil, nil, nil)
	if len(c.Questions) > 3 {
		t.Fatalf("expected at most 3 clarification questions, got %d", len(c.Questions))
	}
}
