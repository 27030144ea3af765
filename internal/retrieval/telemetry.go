package retrieval

import (
	"sync"
	"time"
)

const telemetryCapacity = 500

// Event is one recorded query for the /api/telemetry/rag endpoint: enough
// to diagnose retrieval quality without storing the full answer text.
type Event struct {
	Timestamp      time.Time `json:"timestamp"`
	Question       string    `json:"question"`
	BrandFilter    string    `json:"brandFilter,omitempty"`
	BoardTokens    []string  `json:"boardTokens,omitempty"`
	ErrorTokens    []string  `json:"errorTokens,omitempty"`
	ExpandedQueries int      `json:"expandedQueries"`
	CandidateCount int       `json:"candidateCount"`
	SelectedCount  int       `json:"selectedCount"`
	Clarified      bool      `json:"clarified"`
	FromCache      bool      `json:"fromCache"`
	SearchTimeMs   int64     `json:"searchTimeMs"`
}

// telemetryRing is a fixed-capacity ring buffer of the most recent Events,
// bounded so long-running queries never grow memory unbounded.
type telemetryRing struct {
	mu     sync.Mutex
	events []Event
	next   int
	full   bool
}

func newTelemetryRing() *telemetryRing {
	return &telemetryRing{events: make([]Event, telemetryCapacity)}
}

func (r *telemetryRing) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[r.next] = e
	r.next = (r.next + 1) % telemetryCapacity
	if r.next == 0 {
		r.full = true
	}
}

// Recent returns up to telemetryCapacity events, most recent first.
func (r *telemetryRing) Recent() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ordered []Event
	if r.full {
		ordered = append(ordered, r.events[r.next:]...)
		ordered = append(ordered, r.events[:r.next]...)
	} else {
		ordered = append(ordered, r.events[:r.next]...)
	}

	out := make([]Event, len(ordered))
	for i, e := range ordered {
		out[len(ordered)-1-i] = e
	}
	return out
}
