// Package retrieval implements C7: query expansion, multi-query retrieval,
// diversity-capped selection, clarification routing, and answer assembly.
package retrieval

// Turn is one message in the conversation history passed alongside a query.
type Turn struct {
	Role string // "user" or "assistant"
	Text string
}

// Request is C7's input contract.
type Request struct {
	Question    string
	TopK        int
	BrandFilter string
	History     []Turn
}

// SourceRef is one attributed source in a response.
type SourceRef struct {
	Source     string  `json:"source"`
	Similarity float64 `json:"similarity"`
	Page       int     `json:"page,omitempty"`
}

// Clarification is returned instead of an answer when the selection is
// empty or the question needs a board/model before it can be answered
// safely, per spec §4.7 step 6.
type Clarification struct {
	Message        string   `json:"message"`
	IndexedSources []string `json:"indexedSources"`
	Questions      []string `json:"questions"`
}

// Response is C7's output contract.
type Response struct {
	Answer        string         `json:"answer,omitempty"`
	Sources       []SourceRef    `json:"sources,omitempty"`
	SearchTimeMs  int64          `json:"searchTime"`
	FromCache     bool           `json:"fromCache"`
	Clarification *Clarification `json:"clarification,omitempty"`
}
