package retrieval

const clarificationIndexCap = 20

// clarificationCatalog maps a missing signal to a follow-up question. When
// a question can't be answered confidently without more context, C7 walks
// this catalog and asks for whichever signals the question didn't already
// supply, per spec §4.7 step 6.
var clarificationCatalog = []struct {
	question   string
	needsBoard bool
	needsError bool
}{
	{question: "Which board or module is this (e.g. LCB, MCP, RBI)?", needsBoard: true},
	{question: "Is there a fault or error code shown on the display?", needsError: true},
	{question: "Which manual or product line does this relate to?"},
}

// buildClarification assembles a clarification response: the indexed
// sources available (capped so the list stays readable) plus one to three
// catalog questions, skipping any signal the question already supplied.
func buildClarification(indexedSources []string, boardTokens, errorTokens []string) *Clarification {
	sources := indexedSources
	if len(sources) > clarificationIndexCap {
		sources = sources[:clarificationIndexCap]
	}

	var questions []string
	for _, c := range clarificationCatalog {
		if c.needsBoard && len(boardTokens) > 0 {
			continue
		}
		if c.needsError && len(errorTokens) > 0 {
			continue
		}
		questions = append(questions, c.question)
	}
	if len(questions) > 3 {
		questions = questions[:3]
	}

	return &Clarification{
		Message:        "I need a bit more detail to find the right section of the manual.",
		IndexedSources: sources,
		Questions:      questions,
	}
}
