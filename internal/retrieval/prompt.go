package retrieval

import (
	"fmt"
	"strings"

	"github.com/adverant/nexus/manualqa/internal/vectorstore"
)

const maxHistoryTurns = 10
const maxAssistantTurnChars = 500
const maxEnrichedQueryChars = 700

// guardrailSystemPrompt instructs the model to answer strictly from the
// attributed manual excerpts it is given and to say so when the excerpts
// don't cover the question, rather than inventing hardware behavior.
const guardrailSystemPrompt = `You are a technical assistant answering questions about industrial hardware manuals.
Answer only using the excerpts provided below, each tagged with its source document.
If the excerpts don't contain enough information to answer confidently, say so plainly instead of guessing.
Always cite which source document(s) support your answer.
Keep answers focused and technical; do not pad with disclaimers beyond what correctness requires.`

// buildContextBlock assembles the "[FONTE: <source>] ... content ..."
// blocks the model sees, one per selected chunk, joined by a separator
// line so the model can tell excerpts apart.
func buildContextBlock(selected []vectorstore.ScoredChunk) string {
	blocks := make([]string, len(selected))
	for i, s := range selected {
		blocks[i] = fmt.Sprintf("[FONTE: %s]\n%s", s.Chunk.Metadata.Source, s.Chunk.Content)
	}
	return strings.Join(blocks, "\n---\n")
}

// buildHistoryBlock renders up to the last maxHistoryTurns conversation
// turns, truncating assistant turns (which tend to be long generated
// answers) to keep the prompt bounded; user turns are kept whole since
// they're typically short.
func buildHistoryBlock(history []Turn) string {
	turns := history
	if len(turns) > maxHistoryTurns {
		turns = turns[len(turns)-maxHistoryTurns:]
	}
	var lines []string
	for _, t := range turns {
		text := t.Text
		if t.Role == "assistant" && len(text) > maxAssistantTurnChars {
			text = text[:maxAssistantTurnChars] + "..."
		}
		lines = append(lines, fmt.Sprintf("%s: %s", t.Role, text))
	}
	return strings.Join(lines, "\n")
}

// buildUserMessage assembles the final message sent to the generative
// model: the history block (if any), the context excerpts, and the
// question itself.
func buildUserMessage(question string, history []Turn, context string) string {
	var b strings.Builder
	if hist := buildHistoryBlock(history); hist != "" {
		b.WriteString("Conversation so far:\n")
		b.WriteString(hist)
		b.WriteString("\n\n")
	}
	b.WriteString("Manual excerpts:\n")
	b.WriteString(context)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

// buildEnrichedQuery builds the primary embedding query for retrieval:
// the last maxHistoryTurns user turns, the current question, and a suffix
// of detected board/error signals, truncated to maxEnrichedQueryChars so a
// long conversation doesn't dilute the embedding with stale turns.
func buildEnrichedQuery(question string, history []Turn, boardTokens, errorTokens []string) string {
	var userTurns []string
	for _, t := range history {
		if t.Role == "user" {
			userTurns = append(userTurns, t.Text)
		}
	}
	if len(userTurns) > maxHistoryTurns {
		userTurns = userTurns[len(userTurns)-maxHistoryTurns:]
	}

	var b strings.Builder
	for _, t := range userTurns {
		b.WriteString(t)
		b.WriteString(" ")
	}
	b.WriteString(question)

	if len(boardTokens) > 0 || len(errorTokens) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(boardTokens, " "))
		b.WriteString(" ")
		b.WriteString(strings.Join(errorTokens, " "))
	}

	enriched := strings.TrimSpace(b.String())
	if len(enriched) > maxEnrichedQueryChars {
		enriched = enriched[:maxEnrichedQueryChars]
	}
	return enriched
}

// expansionInstruction is the prompt sent to the generative model to
// produce exactly two alternate phrasings of the enriched query, one per
// line, for the multi-query retrieval fan-out.
const expansionInstruction = `Given the technical support question below, produce exactly 2 alternate phrasings that a technician might use to search a manual for the same underlying problem. Use different vocabulary or phrasing than the original but keep the same intent. Reply with exactly 2 lines, one phrasing per line, with no numbering or extra commentary.

Question: %s`
