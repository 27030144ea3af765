package retrieval

import (
	"regexp"
	"strings"
)

// boardTokens is the fixed catalog of board/model names recognized as exact,
// case-insensitive matches in a question. A hit means the question already
// names hardware precisely enough to skip clarification.
var boardTokens = []string{
	"LCBII", "LCB", "MCSS", "MCP", "MCB", "RBI", "GMUX", "PLA6001",
	"DCB", "PIB", "GCIOB", "MCP100", "URM", "CAVF", "GDCB",
}

// errorTokenPattern matches fault/error codes embedded in free text: a run of
// 1-4 uppercase letters followed, after an optional space or hyphen, by 1-4
// digits ("LCB-204"), an "E" prefix code
// ("E42"), or a bare 2-4 digit code.
var errorTokenPattern = regexp.MustCompile(`\b([A-Z]{1,4}\s?-?\s?\d{1,4}|E\s?\d{2,4}|\d{2,4})\b`)

const (
	errorTokenMinLen = 2
	errorTokenMaxLen = 8
	errorTokenMax    = 6

	// signalHistoryUserTurns is how many of the most recent user turns
	// feed signal extraction, per spec §4.7 step 2 ("From the question
	// and the last 12 user turns, extract: board codes, error codes").
	signalHistoryUserTurns = 12
)

// signalScanText concatenates the current question with the text of the
// last signalHistoryUserTurns user turns, so a board or error code named
// earlier in the conversation still narrows clarification routing even
// when the current question doesn't repeat it.
func signalScanText(question string, history []Turn) string {
	var userTurns []string
	for _, t := range history {
		if t.Role == "user" {
			userTurns = append(userTurns, t.Text)
		}
	}
	if len(userTurns) > signalHistoryUserTurns {
		userTurns = userTurns[len(userTurns)-signalHistoryUserTurns:]
	}

	var b strings.Builder
	for _, t := range userTurns {
		b.WriteString(t)
		b.WriteString(" ")
	}
	b.WriteString(question)
	return b.String()
}

var boardTokenPatterns = buildBoardTokenPatterns(boardTokens)

func buildBoardTokenPatterns(tokens []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(tokens))
	for i, tok := range tokens {
		patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(tok) + `\b`)
	}
	return patterns
}

// extractBoardTokens returns every boardTokens entry that appears as a
// whole-word, case-insensitive match in question or in the last
// signalHistoryUserTurns user turns, in catalog order.
func extractBoardTokens(question string, history []Turn) []string {
	text := signalScanText(question, history)
	var found []string
	for i, tok := range boardTokens {
		if boardTokenPatterns[i].MatchString(text) {
			found = append(found, tok)
		}
	}
	return found
}

// extractErrorTokens returns up to errorTokenMax normalized error/fault
// codes found in question or in the last signalHistoryUserTurns user
// turns: uppercased, whitespace stripped, deduplicated, length-bounded to
// [errorTokenMinLen, errorTokenMaxLen].
func extractErrorTokens(question string, history []Turn) []string {
	text := signalScanText(question, history)
	matches := errorTokenPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		norm := strings.ToUpper(strings.Join(strings.Fields(m), ""))
		norm = strings.ReplaceAll(norm, " ", "")
		if len(norm) < errorTokenMinLen || len(norm) > errorTokenMaxLen {
			continue
		}
		if seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
		if len(out) >= errorTokenMax {
			break
		}
	}
	return out
}

// hardwareTermPattern flags questions that reference physical wiring or
// control-panel details specific to one piece of hardware, the trigger for
// clarification routing when no board token narrows the question down.
var hardwareTermPattern = regexp.MustCompile(`(?i)tensão|alimenta|jumper|bypass|medição|conector|pino|pinagem|reset|drive|inversor`)

func looksHardwareSpecific(question string) bool {
	return hardwareTermPattern.MatchString(question)
}
