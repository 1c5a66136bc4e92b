// Package punctuate restores punctuation to raw recognizer output.
//
// Speech recognizers deliver unpunctuated word streams; TTS providers read
// them in one flat breath. Restore adds clause commas, filler-phrase pauses,
// and a terminal mark using cheap lexical cues, so synthesized speech gets
// sentence-shaped prosody without another model call on the hot path.
package punctuate

import "strings"

// clauseConjunctions get a comma inserted before them when none is present.
var clauseConjunctions = map[string]bool{
	"however":  true,
	"although": true,
	"because":  true,
	"while":    true,
	"after":    true,
	"before":   true,
	"but":      true,
}

// longClauseWords is the clause length at which "and" also earns a comma.
const longClauseWords = 7

// fillerPhrases get a trailing comma so the voice pauses after them.
// Ordered longest-first so multi-word fillers match before their prefixes.
var fillerPhrases = []string{
	"you know",
	"i think",
	"i mean",
	"vous savez",
	"je pense",
	"euh",
	"uhm",
	"hmm",
}

// questionStarters are WH-/modal words that mark a leading question.
var questionStarters = map[string]bool{
	"what": true, "where": true, "when": true, "why": true, "who": true,
	"how": true, "which": true, "whose": true,
	"is": true, "are": true, "was": true, "were": true,
	"do": true, "does": true, "did": true,
	"can": true, "could": true, "will": true, "would": true,
	"should": true, "shall": true, "may": true, "might": true,
}

// exclamationWords anywhere in the text suggest an exclamation mark.
var exclamationWords = map[string]bool{
	"wow": true, "amazing": true, "incredible": true, "great": true,
	"awesome": true, "fantastic": true, "excellent": true, "congratulations": true,
}

// closerWords ending a short fragment make it read as complete.
var closerWords = map[string]bool{
	"today": true, "tomorrow": true, "yesterday": true, "soon": true,
	"now": true, "later": true, "everyone": true, "everybody": true,
}

// terminalMarks are the characters treated as sentence terminals.
const terminalMarks = ".!?؟。！"

// Restore returns text with commas and a terminal mark added where the
// heuristics apply. isFinal relaxes the completeness requirement: finals
// always receive a terminal, partials only when they look complete.
//
// Restore never removes characters from text.
func Restore(text string, isFinal bool) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return text
	}

	out := insertClauseCommas(trimmed)
	out = insertFillerCommas(out)

	if hasTerminal(out) {
		return out
	}
	if isFinal || looksComplete(out) {
		out += terminalFor(out)
	}
	return out
}

// hasTerminal reports whether s ends in a sentence terminal.
func hasTerminal(s string) bool {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) == 0 {
		return false
	}
	return strings.ContainsRune(terminalMarks, runes[len(runes)-1])
}

// insertClauseCommas adds a comma before clause conjunctions that don't
// already follow one.
func insertClauseCommas(s string) string {
	words := strings.Fields(s)
	if len(words) < 3 {
		return s
	}

	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			lower := strings.ToLower(strings.Trim(w, ",.!?"))
			prev := words[i-1]
			prevPunct := strings.HasSuffix(prev, ",") || hasTerminal(prev)

			needsComma := clauseConjunctions[lower] ||
				(lower == "and" && i >= longClauseWords)
			if needsComma && !prevPunct {
				b.WriteString(",")
			}
			b.WriteString(" ")
		}
		b.WriteString(w)
	}
	return b.String()
}

// insertFillerCommas appends a comma after known filler phrases.
func insertFillerCommas(s string) string {
	lower := strings.ToLower(s)
	for _, filler := range fillerPhrases {
		idx := strings.Index(lower, filler)
		if idx < 0 {
			continue
		}
		end := idx + len(filler)
		// Phrase boundary on both sides, and no punctuation already there.
		if idx > 0 && lower[idx-1] != ' ' {
			continue
		}
		if end < len(s) && s[end] != ' ' {
			continue
		}
		if end < len(s) && (s[end] == ',' || strings.ContainsRune(terminalMarks, rune(s[end]))) {
			continue
		}
		if end >= len(s) {
			continue // trailing filler gets the terminal instead
		}
		s = s[:end] + "," + s[end:]
		lower = strings.ToLower(s)
	}
	return s
}

// looksComplete reports whether an unterminated partial reads as a full
// sentence: long enough, or medium-length with a subject+verb shape, or a
// short fragment ending in a closer word.
func looksComplete(s string) bool {
	words := strings.Fields(s)
	n := len(words)
	switch {
	case n >= 7:
		return true
	case n >= 6:
		return hasSubjectVerbShape(words)
	case n >= 4:
		last := strings.ToLower(strings.Trim(words[n-1], ",.!?"))
		return closerWords[last]
	}
	return false
}

// hasSubjectVerbShape is a crude subject+verb check: a pronoun or article
// early in the sentence followed later by a common verb form.
func hasSubjectVerbShape(words []string) bool {
	subjects := map[string]bool{
		"i": true, "we": true, "you": true, "he": true, "she": true,
		"it": true, "they": true, "the": true, "a": true, "this": true, "that": true,
	}
	verbs := map[string]bool{
		"is": true, "are": true, "was": true, "were": true, "have": true,
		"has": true, "had": true, "will": true, "can": true, "do": true,
		"does": true, "did": true, "went": true, "said": true, "want": true,
	}

	subjectAt := -1
	for i, w := range words {
		lower := strings.ToLower(strings.Trim(w, ",.!?"))
		if subjectAt < 0 && subjects[lower] && i <= 2 {
			subjectAt = i
			continue
		}
		if subjectAt >= 0 && verbs[lower] {
			return true
		}
	}
	return false
}

// terminalFor picks the terminal mark from lexical cues: a leading WH-/modal
// word makes a question, an exclamation word anywhere makes an exclamation,
// everything else is a statement.
func terminalFor(s string) string {
	words := strings.Fields(strings.ToLower(s))
	if len(words) == 0 {
		return "."
	}
	first := strings.Trim(words[0], ",")
	if questionStarters[first] {
		return "?"
	}
	for _, w := range words {
		if exclamationWords[strings.Trim(w, ",.!?")] {
			return "!"
		}
	}
	return "."
}
