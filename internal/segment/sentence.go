package segment

import (
	"strings"
	"unicode"
)

// sentenceTerminals are the characters that end a sentence across the
// supported language mix.
const sentenceTerminals = ".!?؟。！"

// abbreviations that end in a period without ending a sentence. Compared
// case-insensitively against the word preceding a period.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"sr": true, "jr": true, "st": true,
	"inc": true, "ltd": true, "corp": true, "co": true,
	"vs": true, "etc": true, "approx": true,
	"e.g": true, "i.e": true, "u.s": true, "u.k": true, "no": true,
}

// minSentenceWords is the default minimum for a fragment to count as a
// sentence; policies may impose stricter minimums.
const minSentenceWords = 3

// extractSentences returns the complete sentences in text, in order. A
// sentence ends at a terminal mark that does not follow a known abbreviation.
// Trailing text without a terminal is returned separately as the remainder.
func extractSentences(text string) (sentences []string, remainder string) {
	runes := []rune(text)
	start := 0
	for i, r := range runes {
		if !strings.ContainsRune(sentenceTerminals, r) {
			continue
		}
		if r == '.' && isAbbreviation(runes, i) {
			continue
		}
		// Swallow adjacent terminals ("?!", "...").
		end := i + 1
		if end < len(runes) && strings.ContainsRune(sentenceTerminals, runes[end]) {
			continue
		}
		s := strings.TrimSpace(string(runes[start:end]))
		if s != "" {
			sentences = append(sentences, s)
		}
		start = end
	}
	remainder = strings.TrimSpace(string(runes[start:]))
	return sentences, remainder
}

// isAbbreviation reports whether the period at runes[i] terminates a known
// abbreviation rather than a sentence.
func isAbbreviation(runes []rune, i int) bool {
	// Walk back over the word, keeping interior periods so "e.g." and
	// "U.S." match as units.
	start := i
	for start > 0 {
		r := runes[start-1]
		if unicode.IsLetter(r) || r == '.' && start-1 > 0 && unicode.IsLetter(runes[start-2]) {
			start--
			continue
		}
		break
	}
	word := strings.ToLower(string(runes[start:i]))
	if word == "" {
		return false
	}
	if abbreviations[word] {
		return true
	}
	// Single letters ("A.", initials) never end a sentence.
	return len([]rune(word)) == 1
}

// wordCount counts whitespace-separated words.
func wordCount(s string) int {
	return len(strings.Fields(s))
}

// endsWithTerminal reports whether s ends in a sentence terminal.
func endsWithTerminal(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}
	runes := []rune(trimmed)
	return strings.ContainsRune(sentenceTerminals, runes[len(runes)-1])
}
