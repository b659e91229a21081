package chat

import (
	"regexp"
	"strings"
)

// NoInformation is returned when the documents do not answer the question.
const NoInformation = "I don't have that information in the provided documents."

var leakPattern = regexp.MustCompile(`(?i)\n\s*(?:Question:|Context:|User:|Assistant:|Rules:|Answer based)`)

var genericIndicators = []string{
	"as an ai",
	"i'm an ai",
	"i can help you with",
	"here are some general",
	"typically,",
	"generally speaking",
	"in general,",
	"commonly,",
	"it is widely known",
	"based on my training",
	"from what i know",
}

const (
	minRepetitionLen = 100
	phraseLen        = 5
	maxPhraseRepeats = 2
)

// Clean post-processes a raw completion.
func Clean(text string) string {
	text = cutLeaks(text)
	text = truncateRepetition(text)
	text = rejectGeneric(text)
	if text == "" {
		return NoInformation
	}
	return text
}

// cutLeaks drops everything from the first echoed prompt marker onward.
func cutLeaks(text string) string {
	text = strings.TrimSpace(text)
	if loc := leakPattern.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}
	return strings.TrimSpace(text)
}

// truncateRepetition cuts answers that loop on a sentence or phrase.
func truncateRepetition(text string) string {
	if len(text) < minRepetitionLen {
		return text
	}

	sentences := strings.Split(text, ".")
	if len(sentences) > 3 {
		var tail []string
		for _, s := range sentences[len(sentences)-4 : len(sentences)-1] {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				tail = append(tail, s)
			}
		}
		if len(tail) == 3 && (tail[0] == tail[1] || tail[1] == tail[2] || allLowVariety(tail)) {
			return strings.Join(sentences[:len(sentences)/2], ". ") + "."
		}
	}

	words := strings.Fields(strings.ToLower(text))
	if len(words) <= 20 {
		return text
	}
	counts := make(map[string]int, len(words))
	phrases := make([]string, 0, len(words)-phraseLen)
	for i := 0; i+phraseLen < len(words); i++ {
		p := strings.Join(words[i:i+phraseLen], " ")
		phrases = append(phrases, p)
		counts[p]++
	}
	for i, p := range phrases {
		if counts[p] > maxPhraseRepeats {
			return strings.Join(words[:i+phraseLen], " ") + "."
		}
	}
	return text
}

// allLowVariety reports whether every sentence opens with fewer than three distinct words.
func allLowVariety(sentences []string) bool {
	for _, s := range sentences {
		words := strings.Fields(s)
		if len(words) > phraseLen {
			words = words[:phraseLen]
		}
		uniq := make(map[string]struct{}, len(words))
		for _, w := range words {
			uniq[w] = struct{}{}
		}
		if len(uniq) >= 3 {
			return false
		}
	}
	return true
}

// rejectGeneric replaces answers that fall back to general knowledge.
func rejectGeneric(text string) string {
	lower := strings.ToLower(text)
	for _, ind := range genericIndicators {
		if strings.Contains(lower, ind) {
			return NoInformation
		}
	}
	return text
}
