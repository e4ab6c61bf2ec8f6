package scraper

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

const MaxQueryLen = 120

var whitespaceRe = regexp.MustCompile(`\s+`)

var foldCaser = cases.Fold()

// NormalizeQuery canonicalizes a free-text item name into a bounded search
// string. Pure and idempotent: NormalizeQuery(NormalizeQuery(s)) == NormalizeQuery(s).
func NormalizeQuery(s string) string {
	cleaned := strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
	runes := []rune(cleaned)
	if len(runes) > MaxQueryLen {
		cleaned = strings.TrimSpace(string(runes[:MaxQueryLen]))
	}
	return cleaned
}

// Tokenize splits text into case-folded alphanumeric runs of length >= 3.
// Shorter runs carry no relevance signal and are dropped.
func Tokenize(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	var cur []rune
	flush := func() {
		if len(cur) >= 3 {
			tokens[foldCaser.String(string(cur))] = struct{}{}
		}
		cur = cur[:0]
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur = append(cur, r)
			continue
		}
		flush()
	}
	flush()
	return tokens
}

// RelevanceScore counts tokens shared between query and title.
func RelevanceScore(query, title string) int {
	qt := Tokenize(query)
	tt := Tokenize(title)
	if len(qt) == 0 || len(tt) == 0 {
		return 0
	}
	n := 0
	for tok := range qt {
		if _, ok := tt[tok]; ok {
			n++
		}
	}
	return n
}
