// Package tokenizer normalises free-text queries into stemmed search tokens.
// It lower-cases input, splits on runs of non-word characters, removes stop
// words and single-character fragments, and Porter-stems every survivor. The
// unstemmed surface form is retained alongside each stem for display
// highlighting.
package tokenizer

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "above": {}, "after": {}, "again": {}, "all": {},
	"also": {}, "am": {}, "an": {}, "and": {}, "any": {}, "are": {},
	"as": {}, "at": {}, "be": {}, "because": {}, "been": {}, "before": {},
	"being": {}, "below": {}, "between": {}, "both": {}, "but": {}, "by": {},
	"can": {}, "did": {}, "do": {}, "does": {}, "doing": {}, "down": {},
	"during": {}, "each": {}, "few": {}, "for": {}, "from": {}, "further": {},
	"had": {}, "has": {}, "have": {}, "having": {}, "he": {}, "her": {},
	"here": {}, "him": {}, "his": {}, "how": {}, "if": {}, "in": {},
	"into": {}, "is": {}, "it": {}, "its": {}, "just": {}, "more": {},
	"most": {}, "my": {}, "near": {}, "no": {}, "not": {}, "now": {},
	"of": {}, "off": {}, "on": {}, "once": {}, "only": {}, "or": {},
	"other": {}, "our": {}, "out": {}, "over": {}, "own": {}, "same": {},
	"she": {}, "so": {}, "some": {}, "such": {}, "than": {}, "that": {},
	"the": {}, "their": {}, "them": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "those": {}, "through": {}, "to": {}, "under": {},
	"until": {}, "up": {}, "very": {}, "was": {}, "we": {}, "were": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "while": {}, "who": {},
	"why": {}, "will": {}, "with": {}, "you": {}, "your": {},
}

// Token pairs the raw surface form of a query word with its stem.
type Token struct {
	Raw  string
	Stem string
}

// Tokenize normalises a raw query into (raw, stem) pairs. An empty or
// all-stop-word query yields zero tokens.
func Tokenize(query string) []Token {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	tokens := make([]Token, 0, len(words))
	for _, word := range words {
		if len(word) < 2 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		tokens = append(tokens, Token{Raw: word, Stem: english.Stem(word, true)})
	}
	return tokens
}

// Stems returns the distinct stems of the given tokens, in first-seen order.
// Its length is the distinct-stem count the all-tokens bonus keys on.
func Stems(tokens []Token) []string {
	seen := make(map[string]struct{}, len(tokens))
	stems := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, dup := seen[tok.Stem]; dup {
			continue
		}
		seen[tok.Stem] = struct{}{}
		stems = append(stems, tok.Stem)
	}
	return stems
}
