package assistant

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shubhsaxena/secondhand-assistant/internal/models"
)

// minTokenLen is exclusive: tokens of this many runes or fewer are dropped.
const minTokenLen = 2

type Tokenizer struct {
	stopWords map[string]bool
}

func NewTokenizer() *Tokenizer {
	stops := map[string]bool{
		// articles, conjunctions
		"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
		"nor": true, "yet": true, "so": true,
		// pronouns
		"i": true, "me": true, "my": true, "mine": true, "you": true, "your": true,
		"yours": true, "he": true, "she": true, "it": true, "its": true, "we": true,
		"our": true, "they": true, "them": true, "their": true, "this": true,
		"that": true, "these": true, "those": true, "someone": true, "something": true,
		// prepositions, auxiliaries
		"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
		"with": true, "by": true, "from": true, "into": true, "is": true, "are": true,
		"was": true, "were": true, "be": true, "been": true, "am": true, "do": true,
		"does": true, "did": true, "has": true, "have": true, "had": true,
		"will": true, "would": true, "can": true, "could": true, "should": true,
		// price cues
		"under": true, "below": true, "less": true, "than": true, "around": true,
		"about": true, "over": true, "upto": true, "dollar": true, "dollars": true,
		"usd": true, "bucks": true, "eur": true, "euro": true, "euros": true,
		"gbp": true, "pounds": true,
		// domain filler
		"want": true, "wanna": true, "buy": true, "buying": true, "sell": true,
		"selling": true, "add": true, "please": true, "like": true, "some": true,
		"any": true, "get": true, "just": true,
	}
	return &Tokenizer{stopWords: stops}
}

// Tokenize lower-cases text, splits it on non-alphanumeric boundaries and drops
// stopwords and short tokens. It is total: empty input yields an empty set.
func (t *Tokenizer) Tokenize(text string) models.TokenSet {
	raw := strings.ToLower(strings.TrimSpace(text))
	words := strings.FieldsFunc(raw, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	ts := models.TokenSet{
		Raw:        raw,
		Normalized: strings.Join(words, " "),
		Words:      words,
	}

	for _, w := range words {
		if utf8.RuneCountInString(w) <= minTokenLen || t.isStopWord(w) {
			continue
		}
		ts.Tokens = append(ts.Tokens, w)
	}
	return ts
}

func (t *Tokenizer) isStopWord(w string) bool {
	return t.stopWords[w]
}
