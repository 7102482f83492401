package assistant

import (
	"strings"

	"github.com/shubhsaxena/secondhand-assistant/internal/models"
)

const (
	ConfidenceCreate              = 0.85
	ConfidenceCreateUncategorized = 0.7
	ConfidenceFindHit             = 0.9
	ConfidenceFindMiss            = 0.6
	ConfidenceGeneral             = 0.5
)

type IntentClassifier struct {
	createLexicon []string
	findLexicon   []string
}

func NewIntentClassifier() *IntentClassifier {
	return &IntentClassifier{
		createLexicon: []string{
			"add", "sell", "selling", "list", "post", "create", "upload", "offload",
			"want to sell", "get rid of",
		},
		findLexicon: []string{
			"buy", "buying", "find", "search", "looking", "need", "show", "browse",
			"want to buy", "looking for", "do you have",
		},
	}
}

// Scores counts lexicon entries present in the query. Single words are
// matched against every word of the query, stopwords included; multi-word
// entries are matched as phrases against the normalized text.
func (ic *IntentClassifier) Scores(ts models.TokenSet) (create, find int) {
	words := make(map[string]bool, len(ts.Words))
	for _, w := range ts.Words {
		words[w] = true
	}
	padded := " " + ts.Normalized + " "

	count := func(lexicon []string) int {
		n := 0
		for _, entry := range lexicon {
			if strings.Contains(entry, " ") {
				if strings.Contains(padded, " "+entry+" ") {
					n++
				}
				continue
			}
			if words[entry] {
				n++
			}
		}
		return n
	}
	return count(ic.createLexicon), count(ic.findLexicon)
}

// Classify returns a provisional intent. Ties with a nonzero score go to
// FindProduct. FindProduct confidence is settled later by Finalize.
func (ic *IntentClassifier) Classify(ts models.TokenSet) models.Intent {
	create, find := ic.Scores(ts)

	switch {
	case create > find && create > 0:
		return models.Intent{Kind: models.IntentCreateListing, Confidence: ConfidenceCreate}
	case find > 0:
		return models.Intent{Kind: models.IntentFindProduct, Confidence: ConfidenceFindMiss}
	default:
		return models.Intent{Kind: models.IntentGeneral, Confidence: ConfidenceGeneral}
	}
}

// Vocabulary returns every single-word lexicon entry. These words carry
// intent, not product meaning, and are stripped from titles and search terms.
func (ic *IntentClassifier) Vocabulary() []string {
	var out []string
	for _, lex := range [][]string{ic.createLexicon, ic.findLexicon} {
		for _, entry := range lex {
			if !strings.Contains(entry, " ") {
				out = append(out, entry)
			}
		}
	}
	return out
}

// Finalize settles the confidence of a provisional intent once entities and
// the match outcome are known.
func Finalize(provisional models.Intent, entities models.Entities, match *models.MatchResult) models.Intent {
	final := provisional

	switch provisional.Kind {
	case models.IntentCreateListing:
		final.Confidence = ConfidenceCreate
		if !entities.CategoryFound {
			final.Confidence = ConfidenceCreateUncategorized
		}
	case models.IntentFindProduct:
		final.Confidence = ConfidenceFindMiss
		if match != nil && match.Count > 0 {
			final.Confidence = ConfidenceFindHit
		}
	default:
		final.Confidence = ConfidenceGeneral
	}

	if final.Confidence < 0 {
		final.Confidence = 0
	}
	if final.Confidence > 1 {
		final.Confidence = 1
	}
	return final
}
