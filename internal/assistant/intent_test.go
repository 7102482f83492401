package assistant

import (
	"testing"

	"github.com/shubhsaxena/secondhand-assistant/internal/models"
)

func classify(text string) models.Intent {
	return NewIntentClassifier().Classify(NewTokenizer().Tokenize(text))
}

func TestIntentClassifier_Classify(t *testing.T) {
	tests := []struct {
		input string
		want  models.IntentKind
	}{
		{"I want to add a laptop", models.IntentCreateListing},
		{"I want to sell my bike", models.IntentCreateListing},
		{"get rid of an old sofa", models.IntentCreateListing},
		{"post my camera", models.IntentCreateListing},
		{"looking for a sofa", models.IntentFindProduct},
		{"I want to buy a lamp", models.IntentFindProduct},
		{"do you have books", models.IntentFindProduct},
		{"show me phones", models.IntentFindProduct},
		{"hello there", models.IntentGeneral},
		{"", models.IntentGeneral},
		{"laptop", models.IntentGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := classify(tt.input)
			if got.Kind != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.input, got.Kind, tt.want)
			}
		})
	}
}

func TestIntentClassifier_TieGoesToFind(t *testing.T) {
	ic := NewIntentClassifier()
	ts := NewTokenizer().Tokenize("sell or buy")

	create, find := ic.Scores(ts)
	if create != find || create == 0 {
		t.Fatalf("expected a nonzero tie, got create=%d find=%d", create, find)
	}
	if got := ic.Classify(ts); got.Kind != models.IntentFindProduct {
		t.Errorf("expected FindProduct on tie, got %v", got.Kind)
	}
}

func TestIntentClassifier_PhraseScoring(t *testing.T) {
	ic := NewIntentClassifier()
	create, find := ic.Scores(NewTokenizer().Tokenize("I want to sell"))
	if create != 2 {
		t.Errorf("expected sell + 'want to sell' = 2, got %d", create)
	}
	if find != 0 {
		t.Errorf("expected no find score, got %d", find)
	}
}

func TestIntentClassifier_ProvisionalConfidence(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"sell my desk", ConfidenceCreate},
		{"find a desk", ConfidenceFindMiss},
		{"what is this", ConfidenceGeneral},
	}
	for _, tt := range tests {
		if got := classify(tt.input).Confidence; got != tt.want {
			t.Errorf("Classify(%q).Confidence = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestIntentClassifier_Vocabulary(t *testing.T) {
	vocab := NewIntentClassifier().Vocabulary()
	seen := make(map[string]bool)
	for _, w := range vocab {
		seen[w] = true
		for _, r := range w {
			if r == ' ' {
				t.Errorf("vocabulary should only hold single words, got %q", w)
			}
		}
	}
	for _, w := range []string{"sell", "find", "looking", "upload"} {
		if !seen[w] {
			t.Errorf("expected %q in vocabulary", w)
		}
	}
}

func TestFinalize(t *testing.T) {
	create := models.Intent{Kind: models.IntentCreateListing, Confidence: ConfidenceCreate}
	find := models.Intent{Kind: models.IntentFindProduct, Confidence: ConfidenceFindMiss}
	general := models.Intent{Kind: models.IntentGeneral, Confidence: ConfidenceGeneral}

	hit := models.NewMatchResult([]models.ProductRef{{ID: "p1", Available: true}}, PhaseText)
	miss := models.NewMatchResult(nil, PhaseNone)

	tests := []struct {
		name     string
		intent   models.Intent
		entities models.Entities
		match    *models.MatchResult
		want     float64
	}{
		{"create with category", create, models.Entities{CategoryFound: true}, nil, 0.85},
		{"create without category", create, models.Entities{Category: CategoryOther}, nil, 0.7},
		{"find with matches", find, models.Entities{}, hit, 0.9},
		{"find without matches", find, models.Entities{}, miss, 0.6},
		{"find with nil match", find, models.Entities{}, nil, 0.6},
		{"general", general, models.Entities{}, nil, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Finalize(tt.intent, tt.entities, tt.match)
			if got.Confidence != tt.want {
				t.Errorf("confidence = %v, want %v", got.Confidence, tt.want)
			}
			if got.Kind != tt.intent.Kind {
				t.Errorf("kind changed from %v to %v", tt.intent.Kind, got.Kind)
			}
		})
	}
}

func TestClassify_ConfidenceInUnitRange(t *testing.T) {
	tok := NewTokenizer()
	ic := NewIntentClassifier()
	ext := NewEntityExtractor(ic.Vocabulary(), func(int) int { return 0 }, "")

	inputs := []string{
		"", "   ", "sell sell sell", "buy buy find search", "want to sell want to buy",
		"I want to add a laptop", "hello", "€€€", "12345", "looking for a bike under $50",
	}
	for _, in := range inputs {
		ts := tok.Tokenize(in)
		intent := ic.Classify(ts)
		ent := ext.Extract(ts, intent)
		final := Finalize(intent, ent, models.NewMatchResult(nil, PhaseNone))
		if final.Confidence < 0 || final.Confidence > 1 {
			t.Errorf("confidence for %q out of range: %v", in, final.Confidence)
		}
	}
}
