package assistant

import (
	"reflect"
	"strings"
	"testing"
)

func TestTokenizer_Tokenize(t *testing.T) {
	tok := NewTokenizer()

	tests := []struct {
		name       string
		input      string
		normalized string
		tokens     []string
	}{
		{"empty", "", "", nil},
		{"whitespace only", "   \t\n", "", nil},
		{"punctuation only", "?!...", "", nil},
		{"stopwords removed", "I want to add a laptop", "i want to add a laptop", []string{"laptop"}},
		{"mixed case and punctuation", "  Looking for a VINTAGE Lamp!! ", "looking for a vintage lamp", []string{"looking", "vintage", "lamp"}},
		{"short tokens dropped", "tv on a desk", "tv on a desk", []string{"desk"}},
		{"numbers kept when long enough", "iphone 13 for 300", "iphone 13 for 300", []string{"iphone", "300"}},
		{"unicode letters", "Café chair", "café chair", []string{"café", "chair"}},
		{"hyphen splits words", "like-new sofa", "like new sofa", []string{"new", "sofa"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := tok.Tokenize(tt.input)
			if ts.Normalized != tt.normalized {
				t.Errorf("Normalized = %q, want %q", ts.Normalized, tt.normalized)
			}
			if !reflect.DeepEqual(ts.Tokens, tt.tokens) {
				t.Errorf("Tokens = %v, want %v", ts.Tokens, tt.tokens)
			}
		})
	}
}

func TestTokenizer_RawKeepsSymbols(t *testing.T) {
	ts := NewTokenizer().Tokenize("  Sell my bike for $120 ")
	if ts.Raw != "sell my bike for $120" {
		t.Errorf("Raw = %q", ts.Raw)
	}
}

func TestTokenizer_WordsIncludeStopwords(t *testing.T) {
	ts := NewTokenizer().Tokenize("I want to sell")
	want := []string{"i", "want", "to", "sell"}
	if !reflect.DeepEqual(ts.Words, want) {
		t.Errorf("Words = %v, want %v", ts.Words, want)
	}
	if len(ts.Tokens) != 0 {
		t.Errorf("expected no significant tokens, got %v", ts.Tokens)
	}
}

func TestTokenizer_Idempotent(t *testing.T) {
	tok := NewTokenizer()
	inputs := []string{
		"I want to add a laptop",
		"Looking for a cheap mountain bike under $200",
		"sell my old IKEA bookcase, barely used!",
		"",
		"do you have any lego sets?",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			first := tok.Tokenize(in)
			again := tok.Tokenize(strings.Join(first.Tokens, " "))
			if !reflect.DeepEqual(first.Tokens, again.Tokens) {
				t.Errorf("tokenize(join(tokens)) = %v, want %v", again.Tokens, first.Tokens)
			}
			norm := tok.Tokenize(first.Normalized)
			if norm.Normalized != first.Normalized {
				t.Errorf("normalized not stable: %q vs %q", norm.Normalized, first.Normalized)
			}
		})
	}
}

func TestTokenizer_EmptySet(t *testing.T) {
	ts := NewTokenizer().Tokenize("   ")
	if len(ts.Tokens) != 0 || len(ts.Words) != 0 {
		t.Errorf("expected empty token set, got %+v", ts)
	}
}

func TestTokenizer_StopWords(t *testing.T) {
	tok := NewTokenizer()
	for _, w := range []string{"the", "under", "please", "sell"} {
		if !tok.isStopWord(w) {
			t.Errorf("expected %q to be a stopword", w)
		}
	}
	for _, w := range []string{"laptop", "bike", "find"} {
		if tok.isStopWord(w) {
			t.Errorf("expected %q not to be a stopword", w)
		}
	}
}
