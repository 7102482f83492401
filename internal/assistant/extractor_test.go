package assistant

import (
	"reflect"
	"strings"
	"testing"

	"github.com/shubhsaxena/secondhand-assistant/internal/models"
)

const testPlaceholder = "https://img.example/placeholder.png"

func newTestExtractor(choice int) *EntityExtractor {
	return NewEntityExtractor(NewIntentClassifier().Vocabulary(), func(int) int { return choice }, testPlaceholder)
}

func extract(ext *EntityExtractor, text string) models.Entities {
	ts := NewTokenizer().Tokenize(text)
	intent := NewIntentClassifier().Classify(ts)
	return ext.Extract(ts, intent)
}

func TestEntityExtractor_AddLaptop(t *testing.T) {
	ent := extract(newTestExtractor(1), "I want to add a laptop")

	if ent.Category != "Computers & Laptops" || !ent.CategoryFound {
		t.Fatalf("category = %q (found=%v), want Computers & Laptops", ent.Category, ent.CategoryFound)
	}
	d := ent.Draft
	if d == nil {
		t.Fatal("expected a listing draft")
	}
	if d.Title != "Laptop" {
		t.Errorf("title = %q, want Laptop", d.Title)
	}
	if d.PriceRange != (models.PriceRange{Low: 200, High: 1500}) {
		t.Errorf("price range = %+v, want 200-1500", d.PriceRange)
	}
	want := "Laptop in good condition. " + sustainabilityBlurb
	if d.Description != want {
		t.Errorf("description = %q, want %q", d.Description, want)
	}
	if d.ImageURL != testPlaceholder {
		t.Errorf("image url = %q", d.ImageURL)
	}
	if d.ImageQuery != "laptop" {
		t.Errorf("image query = %q", d.ImageQuery)
	}
}

func TestEntityExtractor_DraftFromExplicitPrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		title    string
		category string
		price    models.PriceRange
	}{
		{"currency prefix", "sell my iphone 13 for $300", "Iphone", "Mobile Phones", models.PriceRange{Low: 300, High: 450}},
		{"bare amount", "selling old chair 40", "Old Chair", "Furniture", models.PriceRange{Low: 40, High: 60}},
		{"currency suffix wins over model number", "sell ps5 console 350 dollars", "Ps5 Console", "Electronics", models.PriceRange{Low: 350, High: 525}},
		{"smallest amount is low", "sell a blender for £25 or £40", "Blender", "Home & Garden", models.PriceRange{Low: 25, High: 37.5}},
		{"thousands separator", "sell my macbook for $1,200", "Macbook", "Computers & Laptops", models.PriceRange{Low: 1200, High: 1800}},
		{"headphones are electronics", "sell my headphones for $80", "Headphones", "Electronics", models.PriceRange{Low: 80, High: 120}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ent := extract(newTestExtractor(0), tt.input)
			if ent.Draft == nil {
				t.Fatal("expected draft")
			}
			if ent.Draft.Title != tt.title {
				t.Errorf("title = %q, want %q", ent.Draft.Title, tt.title)
			}
			if ent.Category != tt.category {
				t.Errorf("category = %q, want %q", ent.Category, tt.category)
			}
			if ent.Draft.PriceRange != tt.price {
				t.Errorf("price = %+v, want %+v", ent.Draft.PriceRange, tt.price)
			}
		})
	}
}

func TestEntityExtractor_UncategorizedDraft(t *testing.T) {
	ent := extract(newTestExtractor(0), "sell something")

	if ent.CategoryFound {
		t.Error("expected category not found")
	}
	if ent.Category != CategoryOther {
		t.Errorf("category = %q, want Other", ent.Category)
	}
	if ent.Draft.Title != fallbackTitle {
		t.Errorf("title = %q, want fallback", ent.Draft.Title)
	}
	if ent.Draft.PriceRange != otherPriceRange {
		t.Errorf("price = %+v, want %+v", ent.Draft.PriceRange, otherPriceRange)
	}
}

func TestEntityExtractor_ChooserOutOfRange(t *testing.T) {
	for _, choice := range []int{-1, len(conditionAdjectives), 99} {
		ent := extract(newTestExtractor(choice), "sell my desk")
		if !strings.Contains(ent.Draft.Description, "in excellent condition") {
			t.Errorf("chooser %d: description %q should fall back to first adjective", choice, ent.Draft.Description)
		}
	}
}

func TestEntityExtractor_ChooserBounds(t *testing.T) {
	var seen int
	ext := NewEntityExtractor(nil, func(n int) int {
		seen = n
		return n - 1
	}, "")
	ent := ext.Extract(NewTokenizer().Tokenize("sofa"), models.Intent{Kind: models.IntentCreateListing})
	if seen != len(conditionAdjectives) {
		t.Errorf("chooser asked for %d options, want %d", seen, len(conditionAdjectives))
	}
	if !strings.Contains(ent.Draft.Description, conditionAdjectives[len(conditionAdjectives)-1]) {
		t.Errorf("description %q should use last adjective", ent.Draft.Description)
	}
}

func TestEntityExtractor_FindHasNoDraft(t *testing.T) {
	ent := extract(newTestExtractor(0), "find me a mountain bike under $100")

	if ent.Draft != nil {
		t.Errorf("expected no draft for find intent, got %+v", ent.Draft)
	}
	want := []string{"mountain", "bike"}
	if !reflect.DeepEqual(ent.SearchTerms, want) {
		t.Errorf("search terms = %v, want %v", ent.SearchTerms, want)
	}
	if ent.Category != "Sports & Outdoors" {
		t.Errorf("category = %q", ent.Category)
	}
}

func TestEntityExtractor_GeneralStillInfersCategory(t *testing.T) {
	ent := extract(newTestExtractor(0), "tell me about couches")
	if ent.Draft != nil {
		t.Error("expected no draft for general intent")
	}
	if ent.Category != "Furniture" {
		t.Errorf("category = %q, want Furniture", ent.Category)
	}
}

func TestInferPriceRange_LowNeverAboveHigh(t *testing.T) {
	inputs := []string{
		"", "sell for $0", "sell for $0.99", "1 2 3", "$1000000", "laptop 15 inch 2019 for 250 usd",
		"sell bike", "price 12.50",
	}
	for _, category := range Categories() {
		for _, in := range inputs {
			r := InferPriceRange(in, category)
			if r.Low > r.High {
				t.Errorf("InferPriceRange(%q, %q) = %+v: low above high", in, category, r)
			}
			if r.Low <= 0 {
				t.Errorf("InferPriceRange(%q, %q) = %+v: non-positive low", in, category, r)
			}
		}
	}
}

func TestInferPriceRange_ThousandsSeparators(t *testing.T) {
	tests := []struct {
		raw  string
		want models.PriceRange
	}{
		{"sell my macbook for $1,200", models.PriceRange{Low: 1200, High: 1800}},
		{"piano 2,500 dollars", models.PriceRange{Low: 2500, High: 3750}},
		{"$1,250.50 firm", models.PriceRange{Low: 1250.5, High: 1875.75}},
		{"asking 1,500 or best offer", models.PriceRange{Low: 1500, High: 2250}},
		{"$1200", models.PriceRange{Low: 1200, High: 1800}},
	}

	for _, tt := range tests {
		if got := InferPriceRange(tt.raw, CategoryOther); got != tt.want {
			t.Errorf("InferPriceRange(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		tokens []string
		want   string
		found  bool
	}{
		{[]string{"laptop"}, "Computers & Laptops", true},
		{[]string{"tablet"}, "Computers & Laptops", true},
		{[]string{"notebook"}, "Computers & Laptops", true},
		{[]string{"lamps"}, "Home & Garden", true},
		{[]string{"vintage", "table"}, "Furniture", true},
		{[]string{"novel"}, "Books", true},
		{[]string{"lego"}, "Toys & Games", true},
		{[]string{"sofa", "iphone"}, "Mobile Phones", true},
		{[]string{"headphones"}, "Electronics", true},
		{[]string{"wireless", "earphones"}, "Electronics", true},
		{[]string{"tablets"}, "Computers & Laptops", true},
		{[]string{"desktops"}, "Computers & Laptops", true},
		{[]string{"bookcases"}, "Furniture", true},
		{[]string{"smartphones"}, "Mobile Phones", true},
		{[]string{"widget"}, CategoryOther, false},
		{nil, CategoryOther, false},
	}

	for _, tt := range tests {
		got, found := InferCategory(tt.tokens)
		if got != tt.want || found != tt.found {
			t.Errorf("InferCategory(%v) = (%q, %v), want (%q, %v)", tt.tokens, got, found, tt.want, tt.found)
		}
	}
}

func TestCategories_OtherLast(t *testing.T) {
	cats := Categories()
	if cats[len(cats)-1] != CategoryOther {
		t.Errorf("expected Other last, got %v", cats)
	}
	if len(cats) != len(categoryRules)+1 {
		t.Errorf("expected %d categories, got %d", len(categoryRules)+1, len(cats))
	}
}
