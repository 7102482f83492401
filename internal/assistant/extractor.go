package assistant

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/shubhsaxena/secondhand-assistant/internal/models"
)

// Chooser picks an index in [0, n). It isolates the one random decision the
// extractor makes so tests can pin it.
type Chooser func(n int) int

func RandomChooser(n int) int {
	return rand.IntN(n)
}

const (
	fallbackTitle       = "Item"
	sustainabilityBlurb = "Buying second-hand keeps good things in use and out of landfill."
)

var conditionAdjectives = []string{"excellent", "good", "fair", "like-new", "barely-used"}

// amountExpr accepts plain amounts and thousands-separated ones ("1,200.50").
const amountExpr = `(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?`

var (
	currencyAmountPattern = regexp.MustCompile(`(?:[$£€]\s?(` + amountExpr + `))|(?:(` + amountExpr + `)\s?(?:dollars|usd|bucks|eur|gbp)\b)`)
	bareAmountPattern     = regexp.MustCompile(`\b` + amountExpr + `\b`)
)

type EntityExtractor struct {
	intentWords      map[string]bool
	choose           Chooser
	placeholderImage string
}

func NewEntityExtractor(intentWords []string, choose Chooser, placeholderImage string) *EntityExtractor {
	if choose == nil {
		choose = RandomChooser
	}
	words := make(map[string]bool, len(intentWords))
	for _, w := range intentWords {
		words[w] = true
	}
	return &EntityExtractor{
		intentWords:      words,
		choose:           choose,
		placeholderImage: placeholderImage,
	}
}

// Extract derives category, search terms and, for CreateListing, a listing
// draft. Category inference runs for every intent because the matcher
// falls back to it.
func (e *EntityExtractor) Extract(ts models.TokenSet, intent models.Intent) models.Entities {
	terms := e.significantTerms(ts.Tokens)
	category, found := InferCategory(ts.Tokens)

	ent := models.Entities{
		Category:      category,
		CategoryFound: found,
		SearchTerms:   terms,
	}

	if intent.Kind == models.IntentCreateListing {
		ent.Draft = e.draft(ts, terms, category)
	}
	return ent
}

func (e *EntityExtractor) draft(ts models.TokenSet, terms []string, category string) *models.ListingDraft {
	title := fallbackTitle
	if len(terms) > 0 {
		title = cases.Title(language.English).String(strings.Join(terms, " "))
	}

	return &models.ListingDraft{
		Title:       title,
		Category:    category,
		PriceRange:  InferPriceRange(ts.Raw, category),
		Description: e.describe(title),
		ImageURL:    e.placeholderImage,
		ImageQuery:  strings.Join(terms, " "),
	}
}

func (e *EntityExtractor) describe(title string) string {
	idx := e.choose(len(conditionAdjectives))
	if idx < 0 || idx >= len(conditionAdjectives) {
		idx = 0
	}
	return fmt.Sprintf("%s in %s condition. %s", title, conditionAdjectives[idx], sustainabilityBlurb)
}

// significantTerms drops intent-bearing words and bare numbers so they never
// leak into titles or product searches. Prices are read from the raw text.
func (e *EntityExtractor) significantTerms(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		if e.intentWords[t] || isNumeric(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// InferPriceRange reads explicit amounts from the query, preferring
// currency-marked ones. The smallest positive amount becomes the low bound
// and 1.5x of it the high bound. Without amounts the category default applies.
func InferPriceRange(raw, category string) models.PriceRange {
	amounts := currencyAmounts(raw)
	if len(amounts) == 0 {
		amounts = bareAmounts(raw)
	}

	low := 0.0
	for _, a := range amounts {
		if a > 0 && (low == 0 || a < low) {
			low = a
		}
	}
	if low == 0 {
		return DefaultPriceRange(category)
	}
	return models.PriceRange{Low: low, High: low * 1.5}
}

func currencyAmounts(raw string) []float64 {
	var out []float64
	for _, m := range currencyAmountPattern.FindAllStringSubmatch(raw, -1) {
		for _, g := range m[1:] {
			if g == "" {
				continue
			}
			if v, err := parseAmount(g); err == nil {
				out = append(out, v)
			}
		}
	}
	return out
}

func bareAmounts(raw string) []float64 {
	var out []float64
	for _, m := range bareAmountPattern.FindAllString(raw, -1) {
		if v, err := parseAmount(m); err == nil {
			out = append(out, v)
		}
	}
	return out
}

func parseAmount(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
