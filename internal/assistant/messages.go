package assistant

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shubhsaxena/secondhand-assistant/internal/models"
)

var generalSuggestions = []string{
	`Try "I want to sell my old laptop"`,
	`Try "Find a used bike under $100"`,
	`Try "Show me furniture"`,
}

func compose(intent models.Intent, ent models.Entities, match *models.MatchResult) (string, []string) {
	switch intent.Kind {
	case models.IntentCreateListing:
		d := ent.Draft
		return fmt.Sprintf("I'll help you add a %s to your listings!", d.Title), []string{
			fmt.Sprintf("Suggested category: %s", d.Category),
			fmt.Sprintf("Suggested price: %s", formatRange(d.PriceRange)),
			"Add a few clear photos so buyers can see the condition",
		}

	case models.IntentFindProduct:
		search := strings.Join(ent.SearchTerms, " ")
		if search == "" {
			search = ent.Category
		}
		if match != nil && match.Count > 0 {
			noun := "products"
			if match.Count == 1 {
				noun = "product"
			}
			return fmt.Sprintf("I found %d %s for you!", match.Count, noun), []string{
				fmt.Sprintf("Showing results for %q", search),
				fmt.Sprintf("Browse more in %s", ent.Category),
				"Add items to your wishlist to keep track of them",
			}
		}
		return fmt.Sprintf("I couldn't find anything matching %q right now.", search), []string{
			"Try broader or different keywords",
			fmt.Sprintf("Browse the %s category", ent.Category),
			"Check back later, new items are listed every day",
		}

	default:
		return "I can help you sell items you no longer need or find great second-hand deals.",
			append([]string(nil), generalSuggestions...)
	}
}

func formatRange(r models.PriceRange) string {
	return "$" + formatAmount(r.Low) + "–$" + formatAmount(r.High)
}

func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
