package assistant

import (
	"slices"
	"strings"

	"github.com/shubhsaxena/secondhand-assistant/internal/models"
)

const CategoryOther = "Other"

type CategoryRule struct {
	Name         string
	Keywords     []string
	DefaultPrice models.PriceRange
}

// Rule order breaks ties: an exact keyword hit goes to the first rule that
// lists it, and equal-length substring hits go to the earlier rule.
var categoryRules = []CategoryRule{
	{
		Name:         "Computers & Laptops",
		Keywords:     []string{"laptop", "computer", "macbook", "notebook", "desktop", "tablet", "ipad", "chromebook", "monitor", "keyboard"},
		DefaultPrice: models.PriceRange{Low: 200, High: 1500},
	},
	{
		Name:         "Mobile Phones",
		Keywords:     []string{"phone", "smartphone", "iphone", "android", "galaxy", "pixel", "mobile"},
		DefaultPrice: models.PriceRange{Low: 100, High: 1000},
	},
	{
		Name:         "Electronics",
		Keywords:     []string{"camera", "headphone", "earbuds", "earphone", "speaker", "television", "console", "playstation", "xbox", "nintendo", "kindle", "ereader", "drone", "watch"},
		DefaultPrice: models.PriceRange{Low: 50, High: 800},
	},
	{
		Name:         "Furniture",
		Keywords:     []string{"chair", "table", "sofa", "couch", "desk", "bed", "wardrobe", "dresser", "shelf", "bookcase", "cabinet", "stool"},
		DefaultPrice: models.PriceRange{Low: 50, High: 500},
	},
	{
		Name:         "Home & Garden",
		Keywords:     []string{"lamp", "light", "led", "bulb", "lighting", "rug", "curtain", "plant", "garden", "kitchen", "blender", "microwave", "kettle", "vacuum"},
		DefaultPrice: models.PriceRange{Low: 10, High: 200},
	},
	{
		Name:         "Clothing & Accessories",
		Keywords:     []string{"shirt", "dress", "jacket", "coat", "jeans", "shoes", "sneakers", "boots", "bag", "handbag", "sweater", "hoodie"},
		DefaultPrice: models.PriceRange{Low: 10, High: 150},
	},
	{
		Name:         "Books",
		Keywords:     []string{"book", "novel", "textbook", "comic", "magazine"},
		DefaultPrice: models.PriceRange{Low: 5, High: 50},
	},
	{
		Name:         "Sports & Outdoors",
		Keywords:     []string{"bike", "bicycle", "tent", "skateboard", "treadmill", "dumbbell", "weights", "golf", "tennis", "football", "yoga", "camping"},
		DefaultPrice: models.PriceRange{Low: 20, High: 300},
	},
	{
		Name:         "Toys & Games",
		Keywords:     []string{"toy", "lego", "puzzle", "doll", "boardgame", "game"},
		DefaultPrice: models.PriceRange{Low: 5, High: 100},
	},
}

var otherPriceRange = models.PriceRange{Low: 10, High: 100}

// InferCategory resolves tokens to a product category. Exact keyword hits
// win over substring hits; among substring hits the longest keyword wins,
// so "headphones" reads as "headphone" rather than "phone". The boolean is
// false when nothing matched and the result is CategoryOther.
func InferCategory(tokens []string) (string, bool) {
	for _, rule := range categoryRules {
		for _, tok := range tokens {
			if slices.Contains(rule.Keywords, tok) {
				return rule.Name, true
			}
		}
	}

	best, bestLen := "", 0
	for _, rule := range categoryRules {
		for _, tok := range tokens {
			for _, kw := range rule.Keywords {
				if len(kw) > bestLen && strings.Contains(tok, kw) {
					best, bestLen = rule.Name, len(kw)
				}
			}
		}
	}
	if bestLen > 0 {
		return best, true
	}
	return CategoryOther, false
}

func DefaultPriceRange(category string) models.PriceRange {
	for _, rule := range categoryRules {
		if rule.Name == category {
			return rule.DefaultPrice
		}
	}
	return otherPriceRange
}

// Categories lists the fixed category set, CategoryOther last.
func Categories() []string {
	out := make([]string, 0, len(categoryRules)+1)
	for _, rule := range categoryRules {
		out = append(out, rule.Name)
	}
	return append(out, CategoryOther)
}
