// Package keywords extracts food names and recipe keywords from chat text
// using fixed vocabularies, and builds session titles from what it finds.
package keywords

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FoodNames is the food vocabulary, in match-priority order.
var FoodNames = []string{
	"chicken", "beef", "pork", "fish", "salmon", "tuna", "shrimp", "pasta", "rice", "noodles",
	"bread", "pizza", "burger", "sandwich", "salad", "soup", "curry", "stew", "steak",
	"vegetable", "potato", "tomato", "onion", "garlic", "cheese", "egg", "milk", "butter", "oil",
	"dessert", "cake", "cookie", "pie", "pancake", "bacon", "sausage", "turkey", "lamb",
	"lobster", "crab", "squid", "tofu", "beans", "lentils", "quinoa", "mushroom", "broccoli",
	"carrot", "spinach", "avocado", "cucumber", "pepper", "chili", "ginger", "cilantro", "basil",
}

// Keywords is the recipe-attribute vocabulary, in match-priority order.
var Keywords = []string{
	"vegetarian", "vegan", "gluten-free", "dairy-free", "keto", "paleo", "halal", "kosher",
	"quick", "easy", "healthy", "spicy", "sweet", "savory", "sour",
	"baked", "grilled", "fried", "steamed", "boiled", "roasted", "raw",
	"breakfast", "lunch", "dinner", "snack", "appetizer", "main course", "side dish",
}

// Result holds the terms found in a piece of text, each list deduplicated
// and in vocabulary order.
type Result struct {
	FoodNames []string
	Keywords  []string
}

// Empty reports whether nothing matched.
func (r Result) Empty() bool { return len(r.FoodNames) == 0 && len(r.Keywords) == 0 }

type term struct {
	word string
	re   *regexp.Regexp
}

var (
	foodTerms    = compile(FoodNames)
	keywordTerms = compile(Keywords)
	titleCaser   = cases.Title(language.English)
	spaceRun     = regexp.MustCompile(`\s+`)
)

// compile builds whole-word matchers; a trailing plural "s"/"es" is
// accepted and internal spaces match any whitespace run.
func compile(words []string) []term {
	out := make([]term, 0, len(words))
	for _, w := range words {
		pat := strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`)
		out = append(out, term{word: w, re: regexp.MustCompile(`\b` + pat + `(?:e?s)?\b`)})
	}
	return out
}

// Extract returns the vocabulary terms that appear in text.
func Extract(text string) Result {
	low := strings.ToLower(text)
	return Result{
		FoodNames: match(foodTerms, low),
		Keywords:  match(keywordTerms, low),
	}
}

func match(terms []term, low string) []string {
	var out []string
	for _, t := range terms {
		if t.re.MatchString(low) {
			out = append(out, t.word)
		}
	}
	return out
}

// Merge appends the terms of next that prev does not already contain,
// keeping prev's order.
func Merge(prev, next []string) []string {
	seen := make(map[string]bool, len(prev)+len(next))
	out := make([]string, 0, len(prev)+len(next))
	for _, s := range append(append([]string{}, prev...), next...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Title builds "<Food> <Food> <Keyword> Recipe" from the first two food names
// and the first keyword. It returns false when r is empty.
func Title(r Result) (string, bool) {
	parts := make([]string, 0, 3)
	for i := 0; i < len(r.FoodNames) && i < 2; i++ {
		parts = append(parts, r.FoodNames[i])
	}
	if len(r.Keywords) > 0 {
		parts = append(parts, r.Keywords[0])
	}
	if len(parts) == 0 {
		return "", false
	}
	return titleCaser.String(spaceRun.ReplaceAllString(strings.Join(parts, " "), " ")) + " Recipe", true
}
