package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_ChickenSpicy(t *testing.T) {
	r := Extract("I have chicken and want something spicy")
	assert.Equal(t, []string{"chicken"}, r.FoodNames)
	assert.Equal(t, []string{"spicy"}, r.Keywords)

	title, ok := Title(r)
	require.True(t, ok)
	assert.Equal(t, "Chicken Spicy Recipe", title)
}

func TestExtract_WholeWordsAndPlurals(t *testing.T) {
	r := Extract("Boiled EGGS with tomatoes, no eggplant; a quick side   dish")
	assert.Equal(t, []string{"tomato", "egg"}, r.FoodNames)
	assert.Equal(t, []string{"quick", "boiled", "side dish"}, r.Keywords)

	// "oil" must not match inside "boiled"; "pie" must not match inside "piece".
	r = Extract("a boiled piece")
	assert.Empty(t, r.FoodNames)
}

func TestExtract_HyphenatedKeyword(t *testing.T) {
	r := Extract("Gluten-free pasta please")
	assert.Equal(t, []string{"pasta"}, r.FoodNames)
	assert.Equal(t, []string{"gluten-free"}, r.Keywords)
}

func TestTitle_LimitsAndEmpty(t *testing.T) {
	title, ok := Title(Result{FoodNames: []string{"beef", "rice", "onion"}, Keywords: []string{"main course", "easy"}})
	require.True(t, ok)
	assert.Equal(t, "Beef Rice Main Course Recipe", title)

	_, ok = Title(Result{})
	assert.False(t, ok)
	assert.True(t, Result{}.Empty())
}

func TestMerge_KeepsOrderAndDedups(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Merge([]string{"a", "b"}, []string{"b", "c", "a"}))
	assert.Equal(t, []string{"x"}, Merge(nil, []string{"x"}))
}
