package search

import (
	"math"
	"testing"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("Chicken, RICE & chicken stock v2!")
	for _, w := range []string{"chicken", "rice", "stock", "v2"} {
		if _, ok := got[w]; !ok {
			t.Fatalf("missing token %q in %v", w, got)
		}
	}
	if len(got) != 4 {
		t.Fatalf("tokens = %v", got)
	}
	if Tokenize("  !! 42 ") != nil {
		t.Fatalf("punctuation and bare digits yield no tokens")
	}
}

func TestJaccard(t *testing.T) {
	a := Tokenize("vegan curry tofu")
	b := Tokenize("tofu curry")
	if got := Jaccard(a, b); math.Abs(got-2.0/3.0) > 1e-9 {
		t.Fatalf("Jaccard = %v", got)
	}
	if Jaccard(a, nil) != 0 || Jaccard(nil, b) != 0 {
		t.Fatalf("empty sets score zero")
	}
	if Jaccard(a, Tokenize("pasta")) != 0 {
		t.Fatalf("disjoint sets score zero")
	}
}

func TestRank_OrdersByScoreKeepsInputOrderOnTies(t *testing.T) {
	docs := []string{"pasta night", "vegan curry", "curry with tofu and rice", "chickpea curry"}
	ranked := Rank("vegan curry", docs, func(s string) string { return s })

	want := []string{"vegan curry", "chickpea curry", "curry with tofu and rice", "pasta night"}
	for i, w := range want {
		if ranked[i].Item != w {
			t.Fatalf("rank[%d] = %q (%.2f), want %q", i, ranked[i].Item, ranked[i].Score, w)
		}
	}
	if ranked[0].Score != 1 || ranked[3].Score != 0 {
		t.Fatalf("unexpected scores: %+v", ranked)
	}
}

func TestRank_NoQueryTokensKeepsOrder(t *testing.T) {
	docs := []string{"b", "a"}
	got := Items(Rank("%%", docs, func(s string) string { return s }))
	if got[0] != "b" || got[1] != "a" {
		t.Fatalf("order changed: %v", got)
	}
	if len(Rank("x", []string(nil), func(s string) string { return s })) != 0 {
		t.Fatalf("nil input yields empty ranking")
	}
}
