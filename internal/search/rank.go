// Package search ranks candidate documents against a free-text query.
//
// Scoring is Jaccard similarity between the query's token set and each
// document's token set: |Q ∩ D| / |Q ∪ D|. Tokens are lower-cased runs of
// letters optionally followed by digits.
package search

import (
	"regexp"
	"sort"
	"strings"
)

// Scored pairs an item with its similarity to the query.
type Scored[T any] struct {
	Item  T
	Score float64
}

// Rank orders items by descending similarity to query. Ties, including
// items sharing no token with the query, keep their input order, so a
// caller that passes recency-ordered candidates gets recency as the
// tie-break. A query without tokens returns the items unchanged.
func Rank[T any](query string, items []T, text func(T) string) []Scored[T] {
	out := make([]Scored[T], len(items))
	for i, it := range items {
		out[i].Item = it
	}
	q := Tokenize(query)
	if len(q) == 0 {
		return out
	}
	for i, it := range items {
		out[i].Score = Jaccard(q, Tokenize(text(it)))
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out
}

// Items strips the scores from a ranking.
func Items[T any](ranked []Scored[T]) []T {
	out := make([]T, len(ranked))
	for i, r := range ranked {
		out[i] = r.Item
	}
	return out
}

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*`)

// Tokenize returns the set of lower-cased word tokens in s.
func Tokenize(s string) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

// Jaccard returns |a ∩ b| / |a ∪ b|, or 0 when either set is empty.
func Jaccard(a, b map[string]struct{}) float64 {
	over := overlap(a, b)
	if over == 0 {
		return 0
	}
	return float64(over) / float64(len(a)+len(b)-over)
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
