package ranking

import (
	"cmp"
	"slices"
	"strings"

	"github.com/kailas-cloud/docsearch/internal/domain/search/result"
)

func suggestions(scored []scoredResult) []result.Suggestion {
	type group struct {
		terms []string
		score float64
	}
	groups := make(map[string]*group)
	for i := range scored {
		terms := scored[i].res.Terms()
		if len(terms) == 0 {
			continue
		}
		text := strings.Join(terms, " ")
		g, ok := groups[text]
		if !ok {
			g = &group{terms: terms}
			groups[text] = g
		}
		g.score += scored[i].res.Score()
	}

	out := make([]result.Suggestion, 0, len(groups))
	for text, g := range groups {
		out = append(out, result.NewSuggestion(text, g.score, g.terms))
	}
	slices.SortFunc(out, func(a, b result.Suggestion) int {
		if c := cmp.Compare(b.Score(), a.Score()); c != 0 {
			return c
		}
		return strings.Compare(a.Text(), b.Text())
	})
	return out
}
