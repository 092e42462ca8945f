package ranking

import (
	"context"
	"slices"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
	"github.com/kailas-cloud/docsearch/internal/domain/search/result"
)

func mustDoc(t *testing.T, id string, pairs ...any) domdoc.Document {
	t.Helper()
	data, err := domdoc.NewData(pairs...)
	if err != nil {
		t.Fatalf("new data: %v", err)
	}
	d, err := domdoc.New(id, "t", "i", data, nil)
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	return d
}

func ids(rs []result.Result) []string {
	out := make([]string, len(rs))
	for i := range rs {
		out[i] = rs[i].ID()
	}
	return out
}

func search(t *testing.T, e *Engine, window []domdoc.Document, q Query) []result.Result {
	t.Helper()
	rs, err := e.Search(context.Background(), window, q)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	return rs
}

func TestSearch_HelloScenario(t *testing.T) {
	window := []domdoc.Document{
		mustDoc(t, "1", "title", "Hello world"),
		mustDoc(t, "2", "title", "Goodbye"),
	}
	rs := search(t, New(nil, nil), window, Query{Term: "hello"})

	if len(rs) != 1 {
		t.Fatalf("expected 1 result, got %v", ids(rs))
	}
	r := rs[0]
	if r.ID() != "1" {
		t.Errorf("ID() = %q", r.ID())
	}
	if r.Score() <= 0 {
		t.Errorf("Score() = %f, want > 0", r.Score())
	}
	if !slices.Equal(r.Terms(), []string{"hello"}) {
		t.Errorf("Terms() = %v", r.Terms())
	}
	if !slices.Equal(r.Match()["hello"], []string{"title"}) {
		t.Errorf("Match() = %v", r.Match())
	}
}

func TestSearch_CaseInsensitive(t *testing.T) {
	window := []domdoc.Document{mustDoc(t, "1", "title", "hello")}
	if rs := search(t, New(nil, nil), window, Query{Term: "HELLO"}); len(rs) != 1 {
		t.Fatalf("expected case-insensitive match, got %v", ids(rs))
	}
}

func TestSearch_StopWordsOnlyIsEmpty(t *testing.T) {
	window := []domdoc.Document{mustDoc(t, "1", "title", "the end")}
	rs := search(t, New(nil, nil), window, Query{Term: "the of"})
	if rs == nil || len(rs) != 0 {
		t.Fatalf("expected empty non-nil result, got %v", rs)
	}
}

func TestSearch_EmptyStopListKeepsEveryToken(t *testing.T) {
	window := []domdoc.Document{mustDoc(t, "1", "title", "the end")}
	if rs := search(t, New([]string{}, nil), window, Query{Term: "the"}); len(rs) != 1 {
		t.Fatalf("expected match on stop word when the list is empty, got %v", ids(rs))
	}
}

func TestSearch_ConfiguredStopWordsIgnoreCase(t *testing.T) {
	window := []domdoc.Document{mustDoc(t, "1", "title", "The cat")}
	e := New([]string{"The", "OF"}, nil)

	for _, term := range []string{"the", "THE", "of The"} {
		if rs := search(t, e, window, Query{Term: term}); len(rs) != 0 {
			t.Errorf("term %q: stop words must not match, got %v", term, ids(rs))
		}
	}
	if rs := search(t, e, window, Query{Term: "Cat"}); len(rs) != 1 {
		t.Errorf("expected cat to match, got %v", ids(rs))
	}
}

func TestSearch_ExactIsSubsetOfNonExact(t *testing.T) {
	window := []domdoc.Document{
		mustDoc(t, "1", "title", "red apple"),
		mustDoc(t, "2", "title", "red car"),
		mustDoc(t, "3", "title", "green apple"),
		mustDoc(t, "4", "title", "blue sky"),
	}
	e := New(nil, nil)

	some := ids(search(t, e, window, Query{Term: "red apple"}))
	all := ids(search(t, e, window, Query{Term: "red apple", Exact: true}))

	if !slices.Equal(all, []string{"1"}) {
		t.Fatalf("exact = %v, want [1]", all)
	}
	slices.Sort(some)
	if !slices.Equal(some, []string{"1", "2", "3"}) {
		t.Fatalf("non-exact = %v", some)
	}
	for _, id := range all {
		if !slices.Contains(some, id) {
			t.Errorf("exact result %q missing from non-exact results", id)
		}
	}
}

func TestSearch_FieldsRestrictIndexing(t *testing.T) {
	window := []domdoc.Document{mustDoc(t, "1", "title", "plain", "body", "needle")}
	e := New(nil, nil)

	if rs := search(t, e, window, Query{Term: "needle", Fields: []string{"title"}}); len(rs) != 0 {
		t.Fatalf("body must not be searched, got %v", ids(rs))
	}
	rs := search(t, e, window, Query{Term: "needle"})
	if len(rs) != 1 || !slices.Equal(rs[0].Match()["needle"], []string{"body"}) {
		t.Fatalf("expected body match, got %+v", rs)
	}
}

func TestSearch_NonStringValuesAreFlattened(t *testing.T) {
	window := []domdoc.Document{mustDoc(t, "1", "count", 42, "labels", []any{"alpha", "beta"})}
	e := New(nil, nil)
	if rs := search(t, e, window, Query{Term: "42"}); len(rs) != 1 {
		t.Errorf("number not searchable, got %v", ids(rs))
	}
	if rs := search(t, e, window, Query{Term: "beta"}); len(rs) != 1 {
		t.Errorf("array item not searchable, got %v", ids(rs))
	}
}

func TestSearch_DottedFieldNames(t *testing.T) {
	window := []domdoc.Document{mustDoc(t, "1", "meta.title", "dotted")}
	rs := search(t, New(nil, nil), window, Query{Term: "dotted", Fields: []string{"meta.title"}})
	if len(rs) != 1 || !slices.Equal(rs[0].Match()["dotted"], []string{"meta.title"}) {
		t.Fatalf("expected match on dotted key, got %+v", rs)
	}
}

func TestSearch_Fuzzy(t *testing.T) {
	window := []domdoc.Document{mustDoc(t, "1", "title", "hello")}
	e := New(nil, nil)

	if rs := search(t, e, window, Query{Term: "helo"}); len(rs) != 0 {
		t.Fatalf("typo must not match without fuzzy, got %v", ids(rs))
	}
	rs := search(t, e, window, Query{Term: "helo", Fuzzy: 1})
	if len(rs) != 1 {
		t.Fatalf("expected fuzzy match, got %v", ids(rs))
	}
	if !slices.Equal(rs[0].Terms(), []string{"hello"}) {
		t.Errorf("Terms() must report the indexed term, got %v", rs[0].Terms())
	}
	if rs := search(t, e, window, Query{Term: "helo", Fuzzy: 0.3}); len(rs) != 1 {
		t.Fatalf("expected fractional fuzzy match, got %v", ids(rs))
	}
}

func TestSearch_Prefix(t *testing.T) {
	window := []domdoc.Document{
		mustDoc(t, "1", "title", "hello world"),
		mustDoc(t, "2", "title", "help desk"),
	}
	e := New(nil, nil)

	if rs := search(t, e, window, Query{Term: "hel"}); len(rs) != 0 {
		t.Fatalf("prefix must be opt-in, got %v", ids(rs))
	}
	rs := search(t, e, window, Query{Term: "hel", Prefix: true})
	got := ids(rs)
	slices.Sort(got)
	if !slices.Equal(got, []string{"1", "2"}) {
		t.Fatalf("prefix results = %v", got)
	}
}

func TestSearch_TiesKeepWindowOrder(t *testing.T) {
	window := []domdoc.Document{
		mustDoc(t, "z", "title", "same text"),
		mustDoc(t, "a", "title", "same text"),
		mustDoc(t, "m", "title", "same text"),
	}
	rs := search(t, New(nil, nil), window, Query{Term: "same"})
	if !slices.Equal(ids(rs), []string{"z", "a", "m"}) {
		t.Fatalf("ties must keep window order, got %v", ids(rs))
	}
}

func TestSearch_BoostAndFilter(t *testing.T) {
	window := []domdoc.Document{
		mustDoc(t, "1", "title", "hello"),
		mustDoc(t, "2", "title", "hello"),
		mustDoc(t, "3", "title", "hello"),
	}
	q := Query{
		Term: "hello",
		Boost: func(doc *domdoc.Document, term string) float64 {
			if term != "hello" {
				t.Errorf("boost got term %q", term)
			}
			if doc.ID() == "3" {
				return 10
			}
			return 1
		},
		Filter: func(doc *domdoc.Document, r *result.Result) bool {
			return doc.ID() != "1" && r.Score() > 0
		},
	}
	rs := search(t, New(nil, nil), window, q)
	if !slices.Equal(ids(rs), []string{"3", "2"}) {
		t.Fatalf("results = %v, want [3 2]", ids(rs))
	}
	if rs[0].Score() <= rs[1].Score() {
		t.Errorf("boosted score %f must exceed %f", rs[0].Score(), rs[1].Score())
	}
}

func TestSearch_EmptyWindow(t *testing.T) {
	rs := search(t, New(nil, nil), nil, Query{Term: "x"})
	if rs == nil || len(rs) != 0 {
		t.Fatalf("expected empty non-nil result, got %v", rs)
	}
}

func TestSearch_RecordsMetrics(t *testing.T) {
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "d"}, []string{"op"})
	size := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "s"})
	e := New(nil, nil).WithMetrics(duration, size)

	window := []domdoc.Document{mustDoc(t, "1", "title", "hello")}
	search(t, e, window, Query{Term: "hello"})
	if _, err := e.Suggest(context.Background(), window, Query{Term: "hello"}); err != nil {
		t.Fatalf("suggest: %v", err)
	}

	if got := testutil.CollectAndCount(duration); got != 2 {
		t.Errorf("duration series = %d, want 2 (search, suggest)", got)
	}
	if got := testutil.CollectAndCount(size); got != 1 {
		t.Errorf("window size series = %d, want 1", got)
	}
}

func TestSuggest_GroupsByMatchedTerms(t *testing.T) {
	window := []domdoc.Document{
		mustDoc(t, "1", "title", "hello world"),
		mustDoc(t, "2", "title", "hello"),
		mustDoc(t, "3", "title", "world hello again"),
		mustDoc(t, "4", "title", "unrelated"),
	}
	e := New(nil, nil)
	q := Query{Term: "hello world"}

	got, err := e.Suggest(context.Background(), window, q)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 suggestions, got %+v", got)
	}

	want := map[string]float64{}
	for _, r := range search(t, e, window, q) {
		want[joinTerms(r.Terms())] += r.Score()
	}
	for i := range got {
		s := got[i]
		if s.Score() != want[s.Text()] {
			t.Errorf("suggestion %q score = %f, want %f", s.Text(), s.Score(), want[s.Text()])
		}
		if joinTerms(s.Terms()) != s.Text() {
			t.Errorf("text %q must join terms %v", s.Text(), s.Terms())
		}
	}
	if got[0].Score() < got[1].Score() {
		t.Errorf("suggestions must be sorted by score: %f < %f", got[0].Score(), got[1].Score())
	}
}

func TestSuggestions_TieBreaksOnText(t *testing.T) {
	d := mustDoc(t, "1", "title", "x")
	scored := []scoredResult{
		{res: result.New(d, 1, []string{"beta"}, nil), pos: 0},
		{res: result.New(d, 1, []string{"alpha"}, nil), pos: 1},
		{res: result.New(d, 0.5, []string{"alpha"}, nil), pos: 2},
		{res: result.New(d, 3, nil, nil), pos: 3},
	}
	got := suggestions(scored)
	if len(got) != 2 {
		t.Fatalf("expected 2 groups, got %+v", got)
	}
	if got[0].Text() != "alpha" || got[0].Score() != 1.5 {
		t.Errorf("first = %q %f", got[0].Text(), got[0].Score())
	}

	tied := suggestions(scored[:2])
	if tied[0].Text() != "alpha" || tied[1].Text() != "beta" {
		t.Errorf("equal scores must sort by text, got %q, %q", tied[0].Text(), tied[1].Text())
	}
}

func TestFuzziness(t *testing.T) {
	tests := []struct {
		token string
		fuzzy float64
		want  int
	}{
		{"hello", 0, 0},
		{"hello", 1, 1},
		{"hello", 5, 2},
		{"hello", 0.2, 1},
		{"hello", 0.5, 2},
		{"ab", 0.2, 0},
		{"héllo", 0.4, 2},
	}
	for _, tc := range tests {
		if got := fuzziness(tc.token, tc.fuzzy); got != tc.want {
			t.Errorf("fuzziness(%q, %v) = %d, want %d", tc.token, tc.fuzzy, got, tc.want)
		}
	}
}

func joinTerms(terms []string) string {
	out := ""
	for i, t := range terms {
		if i > 0 {
			out += " "
		}
		out += t
	}
	return out
}
