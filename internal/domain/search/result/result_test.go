package result

import (
	"testing"

	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
)

func mustDoc(t *testing.T, id string) domdoc.Document {
	t.Helper()
	d, err := domdoc.New(id, "t", "i", domdoc.MustData("title", "hello"), nil)
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	return d
}

func TestNew(t *testing.T) {
	match := map[string][]string{"hello": {"title"}}
	r := New(mustDoc(t, "doc-1"), 0.95, []string{"hello"}, match)

	if r.ID() != "doc-1" {
		t.Errorf("ID() = %q", r.ID())
	}
	if r.Score() != 0.95 {
		t.Errorf("Score() = %f", r.Score())
	}
	if len(r.Terms()) != 1 || r.Terms()[0] != "hello" {
		t.Errorf("Terms() = %v", r.Terms())
	}
	if r.Match()["hello"][0] != "title" {
		t.Errorf("Match() = %v", r.Match())
	}
	doc := r.Document()
	if doc.Data().Text("title") != "hello" {
		t.Errorf("Document() lost data")
	}
}

func TestFromDocument(t *testing.T) {
	r := FromDocument(mustDoc(t, "a"))
	if r.Score() != 0 {
		t.Errorf("Score() = %f, want 0", r.Score())
	}
	if r.Terms() == nil || r.Match() == nil {
		t.Error("listing results must carry empty, non-nil terms and match")
	}
}

func TestWithScore(t *testing.T) {
	r := New(mustDoc(t, "a"), 1, nil, nil)
	boosted := r.WithScore(3)
	if boosted.Score() != 3 || r.Score() != 1 {
		t.Errorf("WithScore must copy: got %f and %f", boosted.Score(), r.Score())
	}
}

func TestSuggestion(t *testing.T) {
	s := NewSuggestion("hello world", 2.5, []string{"hello", "world"})
	if s.Text() != "hello world" || s.Score() != 2.5 || len(s.Terms()) != 2 {
		t.Errorf("unexpected suggestion %+v", s)
	}
}
