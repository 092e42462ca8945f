package document

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNew_Valid(t *testing.T) {
	data := MustData("title", "Hello World")

	doc, err := New("doc-1", "t", "i", data, []string{"b", "a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID() != "doc-1" || doc.Tenant() != "t" || doc.Index() != "i" {
		t.Errorf("unexpected identity: %q %q %q", doc.ID(), doc.Tenant(), doc.Index())
	}
	if got := strings.Join(doc.Tags(), ","); got != "a,b" {
		t.Errorf("Tags() = %q, want a,b", got)
	}
	if doc.Data().Text("title") != "Hello World" {
		t.Errorf("Data().Text(title) = %q", doc.Data().Text("title"))
	}
	if !doc.CreatedAt().IsZero() {
		t.Error("new document must not carry timestamps")
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name              string
		id, tenant, index string
		tags              []string
		wantErrContains   string
	}{
		{"empty id", "", "t", "i", nil, "ID is required"},
		{"long id", strings.Repeat("x", 257), "t", "i", nil, "too long"},
		{"empty tenant", "d", "", "i", nil, "tenant is required"},
		{"empty index", "d", "t", "", nil, "index is required"},
		{"empty tag", "d", "t", "i", []string{""}, "must not be empty"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.id, tc.tenant, tc.index, Data{}, tc.tags)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErrContains) {
				t.Errorf("error %q does not contain %q", err, tc.wantErrContains)
			}
		})
	}
}

func TestNew_ClonesData(t *testing.T) {
	data := MustData("k", "v")
	doc, _ := New("d", "t", "i", data, nil)

	data.Set("k", "mutated")

	if doc.Data().Text("k") != "v" {
		t.Error("data mutation leaked into document")
	}
}

func TestHasTags(t *testing.T) {
	doc := Reconstruct("d", "t", "i", Data{}, []string{"x", "y", "z"}, time.Time{}, time.Time{})

	if !doc.HasTags([]string{"x", "z"}) {
		t.Error("expected superset match")
	}
	if doc.HasTags([]string{"x", "w"}) {
		t.Error("unexpected match for missing tag")
	}
	if !doc.HasTags(nil) {
		t.Error("empty requirement must match")
	}
}

func TestDiffTags(t *testing.T) {
	added, removed := DiffTags([]string{"a", "b", "c"}, []string{"b", "c", "d"})
	if strings.Join(added, ",") != "d" {
		t.Errorf("added = %v", added)
	}
	if strings.Join(removed, ",") != "a" {
		t.Errorf("removed = %v", removed)
	}
}

func TestSortRecent_TieBreaksByID(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []Document{
		Reconstruct("a", "t", "i", Data{}, nil, ts, ts),
		Reconstruct("c", "t", "i", Data{}, nil, ts, ts),
		Reconstruct("b", "t", "i", Data{}, nil, ts, ts.Add(time.Second)),
	}
	SortRecent(docs)

	got := docs[0].ID() + docs[1].ID() + docs[2].ID()
	if got != "bca" {
		t.Errorf("order = %q, want bca", got)
	}
}

func TestRecord_JSONRoundTrip(t *testing.T) {
	ts := Truncate(time.Date(2026, 3, 4, 5, 6, 7, 891234567, time.UTC))
	doc := Reconstruct("d", "t", "i", MustData("z", 1, "a", "x"), []string{"g"}, ts, ts)

	raw, err := json.Marshal(ToRecord(&doc))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got := FromRecord(&rec)

	if !got.Data().Equal(doc.Data()) {
		t.Errorf("data mismatch: %v", got.Data().Keys())
	}
	if !got.UpdatedAt().Equal(ts) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt(), ts)
	}
}
