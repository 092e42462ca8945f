package result

import (
	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
)

// Result is a single ranked hit.
type Result struct {
	id       string
	document domdoc.Document
	score    float64
	terms    []string
	match    map[string][]string
}

// New creates a search result. match maps each matched term to the fields it matched in.
func New(doc domdoc.Document, score float64, terms []string, match map[string][]string) Result {
	return Result{id: doc.ID(), document: doc, score: score, terms: terms, match: match}
}

// FromDocument wraps a document returned by a non-ranked listing.
func FromDocument(doc domdoc.Document) Result {
	return Result{id: doc.ID(), document: doc, terms: []string{}, match: map[string][]string{}}
}

// ID returns the document identifier.
func (r *Result) ID() string { return r.id }

// Document returns the matched document.
func (r *Result) Document() domdoc.Document { return r.document }

// Score returns the relevance score.
func (r *Result) Score() float64 { return r.score }

// Terms returns the matched index terms, sorted.
func (r *Result) Terms() []string { return r.terms }

// Match returns matched term -> fields.
func (r *Result) Match() map[string][]string { return r.match }

// WithScore returns a copy carrying score.
func (r Result) WithScore(score float64) Result {
	r.score = score
	return r
}

// Suggestion is an autocomplete candidate built from a set of matched terms.
type Suggestion struct {
	text  string
	score float64
	terms []string
}

// NewSuggestion creates a suggestion. text is terms joined with spaces.
func NewSuggestion(text string, score float64, terms []string) Suggestion {
	return Suggestion{text: text, score: score, terms: terms}
}

// Text returns the suggestion text.
func (s *Suggestion) Text() string { return s.text }

// Score returns the summed score of the grouped results.
func (s *Suggestion) Score() float64 { return s.score }

// Terms returns the matched terms.
func (s *Suggestion) Terms() []string { return s.terms }
