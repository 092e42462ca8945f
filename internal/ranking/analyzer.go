package ranking

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/stop"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/analysis/tokenmap"
	"github.com/blevesearch/bleve/v2/mapping"
)

const (
	analyzerName   = "docsearch"
	stopMapName    = "docsearch_stop_words"
	stopFilterName = "docsearch_stop"
)

// DefaultStopWords is a short English list applied when none is configured.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "in",
	"is", "it", "of", "on", "or", "the", "to", "with",
}

// newMapping builds an index mapping whose default analyzer tokenizes on
// unicode word boundaries, lowercases and drops stop words. fields are the
// synthetic field names the window is indexed under.
func newMapping(stopWords []string, fields []string) (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	filters := []string{lowercase.Name}
	if len(stopWords) > 0 {
		tokens := make([]interface{}, len(stopWords))
		// The filter runs after lowercase, so the map must be lowercase too.
		for i, w := range stopWords {
			tokens[i] = strings.ToLower(w)
		}
		if err := im.AddCustomTokenMap(stopMapName, map[string]interface{}{
			"type":   tokenmap.Name,
			"tokens": tokens,
		}); err != nil {
			return nil, fmt.Errorf("add stop word map: %w", err)
		}
		if err := im.AddCustomTokenFilter(stopFilterName, map[string]interface{}{
			"type":           stop.Name,
			"stop_token_map": stopMapName,
		}); err != nil {
			return nil, fmt.Errorf("add stop filter: %w", err)
		}
		filters = append(filters, stopFilterName)
	}
	if err := im.AddCustomAnalyzer(analyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": filters,
	}); err != nil {
		return nil, fmt.Errorf("add analyzer: %w", err)
	}
	im.DefaultAnalyzer = analyzerName

	dm := bleve.NewDocumentMapping()
	dm.Dynamic = false
	for _, f := range fields {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = analyzerName
		fm.Store = false
		fm.IncludeInAll = false
		fm.IncludeTermVectors = true
		dm.AddFieldMappingsAt(f, fm)
	}
	im.DefaultMapping = dm
	return im, nil
}

// analyze runs text through the mapping's analyzer and returns the surviving tokens.
func analyze(im *mapping.IndexMappingImpl, text string) ([]string, error) {
	stream, err := im.AnalyzeText(analyzerName, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	out := make([]string, 0, len(stream))
	for _, tok := range stream {
		out = append(out, string(tok.Term))
	}
	return out, nil
}
