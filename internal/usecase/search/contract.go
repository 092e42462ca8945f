package search

import (
	"context"

	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
	"github.com/kailas-cloud/docsearch/internal/domain/search/result"
	"github.com/kailas-cloud/docsearch/internal/ranking"
	"github.com/kailas-cloud/docsearch/internal/repository/window"
)

// WindowReader loads the bounded candidate window of a query.
type WindowReader interface {
	Window(ctx context.Context, q window.Query) ([]domdoc.Document, error)
}

// Ranker scores a window against a full-text query.
type Ranker interface {
	Search(ctx context.Context, docs []domdoc.Document, q ranking.Query) ([]result.Result, error)
	Suggest(ctx context.Context, docs []domdoc.Document, q ranking.Query) ([]result.Suggestion, error)
}
