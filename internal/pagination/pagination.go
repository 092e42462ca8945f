// Package pagination slices ranked or listed results with opaque cursors.
package pagination

import (
	"encoding/base64"
	"fmt"

	"github.com/kailas-cloud/docsearch/internal/domain"
)

// PageInfo describes the position of a page within the full result list.
type PageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

// EncodeCursor returns the cursor pointing after id.
func EncodeCursor(id string) string {
	return base64.StdEncoding.EncodeToString([]byte(id))
}

// DecodeCursor returns the id a cursor points after.
func DecodeCursor(cursor string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidCursor, err)
	}
	return string(raw), nil
}

// Paginate returns up to limit items following the item whose id the after
// cursor encodes, or the first limit items when after is empty. A cursor
// that cannot be decoded or no longer matches any item is rejected with
// domain.ErrInvalidCursor.
func Paginate[T any](items []T, idOf func(*T) string, limit int, after string) ([]T, PageInfo, error) {
	start := 0
	if after != "" {
		id, err := DecodeCursor(after)
		if err != nil {
			return nil, PageInfo{}, err
		}
		pos := -1
		for i := range items {
			if idOf(&items[i]) == id {
				pos = i
				break
			}
		}
		if pos < 0 {
			return nil, PageInfo{}, fmt.Errorf("%w: %q is not in the result set", domain.ErrInvalidCursor, id)
		}
		start = pos + 1
	}

	end := start + max(limit, 0)
	if end > len(items) {
		end = len(items)
	}
	page := items[start:end:end]
	if page == nil {
		page = []T{}
	}

	info := PageInfo{HasNextPage: len(items)-end > 0}
	if len(page) > 0 {
		c := EncodeCursor(idOf(&page[len(page)-1]))
		info.EndCursor = &c
	}
	return page, info, nil
}
