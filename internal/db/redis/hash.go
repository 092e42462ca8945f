package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docsearch/internal/db"
	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
)

const (
	fieldTenant    = "tenant"
	fieldIndex     = "index"
	fieldData      = "data"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// fetchDocuments loads documents by id with one DoMulti round-trip
// (HGETALL + SMEMBERS per id). Ids whose hash is gone are skipped, so a
// concurrent delete between the index read and the fetch is not an error.
func (s *Store) fetchDocuments(ctx context.Context, ids []string) ([]domdoc.Document, error) {
	if len(ids) == 0 {
		return []domdoc.Document{}, nil
	}

	cmds := make([]rueidis.Completed, 0, 2*len(ids))
	for _, id := range ids {
		cmds = append(cmds,
			s.b().Hgetall().Key(s.keys.doc(id)).Build(),
			s.b().Smembers().Key(s.keys.docTags(id)).Build(),
		)
	}

	results := s.client.DoMulti(ctx, cmds...)
	out := make([]domdoc.Document, 0, len(ids))
	for i, id := range ids {
		fields, err := results[2*i].AsStrMap()
		if err != nil {
			return nil, fmt.Errorf("hgetall %s: %w", id, err)
		}
		if len(fields) == 0 {
			continue
		}
		tags, err := results[2*i+1].AsStrSlice()
		if err != nil {
			return nil, fmt.Errorf("smembers %s: %w", id, err)
		}
		doc, err := decodeDocument(id, fields, tags)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func decodeDocument(id string, fields map[string]string, tags []string) (domdoc.Document, error) {
	data, err := domdoc.ParseData([]byte(fields[fieldData]))
	if err != nil {
		return domdoc.Document{}, db.Wrap(db.OpDecode, fmt.Errorf("document %s: %w", id, err))
	}
	createdAt, err := parseMicros(fields[fieldCreatedAt])
	if err != nil {
		return domdoc.Document{}, db.Wrap(db.OpDecode, fmt.Errorf("document %s created_at: %w", id, err))
	}
	updatedAt, err := parseMicros(fields[fieldUpdatedAt])
	if err != nil {
		return domdoc.Document{}, db.Wrap(db.OpDecode, fmt.Errorf("document %s updated_at: %w", id, err))
	}
	return domdoc.Reconstruct(
		id, fields[fieldTenant], fields[fieldIndex], data, tags, createdAt, updatedAt,
	), nil
}

func parseMicros(s string) (time.Time, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMicro(v).UTC(), nil
}

func formatMicros(t time.Time) string {
	return strconv.FormatInt(t.UnixMicro(), 10)
}
