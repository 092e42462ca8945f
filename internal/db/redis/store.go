package redis

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/kailas-cloud/docsearch/internal/db"
	"github.com/kailas-cloud/docsearch/internal/domain"
	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
)

// GetDocuments reads the newest ids from the scope's ordering zset and
// fetches them. Equal scores come back in reverse member order, which is
// the id DESC tie-break.
func (s *Store) GetDocuments(ctx context.Context, tenant, index string, limit int) ([]domdoc.Document, error) {
	if limit <= 0 {
		return []domdoc.Document{}, nil
	}

	cmd := s.b().Arbitrary("ZRANGE").Keys(s.keys.scope(tenant, index)).
		Args("0", strconv.Itoa(limit-1), "REV").Build()
	ids, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, db.Wrap(db.OpGetDocuments, err)
	}

	docs, err := s.fetchDocuments(ctx, ids)
	if err != nil {
		return nil, db.Wrap(db.OpGetDocuments, err)
	}
	return docs, nil
}

// GetDocumentsByTags intersects the tag sets with SINTER, then scopes,
// orders and limits the fetched documents.
func (s *Store) GetDocumentsByTags(
	ctx context.Context, tags []string, tenant, index string, limit int,
) ([]domdoc.Document, error) {
	want := domdoc.NormalizeTags(tags)
	if len(want) == 0 || limit <= 0 {
		return []domdoc.Document{}, nil
	}

	keys := make([]string, len(want))
	for i, t := range want {
		keys[i] = s.keys.tag(t)
	}
	ids, err := s.do(ctx, s.b().Sinter().Key(keys...).Build()).AsStrSlice()
	if err != nil {
		return nil, db.Wrap(db.OpGetByTags, err)
	}

	docs, err := s.fetchDocuments(ctx, ids)
	if err != nil {
		return nil, db.Wrap(db.OpGetByTags, err)
	}

	scoped := docs[:0]
	for i := range docs {
		if db.InScope(&docs[i], tenant, index) {
			scoped = append(scoped, docs[i])
		}
	}
	domdoc.SortRecent(scoped)
	return db.Page(scoped, limit), nil
}

// GetDocument returns a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (domdoc.Document, error) {
	docs, err := s.fetchDocuments(ctx, []string{id})
	if err != nil {
		return domdoc.Document{}, db.Wrap(db.OpGetDocument, err)
	}
	if len(docs) == 0 {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return docs[0], nil
}

// UpsertDocument runs the upsert script. The whole read-check-write happens
// server side, so a scope conflict leaves the stored document untouched.
func (s *Store) UpsertDocument(ctx context.Context, doc *domdoc.Document) (domdoc.Document, error) {
	data, err := doc.Data().MarshalJSON()
	if err != nil {
		return domdoc.Document{}, db.Wrap(db.OpEncode, err)
	}
	now := formatMicros(domdoc.Truncate(s.now()))

	keys := []string{
		s.keys.doc(doc.ID()),
		s.keys.docTags(doc.ID()),
		s.keys.tenant(doc.Tenant()),
		s.keys.index(doc.Tenant(), doc.Index()),
		s.keys.vocabulary(),
	}
	tags := doc.Tags()
	args := make([]string, 0, 7+len(tags))
	args = append(args,
		doc.ID(), doc.Tenant(), doc.Index(), string(data), now,
		s.keys.tagPrefix(), strconv.Itoa(len(tags)),
	)
	args = append(args, tags...)

	reply, err := upsertScript.Exec(ctx, s.client, keys, args).AsStrSlice()
	if err != nil {
		return domdoc.Document{}, db.Wrap(db.OpUpsert, err)
	}
	if len(reply) != 3 {
		return domdoc.Document{}, db.Wrap(db.OpUpsert, fmt.Errorf("unexpected script reply %v", reply))
	}
	if reply[0] == "CONFLICT" {
		return domdoc.Document{}, domain.NewConflict(doc.ID(), reply[1], reply[2])
	}

	createdAt, err := parseMicros(reply[1])
	if err != nil {
		return domdoc.Document{}, db.Wrap(db.OpDecode, err)
	}
	updatedAt, err := parseMicros(reply[2])
	if err != nil {
		return domdoc.Document{}, db.Wrap(db.OpDecode, err)
	}
	return doc.WithTimestamps(createdAt, updatedAt), nil
}

// DeleteDocument runs the delete script. Missing ids are a no-op.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	keys := []string{s.keys.doc(id), s.keys.docTags(id), s.keys.vocabulary()}
	args := []string{id, s.keys.tenantPrefix(), s.keys.tagPrefix()}
	return db.Wrap(db.OpDelete, deleteScript.Exec(ctx, s.client, keys, args).Error())
}

// GetTags returns the sorted tag vocabulary.
func (s *Store) GetTags(ctx context.Context) ([]string, error) {
	tags, err := s.do(ctx, s.b().Smembers().Key(s.keys.vocabulary()).Build()).AsStrSlice()
	if err != nil {
		return nil, db.Wrap(db.OpGetTags, err)
	}
	if tags == nil {
		tags = []string{}
	}
	slices.Sort(tags)
	return tags, nil
}
