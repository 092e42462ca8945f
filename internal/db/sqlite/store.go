package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/kailas-cloud/docsearch/internal/db"
	"github.com/kailas-cloud/docsearch/internal/domain"
	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
)

// Compile-time check: Store implements db.DocumentStore.
var _ db.DocumentStore = (*Store)(nil)

const (
	backendName = "sqlite"
	driverName  = "sqlite"
	columns     = `id, tenant, "index", data, created_at, updated_at`
)

// Config holds connection parameters for a SQLite store.
type Config struct {
	// DSN is a modernc.org/sqlite data source, e.g. "docs.db" or "file:docs.db?_pragma=busy_timeout(5000)".
	// File DSNs without pragmas get a busy timeout, WAL and immediate transactions.
	// ":memory:" opens a private in-memory database on a single connection.
	DSN          string
	MaxOpenConns int
	Now          func() time.Time
}

// Store implements db.DocumentStore on SQLite with a documents table and a
// tags association table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens the database and verifies the connection.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	dsn := cfg.DSN
	if !isMemoryDSN(dsn) {
		dsn = withFileDefaults(dsn)
	}
	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, db.Wrap(db.OpOpen, err)
	}

	switch {
	case isMemoryDSN(cfg.DSN):
		// Every pooled connection would see its own empty database.
		conn.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	default:
		// SQLite allows one writer; a single connection queues writers
		// in the pool instead of failing them with SQLITE_BUSY.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, db.Wrap(db.OpPing, err)
	}

	now := cfg.Now
	if now == nil {
		now = domdoc.Now
	}
	return &Store{db: conn, now: now}, nil
}

// filePragmas make concurrent writers wait for the lock and take it at BEGIN.
const filePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// withFileDefaults adds busy timeout and WAL pragmas to a file DSN that sets
// none, and immediate transactions when no _txlock is given.
func withFileDefaults(dsn string) string {
	var params []string
	if !strings.Contains(dsn, "_pragma=") {
		params = append(params, filePragmas)
	}
	if !strings.Contains(dsn, "_txlock=") {
		params = append(params, "_txlock=immediate")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return db.Wrap(db.OpPing, s.db.PingContext(ctx))
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDocuments returns the most recently updated documents in scope.
func (s *Store) GetDocuments(ctx context.Context, tenant, index string, limit int) ([]domdoc.Document, error) {
	if limit <= 0 {
		return []domdoc.Document{}, nil
	}

	query := `SELECT ` + columns + ` FROM documents WHERE tenant = ?`
	args := []any{tenant}
	if index != "" {
		query += ` AND "index" = ?`
		args = append(args, index)
	}
	query += ` ORDER BY updated_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	docs, err := s.queryDocuments(ctx, query, args...)
	if err != nil {
		return nil, db.Wrap(db.OpGetDocuments, err)
	}
	return docs, nil
}

// GetDocumentsByTags keeps documents whose matching tag count equals the number of requested tags.
func (s *Store) GetDocumentsByTags(
	ctx context.Context, tags []string, tenant, index string, limit int,
) ([]domdoc.Document, error) {
	want := domdoc.NormalizeTags(tags)
	if len(want) == 0 || limit <= 0 {
		return []domdoc.Document{}, nil
	}

	var sb strings.Builder
	sb.WriteString(`SELECT d.id, d.tenant, d."index", d.data, d.created_at, d.updated_at
FROM documents d
JOIN (
	SELECT document_id FROM tags
	WHERE tag IN (`)
	sb.WriteString(placeholders(len(want)))
	sb.WriteString(`)
	GROUP BY document_id
	HAVING COUNT(DISTINCT tag) = ?
) m ON m.document_id = d.id
WHERE d.tenant = ?`)

	args := make([]any, 0, len(want)+4)
	for _, t := range want {
		args = append(args, t)
	}
	args = append(args, len(want), tenant)
	if index != "" {
		sb.WriteString(` AND d."index" = ?`)
		args = append(args, index)
	}
	sb.WriteString(` ORDER BY d.updated_at DESC, d.id DESC LIMIT ?`)
	args = append(args, limit)

	docs, err := s.queryDocuments(ctx, sb.String(), args...)
	if err != nil {
		return nil, db.Wrap(db.OpGetByTags, err)
	}
	return docs, nil
}

// GetDocument returns a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (domdoc.Document, error) {
	docs, err := s.queryDocuments(ctx, `SELECT `+columns+` FROM documents WHERE id = ?`, id)
	if err != nil {
		return domdoc.Document{}, db.Wrap(db.OpGetDocument, err)
	}
	if len(docs) == 0 {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return docs[0], nil
}

const upsertSQL = `INSERT INTO documents (id, tenant, "index", data, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
WHERE documents.tenant = excluded.tenant AND documents."index" = excluded."index"
RETURNING created_at, updated_at`

// UpsertDocument writes the document and diffs its tags in one transaction.
// The conflict clause only updates rows of the same tenant and index; an id owned
// by another scope returns no row and is reported as a conflict.
func (s *Store) UpsertDocument(ctx context.Context, doc *domdoc.Document) (domdoc.Document, error) {
	data, err := doc.Data().MarshalJSON()
	if err != nil {
		return domdoc.Document{}, db.Wrap(db.OpEncode, err)
	}
	now := domdoc.Truncate(s.now()).UnixMicro()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domdoc.Document{}, db.Wrap(db.OpUpsert, err)
	}
	defer func() { _ = tx.Rollback() }()

	var createdAt, updatedAt int64
	err = tx.QueryRowContext(ctx, upsertSQL,
		doc.ID(), doc.Tenant(), doc.Index(), string(data), now, now,
	).Scan(&createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		var tenant, index string
		if ownerErr := tx.QueryRowContext(ctx,
			`SELECT tenant, "index" FROM documents WHERE id = ?`, doc.ID(),
		).Scan(&tenant, &index); ownerErr != nil {
			return domdoc.Document{}, domain.NewConflict(doc.ID(), "", "")
		}
		return domdoc.Document{}, domain.NewConflict(doc.ID(), tenant, index)
	}
	if err != nil {
		return domdoc.Document{}, db.Wrap(db.OpUpsert, err)
	}

	if err := syncTags(ctx, tx, doc.ID(), doc.Tags()); err != nil {
		return domdoc.Document{}, db.Wrap(db.OpUpsert, err)
	}

	if err := tx.Commit(); err != nil {
		return domdoc.Document{}, db.Wrap(db.OpUpsert, err)
	}

	return domdoc.Reconstruct(
		doc.ID(), doc.Tenant(), doc.Index(), doc.Data(), doc.Tags(),
		time.UnixMicro(createdAt).UTC(), time.UnixMicro(updatedAt).UTC(),
	), nil
}

func syncTags(ctx context.Context, tx *sql.Tx, id string, wanted []string) error {
	rows, err := tx.QueryContext(ctx, `SELECT tag FROM tags WHERE document_id = ? ORDER BY tag`, id)
	if err != nil {
		return fmt.Errorf("select tags: %w", err)
	}
	var current []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan tag: %w", err)
		}
		current = append(current, t)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close tag rows: %w", err)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate tags: %w", err)
	}

	added, removed := domdoc.DiffTags(current, wanted)
	for _, t := range removed {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE document_id = ? AND tag = ?`, id, t); err != nil {
			return fmt.Errorf("delete tag %q: %w", t, err)
		}
	}
	for _, t := range added {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tags (tag, document_id) VALUES (?, ?) ON CONFLICT (tag, document_id) DO NOTHING`, t, id,
		); err != nil {
			return fmt.Errorf("insert tag %q: %w", t, err)
		}
	}
	return nil
}

// DeleteDocument removes the document and its tag rows in one transaction.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return db.Wrap(db.OpDelete, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE document_id = ?`, id); err != nil {
		return db.Wrap(db.OpDelete, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return db.Wrap(db.OpDelete, err)
	}
	return db.Wrap(db.OpDelete, tx.Commit())
}

// GetTags returns the distinct tag vocabulary.
func (s *Store) GetTags(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT tag FROM tags ORDER BY tag`)
	if err != nil {
		return nil, db.Wrap(db.OpGetTags, err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]string, 0)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, db.Wrap(db.OpGetTags, err)
		}
		out = append(out, t)
	}
	return out, db.Wrap(db.OpGetTags, rows.Err())
}

// queryDocuments runs a documents query and attaches tags. Rows are drained
// before the tag query so a single-connection pool does not deadlock.
func (s *Store) queryDocuments(ctx context.Context, query string, args ...any) ([]domdoc.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var recs []domdoc.Record
	for rows.Next() {
		var (
			rec                  domdoc.Record
			data                 string
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.Tenant, &rec.Index, &data, &createdAt, &updatedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan document: %w", err)
		}
		parsed, err := domdoc.ParseData([]byte(data))
		if err != nil {
			_ = rows.Close()
			return nil, db.Wrap(db.OpDecode, fmt.Errorf("document %s: %w", rec.ID, err))
		}
		rec.Data = parsed
		rec.CreatedAt = time.UnixMicro(createdAt).UTC()
		rec.UpdatedAt = time.UnixMicro(updatedAt).UTC()
		recs = append(recs, rec)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return []domdoc.Document{}, nil
	}

	if err := s.attachTags(ctx, recs); err != nil {
		return nil, err
	}
	return domdoc.FromRecords(recs), nil
}

func (s *Store) attachTags(ctx context.Context, recs []domdoc.Record) error {
	pos := make(map[string]int, len(recs))
	args := make([]any, len(recs))
	for i := range recs {
		pos[recs[i].ID] = i
		args[i] = recs[i].ID
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id, tag FROM tags WHERE document_id IN (`+placeholders(len(recs))+`)`, args...)
	if err != nil {
		return fmt.Errorf("select tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return fmt.Errorf("scan tag: %w", err)
		}
		if i, ok := pos[id]; ok {
			recs[i].Tags = append(recs[i].Tags, tag)
		}
	}
	return rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
