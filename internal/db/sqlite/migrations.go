package sqlite

import (
	"context"

	"github.com/kailas-cloud/docsearch/internal/db"
)

type migration struct {
	name string
	sql  string
}

var upMigrations = []migration{
	{"create table documents", `CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	tenant     TEXT NOT NULL,
	"index"    TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
)`},
	{"create table tags", `CREATE TABLE IF NOT EXISTS tags (
	tag         TEXT NOT NULL,
	document_id TEXT NOT NULL
)`},
	{"create index tags_tag_document_id",
		`CREATE UNIQUE INDEX IF NOT EXISTS tags_tag_document_id ON tags (tag, document_id)`},
	{"create index tags_document_id",
		`CREATE INDEX IF NOT EXISTS tags_document_id ON tags (document_id)`},
	{"create index documents_tenant_updated_at_id",
		`CREATE INDEX IF NOT EXISTS documents_tenant_updated_at_id ON documents (tenant, updated_at, id)`},
	{"create index documents_tenant_index_updated_at_id",
		`CREATE INDEX IF NOT EXISTS documents_tenant_index_updated_at_id ON documents (tenant, "index", updated_at, id)`},
}

var downMigrations = []migration{
	{"drop index documents_tenant_index_updated_at_id", `DROP INDEX IF EXISTS documents_tenant_index_updated_at_id`},
	{"drop index documents_tenant_updated_at_id", `DROP INDEX IF EXISTS documents_tenant_updated_at_id`},
	{"drop index tags_document_id", `DROP INDEX IF EXISTS tags_document_id`},
	{"drop index tags_tag_document_id", `DROP INDEX IF EXISTS tags_tag_document_id`},
	{"drop table tags", `DROP TABLE IF EXISTS tags`},
	{"drop table documents", `DROP TABLE IF EXISTS documents`},
}

// RunMigrations creates or drops the schema inside one transaction.
// Every statement is guarded with IF [NOT] EXISTS, so repeated runs are no-ops.
func (s *Store) RunMigrations(ctx context.Context, down bool) db.MigrationResult {
	steps := upMigrations
	if down {
		steps = downMigrations
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return db.MigrationFailed(backendName, down, nil, db.Wrap(db.OpMigrate, err))
	}
	defer func() { _ = tx.Rollback() }()

	applied := make([]string, 0, len(steps))
	for _, m := range steps {
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			return db.MigrationFailed(backendName, down, applied, db.Wrap(db.OpMigrate, err))
		}
		applied = append(applied, m.name)
	}
	if err := tx.Commit(); err != nil {
		return db.MigrationFailed(backendName, down, nil, db.Wrap(db.OpMigrate, err))
	}
	return db.MigrationOK(backendName, down, applied)
}
