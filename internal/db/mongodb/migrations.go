package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kailas-cloud/docsearch/internal/db"
)

// indexModels are the secondary indexes backing scope, ordering and tag queries.
func indexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: fieldTenant, Value: 1},
				{Key: fieldUpdatedAt, Value: -1},
				{Key: "_id", Value: -1},
			},
			Options: options.Index().SetName("tenant_updated_at_id"),
		},
		{
			Keys: bson.D{
				{Key: fieldTenant, Value: 1},
				{Key: fieldIndex, Value: 1},
				{Key: fieldUpdatedAt, Value: -1},
				{Key: "_id", Value: -1},
			},
			Options: options.Index().SetName("tenant_index_updated_at_id"),
		},
		{
			Keys:    bson.D{{Key: fieldTags, Value: 1}},
			Options: options.Index().SetName("tags"),
		},
	}
}

// RunMigrations creates the indexes on up; creating an existing identical
// index is a no-op on the server. Down drops the collection, which the
// driver treats as success when it does not exist.
func (s *Store) RunMigrations(ctx context.Context, down bool) db.MigrationResult {
	if down {
		if err := s.col.Drop(ctx); err != nil {
			return db.MigrationFailed(backendName, down, nil, db.Wrap(db.OpMigrate, err))
		}
		return db.MigrationOK(backendName, down, []string{"drop collection " + s.col.Name()})
	}

	names, err := s.col.Indexes().CreateMany(ctx, indexModels())
	if err != nil {
		return db.MigrationFailed(backendName, down, nil, db.Wrap(db.OpMigrate, err))
	}
	applied := make([]string, len(names))
	for i, n := range names {
		applied[i] = "create index " + n
	}
	return db.MigrationOK(backendName, down, applied)
}
