package mongodb

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kailas-cloud/docsearch/internal/db"
	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
)

const (
	fieldTenant    = "tenant"
	fieldIndex     = "index"
	fieldData      = "data"
	fieldTags      = "tags"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// mongoDocument is the stored shape. Data is kept as JSON text because BSON
// documents do not guarantee the client's key order survives a round-trip
// through generic decoding. Timestamps are Unix microseconds; BSON dates
// only carry milliseconds.
type mongoDocument struct {
	ID        string   `bson:"_id"`
	Tenant    string   `bson:"tenant"`
	Index     string   `bson:"index"`
	Data      string   `bson:"data"`
	Tags      []string `bson:"tags"`
	CreatedAt int64    `bson:"created_at"`
	UpdatedAt int64    `bson:"updated_at"`
}

func (m *mongoDocument) toDomain() (domdoc.Document, error) {
	data, err := domdoc.ParseData([]byte(m.Data))
	if err != nil {
		return domdoc.Document{}, db.Wrap(db.OpDecode, fmt.Errorf("document %s: %w", m.ID, err))
	}
	return domdoc.Reconstruct(
		m.ID, m.Tenant, m.Index, data, m.Tags,
		time.UnixMicro(m.CreatedAt).UTC(), time.UnixMicro(m.UpdatedAt).UTC(),
	), nil
}

// scopeFilter selects a tenant, or a tenant index when index is non-empty.
func scopeFilter(tenant, index string) bson.D {
	f := bson.D{{Key: fieldTenant, Value: tenant}}
	if index != "" {
		f = append(f, bson.E{Key: fieldIndex, Value: index})
	}
	return f
}

// tagFilter adds an $all match on the tags array to the scope filter.
func tagFilter(tags []string, tenant, index string) bson.D {
	return append(scopeFilter(tenant, index), bson.E{Key: fieldTags, Value: bson.D{{Key: "$all", Value: tags}}})
}

// recentSort is updatedAt DESC, id DESC.
func recentSort() bson.D {
	return bson.D{{Key: fieldUpdatedAt, Value: -1}, {Key: "_id", Value: -1}}
}

func findOptions(limit int) *options.FindOptions {
	return options.Find().SetSort(recentSort()).SetLimit(int64(limit))
}

// upsertUpdate sets the mutable fields and stamps created_at on insert only.
// Tenant, index and _id come from the equality filter when the upsert inserts.
func upsertUpdate(data string, tags []string, nowMicros int64) bson.D {
	if tags == nil {
		tags = []string{}
	}
	return bson.D{
		{Key: "$set", Value: bson.D{
			{Key: fieldData, Value: data},
			{Key: fieldTags, Value: tags},
			{Key: fieldUpdatedAt, Value: nowMicros},
		}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: fieldCreatedAt, Value: nowMicros},
		}},
	}
}
