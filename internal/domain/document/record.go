package document

import "time"

// Record is the flat, serializable form of a Document used by caches and
// key-value backends.
type Record struct {
	ID        string    `json:"id"`
	Tenant    string    `json:"tenant"`
	Index     string    `json:"index"`
	Data      Data      `json:"data"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ToRecord flattens a Document.
func ToRecord(d *Document) Record {
	return Record{
		ID:        d.id,
		Tenant:    d.tenant,
		Index:     d.index,
		Data:      d.data,
		Tags:      d.tags,
		CreatedAt: d.createdAt,
		UpdatedAt: d.updatedAt,
	}
}

// FromRecord hydrates a Document from its flat form.
func FromRecord(r *Record) Document {
	return Reconstruct(r.ID, r.Tenant, r.Index, r.Data, r.Tags, r.CreatedAt.UTC(), r.UpdatedAt.UTC())
}

// ToRecords flattens a slice of documents.
func ToRecords(docs []Document) []Record {
	out := make([]Record, len(docs))
	for i := range docs {
		out[i] = ToRecord(&docs[i])
	}
	return out
}

// FromRecords hydrates a slice of records.
func FromRecords(recs []Record) []Document {
	out := make([]Document, len(recs))
	for i := range recs {
		out[i] = FromRecord(&recs[i])
	}
	return out
}
