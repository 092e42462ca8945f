package document

import (
	"fmt"
	"slices"
	"time"
)

// Scope and identifier limits.
const (
	MaxIDLength    = 256
	MaxScopeLength = 128
	MaxTagLength   = 256
	MaxTags        = 64
)

// Document is the document aggregate (immutable value object).
type Document struct {
	id        string
	tenant    string
	index     string
	data      Data
	tags      []string
	createdAt time.Time
	updatedAt time.Time
}

// New validates and creates a Document that has not been stored yet.
// Tags are deduplicated and sorted.
func New(id, tenant, index string, data Data, tags []string) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if len(id) > MaxIDLength {
		return Document{}, fmt.Errorf("document ID too long (max %d)", MaxIDLength)
	}
	if tenant == "" {
		return Document{}, fmt.Errorf("tenant is required")
	}
	if len(tenant) > MaxScopeLength || len(index) > MaxScopeLength {
		return Document{}, fmt.Errorf("tenant and index must be at most %d bytes", MaxScopeLength)
	}
	if index == "" {
		return Document{}, fmt.Errorf("index is required")
	}
	normalized := NormalizeTags(tags)
	if len(normalized) > MaxTags {
		return Document{}, fmt.Errorf("too many tags (max %d)", MaxTags)
	}
	for _, t := range normalized {
		if t == "" {
			return Document{}, fmt.Errorf("tags must not be empty")
		}
		if len(t) > MaxTagLength {
			return Document{}, fmt.Errorf("tag too long (max %d)", MaxTagLength)
		}
	}

	return Document{
		id:     id,
		tenant: tenant,
		index:  index,
		data:   data.Clone(),
		tags:   normalized,
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(
	id, tenant, index string, data Data, tags []string, createdAt, updatedAt time.Time,
) Document {
	return Document{
		id: id, tenant: tenant, index: index, data: data,
		tags: NormalizeTags(tags), createdAt: createdAt, updatedAt: updatedAt,
	}
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Tenant returns the owning tenant.
func (d *Document) Tenant() string { return d.tenant }

// Index returns the logical index inside the tenant.
func (d *Document) Index() string { return d.index }

// Data returns the schemaless payload.
func (d *Document) Data() Data { return d.data }

// Tags returns the sorted tag set.
func (d *Document) Tags() []string { return d.tags }

// HasTags reports whether the document carries every tag in want.
func (d *Document) HasTags(want []string) bool {
	for _, t := range want {
		if _, ok := slices.BinarySearch(d.tags, t); !ok {
			return false
		}
	}
	return true
}

// CreatedAt returns the first-insert timestamp.
func (d *Document) CreatedAt() time.Time { return d.createdAt }

// UpdatedAt returns the last-upsert timestamp.
func (d *Document) UpdatedAt() time.Time { return d.updatedAt }

// WithTimestamps returns a copy with storage-resolved timestamps.
func (d *Document) WithTimestamps(createdAt, updatedAt time.Time) Document {
	c := *d
	c.createdAt = createdAt
	c.updatedAt = updatedAt
	return c
}

// NormalizeTags returns tags deduplicated and sorted. Nil in, empty out.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	out = append(out, tags...)
	slices.Sort(out)
	return slices.Compact(out)
}

// DiffTags returns the tags to add and remove to move from current to wanted.
// Both inputs must be normalized.
func DiffTags(current, wanted []string) (added, removed []string) {
	for _, t := range wanted {
		if _, ok := slices.BinarySearch(current, t); !ok {
			added = append(added, t)
		}
	}
	for _, t := range current {
		if _, ok := slices.BinarySearch(wanted, t); !ok {
			removed = append(removed, t)
		}
	}
	return added, removed
}

// Less orders documents by updatedAt descending, then id descending.
func Less(a, b *Document) bool {
	if !a.updatedAt.Equal(b.updatedAt) {
		return a.updatedAt.After(b.updatedAt)
	}
	return a.id > b.id
}

// SortRecent sorts docs in place with Less.
func SortRecent(docs []Document) {
	slices.SortStableFunc(docs, func(a, b Document) int {
		switch {
		case Less(&a, &b):
			return -1
		case Less(&b, &a):
			return 1
		default:
			return 0
		}
	})
}

// Now returns the current time at storage precision (UTC, microseconds).
func Now() time.Time {
	return Truncate(time.Now())
}

// Truncate brings t to storage precision.
func Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
