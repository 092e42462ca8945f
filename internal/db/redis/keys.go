package redis

import "strconv"

// keyspace builds every key the store touches.
//
//	<p>doc:<id>                          hash: tenant, index, data, created_at, updated_at
//	<p>doctags:<id>                      set of the document's tags
//	<p>tenant:<n>:<tenant>               zset id -> updated_at (microseconds)
//	<p>tenant:<n>:<tenant>:index:<index> zset id -> updated_at (microseconds)
//
// <n> is the byte length of the tenant, so a tenant containing ":index:"
// cannot alias another tenant's index zset.
//
//	<p>tag:<tag>                         set of document ids
//	<p>tags                              set of tags with at least one document
//	<p>schema_version                    migration marker
type keyspace struct {
	prefix string
}

func (k keyspace) doc(id string) string     { return k.prefix + "doc:" + id }
func (k keyspace) docTags(id string) string { return k.prefix + "doctags:" + id }
func (k keyspace) tenantPrefix() string     { return k.prefix + "tenant:" }
func (k keyspace) tenant(t string) string {
	return k.tenantPrefix() + strconv.Itoa(len(t)) + ":" + t
}
func (k keyspace) tagPrefix() string   { return k.prefix + "tag:" }
func (k keyspace) tag(t string) string { return k.tagPrefix() + t }
func (k keyspace) vocabulary() string  { return k.prefix + "tags" }
func (k keyspace) schema() string      { return k.prefix + "schema_version" }
func (k keyspace) pattern() string     { return k.prefix + "*" }

func (k keyspace) index(tenant, index string) string {
	return k.tenant(tenant) + ":index:" + index
}

// scope returns the ordering zset for a tenant or a tenant index.
func (k keyspace) scope(tenant, index string) string {
	if index == "" {
		return k.tenant(tenant)
	}
	return k.index(tenant, index)
}
