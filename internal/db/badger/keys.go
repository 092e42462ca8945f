package badger

import (
	"bytes"
	"encoding/binary"
	"time"
)

// Key prefixes for the different record types.
const (
	docPrefix        = "doc/"
	tenantPrefix     = "upd/"
	tenantIdxPrefix  = "updi/"
	tagPrefix        = "tag/"
	metaPrefix       = "meta/"
	schemaVersionKey = metaPrefix + "schema_version"
	schemaVersion    = "1"
	sep              = 0x00
)

var allPrefixes = [][]byte{
	[]byte(docPrefix),
	[]byte(tenantPrefix),
	[]byte(tenantIdxPrefix),
	[]byte(tagPrefix),
	[]byte(metaPrefix),
}

func docKey(id string) []byte {
	return []byte(docPrefix + id)
}

// tenantScanPrefix is the prefix of every ordering key of a tenant.
// Format: upd/<tenant>\x00
func tenantScanPrefix(tenant string) []byte {
	buf := make([]byte, 0, len(tenantPrefix)+len(tenant)+1)
	buf = append(buf, tenantPrefix...)
	buf = append(buf, tenant...)
	return append(buf, sep)
}

// indexScanPrefix is the prefix of every ordering key of a tenant index.
// Format: updi/<tenant>\x00<index>\x00
func indexScanPrefix(tenant, index string) []byte {
	buf := make([]byte, 0, len(tenantIdxPrefix)+len(tenant)+len(index)+2)
	buf = append(buf, tenantIdxPrefix...)
	buf = append(buf, tenant...)
	buf = append(buf, sep)
	buf = append(buf, index...)
	return append(buf, sep)
}

// orderKey appends a big-endian microsecond timestamp and the id to prefix,
// so lexicographic order is (updatedAt, id).
func orderKey(prefix []byte, updatedAt time.Time, id string) []byte {
	buf := make([]byte, 0, len(prefix)+8+len(id))
	buf = append(buf, prefix...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(updatedAt.UnixMicro()))
	return append(buf, id...)
}

// idFromOrderKey extracts the document id from an ordering key.
func idFromOrderKey(prefix, key []byte) string {
	return string(key[len(prefix)+8:])
}

// tagScanPrefix is the prefix of every association of a tag.
// Format: tag/<tag>\x00
func tagScanPrefix(tag string) []byte {
	buf := make([]byte, 0, len(tagPrefix)+len(tag)+1)
	buf = append(buf, tagPrefix...)
	buf = append(buf, tag...)
	return append(buf, sep)
}

func tagKey(tag, id string) []byte {
	return append(tagScanPrefix(tag), id...)
}

// tagFromKey extracts the tag from an association key.
func tagFromKey(key []byte) string {
	rest := key[len(tagPrefix):]
	if i := bytes.IndexByte(rest, sep); i >= 0 {
		return string(rest[:i])
	}
	return string(rest)
}

// seekLast returns the position to seek to for a reverse scan over prefix.
func seekLast(prefix []byte) []byte {
	return append(append([]byte{}, prefix...), 0xFF)
}
