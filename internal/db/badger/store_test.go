package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/docsearch/internal/db"
	"github.com/kailas-cloud/docsearch/internal/db/dbtest"
	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
)

func openMemory(t *testing.T, now func() time.Time) *Store {
	t.Helper()
	s, err := NewStore(Config{InMemory: true, Now: now})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	res := s.RunMigrations(context.Background(), false)
	require.True(t, res.Success, res.Error)
	return s
}

func TestStoreContract(t *testing.T) {
	dbtest.Run(t, func(t *testing.T, now func() time.Time) db.DocumentStore {
		return openMemory(t, now)
	})
}

func TestNewStore_RequiresPath(t *testing.T) {
	_, err := NewStore(Config{})
	assert.Error(t, err)
}

func TestNewStore_OnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewStore(Config{Path: dir})
	require.NoError(t, err)
	d, err := domdoc.New("d1", "t", "i", domdoc.MustData("k", "v"), []string{"x"})
	require.NoError(t, err)
	_, err = s.UpsertDocument(ctx, &d)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewStore(Config{Path: dir})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "v", got.Data().Text("k"))
	assert.Equal(t, []string{"x"}, got.Tags())
}

func TestPing_Closed(t *testing.T) {
	s := openMemory(t, dbtest.NewClock().Now)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Ping(context.Background()), db.ErrClosed)
}

func TestOrderKey_SortsByTimeThenID(t *testing.T) {
	p := tenantScanPrefix("t")
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	older := orderKey(p, at, "z")
	newer := orderKey(p, at.Add(time.Microsecond), "a")
	sameTimeHigherID := orderKey(p, at, "zz")

	assert.Less(t, string(older), string(newer))
	assert.Less(t, string(older), string(sameTimeHigherID))
	assert.Equal(t, "z", idFromOrderKey(p, older))
}

func TestTagFromKey(t *testing.T) {
	assert.Equal(t, "greeting", tagFromKey(tagKey("greeting", "d1")))
	assert.Equal(t, "a b", tagFromKey(tagKey("a b", "doc")))
}

func TestScanPrefixes_DoNotOverlap(t *testing.T) {
	assert.NotEqual(t, string(tenantScanPrefix("a")), string(tenantScanPrefix("ab"))[:len(tenantScanPrefix("a"))])
	assert.NotContains(t, string(indexScanPrefix("t", "i")), tenantPrefix)
}
