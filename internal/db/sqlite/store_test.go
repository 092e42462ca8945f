package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
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
	s, err := NewStore(context.Background(), Config{DSN: ":memory:", Now: now})
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

func TestUpsertDocument_ConcurrentWritersOnFile(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(ctx, Config{DSN: filepath.Join(t.TempDir(), "docs.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.True(t, s.RunMigrations(ctx, false).Success)

	const workers, perWorker = 8, 25
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				id := fmt.Sprintf("w%d-%d", w, i)
				doc, err := domdoc.New(id, "t", "i", domdoc.MustData("n", i), []string{fmt.Sprintf("w%d", w)})
				if err == nil {
					_, err = s.UpsertDocument(ctx, &doc)
				}
				if err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	docs, err := s.GetDocuments(ctx, "t", "i", workers*perWorker+1)
	require.NoError(t, err)
	assert.Len(t, docs, workers*perWorker)
}

func TestWithFileDefaults(t *testing.T) {
	assert.Equal(t, "docs.db?"+filePragmas+"&_txlock=immediate", withFileDefaults("docs.db"))
	assert.Equal(t, "file:docs.db?cache=shared&"+filePragmas+"&_txlock=immediate",
		withFileDefaults("file:docs.db?cache=shared"))
	assert.Equal(t, "docs.db?_pragma=foreign_keys(1)&_txlock=immediate",
		withFileDefaults("docs.db?_pragma=foreign_keys(1)"))
	assert.Equal(t, "docs.db?_pragma=foreign_keys(1)&_txlock=deferred",
		withFileDefaults("docs.db?_pragma=foreign_keys(1)&_txlock=deferred"))
}

func TestNewStore_RequiresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), Config{})
	assert.Error(t, err)
}

func TestRunMigrations_ReportsSteps(t *testing.T) {
	s := openMemory(t, dbtest.NewClock().Now)

	res := s.RunMigrations(context.Background(), false)
	require.True(t, res.Success)
	assert.Equal(t, "sqlite", res.Backend)
	assert.Len(t, res.Applied, len(upMigrations))
}

func TestRunMigrations_FailureIsStructured(t *testing.T) {
	s := openMemory(t, dbtest.NewClock().Now)
	require.NoError(t, s.Close())

	res := s.RunMigrations(context.Background(), false)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestQueriesWithoutSchemaPropagateErrors(t *testing.T) {
	s, err := NewStore(context.Background(), Config{DSN: ":memory:"})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, err = s.GetDocuments(context.Background(), "t", "", 10)
	require.Error(t, err)
	var dbErr *db.Error
	assert.True(t, errors.As(err, &dbErr))
	assert.Equal(t, db.OpGetDocuments, dbErr.Op)
}

func TestUpsert_StoresSerializedJSON(t *testing.T) {
	s := openMemory(t, dbtest.NewClock().Now)
	ctx := context.Background()

	doc, err := domdoc.New("d1", "t", "i", domdoc.MustData("b", 1, "a", "x"), nil)
	require.NoError(t, err)
	_, err = s.UpsertDocument(ctx, &doc)
	require.NoError(t, err)

	var raw string
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE id = ?`, "d1").Scan(&raw))
	assert.Equal(t, `{"b":1,"a":"x"}`, raw)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}
