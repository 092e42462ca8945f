package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/docsearch/internal/db"
	"github.com/kailas-cloud/docsearch/internal/domain"
	domdoc "github.com/kailas-cloud/docsearch/internal/domain/document"
)

var testNow = time.Date(2026, 3, 4, 5, 6, 7, 123456000, time.UTC)

func fixedNow() time.Time { return testNow }

func docHash(tenant, index, data string, created, updated time.Time) rueidis.RedisMessage {
	return mock.RedisMap(map[string]rueidis.RedisMessage{
		fieldTenant:    mock.RedisString(tenant),
		fieldIndex:     mock.RedisString(index),
		fieldData:      mock.RedisString(data),
		fieldCreatedAt: mock.RedisString(formatMicros(created)),
		fieldUpdatedAt: mock.RedisString(formatMicros(updated)),
	})
}

func strArray(vals ...string) rueidis.RedisMessage {
	msgs := make([]rueidis.RedisMessage, len(vals))
	for i, v := range vals {
		msgs[i] = mock.RedisString(v)
	}
	return mock.RedisArray(msgs...)
}

func emptyHash() rueidis.RedisMessage {
	return mock.RedisMap(map[string]rueidis.RedisMessage{})
}

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c, fixedNow)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c, fixedNow)
	err := s.Ping(context.Background())
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpPing {
		t.Fatalf("expected db.Error with OpPing, got %v", err)
	}
}

func TestNewStore_RequiresAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error")
	}
}

// --- store.go read tests ---

func TestGetDocuments_ReadsZsetThenFetches(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("ZRANGE", "docsearch:tenant:1:t:index:i", "0", "9", "REV")).
		Return(mock.Result(strArray("d2", "d1")))
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(docHash("t", "i", `{"title":"second"}`, testNow, testNow)),
			mock.Result(strArray("b", "a")),
			mock.Result(docHash("t", "i", `{"title":"first"}`, testNow, testNow)),
			mock.Result(strArray()),
		})

	s := NewStoreForTest(c, fixedNow)
	docs, err := s.GetDocuments(context.Background(), "t", "i", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 || docs[0].ID() != "d2" || docs[1].ID() != "d1" {
		t.Fatalf("unexpected docs: %+v", docs)
	}
	if got := docs[0].Tags(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("tags must be sorted, got %v", got)
	}
	if got := docs[0].Data().Text("title"); got != "second" {
		t.Errorf("title = %q", got)
	}
	if !docs[0].UpdatedAt().Equal(testNow) {
		t.Errorf("updatedAt = %v, want %v", docs[0].UpdatedAt(), testNow)
	}
}

func TestGetDocuments_TenantScopeKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("ZRANGE", "docsearch:tenant:1:t", "0", "0", "REV")).
		Return(mock.Result(strArray()))

	s := NewStoreForTest(c, fixedNow)
	docs, err := s.GetDocuments(context.Background(), "t", "", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no docs, got %d", len(docs))
	}
}

func TestGetDocuments_ZeroLimit(t *testing.T) {
	s := NewStoreForTest(nil, fixedNow) // client not called
	docs, err := s.GetDocuments(context.Background(), "t", "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no docs, got %d", len(docs))
	}
}

func TestGetDocuments_SkipsVanishedIDs(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "ZRANGE" })).
		Return(mock.Result(strArray("gone", "kept")))
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(emptyHash()),
			mock.Result(strArray()),
			mock.Result(docHash("t", "i", `{}`, testNow, testNow)),
			mock.Result(strArray()),
		})

	s := NewStoreForTest(c, fixedNow)
	docs, err := s.GetDocuments(context.Background(), "t", "i", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 || docs[0].ID() != "kept" {
		t.Fatalf("unexpected docs: %+v", docs)
	}
}

func TestGetDocuments_CorruptData(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(strArray("d1")))
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(docHash("t", "i", `not json`, testNow, testNow)),
			mock.Result(strArray()),
		})

	s := NewStoreForTest(c, fixedNow)
	_, err := s.GetDocuments(context.Background(), "t", "i", 10)
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestGetDocumentsByTags_IntersectsAndScopes(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	older := testNow.Add(-time.Second)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("SINTER", "docsearch:tag:a", "docsearch:tag:b")).
		Return(mock.Result(strArray("old", "foreign", "new")))
	c.EXPECT().
		DoMulti(gomock.Any(),
			gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(docHash("t", "i", `{}`, older, older)),
			mock.Result(strArray("a", "b")),
			mock.Result(docHash("u", "i", `{}`, testNow, testNow)),
			mock.Result(strArray("a", "b")),
			mock.Result(docHash("t", "i", `{}`, testNow, testNow)),
			mock.Result(strArray("a", "b", "c")),
		})

	s := NewStoreForTest(c, fixedNow)
	docs, err := s.GetDocumentsByTags(context.Background(), []string{"b", "a", "a"}, "t", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 || docs[0].ID() != "new" || docs[1].ID() != "old" {
		t.Fatalf("unexpected docs: %+v", docs)
	}
}

func TestGetDocumentsByTags_EmptyTags(t *testing.T) {
	s := NewStoreForTest(nil, fixedNow)
	docs, err := s.GetDocumentsByTags(context.Background(), nil, "t", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no docs, got %d", len(docs))
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(emptyHash()),
			mock.Result(strArray()),
		})

	s := NewStoreForTest(c, fixedNow)
	_, err := s.GetDocument(context.Background(), "missing")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestGetTags_Sorted(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SMEMBERS", "docsearch:tags")).
		Return(mock.Result(strArray("zeta", "alpha", "mid")))

	s := NewStoreForTest(c, fixedNow)
	tags, err := s.GetTags(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("tags = %v, want %v", tags, want)
		}
	}
}

// --- store.go write tests ---

func newDoc(t *testing.T, tags ...string) *domdoc.Document {
	t.Helper()
	d, err := domdoc.New("d1", "t", "i", domdoc.MustData("title", "Hello"), tags)
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	return &d
}

func TestUpsertDocument_ScriptArguments(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	created := testNow.Add(-time.Hour)
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			// EVALSHA sha numkeys KEYS... ARGV...
			return cmd[0] == "EVALSHA" &&
				cmd[2] == "5" &&
				cmd[3] == "docsearch:doc:d1" &&
				cmd[4] == "docsearch:doctags:d1" &&
				cmd[5] == "docsearch:tenant:1:t" &&
				cmd[6] == "docsearch:tenant:1:t:index:i" &&
				cmd[7] == "docsearch:tags" &&
				cmd[8] == "d1" &&
				cmd[11] == `{"title":"Hello"}` &&
				cmd[12] == formatMicros(testNow) &&
				cmd[13] == "docsearch:tag:" &&
				cmd[14] == "2" &&
				cmd[15] == "a" && cmd[16] == "b"
		})).
		Return(mock.Result(strArray("OK", formatMicros(created), formatMicros(testNow))))

	s := NewStoreForTest(c, fixedNow)
	got, err := s.UpsertDocument(context.Background(), newDoc(t, "b", "a"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.CreatedAt().Equal(created) {
		t.Errorf("createdAt = %v, want %v", got.CreatedAt(), created)
	}
	if !got.UpdatedAt().Equal(testNow) {
		t.Errorf("updatedAt = %v, want %v", got.UpdatedAt(), testNow)
	}
}

func TestUpsertDocument_Conflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "EVALSHA" })).
		Return(mock.Result(strArray("CONFLICT", "owner", "idx")))

	s := NewStoreForTest(c, fixedNow)
	_, err := s.UpsertDocument(context.Background(), newDoc(t))
	if !errors.Is(err, domain.ErrDocumentConflict) {
		t.Fatalf("expected ErrDocumentConflict, got %v", err)
	}
	var ce *domain.ConflictError
	if !errors.As(err, &ce) || ce.Tenant != "owner" || ce.Index != "idx" {
		t.Errorf("unexpected conflict detail: %v", err)
	}
}

func TestUpsertDocument_FallsBackToEval(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().
			Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "EVALSHA" })).
			Return(mock.Result(mock.RedisError("NOSCRIPT No matching script."))),
		c.EXPECT().
			Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "EVAL" })).
			Return(mock.Result(strArray("OK", formatMicros(testNow), formatMicros(testNow)))),
	)

	s := NewStoreForTest(c, fixedNow)
	if _, err := s.UpsertDocument(context.Background(), newDoc(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpsertDocument_TransportError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.ErrorResult(errors.New("connection reset")))

	s := NewStoreForTest(c, fixedNow)
	_, err := s.UpsertDocument(context.Background(), newDoc(t))
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpUpsert {
		t.Fatalf("expected db.Error with OpUpsert, got %v", err)
	}
}

func TestDeleteDocument_ScriptArguments(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "EVALSHA" &&
				cmd[2] == "3" &&
				cmd[3] == "docsearch:doc:d1" &&
				cmd[6] == "d1" &&
				cmd[7] == "docsearch:tenant:" &&
				cmd[8] == "docsearch:tag:"
		})).
		Return(mock.Result(mock.RedisInt64(0)))

	s := NewStoreForTest(c, fixedNow)
	if err := s.DeleteDocument(context.Background(), "d1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- migrations.go tests ---

func TestRunMigrations_Up(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "docsearch:schema_version", "1")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c, fixedNow)
	res := s.RunMigrations(context.Background(), false)
	if !res.Success || res.Direction != db.DirectionUp || res.Backend != "redis" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRunMigrations_DownDeletesPrefix(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SCAN", "0", "MATCH", "docsearch:*", "COUNT", "100")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("0"),
			strArray("docsearch:doc:a", "docsearch:tags"),
		)))
	c.EXPECT().
		DoMulti(gomock.Any(), mock.Match("DEL", "docsearch:doc:a"), mock.Match("DEL", "docsearch:tags")).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(1)),
			mock.Result(mock.RedisInt64(1)),
		})

	s := NewStoreForTest(c, fixedNow)
	res := s.RunMigrations(context.Background(), true)
	if !res.Success || res.Direction != db.DirectionDown {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Applied) != 1 || res.Applied[0] != "delete 2 keys" {
		t.Errorf("applied = %v", res.Applied)
	}
}

func TestRunMigrations_Failure(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.ErrorResult(errors.New("READONLY")))

	s := NewStoreForTest(c, fixedNow)
	res := s.RunMigrations(context.Background(), false)
	if res.Success || res.Error == "" {
		t.Fatalf("expected structured failure, got %+v", res)
	}
}

func TestKeyspace_Scope(t *testing.T) {
	k := keyspace{prefix: "p:"}
	if got := k.scope("t", ""); got != "p:tenant:1:t" {
		t.Errorf("scope(t) = %q", got)
	}
	if got := k.scope("t", "i"); got != "p:tenant:1:t:index:i" {
		t.Errorf("scope(t, i) = %q", got)
	}
}
