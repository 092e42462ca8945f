package memory

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/docsearch/internal/db"
	"github.com/kailas-cloud/docsearch/internal/db/dbtest"
)

func TestStoreContract(t *testing.T) {
	dbtest.Run(t, func(_ *testing.T, now func() time.Time) db.DocumentStore {
		return NewStore(WithClock(now))
	})
}

func TestPing_Closed(t *testing.T) {
	s := NewStore()
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = s.Close()
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected error after Close")
	}
}
