package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docsearch/internal/db"
)

const schemaVersion = "1"

// RunMigrations writes the schema marker on up. Keys are created lazily by
// writes, so there is nothing else to prepare. Down deletes every key under
// the store prefix.
func (s *Store) RunMigrations(ctx context.Context, down bool) db.MigrationResult {
	if down {
		n, err := s.dropAll(ctx)
		if err != nil {
			return db.MigrationFailed(s.backend, down, nil, db.Wrap(db.OpMigrate, err))
		}
		return db.MigrationOK(s.backend, down, []string{fmt.Sprintf("delete %d keys", n)})
	}

	cmd := s.b().Set().Key(s.keys.schema()).Value(schemaVersion).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return db.MigrationFailed(s.backend, down, nil, db.Wrap(db.OpMigrate, err))
	}
	return db.MigrationOK(s.backend, down, []string{"set schema version " + schemaVersion})
}

// dropAll scans the prefix and deletes matches one key per command, so it
// also works when keys hash to different cluster slots.
func (s *Store) dropAll(ctx context.Context) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		cmd := s.b().Scan().Cursor(cursor).Match(s.keys.pattern()).Count(100).Build()
		entry, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return deleted, fmt.Errorf("scan: %w", err)
		}

		if len(entry.Elements) > 0 {
			dels := make([]rueidis.Completed, len(entry.Elements))
			for i, k := range entry.Elements {
				dels[i] = s.b().Del().Key(k).Build()
			}
			for i, res := range s.client.DoMulti(ctx, dels...) {
				if err := res.Error(); err != nil {
					return deleted, fmt.Errorf("del %s: %w", entry.Elements[i], err)
				}
				deleted++
			}
		}

		cursor = entry.Cursor
		if cursor == 0 {
			return deleted, nil
		}
	}
}
