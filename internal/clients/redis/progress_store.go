package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/deckforge/deckforge-backend/internal/generation"
	"github.com/deckforge/deckforge-backend/internal/platform/logger"
)

// ProgressStore keeps the latest progress snapshot per run so a client
// reconnecting mid-run can catch up without replaying the stream.
type ProgressStore interface {
	Save(ctx context.Context, runID string, ev generation.ProgressEvent) error
	Load(ctx context.Context, runID string) (generation.ProgressEvent, bool, error)
}

type progressStore struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

// NewProgressStore reuses the bus's redis connection settings. A nil bus
// yields a nil store, which callers treat as "snapshots disabled".
func NewProgressStore(log *logger.Logger, b Bus) ProgressStore {
	rb, ok := b.(*bus)
	if !ok || rb == nil {
		return nil
	}
	return &progressStore{
		log: log.With("service", "RedisProgressStore"),
		rdb: rb.rdb,
		ttl: time.Hour,
	}
}

func (s *progressStore) Save(ctx context.Context, runID string, ev generation.ProgressEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, progressKey(runID), raw, s.ttl).Err()
}

func (s *progressStore) Load(ctx context.Context, runID string) (generation.ProgressEvent, bool, error) {
	raw, err := s.rdb.Get(ctx, progressKey(runID)).Bytes()
	if err == goredis.Nil {
		return generation.ProgressEvent{}, false, nil
	}
	if err != nil {
		return generation.ProgressEvent{}, false, err
	}
	var ev generation.ProgressEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return generation.ProgressEvent{}, false, err
	}
	return ev, true, nil
}

func progressKey(runID string) string {
	return fmt.Sprintf("deckforge:run:%s:progress", runID)
}
