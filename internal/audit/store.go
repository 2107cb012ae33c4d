package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	eventsKey = "audit:events"

	// DefaultMaxEntries は保持する監査イベントの最大件数です。
	DefaultMaxEntries = 500
)

// Store は監査イベントを Redis のリストに保存します。
type Store struct {
	rdb        redis.UniversalClient
	ttl        time.Duration
	maxEntries int64
}

// NewStore は Store を作成します。
func NewStore(rdb redis.UniversalClient, ttl time.Duration) *Store {
	return &Store{
		rdb:        rdb,
		ttl:        ttl,
		maxEntries: DefaultMaxEntries,
	}
}

// Append はイベントを先頭に追加し、上限を超えた古いイベントを削除します。
func (s *Store) Append(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event is nil")
	}
	if event.ID == "" {
		return fmt.Errorf("event.ID is required")
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	tx := s.rdb.TxPipeline()
	tx.LPush(ctx, eventsKey, payload)
	tx.LTrim(ctx, eventsKey, 0, s.maxEntries-1)
	if s.ttl > 0 {
		tx.Expire(ctx, eventsKey, s.ttl)
	}
	_, err = tx.Exec(ctx)
	return err
}

// Recent は新しい順に最大 limit 件のイベントを返します。
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		return []Event{}, nil
	}
	if int64(limit) > s.maxEntries {
		limit = int(s.maxEntries)
	}

	raw, err := s.rdb.LRange(ctx, eventsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(raw))
	for _, item := range raw {
		var event Event
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			return nil, fmt.Errorf("failed to parse audit event: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}
