package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	runKeyPrefix    = "run:"
	maxWatchRetries = 10
)

// RedisStore は実行記録を Redis に保存します。
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewRedisStore は RedisStore を作成します。
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		rdb: rdb,
		ttl: ttl,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Get は実行記録を取得します。
func (s *RedisStore) Get(ctx context.Context, runID string) (*Record, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID is required")
	}
	data, err := s.rdb.Get(ctx, runKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Upsert は実行記録を保存します（存在しない場合は作成）。
func (s *RedisStore) Upsert(ctx context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	if record.RunID == "" {
		return fmt.Errorf("record.RunID is required")
	}
	stamp(record, s.now(), s.ttl)

	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, runKey(record.RunID), payload, s.ttl).Err()
}

// UpdateProgress は進捗を更新します。後退する進捗は無視します。
func (s *RedisStore) UpdateProgress(ctx context.Context, runID string, progress ProgressInfo) error {
	return s.updatePartial(ctx, runID, updateProgress(progress))
}

// MarkDone は成功時の情報を保存します。
func (s *RedisStore) MarkDone(ctx context.Context, runID string, summary *Summary) error {
	return s.updatePartial(ctx, runID, markDone(summary))
}

// MarkFailed は失敗時の情報を保存します。
func (s *RedisStore) MarkFailed(ctx context.Context, runID string, errInfo *ErrorInfo) error {
	return s.updatePartial(ctx, runID, markFailed(errInfo))
}

func (s *RedisStore) updatePartial(ctx context.Context, runID string, mutate func(*Record)) error {
	key := runKey(runID)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("%w: %s", ErrNotFound, runID)
			}
			return err
		}
		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			return err
		}
		mutate(&record)
		stamp(&record, s.now(), s.ttl)
		payload, err := json.Marshal(&record)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("run %s: too many concurrent updates", runID)
}

func runKey(id string) string {
	return runKeyPrefix + id
}
