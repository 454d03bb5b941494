package runs

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore はプロセス内に実行記録を保持します。Redis を使わない開発環境向けです。
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore は MemoryStore を作成します。
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Get は実行記録を取得します。期限切れの記録は削除して nil を返します。
func (s *MemoryStore) Get(_ context.Context, runID string) (*Record, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[runID]
	if !ok {
		return nil, nil
	}
	if s.expired(record) {
		delete(s.records, runID)
		return nil, nil
	}
	return &record, nil
}

// Upsert は実行記録を保存します。
func (s *MemoryStore) Upsert(_ context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	if record.RunID == "" {
		return fmt.Errorf("record.RunID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp(record, s.now(), s.ttl)
	s.records[record.RunID] = *record
	s.sweep()
	return nil
}

// UpdateProgress は進捗を更新します。後退する進捗は無視します。
func (s *MemoryStore) UpdateProgress(_ context.Context, runID string, progress ProgressInfo) error {
	return s.updatePartial(runID, updateProgress(progress))
}

// MarkDone は成功時の情報を保存します。
func (s *MemoryStore) MarkDone(_ context.Context, runID string, summary *Summary) error {
	return s.updatePartial(runID, markDone(summary))
}

// MarkFailed は失敗時の情報を保存します。
func (s *MemoryStore) MarkFailed(_ context.Context, runID string, errInfo *ErrorInfo) error {
	return s.updatePartial(runID, markFailed(errInfo))
}

func (s *MemoryStore) updatePartial(runID string, mutate func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[runID]
	if !ok || s.expired(record) {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	mutate(&record)
	stamp(&record, s.now(), s.ttl)
	s.records[runID] = record
	return nil
}

func (s *MemoryStore) expired(record Record) bool {
	return !record.ExpiresAt.IsZero() && !s.now().Before(record.ExpiresAt)
}

// sweep は期限切れの記録を削除します。呼び出し側で mu を保持していること。
func (s *MemoryStore) sweep() {
	for id, record := range s.records {
		if s.expired(record) {
			delete(s.records, id)
		}
	}
}
