// Package runs は生成リクエストごとの実行記録（状態・進捗・警告）を保持します。
// アップロードされたファイルそのものは保存しません。
package runs

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound は更新対象の実行記録が存在しないことを表します。
var ErrNotFound = errors.New("run not found")

// Status は実行状態を表します。
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "done"
	StatusFailed    Status = "error"
)

// ProgressInfo は進捗の補足情報を表します。
type ProgressInfo struct {
	Percent int    `json:"percent"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorInfo は失敗時のエラー情報を保持します。
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Warning は処理を止めずに補正した入力の記録です。
type Warning struct {
	Row     int    `json:"row"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Summary は成功時に保存する成果の概要です。
type Summary struct {
	Rows     int       `json:"rows"`
	Entries  []string  `json:"entries"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// Record は実行の現在状態を表します。
type Record struct {
	RunID     string       `json:"runId"`
	Status    Status       `json:"status"`
	Progress  ProgressInfo `json:"progress"`
	Summary   *Summary     `json:"summary,omitempty"`
	Error     *ErrorInfo   `json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// Store は実行記録の保存先です。
type Store interface {
	// Get は記録を返します。存在しない場合は nil, nil を返します。
	Get(ctx context.Context, runID string) (*Record, error)
	Upsert(ctx context.Context, record *Record) error
	UpdateProgress(ctx context.Context, runID string, progress ProgressInfo) error
	MarkDone(ctx context.Context, runID string, summary *Summary) error
	MarkFailed(ctx context.Context, runID string, errInfo *ErrorInfo) error
}

func markDone(summary *Summary) func(*Record) {
	return func(record *Record) {
		record.Status = StatusSucceeded
		record.Progress = ProgressInfo{
			Percent: 100,
			Stage:   "completed",
		}
		record.Summary = summary
		record.Error = nil
	}
}

func markFailed(errInfo *ErrorInfo) func(*Record) {
	return func(record *Record) {
		record.Status = StatusFailed
		if errInfo != nil {
			record.Error = errInfo
		}
	}
}

func updateProgress(progress ProgressInfo) func(*Record) {
	return func(record *Record) {
		if progress.Percent < record.Progress.Percent {
			return
		}
		record.Progress = progress
	}
}

func stamp(record *Record, now time.Time, ttl time.Duration) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if ttl > 0 {
		record.ExpiresAt = now.Add(ttl)
	}
}
