package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/taakinstructies/internal/config"
	"github.com/yourusername/taakinstructies/internal/runs"
)

func newTestRouter(t *testing.T, store runs.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	cfg := &config.Config{
		MaxFileSize:           1 << 20,
		MaxPages:              100,
		MaxRows:               100,
		LayoutArity:           4,
		LayoutLabel:           true,
		RequestTimeoutSeconds: 10,
		CSVDelimiter:          ";",
	}
	setupRoutes(router, cfg, store)
	return router
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, runs.NewMemoryStore(time.Minute))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["status"] != "ok" || payload["service"] != "taakinstructies-api" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestRunStatus(t *testing.T) {
	store := runs.NewMemoryStore(time.Minute)
	ctx := context.Background()
	if err := store.Upsert(ctx, &runs.Record{RunID: "run-1", Status: runs.StatusRunning}); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if err := store.MarkDone(ctx, "run-1", &runs.Summary{Rows: 1, Entries: []string{"1 A.pdf", "bundled.pdf"}}); err != nil {
		t.Fatalf("MarkDone returned error: %v", err)
	}
	router := newTestRouter(t, store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	var record runs.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if record.Status != runs.StatusSucceeded || record.Summary == nil || record.Summary.Rows != 1 {
		t.Fatalf("unexpected record: %#v", record)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status for missing run: %d", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["code"] != "RUN_NOT_FOUND" {
		t.Fatalf("unexpected code: %s", payload["code"])
	}
}

func TestSetupRunStoreDefaultsToMemory(t *testing.T) {
	store, err := setupRunStore(&config.Config{RunExpireMinutes: 1})
	if err != nil {
		t.Fatalf("setupRunStore returned error: %v", err)
	}
	if _, ok := store.(*runs.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}

	if _, err := setupRunStore(&config.Config{RunStoreRedisURL: "://bad"}); err == nil {
		t.Fatal("expected error for invalid redis url")
	}
}
