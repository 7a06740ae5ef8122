package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/mailpairs/internal/extract"
)

type staticProgress extract.Snapshot

func (p staticProgress) Snapshot() extract.Snapshot { return extract.Snapshot(p) }

func newTestServer(snap extract.Snapshot) *Server {
	return NewServer(8750, staticProgress(snap), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(extract.Snapshot{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	cp := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	srv := newTestServer(extract.Snapshot{
		RunID:          "run-1",
		Folder:         "Sent Items",
		State:          extract.StateRunning,
		Processed:      40,
		Total:          100,
		Conversations:  31,
		Evicted:        2,
		Dropped:        5,
		LastCheckpoint: &cp,
	})

	req := httptest.NewRequest("GET", "/api/v1/extract/status", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var body extract.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.RunID != "run-1" || body.Processed != 40 || body.Total != 100 || body.Dropped != 5 {
		t.Errorf("unexpected status %+v", body)
	}
	if body.LastCheckpoint == nil || !body.LastCheckpoint.Equal(cp) {
		t.Errorf("last checkpoint = %v", body.LastCheckpoint)
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := newTestServer(extract.Snapshot{})

	req := httptest.NewRequest("GET", "/nonexistent", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
