package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubCollectionChecker struct {
	exists bool
	err    error
}

func (s stubCollectionChecker) CollectionExists(_ context.Context, _ string) (bool, error) {
	return s.exists, s.err
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		checker    stubCollectionChecker
		wantStatus int
		wantState  string
	}{
		{"healthy", stubCollectionChecker{exists: true}, http.StatusOK, "healthy"},
		{"vector store down", stubCollectionChecker{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "unhealthy"},
		{"collection missing", stubCollectionChecker{exists: false}, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checker, "chunks")

			req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}

			var resp HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Status != tt.wantState {
				t.Errorf("expected status %q, got %q", tt.wantState, resp.Status)
			}
			if tt.wantState == "unhealthy" {
				if len(resp.Issues) != 1 || resp.Issues[0] != "vector_store_unavailable" {
					t.Errorf("unexpected issues: %v", resp.Issues)
				}
			}
		})
	}
}

func TestHealthHandlerMethodNotAllowed(t *testing.T) {
	h := NewHealthHandler(stubCollectionChecker{exists: true}, "chunks")

	req := httptest.NewRequest(http.MethodPost, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}
