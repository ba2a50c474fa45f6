package config

import (
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setBaseEnv sets the minimal required environment plus a throwaway DB path
// so Load never touches the working directory.
func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("QDRANT_VECTOR_SIZE", "1536")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "data", "test.db"))
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.QdrantVectorSize != 1536 {
		t.Errorf("unexpected vector size: %d", cfg.QdrantVectorSize)
	}
	if cfg.RetrievalCandidates != 20 || cfg.RetrievalThreshold != 0.65 || cfg.RetrievalCount != 5 {
		t.Errorf("unexpected retrieval defaults: %d/%v/%d",
			cfg.RetrievalCandidates, cfg.RetrievalThreshold, cfg.RetrievalCount)
	}
	if cfg.GateMaxChars != 80 || cfg.GateMaxWords != 12 {
		t.Errorf("unexpected gate defaults: %d/%d", cfg.GateMaxChars, cfg.GateMaxWords)
	}
	if cfg.HistoryLimit != 10 {
		t.Errorf("unexpected history limit: %d", cfg.HistoryLimit)
	}
	if cfg.ClassifyTimeout != 10*time.Second {
		t.Errorf("unexpected classify timeout: %v", cfg.ClassifyTimeout)
	}
	if cfg.RateLimitPerMinute != 30 || cfg.RateLimitBurst != 10 {
		t.Errorf("unexpected rate limit defaults: %d/%d", cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("unexpected log level: %v", cfg.LogLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("RETRIEVAL_CANDIDATES", "30")
	t.Setenv("RETRIEVAL_THRESHOLD", "0.7")
	t.Setenv("GATE_MAX_CHARS", "120")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("API_PORT", "8088")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RetrievalCandidates != 30 || cfg.RetrievalThreshold != 0.7 {
		t.Errorf("overrides not applied: %d/%v", cfg.RetrievalCandidates, cfg.RetrievalThreshold)
	}
	if cfg.GateMaxChars != 120 {
		t.Errorf("gate override not applied: %d", cfg.GateMaxChars)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("unexpected log level: %v", cfg.LogLevel)
	}
	if cfg.APIPort != "8088" {
		t.Errorf("unexpected port: %q", cfg.APIPort)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing vector size",
			env:     map[string]string{"QDRANT_VECTOR_SIZE": ""},
			wantErr: "QDRANT_VECTOR_SIZE is required",
		},
		{
			name:    "non-numeric vector size",
			env:     map[string]string{"QDRANT_VECTOR_SIZE": "large"},
			wantErr: "valid integer",
		},
		{
			name:    "zero vector size",
			env:     map[string]string{"QDRANT_VECTOR_SIZE": "0"},
			wantErr: "greater than 0",
		},
		{
			name: "count exceeds candidates",
			env: map[string]string{
				"QDRANT_VECTOR_SIZE":   "1536",
				"RETRIEVAL_CANDIDATES": "3",
				"RETRIEVAL_COUNT":      "5",
			},
			wantErr: "must not exceed",
		},
		{
			name: "threshold out of range",
			env: map[string]string{
				"QDRANT_VECTOR_SIZE":  "1536",
				"RETRIEVAL_THRESHOLD": "1.5",
			},
			wantErr: "between 0 and 1",
		},
		{
			name: "zero classify timeout",
			env: map[string]string{
				"QDRANT_VECTOR_SIZE":       "1536",
				"CLASSIFY_TIMEOUT_SECONDS": "0",
			},
			wantErr: "greater than 0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "data", "test.db"))
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
