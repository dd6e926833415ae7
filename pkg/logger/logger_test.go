package logx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWritesRotatedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "aiflow.log")
	logger := New(Config{File: path, MaxSizeMB: 1})
	logger.Info().Str("component", "test").Msg("hello")
	logger.Debug().Msg("hidden")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(raw), `"message":"hello"`) {
		t.Fatalf("expected info line, got %s", raw)
	}
	if strings.Contains(string(raw), "hidden") {
		t.Fatalf("debug line should be filtered: %s", raw)
	}
}

func TestNewDebugLevel(t *testing.T) {
	t.Parallel()

	if got := New(Config{Debug: true}).GetLevel(); got != zerolog.DebugLevel {
		t.Fatalf("unexpected level: %v", got)
	}
	if got := New(Config{}).GetLevel(); got != zerolog.InfoLevel {
		t.Fatalf("unexpected level: %v", got)
	}
}
