package common

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" DEBUG ": slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("dropped")
	logger.Warn("kept", "file", "a.png")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not a single JSON line: %q", buf.String())
	}
	if line["msg"] != "kept" || line["file"] != "a.png" {
		t.Errorf("line = %v", line)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("SICAL_DOTENV_NEW=from-file\nSICAL_DOTENV_SET=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SICAL_DOTENV_SET", "from-env")
	t.Setenv("SICAL_DOTENV_NEW", "")
	os.Unsetenv("SICAL_DOTENV_NEW")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("SICAL_DOTENV_NEW"); got != "from-file" {
		t.Errorf("SICAL_DOTENV_NEW = %q", got)
	}
	if got := os.Getenv("SICAL_DOTENV_SET"); got != "from-env" {
		t.Errorf("SICAL_DOTENV_SET = %q, environment should win", got)
	}
}
