package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "json", "info")
	defer Setup(&bytes.Buffer{}, "text", "info")

	L().Info("hello", "provider", "openai")
	Debugf("hidden %d", 1)

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "hello" || rec["provider"] != "openai" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestDisable(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "json", "debug")
	defer Setup(&bytes.Buffer{}, "text", "info")

	Disable()
	Infof("dropped %s", "line")
	Enable()
	if buf.Len() != 0 {
		t.Errorf("expected no output while disabled, got %q", buf.String())
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil)).With("run", "r1")
	ctx := NewContext(context.Background(), l)

	WithContext(ctx).Infof("item %s", "a")
	if !bytes.Contains(buf.Bytes(), []byte(`"run":"r1"`)) {
		t.Errorf("context logger not used: %q", buf.String())
	}
}
