package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_ReturnsJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelInfo)

	if l == nil {
		t.Fatal("expected non-nil logger")
	}

	l.Info("test message", slog.String("key", "value"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, buf.String())
	}

	if entry["msg"] != "test message" {
		t.Errorf("msg = %q, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %q, want %q", entry["key"], "value")
	}
}

func TestNew_IncludesTimeField(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelInfo)

	l.Info("test")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in JSON log output")
	}
}

func TestNew_IncludesLevelField(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelInfo)

	l.Warn("warning test")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if entry["level"] != "WARN" {
		t.Errorf("level = %q, want %q", entry["level"], "WARN")
	}
}

func TestNew_MultipleAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelInfo)

	l.Info("user registered",
		slog.String("user_id", "u-123"),
		slog.String("cognito_id", "c-456"),
		slog.String("url", "https://example.com/hook"),
		slog.Int("http_status", 200),
		slog.Int("team_id", 25),
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if entry["user_id"] != "u-123" {
		t.Errorf("user_id = %q, want %q", entry["user_id"], "u-123")
	}
	if entry["cognito_id"] != "c-456" {
		t.Errorf("cognito_id = %q, want %q", entry["cognito_id"], "c-456")
	}
	if entry["url"] != "https://example.com/hook" {
		t.Errorf("url = %q, want %q", entry["url"], "https://example.com/hook")
	}
	if entry["http_status"] != float64(200) {
		t.Errorf("http_status = %v, want %v", entry["http_status"], 200)
	}
	if entry["team_id"] != float64(25) {
		t.Errorf("team_id = %v, want %v", entry["team_id"], 25)
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	SetupDefault(&buf, slog.LevelInfo)

	slog.Default().Info("global test", slog.String("test_key", "test_val"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v\nraw: %s", err, buf.String())
	}

	if entry["msg"] != "global test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "global test")
	}
	if entry["test_key"] != "test_val" {
		t.Errorf("test_key = %q, want %q", entry["test_key"], "test_val")
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelWarn)

	l.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("INFO should be filtered at WARN level, got %s", buf.String())
	}

	l.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("WARN should be written, got %s", buf.String())
	}
}

func TestNew_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelInfo)

	l.Info("debug", slog.String("password", "pw123"), slog.String("password_hash", "$2a$10$abc"))

	if strings.Contains(buf.String(), "pw123") || strings.Contains(buf.String(), "$2a$10$abc") {
		t.Errorf("secrets leaked: %s", buf.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if entry["password"] != redacted {
		t.Errorf("password = %v, want %q", entry["password"], redacted)
	}
}

func TestNew_RedactsTokenKey(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelInfo)

	l.Info("webhook", slog.String("token", "header.payload.signature"))

	if strings.Contains(buf.String(), "header.payload.signature") {
		t.Errorf("token leaked: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewCLI_VerboseToggle(t *testing.T) {
	var quiet bytes.Buffer
	NewCLI(&quiet, false).Info("hidden")
	if quiet.Len() != 0 {
		t.Errorf("non-verbose CLI logger should drop INFO, got %s", quiet.String())
	}

	var verbose bytes.Buffer
	NewCLI(&verbose, true).Debug("shown")
	if !strings.Contains(verbose.String(), "shown") {
		t.Errorf("verbose CLI logger should write DEBUG, got %s", verbose.String())
	}
}
