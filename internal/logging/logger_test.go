package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"invalid", LevelInfo},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			if got := ParseLevel(tc.input); got != tc.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tc.input, got, tc.expected)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	if got := Level(99).String(); got != "unknown" {
		t.Errorf("Level(99).String() = %q, want %q", got, "unknown")
	}
	if got := LevelWarn.String(); got != "warn" {
		t.Errorf("LevelWarn.String() = %q, want %q", got, "warn")
	}
}

func TestParseFormat(t *testing.T) {
	if got := ParseFormat("text"); got != FormatText {
		t.Errorf("ParseFormat(text) = %v, want %v", got, FormatText)
	}
	if got := ParseFormat("bogus"); got != FormatJSON {
		t.Errorf("ParseFormat(bogus) = %v, want %v", got, FormatJSON)
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})

	l.Errorf("counter provider failed", map[string]any{
		"metric": "Internal/CPU/% Usage@1s",
		"error":  "boom",
	})

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if entry.Level != "error" {
		t.Errorf("Level = %q, want %q", entry.Level, "error")
	}
	if entry.Message != "counter provider failed" {
		t.Errorf("Message = %q", entry.Message)
	}
	if entry.Fields["metric"] != "Internal/CPU/% Usage@1s" {
		t.Errorf("Fields[metric] = %v", entry.Fields["metric"])
	}
	if entry.Timestamp.IsZero() {
		t.Error("Timestamp is zero")
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Output: &buf})

	l.Debug("debug")
	l.Info("info")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %q", buf.String())
	}

	l.Warn("warn")
	if buf.Len() == 0 {
		t.Fatal("expected warn output")
	}

	buf.Reset()
	l.SetLevel(LevelDebug)
	l.Debug("debug")
	if buf.Len() == 0 {
		t.Error("expected debug output after SetLevel")
	}
	if got := l.GetLevel(); got != LevelDebug {
		t.Errorf("GetLevel() = %v, want %v", got, LevelDebug)
	}
}

func TestLoggerWithPromotesComponentAndInstance(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: LevelInfo, Output: &buf})
	l := base.With(map[string]any{
		"component": "counter_scheduler",
		"instance":  "abc-123",
		"bucket":    "1s",
	})

	l.Info("tick")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if entry.Component != "counter_scheduler" {
		t.Errorf("Component = %q, want counter_scheduler", entry.Component)
	}
	if entry.Instance != "abc-123" {
		t.Errorf("Instance = %q, want abc-123", entry.Instance)
	}
	if entry.Fields["bucket"] != "1s" {
		t.Errorf("Fields[bucket] = %v, want 1s", entry.Fields["bucket"])
	}
	if _, ok := entry.Fields["component"]; ok {
		t.Error("component should not be duplicated in fields")
	}
}

func TestLoggerWithDoesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: LevelInfo, Output: &buf})
	_ = base.With(map[string]any{"k": "v"}).WithComponent("probes")

	base.Info("plain")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if entry.Component != "" || len(entry.Fields) != 0 {
		t.Errorf("base logger was mutated: %+v", entry)
	}
}

func TestLoggerTextFormatSortsFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Format: FormatText, Output: &buf}).WithInstance("i-1")

	l.Infof("sample", map[string]any{"b": 2, "a": "x"})

	out := buf.String()
	if !strings.Contains(out, "[info] sample") {
		t.Errorf("missing level/message in %q", out)
	}
	if !strings.Contains(out, "instance=i-1") {
		t.Errorf("missing instance in %q", out)
	}
	if !strings.Contains(out, " a=x b=2") {
		t.Errorf("fields not sorted in %q", out)
	}
}

func TestLoggerCallerInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf, AddCaller: true})

	l.Info("with caller")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if !strings.HasSuffix(entry.File, "logger_test.go") {
		t.Errorf("File = %q, want logger_test.go", entry.File)
	}
	if entry.Line == 0 {
		t.Error("Line = 0, want non-zero")
	}
}
