package log_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pithecene-io/burrow/log"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		entries = append(entries, m)
	}
	return entries
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewLoggerWithWriter(log.Meta{InstanceID: "inst-1", SessionID: "sess-1"}, &buf)

	logger.Info("record added", map[string]any{"record_id": "r1"})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e["level"] != "info" {
		t.Errorf("level = %v, want info", e["level"])
	}
	if e["message"] != "record added" {
		t.Errorf("message = %v", e["message"])
	}
	if e["instance_id"] != "inst-1" || e["session_id"] != "sess-1" {
		t.Errorf("context fields missing: %v", e)
	}
	if _, ok := e["timestamp"]; !ok {
		t.Error("timestamp missing")
	}
	fields, _ := e["fields"].(map[string]any)
	if fields["record_id"] != "r1" {
		t.Errorf("fields = %v", e["fields"])
	}
}

func TestLogger_OmitsEmptySession(t *testing.T) {
	var buf bytes.Buffer
	log.NewLoggerWithWriter(log.Meta{InstanceID: "inst-1"}, &buf).Warn("w", nil)

	e := decodeLines(t, &buf)[0]
	if _, ok := e["session_id"]; ok {
		t.Errorf("session_id present for empty session: %v", e)
	}
}

func TestLogger_WithOutputKeepsContext(t *testing.T) {
	var first, second bytes.Buffer
	logger := log.NewLoggerWithWriter(log.Meta{InstanceID: "inst-2"}, &first).With("queue")

	logger.WithOutput(&second).Error("boom", nil)

	if first.Len() != 0 {
		t.Errorf("original writer received output: %q", first.String())
	}
	e := decodeLines(t, &second)[0]
	if e["instance_id"] != "inst-2" || e["component"] != "queue" {
		t.Errorf("context lost after WithOutput: %v", e)
	}
}

func TestLogger_NilIsNoop(t *testing.T) {
	var logger *log.Logger
	logger.Info("ignored", nil)
	logger.Debug("ignored", nil)
	if logger.With("x") != nil {
		t.Error("With on nil logger returned non-nil")
	}
	if err := logger.Sync(); err != nil {
		t.Errorf("Sync() = %v", err)
	}
	logger.Sugar().Infof("ignored %d", 1)
}
