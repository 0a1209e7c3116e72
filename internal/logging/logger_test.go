// Package logging provides unit tests for the structured logger.
package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// TestLoggerLevels tests that messages below the minimum level are dropped.
func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{out: &buf, minLevel: LevelWarn}

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message", errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 log lines, got %d: %q", len(lines), buf.String())
	}
}

// TestLoggerJSONShape tests the structure of an emitted entry.
func TestLoggerJSONShape(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{out: &buf, minLevel: LevelDebug}

	l.Info("sync started", map[string]interface{}{"entity": "orders"})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to unmarshal log entry: %v", err)
	}

	if entry.Level != "INFO" {
		t.Errorf("Expected level INFO, got %s", entry.Level)
	}
	if entry.Message != "sync started" {
		t.Errorf("Expected message %q, got %q", "sync started", entry.Message)
	}
	if entry.Context["entity"] != "orders" {
		t.Errorf("Expected context entity=orders, got %v", entry.Context)
	}
	if entry.Timestamp == "" {
		t.Error("Expected timestamp to be set")
	}
}

// TestLoggerErrorWithCode tests code tagging on error entries.
func TestLoggerErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{out: &buf, minLevel: LevelDebug}

	l.ErrorWithCode("push failed", "SYNC_NETWORK_ERROR", errors.New("dial tcp: refused"))

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to unmarshal log entry: %v", err)
	}

	if entry.Code != "SYNC_NETWORK_ERROR" {
		t.Errorf("Expected code SYNC_NETWORK_ERROR, got %s", entry.Code)
	}
	if entry.Error == "" {
		t.Error("Expected error field to be set")
	}
}

// TestMergeContext tests merging of multiple context maps.
func TestMergeContext(t *testing.T) {
	merged := mergeContext(
		map[string]interface{}{"a": 1},
		map[string]interface{}{"b": 2},
	)

	if merged["a"] != 1 || merged["b"] != 2 {
		t.Errorf("Expected merged context, got %v", merged)
	}

	if mergeContext() != nil {
		t.Error("Expected nil for empty context")
	}
}
