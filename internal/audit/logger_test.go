package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestLogger(t *testing.T) (Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")

	logger, err := NewLogger(&Config{
		Enabled:       true,
		Path:          path,
		MaxSize:       10,
		MaxBackups:    3,
		MaxAge:        7,
		FlushInterval: time.Hour,
	}, nil)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	return logger, path
}

func readEntries(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var entries []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("invalid audit line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLoggerDisabled(t *testing.T) {
	logger, err := NewLogger(&Config{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if _, ok := logger.(nopLogger); !ok {
		t.Errorf("Expected no-op logger when disabled, got %T", logger)
	}
	if err := logger.LogAnalysisStarted(context.Background(), "req-1"); err != nil {
		t.Errorf("no-op logger returned error: %v", err)
	}
}

func TestNewLoggerRequiresPath(t *testing.T) {
	if _, err := NewLogger(&Config{Enabled: true}, nil); err == nil {
		t.Fatal("Expected error for missing audit log path")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Enabled {
		t.Error("Expected audit to be disabled by default")
	}
	if config.Path != "logs/audit.log" {
		t.Errorf("Expected audit log path 'logs/audit.log', got %s", config.Path)
	}
	if config.MaxSize != 100 {
		t.Errorf("Expected max size 100, got %d", config.MaxSize)
	}
}

func TestAnalysisLifecycle(t *testing.T) {
	logger, path := newTestLogger(t)
	ctx := context.Background()

	_ = logger.LogAnalysisStarted(ctx, "req-1")
	_ = logger.LogChannelExtracted(ctx, "req-1", "1111", true)
	_ = logger.LogAnalysisCompleted(ctx, "req-1", "1111", 1500*time.Millisecond)
	_ = logger.LogAnalysisFailed(ctx, "req-2", errors.New("provider timeout"))

	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries := readEntries(t, path)
	if len(entries) != 4 {
		t.Fatalf("Expected 4 audit entries, got %d", len(entries))
	}

	wantTypes := []EventType{EventAnalysisStarted, EventChannelExtracted, EventAnalysisCompleted, EventAnalysisFailed}
	for i, want := range wantTypes {
		if got := entries[i]["event_type"]; got != string(want) {
			t.Errorf("entry %d: expected event_type %s, got %v", i, want, got)
		}
	}

	var failed Event
	if err := json.Unmarshal([]byte(entries[3]["message"].(string)), &failed); err != nil {
		t.Fatalf("message is not an event: %v", err)
	}
	if failed.Result != ResultFailure {
		t.Errorf("Expected failure result, got %s", failed.Result)
	}
	if failed.Error != "provider timeout" {
		t.Errorf("Expected error text, got %q", failed.Error)
	}

	var completed Event
	_ = json.Unmarshal([]byte(entries[2]["message"].(string)), &completed)
	if completed.DurationMs != 1500 {
		t.Errorf("Expected duration 1500ms, got %d", completed.DurationMs)
	}
	if completed.Channel != "1111" {
		t.Errorf("Expected channel 1111, got %s", completed.Channel)
	}
}

func TestLogUsesContextCorrelationID(t *testing.T) {
	logger, path := newTestLogger(t)

	ctx := WithCorrelationID(context.Background(), "ctx-id")
	_ = logger.Log(ctx, NewEvent(EventConfigReload))
	_ = logger.Close()

	entries := readEntries(t, path)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0]["correlation_id"] != "ctx-id" {
		t.Errorf("Expected correlation id from context, got %v", entries[0]["correlation_id"])
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	logger, _ := newTestLogger(t)
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestEventBuilder(t *testing.T) {
	event := NewEvent(EventAnalysisCompleted).
		WithCorrelationID("abc").
		WithChannel("2222").
		WithModel("gemini", "gemini-2.5-flash").
		WithMetadata("filtered", false).
		WithResult(ResultSuccess)

	if event.CorrelationID != "abc" || event.Channel != "2222" {
		t.Errorf("unexpected event: %+v", event)
	}
	if event.Provider != "gemini" || event.Model != "gemini-2.5-flash" {
		t.Errorf("unexpected model fields: %+v", event)
	}
	if event.Metadata["filtered"] != false {
		t.Errorf("metadata not set: %+v", event.Metadata)
	}
	if event.WithError(nil, "x").Result != ResultSuccess {
		t.Error("nil error must not change the result")
	}
}

func TestGenerateCorrelationID(t *testing.T) {
	a, b := GenerateCorrelationID(), GenerateCorrelationID()
	if a == "" || a == b {
		t.Errorf("Expected unique ids, got %q and %q", a, b)
	}
}
