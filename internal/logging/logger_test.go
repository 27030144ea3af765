package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestLoggerFormatsKeyValuePairs(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{prefix: "test", logger: log.New(&buf, "", 0)}

	l.Info("ingestion complete", "task_id", "abc123", "chunks", 42)

	got := buf.String()
	if !strings.Contains(got, "[INFO] ingestion complete task_id=abc123 chunks=42") {
		t.Fatalf("unexpected log output: %q", got)
	}
}

func TestLoggerIgnoresTrailingUnpairedKey(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{prefix: "test", logger: log.New(&buf, "", 0)}

	l.Warn("odd args", "only_key")

	got := buf.String()
	if !strings.Contains(got, "[WARN] odd args") {
		t.Fatalf("unexpected log output: %q", got)
	}
	if strings.Contains(got, "only_key=") {
		t.Fatalf("expected an unpaired trailing key to be dropped, got %q", got)
	}
}
