package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestStructuredTextOutput(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "DEBUG", "text", false)
	defer InitWithWriter(&buf, "INFO", "text", false)

	Info("session accepted", KeySessionID, 7, KeyClientAddr, "127.0.0.1:9999")

	out := buf.String()
	if !strings.Contains(out, "session accepted") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "session_id=7") {
		t.Errorf("expected session_id field in output, got %q", out)
	}
	if !strings.Contains(out, "client_addr=127.0.0.1:9999") {
		t.Errorf("expected client_addr field in output, got %q", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text", false)
	defer InitWithWriter(&buf, "INFO", "text", false)

	Debug("should be suppressed")
	Info("should be suppressed too")
	Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Errorf("low-level messages leaked through filter: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("warn message missing from output: %q", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json", false)
	defer InitWithWriter(&buf, "INFO", "text", false)

	Info("hello", "key", "value")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not valid JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "hello" {
		t.Errorf("expected msg=hello, got %v", record["msg"])
	}
	if record["key"] != "value" {
		t.Errorf("expected key=value, got %v", record["key"])
	}
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "DEBUG", "text", false)
	defer InitWithWriter(&buf, "INFO", "text", false)

	lc := NewLogContext(42, "10.0.0.1:5000")
	lc.Username = "alice"
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "message routed")

	out := buf.String()
	for _, want := range []string{"session_id=42", "client_addr=10.0.0.1:5000", "username=alice"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got %q", want, out)
		}
	}
}

func TestFromContextMissing(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Error("expected nil LogContext for plain context")
	}
	if FromContext(nil) != nil { //nolint:staticcheck // deliberate nil context
		t.Error("expected nil LogContext for nil context")
	}
}
