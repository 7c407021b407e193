package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, []string{"username", "created"}, [][]string{
		{"alice", "2026-01-01"},
		{"bob", "2026-02-01"},
	})

	out := buf.String()
	for _, want := range []string{"USERNAME", "CREATED", "alice", "bob"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestKeyValueTable(t *testing.T) {
	var buf bytes.Buffer
	KeyValueTable(&buf, [][2]string{
		{"state", "running"},
		{"sessions", "4"},
	})

	out := buf.String()
	if !strings.Contains(out, "state") || !strings.Contains(out, "running") {
		t.Errorf("Expected key/value pair in output, got:\n%s", out)
	}
}
