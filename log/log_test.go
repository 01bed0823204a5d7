package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func captureLogger(buf *bytes.Buffer) *Logger {
	h := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewWithHandler(h)
}

func TestModuleAttribute(t *testing.T) {
	var buf bytes.Buffer
	l := captureLogger(&buf).Module("gateway")
	l.Info("stake declared", "nonce", 1)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if rec["module"] != "gateway" {
		t.Errorf("module attr: got %v, want gateway", rec["module"])
	}
	if rec["msg"] != "stake declared" {
		t.Errorf("msg: got %v", rec["msg"])
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	l := captureLogger(&buf).With("chain", "value")
	l.Warn("root missing")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if rec["chain"] != "value" {
		t.Errorf("chain attr: got %v", rec["chain"])
	}
}

func TestSetDefaultIgnoresNil(t *testing.T) {
	orig := Default()
	SetDefault(nil)
	if Default() != orig {
		t.Error("SetDefault(nil) must not replace the default logger")
	}
}
