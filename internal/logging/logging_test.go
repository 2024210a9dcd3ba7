package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/viant/sparsevec/internal/config"
)

func TestNew_Disabled(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, config.LogConfig{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Error("dropped")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestNew_TextLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, config.LogConfig{Level: "warn"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", 3)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record leaked at warn level: %q", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "k=3") {
		t.Errorf("unexpected text output %q", out)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, config.LogConfig{Level: "DEBUG", Format: "json"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Debug("indexed", "dataset", "a")
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if rec["msg"] != "indexed" || rec["dataset"] != "a" || rec["level"] != "DEBUG" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, config.LogConfig{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New(&bytes.Buffer{}, config.LogConfig{Level: "info", Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}
