package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Component: ComponentApp,
		Handler:   slog.NewTextHandler(&buf, nil),
	})

	logger.Info("server starting", "port", "8082")

	out := buf.String()
	if !strings.Contains(out, FieldComponent+"="+ComponentApp) {
		t.Errorf("record missing component tag: %q", out)
	}
	if !strings.Contains(out, "port=8082") {
		t.Errorf("record missing caller attrs: %q", out)
	}

	buf.Reset()
	logger.Error("open failed", "error", "boom")
	out = buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, FieldComponent+"="+ComponentApp) {
		t.Errorf("error record = %q", out)
	}
}

func TestNewDefaultsToLevelHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:     slog.LevelWarn,
		Component: ComponentApp,
		Handler:   slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}),
	})

	logger.Info("below threshold")
	if buf.Len() != 0 {
		t.Errorf("info record emitted below level threshold: %q", buf.String())
	}
}
