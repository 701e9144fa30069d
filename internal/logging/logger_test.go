package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: nil},
		{name: "explicit debug level", config: &Config{Level: LevelDebug, Output: &bytes.Buffer{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.config)
			if logger == nil {
				t.Error("NewLogger() returned nil")
			}
		})
	}
}

func TestLoggerLevelGating(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("should not appear")
	logger.Info("should not appear either")
	if buf.Len() != 0 {
		t.Errorf("expected no output below configured level, got: %s", buf.String())
	}

	logger.Warn("this should appear")
	if !strings.Contains(buf.String(), "this should appear") {
		t.Errorf("expected warn message in output, got: %s", buf.String())
	}
}

func TestLoggerWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	laneLogger := logger.WithComponent("lane", 2)
	laneLogger.Info("slot reserved", "seq", 7)

	output := buf.String()
	if !strings.Contains(output, "component=lane") {
		t.Errorf("expected component=lane in output, got: %s", output)
	}
	if !strings.Contains(output, "id=2") {
		t.Errorf("expected id=2 in output, got: %s", output)
	}
	if !strings.Contains(output, "seq=7") {
		t.Errorf("expected seq=7 in output, got: %s", output)
	}
}

func TestLoggerWithComponentChaining(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	tableLogger := logger.WithComponent("reliability", 1).WithComponent("producer", 9)
	tableLogger.Debug("send accepted")

	output := buf.String()
	if !strings.Contains(output, "component=reliability") || !strings.Contains(output, "component=producer") {
		t.Errorf("expected both component tags to be preserved, got: %s", output)
	}
	if !strings.Contains(output, "id=1") || !strings.Contains(output, "id=9") {
		t.Errorf("expected both id tags to be preserved, got: %s", output)
	}
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))
	t.Cleanup(func() { SetDefault(NewLogger(nil)) })

	Debug("debug message", "key", "value")
	if !strings.Contains(buf.String(), "debug message") || !strings.Contains(buf.String(), "key=value") {
		t.Errorf("expected debug message with fields, got: %s", buf.String())
	}

	buf.Reset()
	Info("info message")
	if !strings.Contains(buf.String(), "info message") {
		t.Errorf("expected info message, got: %s", buf.String())
	}

	buf.Reset()
	Warn("warning message")
	if !strings.Contains(buf.String(), "warning message") {
		t.Errorf("expected warning message, got: %s", buf.String())
	}

	buf.Reset()
	Error("error message")
	if !strings.Contains(buf.String(), "error message") {
		t.Errorf("expected error message, got: %s", buf.String())
	}
}
