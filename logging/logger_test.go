package logging

import (
	"bytes"
	"context"
	"errors"
	"os"
	"runtime"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("test-component")
	if logger == nil {
		t.Fatal("Expected logger to be created")
	}

	if logger.Data["component"] != "test-component" {
		t.Errorf("Expected component to be 'test-component', got %v", logger.Data["component"])
	}

	if NewLogger("test-component") != logger {
		t.Error("Expected the same logger for the same component")
	}
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer

	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&TextFormatter{Config: FormatConfig{}})

	entry := logger.WithField("component", "sync")
	entry.Info("Dispatched envelope")

	output := buf.String()
	for _, want := range []string{"[INFO]", "sync", "Dispatched envelope"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected output to contain %q, got: %s", want, output)
		}
	}
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name    string
		config  FormatConfig
		entry   *logrus.Entry
		want    []string
		notWant []string
	}{
		{
			name:   "default format",
			config: FormatConfig{},
			entry: &logrus.Entry{
				Level:   logrus.InfoLevel,
				Message: "remote update",
				Data: logrus.Fields{
					"component": "syncmgr",
					"domain":    "groups",
					"origin":    "gm-1",
				},
			},
			want: []string{"[INFO]", "syncmgr", "remote update", "domain=groups origin=gm-1"},
		},
		{
			name: "simple format",
			config: FormatConfig{
				DisableTimestamp: true,
				DisableComponent: true,
			},
			entry: &logrus.Entry{
				Level:   logrus.WarnLevel,
				Message: "permission denied",
				Data: logrus.Fields{
					"component": "stores",
				},
			},
			want:    []string{"[WARN]", "permission denied"},
			notWant: []string{"stores"},
		},
		{
			name:   "caller information with function name",
			config: FormatConfig{},
			entry: func() *logrus.Entry {
				logger := logrus.New()
				logger.SetReportCaller(true)
				return &logrus.Entry{
					Logger:  logger,
					Level:   logrus.InfoLevel,
					Message: "with caller",
					Data:    logrus.Fields{"component": "kv"},
					Caller: &runtime.Frame{
						File:     "/path/to/file.go",
						Line:     42,
						Function: "github.com/example/package.TestFunction",
					},
				}
			}(),
			want: []string{"[INFO]", "with caller", "[file.go:42 package.TestFunction]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &TextFormatter{Config: tt.config}
			tt.entry.Time = tt.entry.Time.UTC()

			output, err := formatter.Format(tt.entry)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			outputStr := string(output)
			for _, want := range tt.want {
				if !strings.Contains(outputStr, want) {
					t.Errorf("Expected output to contain '%s', got: %s", want, outputStr)
				}
			}
			for _, notWant := range tt.notWant {
				if strings.Contains(outputStr, notWant) {
					t.Errorf("Expected output NOT to contain '%s', got: %s", notWant, outputStr)
				}
			}
		})
	}
}

func TestEnvironmentVariables(t *testing.T) {
	t.Setenv("CROWNEST_LOG_LEVEL", "debug")
	t.Setenv("CROWNEST_LOG_CALLER", "true")
	defer func() {
		loggersMu.Lock()
		delete(loggers, "env-test")
		loggersMu.Unlock()
	}()

	logger := NewLogger("env-test")

	if logger.Logger.Level != logrus.DebugLevel {
		t.Errorf("Expected debug level from env var, got %v", logger.Logger.Level)
	}
	if !logger.Logger.ReportCaller {
		t.Error("Expected caller reporting to be enabled from env var")
	}
}

func TestStderrModes(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalOutput(&buf)
	defer SetGlobalOutput(os.Stderr)
	t.Setenv("CROWNEST_LOG_LEVEL", "")

	always := newLogger("always", Config{Format: FormatConfig{StructuredToStderr: "always"}})
	always.Info("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("Expected 'always' mode to write to the global output, got: %q", buf.String())
	}

	buf.Reset()
	never := newLogger("never", Config{Format: FormatConfig{StructuredToStderr: "never"}})
	never.Error("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected 'never' mode to discard output, got: %q", buf.String())
	}
}

func TestJSONPreset(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalOutput(&buf)
	defer SetGlobalOutput(os.Stderr)

	logger := newLogger("json", Config{Level: "warn", Format: FormatConfig{Preset: "json", StructuredToStderr: "always"}})
	logger.Info("filtered")
	logger.WithField("domain", "tokens").Warn("rejected")

	out := buf.String()
	if strings.Contains(out, "filtered") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, `"domain":"tokens"`) || !strings.Contains(out, `"component":"json"`) {
		t.Errorf("unexpected json output: %s", out)
	}
}

func TestPrettyFromContext(t *testing.T) {
	var buf bytes.Buffer
	PrettyFrom(WithWriter(context.Background(), &buf)).Info("joined")
	if !strings.Contains(buf.String(), "joined") {
		t.Errorf("Expected notice on the context writer, got: %q", buf.String())
	}
}

func TestContextWriter(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithWriter(context.Background(), &buf)
	if GetWriter(ctx) != &buf {
		t.Error("Expected the context writer")
	}
	if GetWriter(context.Background()) != GetGlobalOutput() {
		t.Error("Expected fallback to the global output")
	}
}

func TestPrettyLogger(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrettyLogger().WithWriter(&buf)

	p.Success("saved")
	p.Warn("relay offline")
	p.Error("write failed", errors.New("quota"))
	p.Field("despair", 3)
	p.Change("tokens", "update", "despair 3")

	out := buf.String()
	for _, want := range []string{"saved", "relay offline", "write failed", "quota", "despair", "3", "tokens update"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got: %s", want, out)
		}
	}
}
