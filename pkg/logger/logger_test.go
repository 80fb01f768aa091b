package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"friendgeo/pkg/config"

	"github.com/rs/zerolog"
)

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &zerologLogger{logger: &zlog, fields: map[string]interface{}{}}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"pretty debug", &config.LoggingConfig{Level: "debug", Pretty: true}, false},
		{"empty level defaults to info", &config.LoggingConfig{}, false},
		{"invalid level", &config.LoggingConfig{Level: "chatty"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && l == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"verbose", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestFieldChaining(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.WithField("city", "portland").
		WithFields(map[string]interface{}{"user_type": "star", "attempt": 2}).
		InfoWithFields("fetched", map[string]interface{}{"edges": 17, "took": time.Second})

	out := buf.String()
	for _, want := range []string{`"city":"portland"`, `"user_type":"star"`, `"attempt":2`, `"edges":17`, `"message":"fetched"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}

func TestChildDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	_ = l.WithField("worker_id", 3)
	l.Info("parent")

	if strings.Contains(buf.String(), "worker_id") {
		t.Errorf("parent logger picked up child field: %s", buf.String())
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	if l.WithError(nil) != Logger(l) {
		t.Error("WithError(nil) should return the same logger")
	}

	l.WithError(errors.New("quota exceeded")).Error("geocode failed")
	if !strings.Contains(buf.String(), "quota exceeded") {
		t.Errorf("error not rendered: %s", buf.String())
	}
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogRateLimit(tl, "graph", 2, 4*time.Second)
	LogStageProgress(tl, "fetch-graph", 5, 20)
	LogComponentStart(tl, "geocoder", map[string]interface{}{"threads": 4})
	LogComponentStop(tl, "geocoder", "completed")
	LogMetrics(tl, "aggregate", map[string]interface{}{"records": 9})

	warns := tl.GetMessagesByLevel("WARN")
	if len(warns) != 1 || warns[0].Fields["provider"] != "graph" {
		t.Fatalf("unexpected warnings: %+v", warns)
	}
	if !tl.HasMessage("Stage progress") || !tl.HasMessage("Run metrics") {
		t.Errorf("missing helper output:\n%s", tl.String())
	}
	for _, m := range tl.GetMessages() {
		if m.Message == "Stage progress" && m.Fields["percentage"] != "25.0%" {
			t.Errorf("percentage = %v", m.Fields["percentage"])
		}
	}
}

func TestTestLoggerSharesCapture(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("city", "buffalo").WithError(errors.New("boom"))
	child.Warn("skipped user")

	msgs := tl.GetMessages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Fields["city"] != "buffalo" || msgs[0].Error == nil {
		t.Errorf("child context lost: %+v", msgs[0])
	}

	tl.Clear()
	if len(tl.GetMessages()) != 0 {
		t.Error("Clear did not reset messages")
	}
}

func TestGlobalLogger(t *testing.T) {
	if err := Initialize(&config.LoggingConfig{Level: "debug"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if GetLogger() == nil {
		t.Fatal("GetLogger() returned nil")
	}

	tl := NewTestLogger()
	SetLogger(tl)
	defer SetLogger(nil)

	WithField("k", "v").Info("via global")
	if !tl.HasMessage("via global") {
		t.Error("global helpers did not reach the installed logger")
	}
}
