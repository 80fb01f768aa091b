package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogRateLimit logs a provider throttling event before the caller backs off
func LogRateLimit(l Logger, provider string, attempt int, wait time.Duration) {
	l.WithFields(map[string]interface{}{
		"provider": provider,
		"attempt":  attempt,
		"wait":     wait,
		"action":   "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogStageProgress logs how far a substep has come through its scope
func LogStageProgress(l Logger, stage string, done, total int) {
	percentage := 0.0
	if total > 0 {
		percentage = float64(done) / float64(total) * 100
	}

	l.WithFields(map[string]interface{}{
		"stage":      stage,
		"done":       done,
		"total":      total,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Info("Stage progress")
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	l = l.WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// LogMetrics logs a run summary
func LogMetrics(l Logger, operation string, metrics map[string]interface{}) {
	fields := map[string]interface{}{
		"operation": operation,
		"type":      "metrics",
	}
	for k, v := range metrics {
		fields[k] = v
	}
	l.InfoWithFields("Run metrics", fields)
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}

func (n *nopLogger) GetZerolog() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
