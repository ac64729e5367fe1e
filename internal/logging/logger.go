// Package logging builds the logrus logger shared by the server, the CLI and the
// scoring bridge, and carries request correlation IDs through contexts.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/moca-trajectory-engine/internal/domain"
	"github.com/sirupsen/logrus"
)

const (
	redacted       = "[REDACTED]"
	maxFieldLength = 1000
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// New creates a logger from configuration. Unknown levels fall back to info.
func New(cfg domain.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	logger.SetOutput(out)
	logger.AddHook(&PrivacyHook{})

	return logger, nil
}

func openOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, fmt.Errorf("failed to open log output %s: %w", output, err)
		}
		return f, nil
	}
}

// sensitiveFields are patient identifiers that must never reach the log sink.
var sensitiveFields = map[string]bool{
	"name":          true,
	"patient_name":  true,
	"dob":           true,
	"date_of_birth": true,
	"email":         true,
	"phone":         true,
	"address":       true,
	"password":      true,
	"token":         true,
	"authorization": true,
}

// PrivacyHook scrubs patient identifiers and truncates oversized fields such as
// captured scorer stderr.
type PrivacyHook struct{}

// Levels returns all levels
func (h *PrivacyHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire rewrites the entry's fields in place.
func (h *PrivacyHook) Fire(entry *logrus.Entry) error {
	for k, v := range entry.Data {
		entry.Data[k] = SanitizeField(k, v)
	}
	return nil
}

// SanitizeField redacts sensitive keys and truncates long string values.
func SanitizeField(key string, value interface{}) interface{} {
	if sensitiveFields[strings.ToLower(key)] {
		return redacted
	}
	if str, ok := value.(string); ok && len(str) > maxFieldLength {
		return str[:maxFieldLength] + "... [TRUNCATED]"
	}
	return value
}

// WithCorrelationID returns a context carrying the request correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID extracts the correlation ID, or "" when none is set.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns an entry annotated with the context's correlation ID.
func FromContext(ctx context.Context, logger *logrus.Logger) *logrus.Entry {
	entry := logrus.NewEntry(logger)
	if id := CorrelationID(ctx); id != "" {
		entry = entry.WithField("correlation_id", id)
	}
	return entry
}
