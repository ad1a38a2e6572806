package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LoggerConfig configures the logger.
type LoggerConfig struct {
	// Level is the minimum log level to output.
	Level logrus.Level
	// Output is where logs are written. Nil discards.
	// Never point this at the terminal being drawn on.
	Output io.Writer
	// Prefix is attached to every entry as the "app" field.
	Prefix string
}

// DefaultLoggerConfig returns the default logger configuration.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:  logrus.InfoLevel,
		Output: io.Discard,
		Prefix: "taskdash",
	}
}

// ParseLogLevel parses a level name. Unknown names map to info.
func ParseLogLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// NewLogger creates a logger with the given configuration. Every entry
// carries a session id so interleaved runs sharing a log file can be told
// apart.
func NewLogger(cfg LoggerConfig) *logrus.Entry {
	if cfg.Output == nil {
		cfg.Output = io.Discard
	}

	l := logrus.New()
	l.SetOutput(cfg.Output)
	l.SetLevel(cfg.Level)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000",
	})

	fields := logrus.Fields{"session": uuid.NewString()}
	if cfg.Prefix != "" {
		fields["app"] = cfg.Prefix
	}
	return l.WithFields(fields)
}

// WithComponent returns an entry tagged with the component name.
func WithComponent(log *logrus.Entry, component string) *logrus.Entry {
	return log.WithField("component", component)
}

// openLogFile opens path for appending, creating parent directories.
func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
