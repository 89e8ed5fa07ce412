package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jrick/logrotate/rotator"
	"github.com/rs/zerolog"
)

const (
	rotateThresholdKB = 1024
	maxLogFiles       = 3
)

// New creates a zerolog logger writing to the console and to a rotated log
// file at path. If the file cannot be opened the logger stays console-only.
// The returned closer flushes and closes the log file.
func New(level, path string) (zerolog.Logger, io.Closer) {
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	var (
		out     io.Writer = console
		closer  io.Closer = nopCloser{}
		fileErr error
	)
	if path != "" {
		if r, err := openRotator(path); err != nil {
			fileErr = err
		} else {
			out = zerolog.MultiLevelWriter(console, r)
			closer = r
		}
	}

	logger := zerolog.New(out).Level(ParseLevel(level)).With().Timestamp().Caller().Logger()
	if fileErr != nil {
		logger.Warn().Err(fileErr).Str("path", path).Msg("Failed to open log file, logging to console only")
	}
	return logger, closer
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func openRotator(path string) (*rotator.Rotator, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return rotator.New(path, rotateThresholdKB, false, maxLogFiles)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
