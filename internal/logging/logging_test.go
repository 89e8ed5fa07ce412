package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" warn ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWritesToRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "test.log")

	logger, closer := New("debug", path)
	logger.Info().Str("clip", "airhorn.wav").Msg("Clip registered")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "airhorn.wav") {
		t.Errorf("log file does not contain the entry: %s", data)
	}
}

func TestNewWithoutFile(t *testing.T) {
	logger, closer := New("error", "")
	if logger.GetLevel() != zerolog.ErrorLevel {
		t.Errorf("level = %v, want error", logger.GetLevel())
	}
	if err := closer.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
