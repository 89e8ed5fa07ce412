package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Audio.SampleRate != 48000 || cfg.Audio.BlockSize != 1024 {
		t.Errorf("unexpected audio defaults: %+v", cfg.Audio)
	}
	if cfg.Volume != 1 {
		t.Errorf("Volume = %v, want 1", cfg.Volume)
	}
	if !cfg.Audio.Monitor {
		t.Error("Monitor should default to true")
	}
	if cfg.Path() != path {
		t.Errorf("Path() = %q, want %q", cfg.Path(), path)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"volume": 0.25, "audio": {"microphone": "USB Mic", "block_size": 512}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Volume != 0.25 {
		t.Errorf("Volume = %v, want 0.25", cfg.Volume)
	}
	if cfg.Audio.Microphone != "USB Mic" {
		t.Errorf("Microphone = %q", cfg.Audio.Microphone)
	}
	if cfg.Audio.BlockSize != 512 {
		t.Errorf("BlockSize = %d, want 512", cfg.Audio.BlockSize)
	}
	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want default 48000", cfg.Audio.SampleRate)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad json", `{"volume": `},
		{"zero rate", `{"audio": {"sample_rate": 0}}`},
		{"negative block", `{"audio": {"block_size": -1}}`},
		{"zero channels", `{"audio": {"capture_channels": 0}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() succeeded, want error")
			}
		})
	}
}

func TestValidateClampsVolume(t *testing.T) {
	cfg := Default()
	cfg.Volume = 3
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Volume != 1 {
		t.Errorf("Volume = %v, want 1", cfg.Volume)
	}

	cfg.Volume = -1
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Volume != 0 {
		t.Errorf("Volume = %v, want 0", cfg.Volume)
	}
}

func TestSaveRoundTripsAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Audio.Microphone = "Built-in Microphone"
	cfg.Volume = 0.5
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Audio.Microphone != "Built-in Microphone" || reloaded.Volume != 0.5 {
		t.Errorf("reloaded config = %+v", reloaded)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only config.json, found %d entries", len(entries))
	}
}

func TestLibraryPath(t *testing.T) {
	cfg := Default()
	cfg.path = filepath.Join("/etc", "sb", "config.json")

	if got, want := cfg.LibraryPath(), filepath.Join("/etc", "sb", "sounds.json"); got != want {
		t.Errorf("LibraryPath() = %q, want %q", got, want)
	}

	abs := filepath.Join(t.TempDir(), "lib.json")
	cfg.LibraryFile = abs
	if got := cfg.LibraryPath(); got != abs {
		t.Errorf("LibraryPath() = %q, want %q", got, abs)
	}
}

func TestDefaultPathEndsWithConfigJSON(t *testing.T) {
	if got := filepath.Base(DefaultPath()); got != "config.json" {
		t.Errorf("DefaultPath() base = %q", got)
	}
	if got := filepath.Base(LogPath()); got != "soundboard-tray.log" {
		t.Errorf("LogPath() base = %q", got)
	}
}
