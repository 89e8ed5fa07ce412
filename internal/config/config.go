package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"github.com/mitchellh/go-homedir"
)

const appName = "soundboard-tray"

type Config struct {
	LogLevel         string      `json:"log_level"`
	StopHotkey       string      `json:"stop_hotkey"`
	StopHotkeyDarwin string      `json:"stop_hotkey_darwin"`
	Volume           float32     `json:"volume"`
	Audio            AudioConfig `json:"audio"`
	LibraryFile      string      `json:"library_file"` // Relative paths resolve against the config dir

	path string
}

type AudioConfig struct {
	SampleRate      int    `json:"sample_rate"`
	BlockSize       int    `json:"block_size"`
	CaptureChannels int    `json:"capture_channels"`
	Microphone      string `json:"microphone"`     // Device name, "" for none
	VirtualOutput   string `json:"virtual_output"` // Device name, "" to auto-detect
	// VirtualCablePatterns are case-insensitive substrings that identify
	// the playback side of a virtual audio cable.
	VirtualCablePatterns []string `json:"virtual_cable_patterns"`
	Monitor              bool     `json:"monitor"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel:         "info",
		StopHotkey:       "Ctrl+Alt+S",
		StopHotkeyDarwin: "Ctrl+Alt+S",
		Volume:           1.0,
		Audio: AudioConfig{
			SampleRate:           48000,
			BlockSize:            1024,
			CaptureChannels:      1,
			VirtualCablePatterns: []string{"cable input", "vb-audio", "blackhole"},
			Monitor:              true,
		},
		LibraryFile: "sounds.json",
	}
}

// Load reads the config at path, or at DefaultPath when path is empty.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unusable audio settings and clamps the volume.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("invalid sample_rate %d", c.Audio.SampleRate)
	}
	if c.Audio.BlockSize <= 0 {
		return fmt.Errorf("invalid block_size %d", c.Audio.BlockSize)
	}
	if c.Audio.CaptureChannels <= 0 {
		return fmt.Errorf("invalid capture_channels %d", c.Audio.CaptureChannels)
	}
	switch {
	case math.IsNaN(float64(c.Volume)) || c.Volume < 0:
		c.Volume = 0
	case c.Volume > 1:
		c.Volume = 1
	}
	if c.LibraryFile == "" {
		c.LibraryFile = "sounds.json"
	}
	return nil
}

// Path is the file the config was loaded from and is saved to.
func (c *Config) Path() string {
	if c.path == "" {
		return DefaultPath()
	}
	return c.path
}

// Save writes the config to disk
func (c *Config) Save() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(c.Path(), data)
}

// PlatformStopHotkey returns the appropriate hotkey for the current platform
func (c *Config) PlatformStopHotkey() string {
	if runtime.GOOS == "darwin" && c.StopHotkeyDarwin != "" {
		return c.StopHotkeyDarwin
	}
	return c.StopHotkey
}

// LibraryPath returns the absolute path of the persisted sound library.
func (c *Config) LibraryPath() string {
	if filepath.IsAbs(c.LibraryFile) {
		return c.LibraryFile
	}
	return filepath.Join(filepath.Dir(c.Path()), c.LibraryFile)
}

// WriteFileAtomic replaces path with data via a temporary file in the same
// directory, so readers never observe a partial write.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// DefaultPath returns the platform-specific config file path
func DefaultPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = filepath.Join(home(), "Library", "Application Support")
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = filepath.Join(home(), ".config")
		}
	}

	return filepath.Join(base, appName, "config.json")
}

// LogPath returns the platform-specific log file path
func LogPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = filepath.Join(home(), "Library", "Logs")
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
			base = xdg
		} else {
			base = filepath.Join(home(), ".local", "state")
		}
	}

	return filepath.Join(base, appName, appName+".log")
}

func home() string {
	dir, err := homedir.Dir()
	if err != nil {
		return "."
	}
	return dir
}
