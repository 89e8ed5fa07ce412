// Package library persists the sound library: a JSON object mapping each
// display name to the file it was loaded from.
package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/petems/soundboard-tray/internal/config"
	"github.com/rs/zerolog"
)

// reloadDebounce collapses bursts of file events into one reload.
const reloadDebounce = 100 * time.Millisecond

// Entry is one persisted sound.
type Entry struct {
	Name string
	Path string
}

type Library struct {
	path string
	log  zerolog.Logger

	mu      sync.Mutex
	entries map[string]string
}

// Open loads the library at path. A missing file is an empty library.
func Open(path string, log zerolog.Logger) (*Library, error) {
	l := &Library{
		path:    path,
		log:     log,
		entries: make(map[string]string),
	}
	if _, err := l.Load(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Library) Path() string { return l.path }

// Load re-reads the file and reports whether the entries changed.
func (l *Library) Load() (bool, error) {
	entries, err := readEntries(l.path)
	if err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if maps.Equal(entries, l.entries) {
		return false, nil
	}
	l.entries = entries
	return true, nil
}

// Entries returns the persisted sounds ordered by name.
func (l *Library) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return sortedEntries(l.entries)
}

// Lookup returns the source path recorded for name.
func (l *Library) Lookup(name string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.entries[name]
	return p, ok
}

// Put records name → path and saves the file.
func (l *Library) Put(name, path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.entries[name]; ok && cur == path {
		return nil
	}
	l.entries[name] = path
	return l.saveLocked()
}

// Remove forgets name and saves the file. Unknown names are ignored.
func (l *Library) Remove(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[name]; !ok {
		return nil
	}
	delete(l.entries, name)
	return l.saveLocked()
}

func (l *Library) saveLocked() error {
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode library: %w", err)
	}
	if err := config.WriteFileAtomic(l.path, data); err != nil {
		return fmt.Errorf("failed to save library: %w", err)
	}
	return nil
}

// Watch reloads the library whenever its file changes on disk and calls
// onChange with the new entries. Writes made through this Library do not
// trigger onChange. Watch blocks until ctx is done.
func (l *Library) Watch(ctx context.Context, onChange func([]Entry)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to start filesystem watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: atomic saves replace the file, which would drop
	// a watch on the file itself.
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	base := filepath.Base(l.path)
	var reload <-chan time.Time

	l.log.Debug().Str("path", l.path).Msg("Watching sound library")
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-reload:
			reload = nil
			changed, err := l.Load()
			if err != nil {
				l.log.Warn().Err(err).Msg("Failed to reload sound library")
				continue
			}
			if changed {
				l.log.Info().Msg("Sound library changed on disk")
				onChange(l.Entries())
			}

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			reload = time.After(reloadDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.log.Debug().Err(err).Msg("Library watcher error")
		}
	}
}

func readEntries(path string) (map[string]string, error) {
	entries := make(map[string]string)

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return entries, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read library: %w", err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse library %s: %w", path, err)
	}
	return entries, nil
}

func sortedEntries(m map[string]string) []Entry {
	names := slices.Sorted(maps.Keys(m))
	out := make([]Entry, 0, len(names))
	for _, n := range names {
		out = append(out, Entry{Name: n, Path: m[n]})
	}
	return out
}
