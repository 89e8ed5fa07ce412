package library

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func openTemp(t *testing.T) (*Library, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sounds.json")
	lib, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return lib, path
}

func TestOpenMissingFileIsEmpty(t *testing.T) {
	lib, _ := openTemp(t)
	if got := lib.Entries(); len(got) != 0 {
		t.Errorf("Entries() = %v, want empty", got)
	}
}

func TestPutRemovePersist(t *testing.T) {
	lib, path := openTemp(t)

	if err := lib.Put("b.wav", "/sounds/b.wav"); err != nil {
		t.Fatal(err)
	}
	if err := lib.Put("a.wav", "/sounds/a.wav"); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	got := reopened.Entries()
	if len(got) != 2 || got[0].Name != "a.wav" || got[1].Path != "/sounds/b.wav" {
		t.Fatalf("Entries() = %+v", got)
	}

	if err := reopened.Remove("a.wav"); err != nil {
		t.Fatal(err)
	}
	if err := reopened.Remove("never-there"); err != nil {
		t.Errorf("Remove(unknown) error = %v", err)
	}
	if _, ok := reopened.Lookup("a.wav"); ok {
		t.Error("a.wav still present after Remove")
	}

	third, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if got := third.Entries(); len(got) != 1 || got[0].Name != "b.wav" {
		t.Errorf("Entries() after Remove = %+v", got)
	}
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sounds.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path, zerolog.Nop()); err == nil {
		t.Error("Open() succeeded on corrupt file")
	}
}

func TestLoadReportsChanges(t *testing.T) {
	lib, path := openTemp(t)

	if changed, err := lib.Load(); err != nil || changed {
		t.Fatalf("Load() = %v, %v; want no change", changed, err)
	}
	if err := os.WriteFile(path, []byte(`{"x.mp3": "/tmp/x.mp3"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if changed, err := lib.Load(); err != nil || !changed {
		t.Fatalf("Load() = %v, %v; want change", changed, err)
	}
	if p, ok := lib.Lookup("x.mp3"); !ok || p != "/tmp/x.mp3" {
		t.Errorf("Lookup() = %q, %v", p, ok)
	}
}

func TestWatchReportsExternalEdits(t *testing.T) {
	lib, path := openTemp(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		got [][]Entry
	)
	done := make(chan error, 1)
	go func() {
		done <- lib.Watch(ctx, func(entries []Entry) {
			mu.Lock()
			got = append(got, entries)
			mu.Unlock()
		})
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	// Our own save must not be reported.
	if err := lib.Put("own.wav", "/own.wav"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	external := `{"own.wav": "/own.wav", "ext.ogg": "/ext.ogg"}`
	if err := os.WriteFile(path, []byte(external), 0644); err != nil {
		t.Fatal(err)
	}

	// Poll for up to 2 seconds.
	var calls [][]Entry
	for range 200 {
		mu.Lock()
		calls = append([][]Entry(nil), got...)
		mu.Unlock()
		if len(calls) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if len(calls) != 1 {
		t.Fatalf("onChange called %d times, want 1", len(calls))
	}
	if len(calls[0]) != 2 || calls[0][0].Name != "ext.ogg" {
		t.Errorf("onChange entries = %+v", calls[0])
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Watch() did not return after cancel")
	}
}
