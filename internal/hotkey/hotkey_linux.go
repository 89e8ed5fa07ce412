//go:build linux

package hotkey

/*
#cgo pkg-config: x11
#include <X11/Xlib.h>
#include <X11/keysym.h>
#include <stdlib.h>

Display* displayPtr = NULL;

static int openDisplay() {
    if (displayPtr == NULL) {
        displayPtr = XOpenDisplay(NULL);
    }
    return displayPtr != NULL;
}

static int keycodeFor(const char* name) {
    if (!openDisplay()) return 0;
    KeySym sym = XStringToKeysym(name);
    if (sym == NoSymbol) return 0;
    return XKeysymToKeycode(displayPtr, sym);
}

// Grab the key with and without CapsLock and NumLock so the hotkey works
// regardless of lock state.
static int grabKey(int keycode, unsigned int modifiers) {
    if (!openDisplay()) return 0;

    Window root = DefaultRootWindow(displayPtr);
    unsigned int extras[] = {0, LockMask, Mod2Mask, LockMask | Mod2Mask};
    for (int i = 0; i < 4; i++) {
        XGrabKey(displayPtr, keycode, modifiers | extras[i], root, False, GrabModeAsync, GrabModeAsync);
    }
    XSelectInput(displayPtr, root, KeyPressMask | KeyReleaseMask);
    XSync(displayPtr, False);

    return 1;
}

static void ungrabKey(int keycode, unsigned int modifiers) {
    if (displayPtr == NULL) return;

    Window root = DefaultRootWindow(displayPtr);
    unsigned int extras[] = {0, LockMask, Mod2Mask, LockMask | Mod2Mask};
    for (int i = 0; i < 4; i++) {
        XUngrabKey(displayPtr, keycode, modifiers | extras[i], root);
    }
    XSync(displayPtr, False);
}

static int checkEvent(int* keycode, int* pressed) {
    if (displayPtr == NULL) return 0;

    XEvent event;
    if (XPending(displayPtr) > 0) {
        XNextEvent(displayPtr, &event);
        if (event.type == KeyPress || event.type == KeyRelease) {
            *keycode = event.xkey.keycode;
            *pressed = (event.type == KeyPress) ? 1 : 0;
            return 1;
        }
    }
    return 0;
}
*/
import "C"

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unsafe"
)

type grab struct {
	keycode   int
	modifiers uint
	callback  func(bool)
}

type linuxManager struct {
	mu    sync.Mutex
	grabs map[string]grab // by canonical accelerator
	stop  chan struct{}
	once  sync.Once
}

// New creates a new Linux hotkey manager using X11
func New() (Manager, error) {
	if C.openDisplay() == 0 {
		return nil, fmt.Errorf("failed to open X display")
	}

	mgr := &linuxManager{
		grabs: make(map[string]grab),
		stop:  make(chan struct{}),
	}

	go mgr.eventLoop()

	return mgr, nil
}

func (m *linuxManager) Register(accel string, callback func(pressed bool)) error {
	a, err := Parse(accel)
	if err != nil {
		return err
	}

	name := C.CString(x11KeyName(a.Key))
	defer C.free(unsafe.Pointer(name))

	keycode := int(C.keycodeFor(name))
	if keycode == 0 {
		return fmt.Errorf("no keycode for %s", a.Key)
	}
	modifiers := x11Modifiers(a.Mods)

	m.mu.Lock()
	defer m.mu.Unlock()

	if C.grabKey(C.int(keycode), C.uint(modifiers)) == 0 {
		return fmt.Errorf("failed to grab key %s", a)
	}
	m.grabs[a.String()] = grab{keycode: keycode, modifiers: modifiers, callback: callback}
	return nil
}

func (m *linuxManager) eventLoop() {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if cb, pressed := m.poll(); cb != nil {
				cb(pressed)
			}
		}
	}
}

// poll reads one pending key event. Xlib calls are serialized by mu.
func (m *linuxManager) poll() (func(bool), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keycode, pressed C.int
	if C.checkEvent(&keycode, &pressed) == 0 {
		return nil, false
	}
	for _, g := range m.grabs {
		if g.keycode == int(keycode) {
			return g.callback, pressed == 1
		}
	}
	return nil, false
}

func (m *linuxManager) Unregister(accel string) error {
	a, err := Parse(accel)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grabs[a.String()]
	if !ok {
		return nil
	}
	C.ungrabKey(C.int(g.keycode), C.uint(g.modifiers))
	delete(m.grabs, a.String())
	return nil
}

func (m *linuxManager) Close() error {
	m.once.Do(func() {
		m.mu.Lock()
		for k, g := range m.grabs {
			C.ungrabKey(C.int(g.keycode), C.uint(g.modifiers))
			delete(m.grabs, k)
		}
		m.mu.Unlock()
		close(m.stop)
	})
	return nil
}

// x11KeyName maps a canonical key to its X keysym name.
func x11KeyName(key string) string {
	switch key {
	case "Space":
		return "space"
	case "Escape", "Return":
		return key
	}
	if len(key) == 1 {
		return strings.ToLower(key)
	}
	return key // F1..F12
}

func x11Modifiers(m Modifier) uint {
	var mask uint
	if m&ModShift != 0 {
		mask |= 1 << 0 // ShiftMask
	}
	if m&ModCtrl != 0 {
		mask |= 1 << 2 // ControlMask
	}
	if m&ModAlt != 0 {
		mask |= 1 << 3 // Mod1Mask
	}
	if m&ModSuper != 0 {
		mask |= 1 << 6 // Mod4Mask
	}
	return mask
}
