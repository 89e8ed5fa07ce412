//go:build darwin

package hotkey

/*
#cgo LDFLAGS: -framework Carbon
#include <Carbon/Carbon.h>

// Forward declaration for Go callback
extern void goHotkeyCallback(UInt32 id, int pressed);

static int handlerInstalled = 0;

// Event handler for hotkeys
static OSStatus hotkeyHandler(EventHandlerCallRef nextHandler, EventRef theEvent, void* userData) {
    EventHotKeyID hkRef;
    GetEventParameter(theEvent, kEventParamDirectObject, typeEventHotKeyID, NULL, sizeof(hkRef), NULL, &hkRef);

    UInt32 eventKind = GetEventKind(theEvent);
    int pressed = (eventKind == kEventHotKeyPressed) ? 1 : 0;

    goHotkeyCallback(hkRef.id, pressed);

    return noErr;
}

// Register hotkey with Carbon. Returns the ref, or NULL on failure.
static EventHotKeyRef registerHotkey(UInt32 keyCode, UInt32 modifiers, UInt32 id) {
    if (!handlerInstalled) {
        EventTypeSpec eventTypes[2];
        eventTypes[0].eventClass = kEventClassKeyboard;
        eventTypes[0].eventKind = kEventHotKeyPressed;
        eventTypes[1].eventClass = kEventClassKeyboard;
        eventTypes[1].eventKind = kEventHotKeyReleased;

        EventHandlerUPP handlerUPP = NewEventHandlerUPP(hotkeyHandler);
        InstallApplicationEventHandler(handlerUPP, 2, eventTypes, NULL, NULL);
        handlerInstalled = 1;
    }

    EventHotKeyRef hotKeyRef;
    EventHotKeyID hotKeyID;
    hotKeyID.signature = 'sbst';
    hotKeyID.id = id;

    OSStatus status = RegisterEventHotKey(keyCode, modifiers, hotKeyID, GetApplicationEventTarget(), 0, &hotKeyRef);
    if (status != noErr) return NULL;
    return hotKeyRef;
}

static void unregisterHotkey(EventHotKeyRef ref) {
    UnregisterEventHotKey(ref);
}
*/
import "C"

import (
	"fmt"
	"sync"
)

type darwinHotkey struct {
	id       uint32
	ref      C.EventHotKeyRef
	callback func(bool)
}

type darwinManager struct {
	mu     sync.Mutex
	nextID uint32
	keys   map[string]*darwinHotkey // by canonical accelerator
}

var (
	globalMu      sync.Mutex
	globalManager *darwinManager
)

// New creates a new macOS hotkey manager using Carbon
func New() (Manager, error) {
	mgr := &darwinManager{keys: make(map[string]*darwinHotkey)}

	globalMu.Lock()
	globalManager = mgr
	globalMu.Unlock()

	return mgr, nil
}

//export goHotkeyCallback
func goHotkeyCallback(id C.UInt32, pressed C.int) {
	globalMu.Lock()
	m := globalManager
	globalMu.Unlock()
	if m == nil {
		return
	}
	if cb := m.callbackFor(uint32(id)); cb != nil {
		cb(pressed == 1)
	}
}

func (m *darwinManager) callbackFor(id uint32) func(bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.id == id {
			return k.callback
		}
	}
	return nil
}

func (m *darwinManager) Register(accel string, callback func(pressed bool)) error {
	a, err := Parse(accel)
	if err != nil {
		return err
	}
	keyCode, ok := darwinKeyCodes[a.Key]
	if !ok {
		return fmt.Errorf("no key code for %s", a.Key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	ref := C.registerHotkey(C.UInt32(keyCode), C.UInt32(carbonModifiers(a.Mods)), C.UInt32(m.nextID))
	if ref == nil {
		return fmt.Errorf("failed to register hotkey %s", a)
	}
	m.keys[a.String()] = &darwinHotkey{id: m.nextID, ref: ref, callback: callback}
	return nil
}

func (m *darwinManager) Unregister(accel string) error {
	a, err := Parse(accel)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[a.String()]
	if !ok {
		return nil
	}
	C.unregisterHotkey(k.ref)
	delete(m.keys, a.String())
	return nil
}

func (m *darwinManager) Close() error {
	m.mu.Lock()
	for name, k := range m.keys {
		C.unregisterHotkey(k.ref)
		delete(m.keys, name)
	}
	m.mu.Unlock()

	globalMu.Lock()
	if globalManager == m {
		globalManager = nil
	}
	globalMu.Unlock()
	return nil
}

// Carbon modifier flags: cmdKey=0x100, shiftKey=0x200, optionKey=0x800,
// controlKey=0x1000.
func carbonModifiers(m Modifier) uint32 {
	var mask uint32
	if m&ModSuper != 0 {
		mask |= 0x100
	}
	if m&ModShift != 0 {
		mask |= 0x200
	}
	if m&ModAlt != 0 {
		mask |= 0x800
	}
	if m&ModCtrl != 0 {
		mask |= 0x1000
	}
	return mask
}

// darwinKeyCodes are ANSI virtual key codes.
var darwinKeyCodes = map[string]uint32{
	"A": 0, "S": 1, "D": 2, "F": 3, "H": 4, "G": 5, "Z": 6, "X": 7,
	"C": 8, "V": 9, "B": 11, "Q": 12, "W": 13, "E": 14, "R": 15, "Y": 16,
	"T": 17, "1": 18, "2": 19, "3": 20, "4": 21, "6": 22, "5": 23, "9": 25,
	"7": 26, "8": 28, "0": 29, "O": 31, "U": 32, "I": 34, "P": 35, "L": 37,
	"J": 38, "K": 40, "N": 45, "M": 46,
	"Return": 36, "Space": 49, "Escape": 53,
	"F1": 122, "F2": 120, "F3": 99, "F4": 118, "F5": 96, "F6": 97,
	"F7": 98, "F8": 100, "F9": 101, "F10": 109, "F11": 103, "F12": 111,
}
