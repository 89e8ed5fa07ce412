package audio

import (
	"errors"
	"testing"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

// fakePortAudio replaces the PortAudio entry points for one test. The
// device list it reports is the one current at the last Initialize.
type fakePortAudio struct {
	plugged  []*portaudio.DeviceInfo
	snapshot []*portaudio.DeviceInfo
	inits    int
	terms    int
	initErr  error
}

func installFakePortAudio(t *testing.T, f *fakePortAudio) {
	t.Helper()
	origInit, origTerm, origDevs := paInitialize, paTerminate, paDevices
	t.Cleanup(func() { paInitialize, paTerminate, paDevices = origInit, origTerm, origDevs })

	paInitialize = func() error {
		if f.initErr != nil {
			return f.initErr
		}
		f.inits++
		f.snapshot = append([]*portaudio.DeviceInfo(nil), f.plugged...)
		return nil
	}
	paTerminate = func() error {
		f.terms++
		return nil
	}
	paDevices = func() ([]*portaudio.DeviceInfo, error) {
		return f.snapshot, nil
	}
}

func TestPortAudioDevicesRescansWhenIdle(t *testing.T) {
	f := &fakePortAudio{plugged: []*portaudio.DeviceInfo{{Index: 0, Name: "Built-in Microphone", MaxInputChannels: 2}}}
	installFakePortAudio(t, f)

	h, err := NewPortAudioHost(zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPortAudioHost() error = %v", err)
	}

	f.plugged = append(f.plugged, &portaudio.DeviceInfo{Index: 1, Name: "USB Headset", MaxInputChannels: 1, MaxOutputChannels: 2})
	devices, err := h.Devices()
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if len(devices) != 2 || devices[1].Name != "USB Headset" {
		t.Errorf("Devices() = %+v, want the headset plugged in after startup", devices)
	}
	if f.inits != 2 || f.terms != 1 {
		t.Errorf("inits, terms = %d, %d, want 2, 1", f.inits, f.terms)
	}
}

func TestPortAudioDevicesKeepsLibraryWhileStreaming(t *testing.T) {
	f := &fakePortAudio{plugged: []*portaudio.DeviceInfo{{Index: 0, Name: "Built-in Microphone", MaxInputChannels: 2}}}
	installFakePortAudio(t, f)

	h, err := NewPortAudioHost(zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPortAudioHost() error = %v", err)
	}
	h.streams[&paStream{host: h, id: 0, kind: "capture"}] = struct{}{}

	f.plugged = nil
	devices, err := h.Devices()
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if len(devices) != 1 {
		t.Errorf("Devices() len = %d, want the startup snapshot of 1", len(devices))
	}
	if f.inits != 1 || f.terms != 0 {
		t.Errorf("inits, terms = %d, %d, want 1, 0", f.inits, f.terms)
	}
}

func TestPortAudioDevicesRestartFailureClosesHost(t *testing.T) {
	f := &fakePortAudio{}
	installFakePortAudio(t, f)

	h, err := NewPortAudioHost(zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPortAudioHost() error = %v", err)
	}

	f.initErr = errors.New("no audio server")
	if _, err := h.Devices(); !errors.Is(err, f.initErr) {
		t.Errorf("Devices() error = %v, want %v", err, f.initErr)
	}
	if err := h.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if f.terms != 1 {
		t.Errorf("terms = %d, want 1 (no second Terminate after a failed restart)", f.terms)
	}
	if _, err := h.OpenRender(StreamParams{DeviceID: 0}, func([]float32) {}); err == nil {
		t.Error("OpenRender() on a closed host should fail")
	}
}
