package audio

import (
	"errors"
	"testing"
)

var testDevices = []Device{
	{ID: 0, Name: "Built-in Microphone", MaxInputChannels: 2},
	{ID: 1, Name: "Built-in Output", MaxOutputChannels: 2},
	{ID: 2, Name: "CABLE Output (VB-Audio Virtual Cable)", MaxInputChannels: 8},
	{ID: 3, Name: "CABLE Input (VB-Audio Virtual Cable)", MaxOutputChannels: 8},
	{ID: 4, Name: "USB Headset", MaxInputChannels: 1, MaxOutputChannels: 2},
	{ID: 5, Name: "BlackHole 2ch", MaxInputChannels: 2, MaxOutputChannels: 2},
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		dev  Device
		want Class
	}{
		{"physical input", testDevices[0], ClassInput},
		{"physical output", testDevices[1], ClassOutput},
		{"cable capture side is an input", testDevices[2], ClassInput},
		{"cable playback side", testDevices[3], ClassVirtualCable},
		{"duplex headset", testDevices[4], ClassDuplex},
		{"blackhole", testDevices[5], ClassVirtualCable},
		{"no channels", Device{ID: 9, Name: "Dummy"}, ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.dev, DefaultVirtualCablePatterns); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.dev.Name, got, tt.want)
			}
		})
	}
}

func TestFindVirtualOutput(t *testing.T) {
	t.Parallel()

	got, ok := FindVirtualOutput(testDevices, DefaultVirtualCablePatterns)
	if !ok {
		t.Fatal("FindVirtualOutput() found nothing")
	}
	if got.ID != 3 {
		t.Errorf("FindVirtualOutput() = %+v, want device 3", got)
	}

	if _, ok := FindVirtualOutput(testDevices[:2], DefaultVirtualCablePatterns); ok {
		t.Error("FindVirtualOutput() matched a physical device")
	}

	custom, ok := FindVirtualOutput(testDevices, []string{"  HEADSET "})
	if !ok || custom.ID != 4 {
		t.Errorf("FindVirtualOutput(custom) = %+v, %v, want device 4", custom, ok)
	}

	if _, ok := FindVirtualOutput(testDevices, []string{""}); ok {
		t.Error("empty pattern should match nothing")
	}
}

func TestInputs(t *testing.T) {
	t.Parallel()

	got := Inputs(testDevices)
	want := []int{0, 2, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("Inputs() returned %d devices, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("Inputs()[%d].ID = %d, want %d", i, got[i].ID, id)
		}
	}
}

func TestFindByIDAndName(t *testing.T) {
	t.Parallel()

	if d, ok := FindByID(testDevices, 4); !ok || d.Name != "USB Headset" {
		t.Errorf("FindByID(4) = %+v, %v", d, ok)
	}
	if _, ok := FindByID(testDevices, 42); ok {
		t.Error("FindByID(42) should not match")
	}
	if d, ok := FindByName(testDevices, "BlackHole 2ch"); !ok || d.ID != 5 {
		t.Errorf("FindByName() = %+v, %v", d, ok)
	}
	if _, ok := FindByName(testDevices, "blackhole 2ch"); ok {
		t.Error("FindByName() should be case sensitive")
	}
}

func TestDeviceErrorUnwrap(t *testing.T) {
	t.Parallel()

	err := error(&DeviceError{DeviceID: 7, Op: "open render", Err: ErrNoOutputChannels})
	if !errors.Is(err, ErrNoOutputChannels) {
		t.Errorf("errors.Is(%v, ErrNoOutputChannels) = false", err)
	}
	var de *DeviceError
	if !errors.As(err, &de) || de.DeviceID != 7 {
		t.Errorf("errors.As() = %+v", de)
	}
	if got, want := err.Error(), "audio device 7: open render: device has no output channels"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestClassString(t *testing.T) {
	t.Parallel()

	if ClassVirtualCable.String() != "virtual-cable" {
		t.Errorf("String() = %q", ClassVirtualCable.String())
	}
	if Class(99).String() != "unknown" {
		t.Errorf("String() = %q", Class(99).String())
	}
}
