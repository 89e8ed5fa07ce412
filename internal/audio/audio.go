// Package audio is the boundary to the operating system's audio devices:
// enumeration and classification of endpoints, callback-driven capture and
// render streams, and the one-shot local monitor.
package audio

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDeviceNotFound is returned when a device id or name no longer
	// matches any enumerated device.
	ErrDeviceNotFound = errors.New("audio device not found")
	// ErrNoInputChannels is returned when a capture stream is requested on
	// a device without input capability.
	ErrNoInputChannels = errors.New("device has no input channels")
	// ErrNoOutputChannels is returned when a render stream is requested on
	// a device without output capability.
	ErrNoOutputChannels = errors.New("device has no output channels")
)

// DeviceError reports a failed operation on a specific device.
type DeviceError struct {
	DeviceID int
	Op       string
	Err      error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %d: %s: %v", e.DeviceID, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Device is a snapshot of one endpoint from a single enumeration. It goes
// stale after a topology change and must be re-queried, not updated.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
}

// Class is the role a device can play for the soundboard.
type Class int

const (
	ClassUnknown Class = iota
	ClassInput
	ClassOutput
	ClassVirtualCable
	ClassDuplex
)

func (c Class) String() string {
	switch c {
	case ClassInput:
		return "input"
	case ClassOutput:
		return "output"
	case ClassVirtualCable:
		return "virtual-cable"
	case ClassDuplex:
		return "duplex"
	default:
		return "unknown"
	}
}

// DefaultVirtualCablePatterns match the output side of common virtual
// audio cable products.
var DefaultVirtualCablePatterns = []string{"cable input", "vb-audio", "blackhole"}

// IsVirtualCable reports whether d can receive output and its name matches
// one of the case-insensitive substring patterns.
func IsVirtualCable(d Device, patterns []string) bool {
	if d.MaxOutputChannels <= 0 {
		return false
	}
	name := strings.ToLower(d.Name)
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// Classify assigns d a Class. Virtual cables take precedence over the
// physical classes.
func Classify(d Device, patterns []string) Class {
	switch {
	case IsVirtualCable(d, patterns):
		return ClassVirtualCable
	case d.MaxInputChannels > 0 && d.MaxOutputChannels > 0:
		return ClassDuplex
	case d.MaxInputChannels > 0:
		return ClassInput
	case d.MaxOutputChannels > 0:
		return ClassOutput
	default:
		return ClassUnknown
	}
}

// FindVirtualOutput returns the first device that looks like a virtual
// cable and can receive output.
func FindVirtualOutput(devices []Device, patterns []string) (Device, bool) {
	for _, d := range devices {
		if IsVirtualCable(d, patterns) {
			return d, true
		}
	}
	return Device{}, false
}

// Inputs returns the input-capable subset of devices, keeping their order.
func Inputs(devices []Device) []Device {
	var out []Device
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			out = append(out, d)
		}
	}
	return out
}

// FindByID looks a device up by its stable id.
func FindByID(devices []Device, id int) (Device, bool) {
	for _, d := range devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

// FindByName looks a device up by exact name.
func FindByName(devices []Device, name string) (Device, bool) {
	for _, d := range devices {
		if d.Name == name {
			return d, true
		}
	}
	return Device{}, false
}

// StreamParams describes a stream to open. Samples are float32 and
// interleaved when Channels > 1.
type StreamParams struct {
	DeviceID   int
	Channels   int
	SampleRate int
	BlockSize  int
}

// Stream is an open, running device stream.
type Stream interface {
	Close() error
}

// Host opens streams on the system's audio devices. Callbacks run on the
// audio subsystem's own thread and must not block.
type Host interface {
	Devices() ([]Device, error)
	OpenCapture(p StreamParams, process func(in []float32)) (Stream, error)
	OpenRender(p StreamParams, process func(out []float32)) (Stream, error)
	Close() error
}
