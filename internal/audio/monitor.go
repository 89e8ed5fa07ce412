package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/petems/soundboard-tray/internal/clip"
	"github.com/rs/zerolog"
)

// Monitor plays clips on the default output device so the operator hears
// what was triggered. Each Play is one-shot and replaces the previous one.
// The monitor never carries microphone audio.
type Monitor struct {
	ctx *malgo.AllocatedContext
	log zerolog.Logger

	// opMu serializes Play and Stop; mu guards voice.
	opMu  sync.Mutex
	mu    sync.Mutex
	voice *voice
}

// NewMonitor creates a monitor on a miniaudio context of its own.
func NewMonitor(log zerolog.Logger) (*Monitor, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize monitor context: %w", err)
	}
	return &Monitor{ctx: ctx, log: log}, nil
}

// Play starts c on the default output device at the given volume. The
// volume is applied once, so later volume changes do not affect it.
func (m *Monitor) Play(c *clip.Clip, volume float32) error {
	if c == nil || c.Frames() == 0 {
		return nil
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.stopLocked()

	v := newVoice(c, volume)

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(c.SampleRate)
	cfg.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(m.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			v.fill(out)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to open monitor device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start monitor device: %w", err)
	}

	m.mu.Lock()
	m.voice = v
	m.mu.Unlock()

	go m.release(v, device)

	m.log.Debug().Str("clip", c.Name).Float32("volume", volume).Msg("Monitor playback started")
	return nil
}

// release tears the device down once the voice finishes or is stopped.
// The device is never uninitialized from its own callback.
func (m *Monitor) release(v *voice, device *malgo.Device) {
	select {
	case <-v.done:
	case <-v.stop:
	}
	device.Uninit()

	m.mu.Lock()
	if m.voice == v {
		m.voice = nil
	}
	m.mu.Unlock()
	close(v.released)
}

// Stop ends the current monitor playback, if any, and waits for the
// device to be released.
func (m *Monitor) Stop() {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.stopLocked()
}

func (m *Monitor) stopLocked() {
	m.mu.Lock()
	v := m.voice
	m.voice = nil
	m.mu.Unlock()

	if v == nil {
		return
	}
	v.stopOnce.Do(func() { close(v.stop) })
	<-v.released
}

// Close stops playback and frees the miniaudio context.
func (m *Monitor) Close() error {
	m.Stop()
	if err := m.ctx.Uninit(); err != nil {
		return fmt.Errorf("failed to release monitor context: %w", err)
	}
	m.ctx.Free()
	return nil
}

// voice is a single monitor playback: mono samples already scaled by the
// volume snapshot, and a read position owned by the device callback.
type voice struct {
	samples []float32
	pos     int

	done     chan struct{}
	doneOnce sync.Once
	stop     chan struct{}
	stopOnce sync.Once
	released chan struct{}
}

func newVoice(c *clip.Clip, volume float32) *voice {
	ch := max(c.Channels, 1)
	frames := c.Frames()
	samples := make([]float32, frames)
	inv := 1 / float32(ch)
	for f := range frames {
		var sum float32
		for _, s := range c.Samples[f*ch : (f+1)*ch] {
			sum += s
		}
		samples[f] = sum * inv * volume
	}
	return &voice{
		samples:  samples,
		done:     make(chan struct{}),
		stop:     make(chan struct{}),
		released: make(chan struct{}),
	}
}

// fill writes little-endian float32 samples into out and pads with
// silence once the clip is exhausted.
func (v *voice) fill(out []byte) {
	n := min(len(out)/4, len(v.samples)-v.pos)
	for i := range n {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v.samples[v.pos+i]))
	}
	clear(out[n*4:])
	v.pos += n

	if v.pos >= len(v.samples) {
		v.doneOnce.Do(func() { close(v.done) })
	}
}
