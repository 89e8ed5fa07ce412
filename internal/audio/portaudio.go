package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

// Swapped out in tests.
var (
	paInitialize = portaudio.Initialize
	paTerminate  = portaudio.Terminate
	paDevices    = portaudio.Devices
)

// PortAudioHost is the Host backed by PortAudio.
type PortAudioHost struct {
	log zerolog.Logger

	mu      sync.Mutex
	streams map[*paStream]struct{}
	closed  bool
}

// NewPortAudioHost initializes PortAudio. Close must be called to release it.
func NewPortAudioHost(log zerolog.Logger) (*PortAudioHost, error) {
	if err := paInitialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &PortAudioHost{
		log:     log,
		streams: make(map[*paStream]struct{}),
	}, nil
}

// Devices enumerates the devices PortAudio knows about. PortAudio snapshots
// the device list when it is initialized, so while no stream is open the
// library is restarted first to pick up devices plugged in or removed since.
// With a stream open the list may be stale.
func (h *PortAudioHost) Devices() ([]Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed && len(h.streams) == 0 {
		if err := h.restart(); err != nil {
			return nil, err
		}
	}

	infos, err := paDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, d := range infos {
		devices = append(devices, Device{
			ID:                d.Index,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
		})
	}
	return devices, nil
}

// restart re-initializes PortAudio. h.mu must be held and no stream open.
func (h *PortAudioHost) restart() error {
	if err := paTerminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	if err := paInitialize(); err != nil {
		h.closed = true
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	h.log.Debug().Msg("PortAudio restarted to rescan devices")
	return nil
}

func (h *PortAudioHost) OpenCapture(p StreamParams, process func(in []float32)) (Stream, error) {
	info, err := h.lookup(p.DeviceID, "open capture")
	if err != nil {
		return nil, err
	}
	if info.MaxInputChannels <= 0 {
		return nil, &DeviceError{DeviceID: p.DeviceID, Op: "open capture", Err: ErrNoInputChannels}
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: min(max(p.Channels, 1), info.MaxInputChannels),
			Latency:  info.DefaultLowInputLatency,
		},
		SampleRate:      float64(p.SampleRate),
		FramesPerBuffer: p.BlockSize,
	}
	return h.open(p.DeviceID, "capture", params, process)
}

func (h *PortAudioHost) OpenRender(p StreamParams, process func(out []float32)) (Stream, error) {
	info, err := h.lookup(p.DeviceID, "open render")
	if err != nil {
		return nil, err
	}
	if info.MaxOutputChannels <= 0 {
		return nil, &DeviceError{DeviceID: p.DeviceID, Op: "open render", Err: ErrNoOutputChannels}
	}

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: min(max(p.Channels, 1), info.MaxOutputChannels),
			Latency:  info.DefaultLowOutputLatency,
		},
		SampleRate:      float64(p.SampleRate),
		FramesPerBuffer: p.BlockSize,
	}
	return h.open(p.DeviceID, "render", params, process)
}

func (h *PortAudioHost) open(id int, kind string, params portaudio.StreamParameters, callback func([]float32)) (Stream, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, &DeviceError{DeviceID: id, Op: "open " + kind, Err: fmt.Errorf("host closed")}
	}

	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		return nil, &DeviceError{DeviceID: id, Op: "open " + kind, Err: err}
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, &DeviceError{DeviceID: id, Op: "start " + kind, Err: err}
	}

	s := &paStream{host: h, stream: stream, id: id, kind: kind}
	h.streams[s] = struct{}{}

	h.log.Info().Int("device", id).Str("kind", kind).
		Int("channels", max(params.Input.Channels, params.Output.Channels)).
		Float64("sample_rate", params.SampleRate).
		Int("block", params.FramesPerBuffer).
		Msg("Audio stream started")
	return s, nil
}

func (h *PortAudioHost) lookup(id int, op string) (*portaudio.DeviceInfo, error) {
	infos, err := paDevices()
	if err != nil {
		return nil, &DeviceError{DeviceID: id, Op: op, Err: err}
	}
	for _, d := range infos {
		if d.Index == id {
			return d, nil
		}
	}
	return nil, &DeviceError{DeviceID: id, Op: op, Err: ErrDeviceNotFound}
}

// Close stops every stream still open and terminates PortAudio.
func (h *PortAudioHost) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	streams := make([]*paStream, 0, len(h.streams))
	for s := range h.streams {
		streams = append(streams, s)
	}
	h.mu.Unlock()

	for _, s := range streams {
		if err := s.Close(); err != nil {
			h.log.Warn().Err(err).Msg("Failed to close audio stream")
		}
	}
	if err := paTerminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

type paStream struct {
	host   *PortAudioHost
	stream *portaudio.Stream
	id     int
	kind   string
	once   sync.Once
	err    error
}

// Close stops the stream and waits for its callback to return, so a new
// stream can be opened for the same device without overlap.
func (s *paStream) Close() error {
	s.once.Do(func() {
		if err := s.stream.Stop(); err != nil {
			s.err = &DeviceError{DeviceID: s.id, Op: "stop " + s.kind, Err: err}
		}
		if err := s.stream.Close(); err != nil && s.err == nil {
			s.err = &DeviceError{DeviceID: s.id, Op: "close " + s.kind, Err: err}
		}

		s.host.mu.Lock()
		delete(s.host.streams, s)
		s.host.mu.Unlock()

		s.host.log.Info().Int("device", s.id).Str("kind", s.kind).Msg("Audio stream closed")
	})
	return s.err
}
