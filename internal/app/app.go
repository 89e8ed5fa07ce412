package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"github.com/petems/soundboard-tray/internal/audio"
	"github.com/petems/soundboard-tray/internal/clip"
	"github.com/petems/soundboard-tray/internal/config"
	"github.com/petems/soundboard-tray/internal/decode"
	"github.com/petems/soundboard-tray/internal/library"
	"github.com/petems/soundboard-tray/internal/mixer"
	"github.com/petems/soundboard-tray/internal/playback"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// renderChannels is the channel count requested from the virtual output.
const renderChannels = 1

// restoreWorkers bounds concurrent decodes when restoring the library.
const restoreWorkers = 4

// NotificationSink receives everything the UI needs to know (e.g., tray menu).
// Calls may arrive from any goroutine.
type NotificationSink interface {
	ClipRegistered(name string)
	ClipLoadFailed(name string, err error)
	NowPlayingChanged(name string)
	DevicesChanged(devices []audio.Device)
}

// Monitor plays a clip locally for the operator.
type Monitor interface {
	Play(c *clip.Clip, volume float32) error
	Stop()
}

type Config struct {
	Host    audio.Host
	Monitor Monitor // Optional - can be nil
	Decoder decode.Decoder
	Library *library.Library // Optional - can be nil
	Config  *config.Config
	Logger  zerolog.Logger
	Sink    NotificationSink // Optional - can be nil
}

// App wires the clip store, playback controller and mixing engine to the
// audio host and keeps device streams, the library and the UI consistent.
type App struct {
	host    audio.Host
	monitor Monitor
	dec     decode.Decoder
	lib     *library.Library
	log     zerolog.Logger
	sink    NotificationSink

	store  *clip.Store
	ctl    *playback.Controller
	engine *mixer.Engine

	cfgMu sync.Mutex
	cfg   *config.Config

	// mu guards the device list, the selection and the open streams.
	// Stream open and close happen under it so two streams never run for
	// the same role.
	mu       sync.Mutex
	devices  []audio.Device
	mic      *audio.Device
	output   *audio.Device
	capture  audio.Stream
	render   audio.Stream
	shutdown bool

	ctx    context.Context
	cancel context.CancelFunc
	loads  sync.WaitGroup
}

func New(cfg Config) *App {
	a := &App{
		host:    cfg.Host,
		monitor: cfg.Monitor,
		dec:     cfg.Decoder,
		lib:     cfg.Library,
		cfg:     cfg.Config,
		log:     cfg.Logger,
		sink:    cfg.Sink,
		store:   clip.NewStore(),
	}
	if a.sink == nil {
		a.sink = nopSink{}
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.ctl = playback.New(playback.Config{
		Clips:    a.store,
		Observer: a.sink,
		Logger:   cfg.Logger.With().Str("component", "playback").Logger(),
		Volume:   cfg.Config.Volume,
	})
	a.engine = mixer.New(mixer.Config{
		BlockSize: cfg.Config.Audio.BlockSize,
		Clips:     a.ctl,
		Logger:    cfg.Logger.With().Str("component", "mixer").Logger(),
	})
	return a
}

// Start enumerates devices, opens the virtual output and the saved
// microphone, and begins restoring the persisted library in the
// background. Device problems are logged, not returned: the soundboard
// keeps running without the affected stream.
func (a *App) Start(ctx context.Context) error {
	a.cancel()
	a.ctx, a.cancel = context.WithCancel(ctx)

	go a.ctl.Run(a.ctx)

	if err := a.RefreshDevices(); err != nil {
		a.log.Error().Err(err).Msg("Failed to enumerate audio devices")
	}
	a.restoreMicrophone()

	if a.lib != nil {
		a.loads.Add(1)
		go func() {
			defer a.loads.Done()
			if err := a.Restore(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn().Err(err).Msg("Library restore interrupted")
			}
		}()
		go func() {
			if err := a.lib.Watch(a.ctx, a.onLibraryChanged); err != nil {
				a.log.Warn().Err(err).Msg("Library watcher stopped")
			}
		}()
	}
	return nil
}

// LoadFiles decodes each path in the background under a unique display
// name derived from its base name. The name is recorded in the library
// immediately and removed again if decoding fails.
func (a *App) LoadFiles(paths []string) {
	for _, p := range paths {
		name := a.store.Reserve(filepath.Base(p))
		a.persist(name, p)
		a.log.Info().Str("clip", name).Str("path", p).Msg("Loading clip")

		a.loads.Add(1)
		go func() {
			defer a.loads.Done()
			a.loadReserved(name, p)
		}()
	}
}

// Restore decodes every library entry under its persisted name and
// returns once all of them have been registered or reported as failed.
func (a *App) Restore(ctx context.Context) error {
	if a.lib == nil {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(restoreWorkers)

	for _, e := range a.lib.Entries() {
		if !a.store.TryReserve(e.Name) {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				a.store.Release(e.Name)
				return err
			}
			a.loadReserved(e.Name, e.Path)
			return nil
		})
	}
	return g.Wait()
}

func (a *App) loadReserved(name, path string) {
	c, err := a.decode(path)
	if err != nil {
		a.store.Release(name)
		a.forget(name)
		a.log.Warn().Err(err).Str("clip", name).Msg("Failed to load clip")
		a.sink.ClipLoadFailed(name, err)
		return
	}

	if err := a.store.Put(name, c); err != nil {
		a.log.Error().Err(err).Str("clip", name).Msg("Failed to register clip")
		a.sink.ClipLoadFailed(name, err)
		return
	}

	a.log.Info().Str("clip", name).Int("frames", c.Frames()).
		Dur("duration", c.Duration()).Msg("Clip registered")
	a.sink.ClipRegistered(name)
}

// decode runs the decoder, reporting a panic on malformed input as a
// DecodeError so that one bad file cannot take the session down.
func (a *App) decode(path string) (c *clip.Clip, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, &decode.DecodeError{Path: path, Err: fmt.Errorf("decoder panic: %v", r)}
		}
	}()
	return a.dec.Decode(path)
}

// onLibraryChanged loads entries added to the library file by hand.
func (a *App) onLibraryChanged(entries []library.Entry) {
	for _, e := range entries {
		if !a.store.TryReserve(e.Name) {
			continue
		}
		a.log.Info().Str("clip", e.Name).Msg("Loading clip added to library")
		a.loads.Add(1)
		go func() {
			defer a.loads.Done()
			a.loadReserved(e.Name, e.Path)
		}()
	}
}

// Play starts the named clip on the virtual output and, if enabled, on the
// local monitor. Unknown names are ignored.
func (a *App) Play(name string) {
	if err := a.ctl.Play(name); err != nil {
		a.log.Debug().Err(err).Msg("Ignoring play request")
		return
	}

	if a.monitor == nil || !a.monitorEnabled() {
		return
	}
	c, ok := a.store.Get(name)
	if !ok {
		return
	}
	if err := a.monitor.Play(c, a.ctl.Volume()); err != nil {
		a.log.Warn().Err(err).Str("clip", name).Msg("Monitor playback failed")
	}
}

// Stop ends playback on both the virtual output and the monitor.
func (a *App) Stop() {
	a.ctl.Stop()
	if a.monitor != nil {
		a.monitor.Stop()
	}
}

// SetVolume sets the clip volume and saves it.
func (a *App) SetVolume(v float32) {
	a.ctl.SetVolume(v)

	a.cfgMu.Lock()
	a.cfg.Volume = a.ctl.Volume()
	a.cfgMu.Unlock()
	a.saveConfig()
}

func (a *App) Volume() float32 { return a.ctl.Volume() }

func (a *App) NowPlaying() string { return a.ctl.NowPlaying() }

// Clips returns the registered clip names in sorted order.
func (a *App) Clips() []string { return a.store.Names() }

// Faults is the number of audio blocks replaced by silence after a fault.
func (a *App) Faults() uint64 { return a.engine.Faults() }

// Devices returns the devices from the last enumeration.
func (a *App) Devices() []audio.Device {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.devices)
}

// Inputs returns the input-capable devices from the last enumeration.
func (a *App) Inputs() []audio.Device {
	return audio.Inputs(a.Devices())
}

// Microphone returns the selected microphone, if any.
func (a *App) Microphone() (audio.Device, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mic == nil {
		return audio.Device{}, false
	}
	return *a.mic, true
}

// VirtualOutput returns the device the mix is rendered to, if any.
func (a *App) VirtualOutput() (audio.Device, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.output == nil {
		return audio.Device{}, false
	}
	return *a.output, true
}

// SelectMicrophone switches capture to the device with the given id, or
// turns the microphone off when id is nil. The previous capture stream is
// closed before the new one opens. On failure the microphone is off and
// the saved choice is kept.
func (a *App) SelectMicrophone(id *int) error {
	a.mu.Lock()
	err := a.selectMicrophoneLocked(id)
	name := ""
	if a.mic != nil {
		name = a.mic.Name
	}
	a.mu.Unlock()
	if err != nil {
		return err
	}

	a.cfgMu.Lock()
	a.cfg.Audio.Microphone = name
	a.cfgMu.Unlock()
	a.saveConfig()
	return nil
}

func (a *App) selectMicrophoneLocked(id *int) error {
	if a.shutdown {
		return fmt.Errorf("app is shut down")
	}
	a.closeCaptureLocked()

	if id == nil {
		a.log.Info().Msg("Microphone disabled")
		return nil
	}

	dev, ok := audio.FindByID(a.devices, *id)
	if !ok {
		return &audio.DeviceError{DeviceID: *id, Op: "select microphone", Err: audio.ErrDeviceNotFound}
	}
	channels := min(a.cfg.Audio.CaptureChannels, dev.MaxInputChannels)
	if channels <= 0 {
		return &audio.DeviceError{DeviceID: dev.ID, Op: "select microphone", Err: audio.ErrNoInputChannels}
	}

	capturer := a.engine.Capturer(channels)
	stream, err := a.host.OpenCapture(audio.StreamParams{
		DeviceID:   dev.ID,
		Channels:   channels,
		SampleRate: a.cfg.Audio.SampleRate,
		BlockSize:  a.cfg.Audio.BlockSize,
	}, capturer.Process)
	if err != nil {
		return fmt.Errorf("failed to open microphone %q: %w", dev.Name, err)
	}

	a.capture = stream
	a.mic = &dev
	a.log.Info().Int("device", dev.ID).Str("name", dev.Name).Int("channels", channels).
		Msg("Microphone selected")
	return nil
}

// restoreMicrophone reopens the microphone saved by name in the config.
func (a *App) restoreMicrophone() {
	a.cfgMu.Lock()
	name := a.cfg.Audio.Microphone
	a.cfgMu.Unlock()
	if name == "" {
		return
	}

	dev, ok := audio.FindByName(audio.Inputs(a.Devices()), name)
	if !ok {
		a.log.Warn().Str("name", name).Msg("Saved microphone not found")
		return
	}

	a.mu.Lock()
	err := a.selectMicrophoneLocked(&dev.ID)
	a.mu.Unlock()
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to reopen saved microphone")
	}
}

// RefreshDevices re-enumerates devices and notifies the sink. A selected
// microphone or output that disappeared is closed; a virtual output that
// appeared is opened.
func (a *App) RefreshDevices() error {
	devices, err := a.host.Devices()
	if err != nil {
		return fmt.Errorf("failed to refresh devices: %w", err)
	}

	a.mu.Lock()
	if a.shutdown {
		a.mu.Unlock()
		return nil
	}
	a.devices = devices

	if a.mic != nil && !stillPresent(devices, *a.mic) {
		a.log.Warn().Str("name", a.mic.Name).Msg("Microphone disappeared, falling back to none")
		a.closeCaptureLocked()
	}
	if a.output != nil && !stillPresent(devices, *a.output) {
		a.log.Warn().Str("name", a.output.Name).Msg("Virtual output disappeared")
		a.closeRenderLocked()
	}
	if a.render == nil {
		a.openRenderLocked()
	}
	a.mu.Unlock()

	a.log.Debug().Int("count", len(devices)).Msg("Devices refreshed")
	a.sink.DevicesChanged(slices.Clone(devices))
	return nil
}

func stillPresent(devices []audio.Device, d audio.Device) bool {
	cur, ok := audio.FindByID(devices, d.ID)
	return ok && cur.Name == d.Name
}

func (a *App) openRenderLocked() {
	dev, ok := a.findOutputLocked()
	if !ok {
		a.log.Warn().Msg("No virtual cable output found, mix is not routed")
		return
	}

	renderer := a.engine.Renderer(renderChannels)
	stream, err := a.host.OpenRender(audio.StreamParams{
		DeviceID:   dev.ID,
		Channels:   renderChannels,
		SampleRate: a.cfg.Audio.SampleRate,
		BlockSize:  a.cfg.Audio.BlockSize,
	}, renderer.Process)
	if err != nil {
		a.log.Error().Err(err).Str("name", dev.Name).Msg("Failed to open virtual output")
		return
	}

	a.render = stream
	a.output = &dev
	a.log.Info().Int("device", dev.ID).Str("name", dev.Name).Msg("Virtual output opened")
}

func (a *App) findOutputLocked() (audio.Device, bool) {
	a.cfgMu.Lock()
	override := a.cfg.Audio.VirtualOutput
	patterns := a.cfg.Audio.VirtualCablePatterns
	a.cfgMu.Unlock()

	if override != "" {
		dev, ok := audio.FindByName(a.devices, override)
		if ok && dev.MaxOutputChannels > 0 {
			return dev, true
		}
		a.log.Warn().Str("name", override).Msg("Configured virtual output not found, auto-detecting")
	}
	if len(patterns) == 0 {
		patterns = audio.DefaultVirtualCablePatterns
	}
	return audio.FindVirtualOutput(a.devices, patterns)
}

func (a *App) closeCaptureLocked() {
	if a.capture != nil {
		if err := a.capture.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close microphone stream")
		}
		a.capture = nil
	}
	a.mic = nil
	// The capture callback has returned; drop its last block.
	a.engine.ResetMic()
}

func (a *App) closeRenderLocked() {
	if a.render != nil {
		if err := a.render.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close virtual output stream")
		}
		a.render = nil
	}
	a.output = nil
}

// Shutdown stops playback, closes both streams and waits for pending
// loads until ctx is done. The host and monitor are left to their owner.
func (a *App) Shutdown(ctx context.Context) error {
	a.cancel()
	a.Stop()

	a.mu.Lock()
	a.shutdown = true
	a.closeCaptureLocked()
	a.closeRenderLocked()
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.loads.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to finish pending loads: %w", ctx.Err())
	}
}

func (a *App) monitorEnabled() bool {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()
	return a.cfg.Audio.Monitor
}

func (a *App) saveConfig() {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()
	if err := a.cfg.Save(); err != nil {
		a.log.Error().Err(err).Msg("Failed to save config")
	}
}

func (a *App) persist(name, path string) {
	if a.lib == nil {
		return
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if err := a.lib.Put(name, path); err != nil {
		a.log.Error().Err(err).Str("clip", name).Msg("Failed to save library")
	}
}

func (a *App) forget(name string) {
	if a.lib == nil {
		return
	}
	if err := a.lib.Remove(name); err != nil {
		a.log.Error().Err(err).Str("clip", name).Msg("Failed to save library")
	}
}

type nopSink struct{}

func (nopSink) ClipRegistered(string)         {}
func (nopSink) ClipLoadFailed(string, error)  {}
func (nopSink) NowPlayingChanged(string)      {}
func (nopSink) DevicesChanged([]audio.Device) {}
