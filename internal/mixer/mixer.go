// Package mixer implements the real-time half of the soundboard: a capture
// callback that keeps the latest microphone block and a render callback that
// mixes it with the playing clip for the virtual output device.
//
// The engine has no loop of its own. The audio host (or a test) drives it
// by calling Process on the Capturer and Renderer at the device's cadence.
package mixer

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Capturer consumes one interleaved input block per callback.
type Capturer interface {
	Process(in []float32)
}

// Renderer produces one interleaved output block per callback.
type Renderer interface {
	Process(out []float32)
}

// ClipFiller writes the clip contribution for a mono block and reports
// whether a clip was playing. playback.Controller implements it.
type ClipFiller interface {
	Fill(out []float32) bool
}

type Config struct {
	BlockSize int
	Clips     ClipFiller
	Logger    zerolog.Logger
}

// Engine owns the state shared by the capture and render callbacks.
type Engine struct {
	blockSize int
	mic       *MicBuffer
	clips     ClipFiller
	log       zerolog.Logger

	faults atomic.Uint64
}

func New(cfg Config) *Engine {
	return &Engine{
		blockSize: cfg.BlockSize,
		mic:       NewMicBuffer(cfg.BlockSize),
		clips:     cfg.Clips,
		log:       cfg.Logger,
	}
}

// Capturer returns the capture callback for a device delivering the given
// number of interleaved channels. Only one capturer may be running at a time.
func (e *Engine) Capturer(channels int) Capturer {
	return &capturer{e: e, channels: max(channels, 1)}
}

// Renderer returns the render callback for a device expecting the given
// number of interleaved channels. The mono mix is copied to every channel.
func (e *Engine) Renderer(channels int) Renderer {
	r := &renderer{e: e, channels: max(channels, 1)}
	if r.channels > 1 {
		r.mono = make([]float32, e.blockSize)
	}
	return r
}

// ResetMic clears the microphone block. Call it after the capture stream
// has been closed so the render side does not keep repeating stale audio.
func (e *Engine) ResetMic() {
	e.mic.Reset()
}

// Faults is the number of callback blocks replaced by silence after a panic.
func (e *Engine) Faults() uint64 {
	return e.faults.Load()
}

// mix renders one mono block: the clip contribution, the microphone unless
// a clip is playing, then a hard limit to [-1, 1].
func (e *Engine) mix(out []float32) {
	if !e.clips.Fill(out) {
		mic := e.mic.Latest()
		n := min(len(mic), len(out))
		for i := range n {
			out[i] += mic[i]
		}
	}
	clamp(out)
}

// recoverBlock turns a panic inside a callback into a silent block.
func (e *Engine) recoverBlock(buf []float32, side string) {
	if r := recover(); r != nil {
		clear(buf)
		n := e.faults.Add(1)
		e.log.Error().Str("callback", side).Interface("panic", r).Uint64("faults", n).
			Msg("Audio callback fault, emitting silence")
	}
}

type capturer struct {
	e        *Engine
	channels int
}

func (c *capturer) Process(in []float32) {
	defer c.e.recoverBlock(nil, "capture")
	c.e.mic.Write(in, c.channels)
}

type renderer struct {
	e        *Engine
	channels int
	mono     []float32
}

func (r *renderer) Process(out []float32) {
	defer r.e.recoverBlock(out, "render")

	if r.channels == 1 {
		r.e.mix(out)
		return
	}

	frames := min(len(out)/r.channels, len(r.mono))
	mono := r.mono[:frames]
	r.e.mix(mono)

	clear(out)
	for f, v := range mono {
		for c := range r.channels {
			out[f*r.channels+c] = v
		}
	}
}

func clamp(buf []float32) {
	for i, v := range buf {
		if v > 1 {
			buf[i] = 1
		} else if v < -1 {
			buf[i] = -1
		}
	}
}
