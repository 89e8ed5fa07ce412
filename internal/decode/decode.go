// Package decode turns audio files into clips normalized to the engine's
// operating sample rate.
//
// Each container format is handled by a FormatDecoder that produces raw
// interleaved PCM. The Adapter sniffs the format, runs the matching
// decoder, resamples the result once to the target rate and clamps it to
// [-1, 1]. Channel layout is preserved; downmixing happens at render time.
//
// Decoding has unbounded latency and must never run on an audio callback.
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/petems/soundboard-tray/internal/clip"
)

var (
	// ErrUnsupportedFormat means no decoder is registered for the file's format.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrUnsupportedEncoding means the container is known but its encoding is not.
	ErrUnsupportedEncoding = errors.New("unsupported audio encoding")
	// ErrNoFrames means decoding succeeded but produced no audio.
	ErrNoFrames = errors.New("decoded audio has no frames")
)

// maxSamples bounds the interleaved sample count a header may claim: an
// hour of 8-channel audio at 192 kHz.
const maxSamples = 192000 * 8 * 3600

// DecodeError reports a file that could not be turned into a clip.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder turns a file into a clip.
type Decoder interface {
	Decode(path string) (*clip.Clip, error)
}

// PCM is raw decoded audio: interleaved samples in [-1, 1].
type PCM struct {
	Samples    []float32
	SampleRate int
	Channels   int
	BitDepth   int
}

// FormatDecoder decodes one container format into PCM.
type FormatDecoder interface {
	DecodePCM(r io.ReadSeeker) (*PCM, error)
}

// Adapter is the Decoder used by the application. It is safe for
// concurrent use.
type Adapter struct {
	targetRate int

	mu      sync.RWMutex
	formats map[Format]FormatDecoder
}

// New creates an Adapter with every built-in format registered.
func New(targetRate int) *Adapter {
	a := &Adapter{
		targetRate: targetRate,
		formats:    make(map[Format]FormatDecoder),
	}
	a.Register(FormatWAV, wavDecoder{})
	a.Register(FormatAIFF, aiffDecoder{})
	a.Register(FormatMP3, mp3Decoder{})
	a.Register(FormatVorbis, vorbisDecoder{})
	a.Register(FormatFLAC, flacDecoder{})
	return a
}

// Register installs d for format f, replacing any previous decoder.
func (a *Adapter) Register(f Format, d FormatDecoder) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.formats[f] = d
}

func (a *Adapter) lookup(f Format) (FormatDecoder, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	d, ok := a.formats[f]
	return d, ok
}

// TargetRate is the sample rate of every clip returned by Decode.
func (a *Adapter) TargetRate() int { return a.targetRate }

// Decode reads the file at path and returns a clip at the target rate.
// All failures are returned as *DecodeError.
func (a *Adapter) Decode(path string) (*clip.Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	header := make([]byte, sniffLen)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, &DecodeError{Path: path, Err: err}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	format := Sniff(header[:n], filepath.Ext(path))
	dec, ok := a.lookup(format)
	if !ok {
		return nil, &DecodeError{Path: path, Err: ErrUnsupportedFormat}
	}

	pcm, err := decodePCM(dec, f)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	c, err := a.normalize(pcm)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	c.Name = filepath.Base(path)
	return c, nil
}

// decodePCM runs a format decoder, turning a panic on malformed input
// into an error.
func decodePCM(dec FormatDecoder, r io.ReadSeeker) (pcm *PCM, err error) {
	defer func() {
		if p := recover(); p != nil {
			pcm, err = nil, fmt.Errorf("decoder panic: %v: %w", p, ErrUnsupportedEncoding)
		}
	}()
	return dec.DecodePCM(r)
}

// normalize resamples pcm to the target rate and clamps it.
func (a *Adapter) normalize(pcm *PCM) (*clip.Clip, error) {
	if pcm == nil || pcm.Channels <= 0 || pcm.SampleRate <= 0 {
		return nil, ErrUnsupportedEncoding
	}
	if len(pcm.Samples)/pcm.Channels == 0 {
		return nil, ErrNoFrames
	}

	// Drop a trailing partial frame.
	samples := pcm.Samples[:len(pcm.Samples)-len(pcm.Samples)%pcm.Channels]
	samples = Resample(samples, pcm.Channels, pcm.SampleRate, a.targetRate)
	if len(samples) == 0 {
		return nil, ErrNoFrames
	}
	clampAll(samples)

	return &clip.Clip{
		Samples:    samples,
		Channels:   pcm.Channels,
		SampleRate: a.targetRate,
	}, nil
}

func clampAll(s []float32) {
	for i, v := range s {
		if v > 1 {
			s[i] = 1
		} else if v < -1 {
			s[i] = -1
		}
	}
}
