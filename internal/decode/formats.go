package decode

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/aiff"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

type wavDecoder struct{}

func (wavDecoder) DecodePCM(r io.ReadSeeker) (*PCM, error) {
	info, err := readWAVFormat(r)
	if err != nil {
		return nil, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file: %w", ErrUnsupportedEncoding)
	}

	switch info.encoding() {
	case wavFormatPCM:
	case wavFormatFloat:
		return readFloatWAV(d, info)
	default:
		return nil, fmt.Errorf("WAV format tag %#x: %w", info.tag, ErrUnsupportedEncoding)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV samples: %w", err)
	}

	return &PCM{
		Samples:    intBufferToFloat(buf, int(d.BitDepth), true),
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
	}, nil
}

// readFloatWAV reads an IEEE float data chunk. The chunk is read as it
// arrives rather than sized from its header.
func readFloatWAV(d *wav.Decoder, info wavFormat) (*PCM, error) {
	width := int(info.bits) / 8
	if width != 4 && width != 8 {
		return nil, fmt.Errorf("%d-bit float WAV: %w", info.bits, ErrUnsupportedEncoding)
	}
	if err := d.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("failed to find WAV data: %w", err)
	}
	if d.PCMChunk == nil {
		return nil, fmt.Errorf("WAV data chunk missing: %w", ErrNoFrames)
	}

	data, err := io.ReadAll(io.LimitReader(d.PCMChunk, int64(d.PCMChunk.Size)))
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV samples: %w", err)
	}

	samples := make([]float32, len(data)/width)
	for i := range samples {
		b := data[i*width:]
		if width == 4 {
			samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(b))
		} else {
			samples[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(b)))
		}
	}

	return &PCM{
		Samples:    samples,
		SampleRate: int(info.sampleRate),
		Channels:   int(info.channels),
		BitDepth:   int(info.bits),
	}, nil
}

type aiffDecoder struct{}

func (aiffDecoder) DecodePCM(r io.ReadSeeker) (*PCM, error) {
	d := aiff.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("invalid AIFF file: %w", ErrUnsupportedEncoding)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read AIFF samples: %w", err)
	}

	return &PCM{
		Samples:    intBufferToFloat(buf, int(d.BitDepth), false),
		SampleRate: d.SampleRate,
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
	}, nil
}

type mp3Decoder struct{}

func (mp3Decoder) DecodePCM(r io.ReadSeeker) (*PCM, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("invalid MP3 stream: %w", err)
	}

	// go-mp3 always emits 16-bit little-endian stereo.
	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to read MP3 samples: %w", err)
	}

	return &PCM{
		Samples:    int16LEToFloat(data),
		SampleRate: dec.SampleRate(),
		Channels:   2,
		BitDepth:   16,
	}, nil
}

type vorbisDecoder struct{}

func (vorbisDecoder) DecodePCM(r io.ReadSeeker) (*PCM, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read Ogg Vorbis samples: %w", err)
	}

	return &PCM{
		Samples:    samples,
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		BitDepth:   32,
	}, nil
}

// flacPrealloc caps the samples reserved up front from the FLAC header.
const flacPrealloc = 1 << 22

type flacDecoder struct{}

func (flacDecoder) DecodePCM(r io.ReadSeeker) (*PCM, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("invalid FLAC stream: %w", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	bits := int(stream.Info.BitsPerSample)
	if channels == 0 || bits == 0 || bits > 32 {
		return nil, ErrUnsupportedEncoding
	}
	if stream.Info.NSamples > maxSamples/uint64(channels) {
		return nil, fmt.Errorf("FLAC header claims %d frames: %w", stream.Info.NSamples, ErrUnsupportedEncoding)
	}
	scale := float32(1) / float32(int64(1)<<(bits-1))

	// NSamples is zero when unknown; capacity is only a hint.
	samples := make([]float32, 0, min(int(stream.Info.NSamples)*channels, flacPrealloc))
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read FLAC frame: %w", err)
		}
		if len(frame.Subframes) != channels {
			return nil, fmt.Errorf("FLAC frame has %d channels, want %d: %w",
				len(frame.Subframes), channels, ErrUnsupportedEncoding)
		}

		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			for _, sf := range frame.Subframes {
				samples = append(samples, float32(sf.Samples[i])*scale)
			}
		}
	}

	return &PCM{
		Samples:    samples,
		SampleRate: int(stream.Info.SampleRate),
		Channels:   channels,
		BitDepth:   bits,
	}, nil
}
