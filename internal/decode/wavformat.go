package decode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-audio/riff"
)

const (
	wavFormatPCM        = 0x0001
	wavFormatFloat      = 0x0003
	wavFormatExtensible = 0xFFFE

	// maxFmtChunk bounds the fmt chunk; WAVE_FORMAT_EXTENSIBLE needs 40 bytes.
	maxFmtChunk = 1024
)

// ksDataFormatSuffix is the tail shared by the KSDATAFORMAT_SUBTYPE GUIDs.
// The first two bytes of such a GUID carry the plain format tag.
var ksDataFormatSuffix = []byte{
	0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71,
}

// wavFormat is the part of the fmt chunk go-audio/wav does not expose.
type wavFormat struct {
	tag        uint16
	channels   uint16
	sampleRate uint32
	bits       uint16
	subFormat  []byte // extensible only
}

// encoding resolves WAVE_FORMAT_EXTENSIBLE to the tag in its sub-format
// GUID. It returns 0 for an unknown GUID.
func (f wavFormat) encoding() uint16 {
	if f.tag != wavFormatExtensible {
		return f.tag
	}
	if len(f.subFormat) != 16 || !bytes.Equal(f.subFormat[2:], ksDataFormatSuffix) {
		return 0
	}
	return binary.LittleEndian.Uint16(f.subFormat)
}

// readWAVFormat walks the RIFF chunks of r up to and including fmt.
func readWAVFormat(r io.Reader) (wavFormat, error) {
	p := riff.New(r)
	if err := p.ParseHeaders(); err != nil {
		return wavFormat{}, fmt.Errorf("invalid WAV file: %w", ErrUnsupportedEncoding)
	}
	if p.Format != riff.WavFormatID {
		return wavFormat{}, fmt.Errorf("RIFF form %q: %w", p.Format[:], ErrUnsupportedEncoding)
	}

	for {
		ch, err := p.NextChunk()
		if err != nil {
			return wavFormat{}, fmt.Errorf("WAV fmt chunk missing: %w", ErrUnsupportedEncoding)
		}
		if ch.ID != riff.FmtID {
			ch.Drain()
			continue
		}
		if ch.Size < 16 || ch.Size > maxFmtChunk {
			return wavFormat{}, fmt.Errorf("WAV fmt chunk of %d bytes: %w", ch.Size, ErrUnsupportedEncoding)
		}

		buf := make([]byte, ch.Size)
		if _, err := io.ReadFull(ch, buf); err != nil {
			return wavFormat{}, fmt.Errorf("failed to read WAV fmt chunk: %w", err)
		}
		return parseWAVFormat(buf), nil
	}
}

func parseWAVFormat(buf []byte) wavFormat {
	f := wavFormat{
		tag:        binary.LittleEndian.Uint16(buf[0:]),
		channels:   binary.LittleEndian.Uint16(buf[2:]),
		sampleRate: binary.LittleEndian.Uint32(buf[4:]),
		bits:       binary.LittleEndian.Uint16(buf[14:]),
	}
	if f.tag == wavFormatExtensible && len(buf) >= 40 {
		f.subFormat = buf[24:40]
	}
	return f
}
