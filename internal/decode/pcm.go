package decode

import (
	goaudio "github.com/go-audio/audio"
)

// intBufferToFloat normalizes go-audio integer samples by their source bit
// depth. go-audio hands 8-bit samples over as raw bytes (0-255): WAV
// stores them unsigned, AIFF as two's complement.
func intBufferToFloat(buf *goaudio.IntBuffer, bitDepth int, unsigned8 bool) []float32 {
	if buf == nil || len(buf.Data) == 0 {
		return nil
	}
	if bitDepth <= 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}

	scale := float32(1) / float32(int64(1)<<(bitDepth-1))
	out := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		if bitDepth == 8 {
			if unsigned8 {
				v -= 128
			} else {
				v = int(int8(uint8(v)))
			}
		}
		out[i] = float32(v) * scale
	}
	return out
}

// int16LEToFloat converts little-endian signed 16-bit PCM bytes.
func int16LEToFloat(b []byte) []float32 {
	out := make([]float32, len(b)/2)
	for i := range out {
		v := int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
		out[i] = float32(v) / 32768.0
	}
	return out
}
