package decode

import (
	"bytes"
	"strings"
)

// Format identifies an audio container.
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatAIFF    Format = "aiff"
	FormatMP3     Format = "mp3"
	FormatVorbis  Format = "ogg vorbis"
	FormatFLAC    Format = "flac"
)

// sniffLen is how many leading bytes Sniff looks at.
const sniffLen = 12

var extFormats = map[string]Format{
	".wav":  FormatWAV,
	".wave": FormatWAV,
	".aif":  FormatAIFF,
	".aiff": FormatAIFF,
	".mp3":  FormatMP3,
	".ogg":  FormatVorbis,
	".oga":  FormatVorbis,
	".flac": FormatFLAC,
}

// Sniff identifies the format from the file's leading bytes, falling
// back to the file extension when the magic is not recognized.
func Sniff(header []byte, ext string) Format {
	switch {
	case len(header) >= 12 && bytes.Equal(header[:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return FormatWAV
	case len(header) >= 12 && bytes.Equal(header[:4], []byte("FORM")) &&
		(bytes.Equal(header[8:12], []byte("AIFF")) || bytes.Equal(header[8:12], []byte("AIFC"))):
		return FormatAIFF
	case bytes.HasPrefix(header, []byte("OggS")):
		return FormatVorbis
	case bytes.HasPrefix(header, []byte("fLaC")):
		return FormatFLAC
	case bytes.HasPrefix(header, []byte("ID3")):
		return FormatMP3
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		// MPEG audio frame sync
		return FormatMP3
	}
	return extFormats[strings.ToLower(ext)]
}
