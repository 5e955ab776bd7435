package audio

import (
	"errors"
	"fmt"
)

// Sentinel errors for normalizer failures.
var (
	// ErrDecode is returned when neither the direct WAV reader nor the
	// ffmpeg demuxer could decode the input.
	ErrDecode = errors.New("audio: decode failed")

	// ErrUnsupportedFormat is returned for output containers outside the
	// supported set.
	ErrUnsupportedFormat = errors.New("audio: unsupported output format")

	// ErrEmptyAudio is returned for zero-length input.
	ErrEmptyAudio = errors.New("audio: empty audio data")
)

// Format is an output audio container.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatOGG Format = "ogg"
	FormatWAV Format = "wav"
)

// ParseFormat validates a caller-supplied output format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatMP3, FormatOGG, FormatWAV:
		return Format(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// ContentType returns the HTTP content type for a format.
func (f Format) ContentType() string {
	switch f {
	case FormatMP3:
		return "audio/mpeg"
	case FormatOGG:
		return "audio/ogg"
	case FormatWAV:
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
