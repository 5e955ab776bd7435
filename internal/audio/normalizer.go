// Package audio normalizes uploaded audio for the speech engines and
// re-encodes synthesized audio into the caller's requested container.
//
// Decoding tries a sample-accurate WAV reader first and falls back to an
// ffmpeg demux for every other container. Encoding always goes through
// ffmpeg. Duration probing is best-effort: it reports "unknown" instead of
// failing, so an unreadable upload is still allowed into the pipeline.
package audio

import (
	"github.com/rs/zerolog"

	"github.com/voicegraph/voicegraph/internal/observability"
)

// Normalizer converts between containers and the canonical representation
// (mono float32 samples at a known rate).
type Normalizer struct {
	logger zerolog.Logger
}

// NewNormalizer creates a normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		logger: observability.ComponentLogger("audio"),
	}
}

// Decode converts raw encoded audio into mono float32 samples in [-1, 1]
// plus the sample rate. The format hint (usually a filename extension) is
// only advisory; it helps ffmpeg pick a demuxer for headerless containers.
func (n *Normalizer) Decode(data []byte, formatHint string) ([]float32, int, error) {
	if len(data) == 0 {
		return nil, 0, ErrEmptyAudio
	}

	if IsWAV(data) {
		samples, rate, err := DecodeWAV(data)
		if err == nil {
			return samples, rate, nil
		}
		n.logger.Warn().Err(err).Msg("direct WAV read failed, falling back to ffmpeg")
	}

	samples, rate, err := ffmpegDecode(data, formatHint)
	if err != nil {
		n.logger.Error().Err(err).Int("bytes", len(data)).Msg("audio decode failed")
		return nil, 0, err
	}
	return samples, rate, nil
}

// Convert re-encodes an audio buffer into the target container. Converting
// mp3 to mp3 is a no-op since both synthesis engines emit mp3 natively.
func (n *Normalizer) Convert(data []byte, target Format) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}
	if target == FormatMP3 {
		return data, nil
	}

	converted, err := ffmpegConvert(data, target)
	if err != nil {
		return nil, err
	}
	n.logger.Debug().
		Str("target", string(target)).
		Int("in_bytes", len(data)).
		Int("out_bytes", len(converted)).
		Msg("converted audio container")
	return converted, nil
}

// ProbeDuration reports the audio duration in seconds. The second return
// distinguishes "probe succeeded" from "duration unknown": probing never
// blocks the pipeline, an unreadable container just reports unknown.
func (n *Normalizer) ProbeDuration(data []byte) (float64, bool) {
	if len(data) == 0 {
		return 0, false
	}
	if IsWAV(data) {
		if seconds, ok := wavDuration(data); ok {
			return seconds, true
		}
	}
	return ffprobeDuration(data)
}
