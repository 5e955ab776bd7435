package tts

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/voicegraph/voicegraph/internal/audio"
	"github.com/voicegraph/voicegraph/internal/observability"
)

// Stage turns reply text into audio in the caller's requested container.
// The streaming engine runs first; any failure routes the same text to the
// simple fallback engine. Synthesis is purely functional, no state is kept
// between calls.
type Stage struct {
	primary    Engine
	fallback   Engine
	normalizer *audio.Normalizer
	logger     zerolog.Logger
}

// NewStage wires the synthesis engines. fallback may be nil.
func NewStage(primary, fallback Engine, normalizer *audio.Normalizer) *Stage {
	return &Stage{
		primary:    primary,
		fallback:   fallback,
		normalizer: normalizer,
		logger:     observability.ComponentLogger("tts"),
	}
}

// Synthesize speaks text and re-encodes the result when the requested
// container differs from the engines' native mp3.
func (s *Stage) Synthesize(ctx context.Context, text string, format audio.Format) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	data, err := s.primary.Synthesize(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if s.fallback == nil {
			observability.RecordError("synthesis", "tts")
			return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
		}

		s.logger.Warn().Err(err).Str("fallback", s.fallback.Name()).
			Msg("primary synthesis failed, trying fallback engine")
		observability.RecordFallback("tts")

		data, err = s.fallback.Synthesize(ctx, text)
		if err != nil {
			observability.RecordError("synthesis", "tts")
			return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
		}
	}

	if format != audio.FormatMP3 {
		converted, err := s.normalizer.Convert(data, format)
		if err != nil {
			observability.RecordError("convert", "tts")
			return nil, fmt.Errorf("failed to convert synthesized audio: %w", err)
		}
		data = converted
	}

	observability.RecordAudioBytes("out", int64(len(data)))
	return data, nil
}
