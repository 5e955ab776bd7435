package stt

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/voicegraph/voicegraph/internal/audio"
	"github.com/voicegraph/voicegraph/internal/observability"
)

// Stage turns an uploaded audio buffer into a transcription outcome. The
// primary engine runs first; its transcript is confidence-gated. The
// fallback engine only runs when the primary errors, and its transcript is
// trusted as-is.
type Stage struct {
	primary    PrimaryEngine
	fallback   FallbackEngine
	normalizer *audio.Normalizer
	logger     zerolog.Logger
}

// NewStage wires the transcription engines. fallback may be nil when no
// network engine is configured.
func NewStage(primary PrimaryEngine, fallback FallbackEngine, normalizer *audio.Normalizer) *Stage {
	return &Stage{
		primary:    primary,
		fallback:   fallback,
		normalizer: normalizer,
		logger:     observability.ComponentLogger("stt"),
	}
}

// Transcribe decodes the buffer, runs the primary engine and applies the
// confidence gate. A primary engine error routes the same audio to the
// fallback engine. ErrTranscriptionFailed is returned when no engine
// produced text.
func (s *Stage) Transcribe(ctx context.Context, data []byte, formatHint string) (Outcome, error) {
	samples, rate, err := s.normalizer.Decode(data, formatHint)
	if err != nil {
		observability.RecordError("decode", "stt")
		return Outcome{}, fmt.Errorf("failed to decode audio: %w", err)
	}
	if rate != CanonicalSampleRate {
		samples = audio.Resample(samples, rate, CanonicalSampleRate)
	}

	// Silent recordings would come back as empty transcripts from every
	// engine anyway; gate them here and skip the inference cost.
	if audio.IsSilent(samples, audio.SilenceRMSThreshold) {
		s.logger.Warn().Float64("rms", audio.CalculateRMS(samples)).Msg("audio contains no speech energy")
		return Outcome{}, ErrTranscriptionFailed
	}

	text, confidence, primaryErr := s.primary.Transcribe(ctx, samples)
	if primaryErr == nil {
		text = strings.TrimSpace(text)
		if text == "" {
			s.logger.Warn().Msg("primary engine produced an empty transcript")
			return Outcome{}, ErrTranscriptionFailed
		}
		if confidence < ConfidenceThreshold {
			observability.RecordLowConfidence()
			s.logger.Info().
				Float64("confidence", confidence).
				Msg("transcript below confidence threshold")
			return Outcome{Kind: OutcomeLowConfidence, Text: text, Confidence: confidence}, nil
		}
		return Outcome{Kind: OutcomeTranscribed, Text: text, Confidence: confidence}, nil
	}

	if ctx.Err() != nil {
		return Outcome{}, ctx.Err()
	}
	if s.fallback == nil {
		observability.RecordError("transcription", "stt")
		return Outcome{}, fmt.Errorf("%w: %v", ErrTranscriptionFailed, primaryErr)
	}

	s.logger.Warn().Err(primaryErr).Str("fallback", s.fallback.Name()).
		Msg("primary transcription failed, trying fallback engine")
	observability.RecordFallback("stt")

	wavData := audio.EncodeWAV(samples, CanonicalSampleRate)
	fallbackText, fallbackErr := s.fallback.Transcribe(ctx, wavData)
	if fallbackErr != nil {
		observability.RecordError("transcription", "stt")
		return Outcome{}, fmt.Errorf("%w: primary: %v; %s: %v",
			ErrTranscriptionFailed, primaryErr, s.fallback.Name(), fallbackErr)
	}

	fallbackText = strings.TrimSpace(fallbackText)
	if fallbackText == "" {
		observability.RecordError("transcription", "stt")
		return Outcome{}, ErrTranscriptionFailed
	}

	// Network transcripts carry no comparable confidence signal, so they
	// bypass the gate.
	return Outcome{Kind: OutcomeTranscribed, Text: fallbackText, Confidence: 1}, nil
}

// Close tears down both engines.
func (s *Stage) Close() error {
	var firstErr error
	if s.primary != nil {
		if err := s.primary.Close(); err != nil {
			firstErr = err
		}
	}
	if s.fallback != nil {
		if err := s.fallback.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
