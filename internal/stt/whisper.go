package stt

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog"

	"github.com/voicegraph/voicegraph/internal/observability"
)

// WhisperEngine runs a local whisper model. The model is loaded eagerly so
// startup fails fast when the weights are missing, and the first request
// does not pay the load cost.
type WhisperEngine struct {
	model    whisper.Model
	language string
	logger   zerolog.Logger

	// The underlying context is not safe for concurrent Process calls, so
	// transcriptions are serialized. A fresh decoding context is created
	// per call to avoid state bleeding between requests.
	mu sync.Mutex
}

// NewWhisperEngine loads the model at modelPath.
func NewWhisperEngine(modelPath, language string) (*WhisperEngine, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("whisper model not found at %s: %w", modelPath, err)
	}

	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load whisper model: %w", err)
	}

	logger := observability.ComponentLogger("stt.whisper")
	logger.Info().Str("model_path", modelPath).Str("language", language).Msg("Whisper model loaded")

	return &WhisperEngine{
		model:    model,
		language: language,
		logger:   logger,
	}, nil
}

// Transcribe decodes mono samples at CanonicalSampleRate. Confidence is
// derived from the mean token log-probability across all segments,
// mapped into [0, 1] as clamp(1 + avgLogprob, 0, 1). When the model emits
// no segments the confidence is a neutral 0.5.
func (e *WhisperEngine) Transcribe(ctx context.Context, samples []float32) (string, float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return "", 0, fmt.Errorf("failed to create whisper context: %w", err)
	}
	if e.language != "" {
		if err := wctx.SetLanguage(e.language); err != nil {
			return "", 0, fmt.Errorf("failed to set whisper language: %w", err)
		}
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", 0, fmt.Errorf("whisper processing failed: %w", err)
	}

	var (
		text        string
		logprobSum  float64
		tokenCount  int
		segmentSeen bool
	)
	for {
		segment, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", 0, fmt.Errorf("failed to read whisper segment: %w", err)
		}
		segmentSeen = true
		if text != "" {
			text += " "
		}
		text += strings.TrimSpace(segment.Text)
		for _, tok := range segment.Tokens {
			if tok.P > 0 {
				logprobSum += logProb(float64(tok.P))
				tokenCount++
			}
		}
	}

	confidence := 0.5
	if segmentSeen && tokenCount > 0 {
		avgLogprob := logprobSum / float64(tokenCount)
		confidence = clamp(1+avgLogprob, 0, 1)
	}

	e.logger.Debug().
		Int("sample_count", len(samples)).
		Float64("confidence", confidence).
		Msg("Whisper transcription complete")

	return text, confidence, nil
}

func logProb(p float64) float64 {
	return math.Log(p)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Close unloads the model.
func (e *WhisperEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model != nil {
		err := e.model.Close()
		e.model = nil
		return err
	}
	return nil
}
