package stt

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	restv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/voicegraph/voicegraph/internal/config"
	"github.com/voicegraph/voicegraph/internal/observability"
	"github.com/voicegraph/voicegraph/internal/resilience"
)

// DeepgramEngine transcribes prerecorded WAV buffers through Deepgram's
// REST API. It serves as the network fallback when the local model errors.
type DeepgramEngine struct {
	client         *restv1api.Client
	model          string
	language       string
	logger         zerolog.Logger
	circuitBreaker *resilience.CircuitBreaker
}

// NewDeepgramEngine creates a Deepgram prerecorded transcription client.
func NewDeepgramEngine(cfg *config.Config) (*DeepgramEngine, error) {
	if cfg.DeepgramAPIKey == "" {
		return nil, fmt.Errorf("deepgram API key is not configured")
	}

	rest := listenClient.NewREST(cfg.DeepgramAPIKey, &interfaces.ClientOptions{})

	circuitBreaker := resilience.NewCircuitBreaker(
		"deepgram",
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)

	return &DeepgramEngine{
		client:         restv1api.New(rest),
		model:          cfg.DeepgramModel,
		language:       cfg.DeepgramLanguage,
		logger:         observability.ComponentLogger("stt.deepgram"),
		circuitBreaker: circuitBreaker,
	}, nil
}

// Name identifies the engine in logs and metrics.
func (d *DeepgramEngine) Name() string {
	return "deepgram"
}

// Transcribe sends a WAV buffer to the prerecorded endpoint and returns the
// best transcript.
func (d *DeepgramEngine) Transcribe(ctx context.Context, wavData []byte) (string, error) {
	var transcript string

	err := d.circuitBreaker.Call(func() error {
		options := &interfaces.PreRecordedTranscriptionOptions{
			Model:       d.model,
			Language:    d.language,
			Punctuate:   true,
			SmartFormat: true,
		}

		res, err := d.client.FromStream(ctx, bytes.NewReader(wavData), options)
		if err != nil {
			observability.IncrementCircuitBreakerFailures("deepgram")
			return fmt.Errorf("deepgram transcription request failed: %w", err)
		}

		if res == nil || res.Results == nil || len(res.Results.Channels) == 0 ||
			len(res.Results.Channels[0].Alternatives) == 0 {
			return fmt.Errorf("deepgram returned no transcription alternatives")
		}

		transcript = strings.TrimSpace(res.Results.Channels[0].Alternatives[0].Transcript)
		return nil
	})

	observability.UpdateCircuitBreakerState("deepgram", int(d.circuitBreaker.GetState()))
	if err != nil {
		return "", err
	}

	d.logger.Debug().Int("audio_bytes", len(wavData)).Msg("Deepgram transcription complete")
	return transcript, nil
}

// Close releases the client. The REST client holds no persistent
// connection, so there is nothing to tear down.
func (d *DeepgramEngine) Close() error {
	return nil
}
