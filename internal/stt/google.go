package stt

import (
	"context"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"

	"github.com/voicegraph/voicegraph/internal/config"
	"github.com/voicegraph/voicegraph/internal/observability"
	"github.com/voicegraph/voicegraph/internal/resilience"
)

// GoogleEngine transcribes prerecorded WAV buffers through the Google Cloud
// Speech-to-Text API. Credentials are resolved from the environment
// (GOOGLE_APPLICATION_CREDENTIALS).
type GoogleEngine struct {
	client         *speech.Client
	language       string
	logger         zerolog.Logger
	circuitBreaker *resilience.CircuitBreaker
}

// NewGoogleEngine creates a Google Speech recognition client.
func NewGoogleEngine(ctx context.Context, cfg *config.Config) (*GoogleEngine, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create google speech client: %w", err)
	}

	circuitBreaker := resilience.NewCircuitBreaker(
		"google_speech",
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)

	return &GoogleEngine{
		client:         client,
		language:       cfg.GoogleSpeechLanguage,
		logger:         observability.ComponentLogger("stt.google"),
		circuitBreaker: circuitBreaker,
	}, nil
}

// Name identifies the engine in logs and metrics.
func (g *GoogleEngine) Name() string {
	return "google_speech"
}

// Transcribe sends a WAV buffer to the synchronous Recognize endpoint and
// returns the highest-confidence alternative.
func (g *GoogleEngine) Transcribe(ctx context.Context, wavData []byte) (string, error) {
	var transcript string

	err := g.circuitBreaker.Call(func() error {
		resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
			Config: &speechpb.RecognitionConfig{
				Encoding:                   speechpb.RecognitionConfig_LINEAR16,
				SampleRateHertz:            CanonicalSampleRate,
				LanguageCode:               g.language,
				EnableAutomaticPunctuation: true,
			},
			Audio: &speechpb.RecognitionAudio{
				AudioSource: &speechpb.RecognitionAudio_Content{Content: wavData},
			},
		})
		if err != nil {
			observability.IncrementCircuitBreakerFailures("google_speech")
			return fmt.Errorf("google speech recognition failed: %w", err)
		}

		var bestConf float64
		for _, result := range resp.Results {
			for _, alt := range result.Alternatives {
				if alt.Transcript != "" && float64(alt.Confidence) >= bestConf {
					transcript = alt.Transcript
					bestConf = float64(alt.Confidence)
				}
			}
		}
		return nil
	})

	observability.UpdateCircuitBreakerState("google_speech", int(g.circuitBreaker.GetState()))
	if err != nil {
		return "", err
	}

	transcript = strings.TrimSpace(transcript)
	g.logger.Debug().Int("audio_bytes", len(wavData)).Msg("Google speech transcription complete")
	return transcript, nil
}

// Close releases the underlying gRPC connection.
func (g *GoogleEngine) Close() error {
	return g.client.Close()
}
