// Package api exposes the voice pipeline over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/voicegraph/voicegraph/internal/audio"
	"github.com/voicegraph/voicegraph/internal/config"
	"github.com/voicegraph/voicegraph/internal/observability"
	"github.com/voicegraph/voicegraph/internal/pipeline"
	"github.com/voicegraph/voicegraph/internal/tts"
)

// Pipeline is the orchestrator surface the handlers need.
type Pipeline interface {
	ProcessAudio(ctx context.Context, audioData []byte, formatHint string, outputFormat audio.Format, sessionID string) pipeline.Result
	ProcessText(ctx context.Context, text string, outputFormat audio.Format, sessionID string) pipeline.Result
	GenerateReply(ctx context.Context, text, sessionID string) (string, error)
	ClearConversation(sessionID string)
}

// VoiceLister fetches the synthesis voice catalogue.
type VoiceLister func(ctx context.Context) ([]tts.Voice, error)

// Server holds the handler dependencies.
type Server struct {
	cfg        *config.Config
	pipeline   Pipeline
	normalizer *audio.Normalizer
	listVoices VoiceLister
	logger     zerolog.Logger
}

// NewServer wires the HTTP layer.
func NewServer(cfg *config.Config, p Pipeline, normalizer *audio.Normalizer, listVoices VoiceLister) *Server {
	return &Server{
		cfg:        cfg,
		pipeline:   p,
		normalizer: normalizer,
		listVoices: listVoices,
		logger:     observability.ComponentLogger("api"),
	}
}

// Routes builds the request mux. readyChecks feed the readiness probe.
func (s *Server) Routes(readyChecks map[string]observability.HealthCheckFunc) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/voice/process", s.handleVoiceProcess)
	mux.HandleFunc("POST /api/voice/process-with-text", s.handleVoiceProcessWithText)
	mux.HandleFunc("POST /api/text/chat", s.handleTextChat)
	mux.HandleFunc("POST /api/text/chat-text", s.handleTextChatText)
	mux.HandleFunc("POST /api/conversation/clear", s.handleConversationClear)
	mux.HandleFunc("GET /api/tts/voices", s.handleVoices)

	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(readyChecks))

	if s.cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	return mux
}
