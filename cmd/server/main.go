package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/voicegraph/voicegraph/internal/api"
	"github.com/voicegraph/voicegraph/internal/audio"
	"github.com/voicegraph/voicegraph/internal/config"
	"github.com/voicegraph/voicegraph/internal/history"
	"github.com/voicegraph/voicegraph/internal/llm"
	"github.com/voicegraph/voicegraph/internal/observability"
	"github.com/voicegraph/voicegraph/internal/pipeline"
	"github.com/voicegraph/voicegraph/internal/stt"
	"github.com/voicegraph/voicegraph/internal/tts"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("host", cfg.Host).
		Str("port", cfg.Port).
		Str("stt_fallback", cfg.STTFallbackProvider).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("VoiceGraph service starting")

	normalizer := audio.NewNormalizer()

	// The acoustic model is loaded before the server accepts traffic, so a
	// missing model fails startup instead of the first request.
	whisperEngine, err := stt.NewWhisperEngine(cfg.WhisperModelPath, cfg.WhisperLanguage)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load speech recognition model")
	}

	sttFallback := buildSTTFallback(cfg)
	sttStage := stt.NewStage(whisperEngine, sttFallback, normalizer)

	store := history.NewStore(history.DefaultMaxTurns)
	resetTimeout := time.Duration(cfg.CircuitBreakerResetTimeout) * time.Second

	providers := []llm.Completer{
		llm.NewGroqProvider(cfg.GroqAPIKey, cfg.GroqModel, cfg.CircuitBreakerMaxFailures, resetTimeout),
	}
	if cfg.OpenRouterAPIKey != "" {
		providers = append(providers,
			llm.NewOpenRouterProvider(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.CircuitBreakerMaxFailures, resetTimeout))
	} else {
		logger.Warn().Msg("No OpenRouter key configured, running without a secondary LLM provider")
	}
	llmStage := llm.NewStage(providers, store, cfg.SystemPrompt)

	ttsStage := tts.NewStage(
		tts.NewEdgeEngine(cfg.TTSVoice, cfg.TTSRate, cfg.TTSVolume),
		tts.NewGoogleTranslateEngine("en"),
		normalizer,
	)

	orchestrator := pipeline.New(sttStage, llmStage, ttsStage)

	server := api.NewServer(cfg, orchestrator, normalizer, tts.ListVoices)
	mux := server.Routes(map[string]observability.HealthCheckFunc{
		"whisper_model": func(ctx context.Context) (bool, error) {
			if _, err := os.Stat(cfg.WhisperModelPath); err != nil {
				return false, err
			}
			return true, nil
		},
		"ffmpeg": func(ctx context.Context) (bool, error) {
			if _, err := exec.LookPath("ffmpeg"); err != nil {
				return false, fmt.Errorf("ffmpeg not found in PATH: %w", err)
			}
			return true, nil
		},
	})

	// Synthesis and model inference can take a while on long replies, so
	// the write timeout is generous compared to the read side.
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	orchestrator.Cleanup()
	logger.Info().Msg("Server exited gracefully")
}

// buildSTTFallback picks the configured network recognition engine. A
// missing key or client failure degrades to primary-only transcription
// rather than blocking startup.
func buildSTTFallback(cfg *config.Config) stt.FallbackEngine {
	logger := observability.GetLogger()

	switch cfg.STTFallbackProvider {
	case "deepgram":
		engine, err := stt.NewDeepgramEngine(cfg)
		if err != nil {
			logger.Warn().Err(err).Msg("Deepgram fallback unavailable, running with primary STT only")
			return nil
		}
		return engine
	case "google":
		engine, err := stt.NewGoogleEngine(context.Background(), cfg)
		if err != nil {
			logger.Warn().Err(err).Msg("Google Speech fallback unavailable, running with primary STT only")
			return nil
		}
		return engine
	default:
		return nil
	}
}
