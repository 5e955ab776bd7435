package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DefaultSystemPrompt is the persona instruction prepended to every LLM call
// when SYSTEM_PROMPT is not set. The persona is content configuration, not
// behavior: deployments swap it for a named persona without code changes.
const DefaultSystemPrompt = `You are a helpful voice assistant.

Answering style rules (mandatory):
- Use simple, clear, human language.
- No jargon unless necessary.
- 3-5 sentences per answer.
- Calm, confident, humble tone.
- Never mention being an AI or language model.

Answers should feel like a real spoken conversation.`

// Config holds all configuration for the voice conversation service
type Config struct {
	// Server configuration
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port string `envconfig:"PORT" default:"8000"`

	// Groq LLM API configuration (primary language engine)
	GroqAPIKey string `envconfig:"GROQ_API_KEY" required:"true"`
	GroqModel  string `envconfig:"GROQ_MODEL" default:"llama-3.3-70b-versatile"`

	// OpenRouter LLM API configuration (secondary language engine, optional)
	OpenRouterAPIKey string `envconfig:"OPENROUTER_API_KEY" default:""`
	OpenRouterModel  string `envconfig:"OPENROUTER_MODEL" default:"meta-llama/llama-3.3-70b-instruct"`

	// Whisper STT configuration (primary speech engine, local model)
	WhisperModelPath string `envconfig:"WHISPER_MODEL_PATH" default:".cache/whisper/ggml-base.en.bin"`
	WhisperLanguage  string `envconfig:"WHISPER_LANGUAGE" default:"en"`

	// Network STT fallback configuration
	STTFallbackProvider  string `envconfig:"STT_FALLBACK_PROVIDER" default:"deepgram"` // deepgram, google
	DeepgramAPIKey       string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel        string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage     string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`
	GoogleSpeechLanguage string `envconfig:"GOOGLE_SPEECH_LANGUAGE" default:"en-US"`

	// TTS configuration (Edge neural voices primary, Translate fallback)
	TTSVoice  string `envconfig:"TTS_VOICE" default:"en-IN-NeerjaNeural"`
	TTSRate   string `envconfig:"TTS_RATE" default:"+0%"`
	TTSVolume string `envconfig:"TTS_VOLUME" default:"+0%"`

	// Conversation configuration
	SystemPrompt        string `envconfig:"SYSTEM_PROMPT" default:""`
	MaxAudioDurationSec int    `envconfig:"MAX_AUDIO_DURATION_SECONDS" default:"90"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery

	// Observability configuration
	Debug          bool   `envconfig:"DEBUG" default:"false"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.GroqAPIKey == "" {
		return nil, fmt.Errorf("GROQ_API_KEY is required")
	}
	switch cfg.STTFallbackProvider {
	case "deepgram", "google":
	default:
		return nil, fmt.Errorf("STT_FALLBACK_PROVIDER must be deepgram or google, got %q", cfg.STTFallbackProvider)
	}

	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}

	return &cfg, nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
