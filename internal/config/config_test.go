package config

import (
	"os"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	// Set required environment variables
	os.Setenv("GROQ_API_KEY", "test-groq-key")
	defer os.Unsetenv("GROQ_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.GroqAPIKey != "test-groq-key" {
		t.Errorf("Expected GroqAPIKey 'test-groq-key', got '%s'", cfg.GroqAPIKey)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("GROQ_API_KEY")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when GROQ_API_KEY is missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("GROQ_API_KEY", "test-groq-key")
	defer os.Unsetenv("GROQ_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Check defaults
	if cfg.Port != "8000" {
		t.Errorf("Expected default Port '8000', got '%s'", cfg.Port)
	}

	if cfg.GroqModel != "llama-3.3-70b-versatile" {
		t.Errorf("Expected default GroqModel 'llama-3.3-70b-versatile', got '%s'", cfg.GroqModel)
	}

	if cfg.WhisperLanguage != "en" {
		t.Errorf("Expected default WhisperLanguage 'en', got '%s'", cfg.WhisperLanguage)
	}

	if cfg.STTFallbackProvider != "deepgram" {
		t.Errorf("Expected default STTFallbackProvider 'deepgram', got '%s'", cfg.STTFallbackProvider)
	}

	if cfg.TTSVoice != "en-IN-NeerjaNeural" {
		t.Errorf("Expected default TTSVoice 'en-IN-NeerjaNeural', got '%s'", cfg.TTSVoice)
	}

	if cfg.TTSRate != "+0%" {
		t.Errorf("Expected default TTSRate '+0%%', got '%s'", cfg.TTSRate)
	}

	if cfg.TTSVolume != "+0%" {
		t.Errorf("Expected default TTSVolume '+0%%', got '%s'", cfg.TTSVolume)
	}

	if cfg.MaxAudioDurationSec != 90 {
		t.Errorf("Expected default MaxAudioDurationSec 90, got %d", cfg.MaxAudioDurationSec)
	}
}

func TestLoad_SystemPromptDefault(t *testing.T) {
	os.Setenv("GROQ_API_KEY", "test-groq-key")
	os.Unsetenv("SYSTEM_PROMPT")
	defer os.Unsetenv("GROQ_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.SystemPrompt != DefaultSystemPrompt {
		t.Error("Expected SystemPrompt to fall back to DefaultSystemPrompt")
	}

	if !strings.Contains(cfg.SystemPrompt, "voice assistant") {
		t.Error("Expected default persona text in SystemPrompt")
	}
}

func TestLoad_SystemPromptOverride(t *testing.T) {
	os.Setenv("GROQ_API_KEY", "test-groq-key")
	os.Setenv("SYSTEM_PROMPT", "You are a pirate.")
	defer os.Unsetenv("GROQ_API_KEY")
	defer os.Unsetenv("SYSTEM_PROMPT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.SystemPrompt != "You are a pirate." {
		t.Errorf("Expected SystemPrompt override, got '%s'", cfg.SystemPrompt)
	}
}

func TestLoad_InvalidFallbackProvider(t *testing.T) {
	os.Setenv("GROQ_API_KEY", "test-groq-key")
	os.Setenv("STT_FALLBACK_PROVIDER", "azure")
	defer os.Unsetenv("GROQ_API_KEY")
	defer os.Unsetenv("STT_FALLBACK_PROVIDER")

	_, err := Load()
	if err == nil {
		t.Error("Expected error for unknown STT_FALLBACK_PROVIDER")
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("GROQ_API_KEY", "test-groq-key")
	defer os.Unsetenv("GROQ_API_KEY")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.GroqAPIKey != "test-groq-key" {
		t.Errorf("Expected GroqAPIKey 'test-groq-key', got '%s'", cfg.GroqAPIKey)
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	value := GetEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	value = GetEnv("NON_EXISTENT_KEY", "default")
	if value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}

func TestConfig_ResilienceDefaults(t *testing.T) {
	os.Setenv("GROQ_API_KEY", "test-groq-key")
	defer os.Unsetenv("GROQ_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.CircuitBreakerMaxFailures != 5 {
		t.Errorf("Expected default CircuitBreakerMaxFailures 5, got %d", cfg.CircuitBreakerMaxFailures)
	}

	if cfg.CircuitBreakerResetTimeout != 30 {
		t.Errorf("Expected default CircuitBreakerResetTimeout 30, got %d", cfg.CircuitBreakerResetTimeout)
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	os.Setenv("GROQ_API_KEY", "test-groq-key")
	// Clear LOG_LEVEL to ensure we get the default
	os.Unsetenv("LOG_LEVEL")
	defer os.Unsetenv("GROQ_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}

	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
}
