package tts

import (
	"context"
	"errors"
)

// ErrEmptyText rejects blank input before any engine is contacted.
var ErrEmptyText = errors.New("tts: text cannot be empty")

// ErrSynthesisFailed is returned when no engine produced audio.
var ErrSynthesisFailed = errors.New("tts: could not synthesize speech")

// Engine converts text into an mp3 buffer. Both engines emit mp3 natively;
// container conversion happens above them in the stage.
type Engine interface {
	// Name identifies the engine in logs and metrics.
	Name() string

	// Synthesize returns the spoken text as mp3 bytes.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Voice describes one synthesis voice offered by the streaming engine.
type Voice struct {
	Name      string `json:"Name"`
	ShortName string `json:"ShortName"`
	Gender    string `json:"Gender"`
	Locale    string `json:"Locale"`
}
