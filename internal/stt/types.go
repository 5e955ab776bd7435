package stt

import (
	"context"
	"errors"
)

// CanonicalSampleRate is the rate the primary engine expects; the stage
// resamples normalized audio to it before transcription.
const CanonicalSampleRate = 16000

// ConfidenceThreshold is the gate below which a primary transcript is
// treated as unreliable. The comparison is strictly less-than: a transcript
// at exactly the threshold passes.
const ConfidenceThreshold = 0.4

// ErrTranscriptionFailed is returned when no engine produced usable text.
var ErrTranscriptionFailed = errors.New("stt: could not transcribe audio")

// OutcomeKind tags a transcription outcome.
type OutcomeKind int

const (
	// OutcomeTranscribed is a trusted transcript.
	OutcomeTranscribed OutcomeKind = iota
	// OutcomeLowConfidence means the primary engine produced text below the
	// confidence gate; the caller should ask the user to repeat rather than
	// act on the unreliable transcript.
	OutcomeLowConfidence
)

// Outcome is the tagged result of a transcription. Failures are reported
// through the error return of Stage.Transcribe, never through Outcome.
type Outcome struct {
	Kind       OutcomeKind
	Text       string
	Confidence float64
}

// PrimaryEngine is the local acoustic model. It reports a confidence score
// in [0, 1] derived from its internal log-probabilities.
type PrimaryEngine interface {
	// Transcribe converts mono float32 samples at CanonicalSampleRate to
	// text plus a confidence estimate.
	Transcribe(ctx context.Context, samples []float32) (text string, confidence float64, err error)

	// Close unloads the model.
	Close() error
}

// FallbackEngine is a network speech-recognition service invoked when the
// primary engine errors. Its output is fully trusted; no confidence gate
// is applied.
type FallbackEngine interface {
	// Name identifies the engine in logs and metrics.
	Name() string

	// Transcribe converts a WAV-encoded buffer to text.
	Transcribe(ctx context.Context, wavData []byte) (string, error)

	// Close releases the client.
	Close() error
}
