package stt

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/voicegraph/voicegraph/internal/audio"
)

type fakePrimary struct {
	text       string
	confidence float64
	err        error
	calls      int
	samples    []float32
	closed     bool
}

func (f *fakePrimary) Transcribe(_ context.Context, samples []float32) (string, float64, error) {
	f.calls++
	f.samples = samples
	return f.text, f.confidence, f.err
}

func (f *fakePrimary) Close() error {
	f.closed = true
	return nil
}

type fakeFallback struct {
	text   string
	err    error
	calls  int
	wav    []byte
	closed bool
}

func (f *fakeFallback) Name() string {
	return "fake"
}

func (f *fakeFallback) Transcribe(_ context.Context, wavData []byte) (string, error) {
	f.calls++
	f.wav = wavData
	return f.text, f.err
}

func (f *fakeFallback) Close() error {
	f.closed = true
	return nil
}

// testWAV builds a short valid WAV buffer so the stage's decoder has real
// input to work with.
func testWAV(t *testing.T, rate int) []byte {
	t.Helper()
	samples := make([]float32, rate/10)
	for i := range samples {
		samples[i] = float32(0.3 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	return audio.EncodeWAV(samples, rate)
}

func TestStage_Transcribe_HighConfidence(t *testing.T) {
	primary := &fakePrimary{text: "hello there", confidence: 0.9}
	fallback := &fakeFallback{}
	stage := NewStage(primary, fallback, audio.NewNormalizer())

	outcome, err := stage.Transcribe(context.Background(), testWAV(t, CanonicalSampleRate), "wav")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if outcome.Kind != OutcomeTranscribed {
		t.Errorf("expected OutcomeTranscribed, got %v", outcome.Kind)
	}
	if outcome.Text != "hello there" {
		t.Errorf("expected transcript 'hello there', got %q", outcome.Text)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback should not run when primary succeeds, ran %d times", fallback.calls)
	}
}

func TestStage_Transcribe_LowConfidence(t *testing.T) {
	primary := &fakePrimary{text: "mumbled words", confidence: 0.39}
	fallback := &fakeFallback{}
	stage := NewStage(primary, fallback, audio.NewNormalizer())

	outcome, err := stage.Transcribe(context.Background(), testWAV(t, CanonicalSampleRate), "wav")
	if err != nil {
		t.Fatalf("low confidence is not an error, got: %v", err)
	}
	if outcome.Kind != OutcomeLowConfidence {
		t.Errorf("expected OutcomeLowConfidence, got %v", outcome.Kind)
	}
	if outcome.Text != "mumbled words" {
		t.Errorf("expected unreliable transcript preserved, got %q", outcome.Text)
	}
	if fallback.calls != 0 {
		t.Errorf("low confidence must not trigger the fallback engine, ran %d times", fallback.calls)
	}
}

func TestStage_Transcribe_ThresholdBoundary(t *testing.T) {
	// Exactly at the threshold the transcript is trusted; the gate is
	// strictly less-than.
	primary := &fakePrimary{text: "borderline", confidence: ConfidenceThreshold}
	stage := NewStage(primary, nil, audio.NewNormalizer())

	outcome, err := stage.Transcribe(context.Background(), testWAV(t, CanonicalSampleRate), "wav")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if outcome.Kind != OutcomeTranscribed {
		t.Errorf("confidence equal to the threshold should pass the gate, got %v", outcome.Kind)
	}
}

func TestStage_Transcribe_EmptyPrimaryTranscript(t *testing.T) {
	primary := &fakePrimary{text: "   ", confidence: 0.8}
	fallback := &fakeFallback{text: "should not be used"}
	stage := NewStage(primary, fallback, audio.NewNormalizer())

	_, err := stage.Transcribe(context.Background(), testWAV(t, CanonicalSampleRate), "wav")
	if !errors.Is(err, ErrTranscriptionFailed) {
		t.Fatalf("expected ErrTranscriptionFailed, got: %v", err)
	}
	if fallback.calls != 0 {
		t.Errorf("an empty transcript is not an engine error, fallback ran %d times", fallback.calls)
	}
}

func TestStage_Transcribe_FallbackOnPrimaryError(t *testing.T) {
	primary := &fakePrimary{err: errors.New("model exploded")}
	fallback := &fakeFallback{text: "rescued transcript"}
	stage := NewStage(primary, fallback, audio.NewNormalizer())

	outcome, err := stage.Transcribe(context.Background(), testWAV(t, CanonicalSampleRate), "wav")
	if err != nil {
		t.Fatalf("expected fallback to rescue the request, got: %v", err)
	}
	if outcome.Kind != OutcomeTranscribed {
		t.Errorf("fallback transcripts are trusted, got %v", outcome.Kind)
	}
	if outcome.Text != "rescued transcript" {
		t.Errorf("expected fallback transcript, got %q", outcome.Text)
	}
	if fallback.calls != 1 {
		t.Fatalf("expected exactly one fallback call, got %d", fallback.calls)
	}
	if !audio.IsWAV(fallback.wav) {
		t.Error("fallback engine should receive a WAV-encoded buffer")
	}
}

func TestStage_Transcribe_ResamplesBeforeFallback(t *testing.T) {
	primary := &fakePrimary{err: errors.New("model exploded")}
	fallback := &fakeFallback{text: "ok"}
	stage := NewStage(primary, fallback, audio.NewNormalizer())

	// 44.1kHz input must reach the engines at the canonical rate.
	if _, err := stage.Transcribe(context.Background(), testWAV(t, 44100), "wav"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, rate, err := audio.DecodeWAV(fallback.wav)
	if err != nil {
		t.Fatalf("fallback received an invalid WAV buffer: %v", err)
	}
	if rate != CanonicalSampleRate {
		t.Errorf("expected fallback audio at %d Hz, got %d Hz", CanonicalSampleRate, rate)
	}
}

func TestStage_Transcribe_BothEnginesFail(t *testing.T) {
	primary := &fakePrimary{err: errors.New("model exploded")}
	fallback := &fakeFallback{err: errors.New("network down")}
	stage := NewStage(primary, fallback, audio.NewNormalizer())

	_, err := stage.Transcribe(context.Background(), testWAV(t, CanonicalSampleRate), "wav")
	if !errors.Is(err, ErrTranscriptionFailed) {
		t.Fatalf("expected ErrTranscriptionFailed, got: %v", err)
	}
}

func TestStage_Transcribe_NoFallbackConfigured(t *testing.T) {
	primary := &fakePrimary{err: errors.New("model exploded")}
	stage := NewStage(primary, nil, audio.NewNormalizer())

	_, err := stage.Transcribe(context.Background(), testWAV(t, CanonicalSampleRate), "wav")
	if !errors.Is(err, ErrTranscriptionFailed) {
		t.Fatalf("expected ErrTranscriptionFailed, got: %v", err)
	}
}

func TestStage_Transcribe_SilentAudio(t *testing.T) {
	primary := &fakePrimary{text: "never reached", confidence: 1}
	fallback := &fakeFallback{text: "never reached either"}
	stage := NewStage(primary, fallback, audio.NewNormalizer())

	silent := audio.EncodeWAV(make([]float32, CanonicalSampleRate), CanonicalSampleRate)
	_, err := stage.Transcribe(context.Background(), silent, "wav")
	if !errors.Is(err, ErrTranscriptionFailed) {
		t.Fatalf("expected ErrTranscriptionFailed for silent audio, got: %v", err)
	}
	if primary.calls != 0 || fallback.calls != 0 {
		t.Error("engines must not run on silent audio")
	}
}

func TestStage_Transcribe_EmptyAudio(t *testing.T) {
	primary := &fakePrimary{text: "never reached", confidence: 1}
	stage := NewStage(primary, nil, audio.NewNormalizer())

	_, err := stage.Transcribe(context.Background(), nil, "")
	if !errors.Is(err, audio.ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got: %v", err)
	}
	if primary.calls != 0 {
		t.Errorf("engines must not run on empty audio, primary ran %d times", primary.calls)
	}
}

func TestStage_Close(t *testing.T) {
	primary := &fakePrimary{}
	fallback := &fakeFallback{}
	stage := NewStage(primary, fallback, audio.NewNormalizer())

	if err := stage.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if !primary.closed || !fallback.closed {
		t.Error("expected both engines to be closed")
	}
}
