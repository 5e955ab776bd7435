package tts

import (
	"context"
	"errors"
	"math"
	"os/exec"
	"strings"
	"testing"

	"github.com/voicegraph/voicegraph/internal/audio"
)

type fakeEngine struct {
	name  string
	data  []byte
	err   error
	calls int
	text  string
}

func (f *fakeEngine) Name() string {
	return f.name
}

func (f *fakeEngine) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.calls++
	f.text = text
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func TestStage_Synthesize_EmptyText(t *testing.T) {
	primary := &fakeEngine{name: "primary", data: []byte("mp3")}
	stage := NewStage(primary, nil, audio.NewNormalizer())

	for _, text := range []string{"", "   ", "\t\n"} {
		if _, err := stage.Synthesize(context.Background(), text, audio.FormatMP3); !errors.Is(err, ErrEmptyText) {
			t.Errorf("text %q: expected ErrEmptyText, got %v", text, err)
		}
	}
	if primary.calls != 0 {
		t.Errorf("no engine should run for empty text, primary ran %d times", primary.calls)
	}
}

func TestStage_Synthesize_PrimarySuccess(t *testing.T) {
	primary := &fakeEngine{name: "primary", data: []byte("primary-mp3")}
	fallback := &fakeEngine{name: "fallback", data: []byte("fallback-mp3")}
	stage := NewStage(primary, fallback, audio.NewNormalizer())

	data, err := stage.Synthesize(context.Background(), "hello", audio.FormatMP3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "primary-mp3" {
		t.Errorf("expected primary audio, got %q", data)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback should not run when primary succeeds, ran %d times", fallback.calls)
	}
}

func TestStage_Synthesize_FallbackOnPrimaryError(t *testing.T) {
	primary := &fakeEngine{name: "primary", err: errors.New("websocket closed")}
	fallback := &fakeEngine{name: "fallback", data: []byte("fallback-mp3")}
	stage := NewStage(primary, fallback, audio.NewNormalizer())

	data, err := stage.Synthesize(context.Background(), "hello", audio.FormatMP3)
	if err != nil {
		t.Fatalf("expected fallback to rescue the request, got: %v", err)
	}
	if string(data) != "fallback-mp3" {
		t.Errorf("expected fallback audio, got %q", data)
	}
	if fallback.text != "hello" {
		t.Errorf("fallback should receive the original text, got %q", fallback.text)
	}
}

func TestStage_Synthesize_BothEnginesFail(t *testing.T) {
	primary := &fakeEngine{name: "primary", err: errors.New("websocket closed")}
	fallback := &fakeEngine{name: "fallback", err: errors.New("endpoint gone")}
	stage := NewStage(primary, fallback, audio.NewNormalizer())

	_, err := stage.Synthesize(context.Background(), "hello", audio.FormatMP3)
	if !errors.Is(err, ErrSynthesisFailed) {
		t.Fatalf("expected ErrSynthesisFailed, got: %v", err)
	}
}

func TestStage_Synthesize_NoFallbackConfigured(t *testing.T) {
	primary := &fakeEngine{name: "primary", err: errors.New("websocket closed")}
	stage := NewStage(primary, nil, audio.NewNormalizer())

	_, err := stage.Synthesize(context.Background(), "hello", audio.FormatMP3)
	if !errors.Is(err, ErrSynthesisFailed) {
		t.Fatalf("expected ErrSynthesisFailed, got: %v", err)
	}
}

func TestStage_Synthesize_MP3PassThrough(t *testing.T) {
	// mp3 output skips the normalizer entirely, so the engine's bytes come
	// back untouched.
	primary := &fakeEngine{name: "primary", data: []byte{0xFF, 0xFB, 0x90, 0x00}}
	stage := NewStage(primary, nil, audio.NewNormalizer())

	data, err := stage.Synthesize(context.Background(), "hello", audio.FormatMP3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) != 4 || data[0] != 0xFF {
		t.Errorf("expected untouched engine bytes, got %v", data)
	}
}

func TestStage_Synthesize_ConvertsToRequestedFormat(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	// The engine emits a real audio buffer; requesting wav must route it
	// through the normalizer and come back as a sniffable WAV container.
	tone := make([]float32, 8000)
	for i := range tone {
		tone[i] = float32(0.4 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	primary := &fakeEngine{name: "primary", data: audio.EncodeWAV(tone, 16000)}
	stage := NewStage(primary, nil, audio.NewNormalizer())

	data, err := stage.Synthesize(context.Background(), "hello", audio.FormatWAV)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !audio.IsWAV(data) {
		t.Fatal("expected converted output to pass the WAV sniff check")
	}
	if _, _, err := audio.DecodeWAV(data); err != nil {
		t.Errorf("converted output does not decode: %v", err)
	}
}

func TestStage_Synthesize_ConversionFailure(t *testing.T) {
	// Garbage engine bytes cannot be re-encoded; the stage must surface the
	// conversion error instead of returning the unconverted buffer.
	primary := &fakeEngine{name: "primary", data: []byte("not audio at all")}
	stage := NewStage(primary, nil, audio.NewNormalizer())

	if _, err := stage.Synthesize(context.Background(), "hello", audio.FormatWAV); err == nil {
		t.Error("expected an error when the synthesized audio cannot be converted")
	}
}

func TestAudioPayload(t *testing.T) {
	header := "X-RequestId:abc\r\nPath:audio\r\n"
	frame := []byte{byte(len(header) >> 8), byte(len(header))}
	frame = append(frame, header...)
	frame = append(frame, []byte("mp3data")...)

	payload, ok := audioPayload(frame)
	if !ok {
		t.Fatal("expected an audio frame")
	}
	if string(payload) != "mp3data" {
		t.Errorf("expected payload 'mp3data', got %q", payload)
	}
}

func TestAudioPayload_NonAudioFrame(t *testing.T) {
	header := "Path:turn.start\r\n"
	frame := []byte{byte(len(header) >> 8), byte(len(header))}
	frame = append(frame, header...)

	if _, ok := audioPayload(frame); ok {
		t.Error("non-audio frames must be skipped")
	}
}

func TestAudioPayload_TruncatedFrame(t *testing.T) {
	if _, ok := audioPayload([]byte{0x00}); ok {
		t.Error("a one-byte frame cannot carry audio")
	}
	if _, ok := audioPayload([]byte{0x00, 0xFF, 'x'}); ok {
		t.Error("a frame shorter than its declared header must be rejected")
	}
}

func TestSplitText(t *testing.T) {
	if chunks := splitText("short sentence", 200); len(chunks) != 1 {
		t.Errorf("short text should stay in one chunk, got %d", len(chunks))
	}
	if chunks := splitText("   ", 200); chunks != nil {
		t.Errorf("whitespace-only text should yield no chunks, got %v", chunks)
	}

	long := strings.Repeat("word ", 100)
	chunks := splitText(long, 50)
	if len(chunks) < 2 {
		t.Fatalf("expected the long text to be split, got %d chunks", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 50 {
			t.Errorf("chunk %d exceeds the limit: %d chars", i, len(chunk))
		}
		if strings.HasPrefix(chunk, " ") || strings.HasSuffix(chunk, " ") {
			t.Errorf("chunk %d has stray boundary whitespace: %q", i, chunk)
		}
	}
	if rejoined := strings.Join(chunks, " "); rejoined != strings.TrimSpace(long) {
		t.Error("splitting must not drop or reorder words")
	}
}

func TestFilterEnglishVoices(t *testing.T) {
	voices := []Voice{
		{ShortName: "en-US-AriaNeural", Locale: "en-US"},
		{ShortName: "fr-FR-DeniseNeural", Locale: "fr-FR"},
		{ShortName: "en-IN-NeerjaNeural", Locale: "en-IN"},
	}

	english := filterEnglishVoices(voices)
	if len(english) != 2 {
		t.Fatalf("expected 2 English voices, got %d", len(english))
	}
	for _, v := range english {
		if !strings.HasPrefix(v.Locale, "en-") {
			t.Errorf("non-English voice %q passed the filter", v.ShortName)
		}
	}
}
