package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/voicegraph/voicegraph/internal/observability"
)

const (
	gttsEndpoint = "https://translate.google.com/translate_tts"

	// The translate endpoint rejects long q parameters, so text is split
	// into chunks at most this many characters and the mp3 buffers are
	// concatenated.
	gttsMaxChunkChars = 200
)

// GoogleTranslateEngine is the simple non-streaming fallback synthesizer.
// It speaks through the public translate text-to-speech endpoint.
type GoogleTranslateEngine struct {
	language   string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewGoogleTranslateEngine creates the fallback synthesis engine.
func NewGoogleTranslateEngine(language string) *GoogleTranslateEngine {
	if language == "" {
		language = "en"
	}
	return &GoogleTranslateEngine{
		language: language,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: observability.ComponentLogger("tts.gtts"),
	}
}

// Name identifies the engine in logs and metrics.
func (g *GoogleTranslateEngine) Name() string {
	return "gtts"
}

// Synthesize fetches mp3 audio for each text chunk and concatenates the
// buffers in order.
func (g *GoogleTranslateEngine) Synthesize(ctx context.Context, text string) ([]byte, error) {
	chunks := splitText(text, gttsMaxChunkChars)
	if len(chunks) == 0 {
		return nil, ErrEmptyText
	}

	var audio []byte
	for _, chunk := range chunks {
		data, err := g.fetchChunk(ctx, chunk)
		if err != nil {
			return nil, err
		}
		audio = append(audio, data...)
	}

	g.logger.Debug().Int("audio_bytes", len(audio)).Int("chunks", len(chunks)).
		Msg("gtts synthesis complete")
	return audio, nil
}

func (g *GoogleTranslateEngine) fetchChunk(ctx context.Context, text string) ([]byte, error) {
	params := url.Values{}
	params.Set("ie", "UTF-8")
	params.Set("client", "tw-ob")
	params.Set("tl", g.language)
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gttsEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create gtts request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gtts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gtts returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gtts response: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("gtts returned empty audio")
	}
	return data, nil
}

// splitText breaks text into chunks of at most maxChars, preferring word
// boundaries so no word is cut in half.
func splitText(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= maxChars {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		if current.Len() > 0 && current.Len()+1+len(word) > maxChars {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		// A single word longer than the limit is sent as its own chunk
		// rather than split mid-word.
		current.WriteString(word)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
