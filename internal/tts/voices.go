package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const edgeVoicesEndpoint = "https://speech.platform.bing.com/consumer/speech/synthesize/readaloud/voices/list"

// ListVoices fetches the streaming engine's voice catalogue filtered to
// English locales.
func ListVoices(ctx context.Context) ([]Voice, error) {
	voicesURL := edgeVoicesEndpoint + "?trustedclienttoken=" + edgeTrustedToken

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, voicesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create voices request: %w", err)
	}
	req.Header.Set("User-Agent", edgeUserAgent)

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voices request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voices endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read voices response: %w", err)
	}

	var all []Voice
	if err := json.Unmarshal(body, &all); err != nil {
		return nil, fmt.Errorf("failed to parse voices response: %w", err)
	}

	return filterEnglishVoices(all), nil
}

func filterEnglishVoices(voices []Voice) []Voice {
	english := make([]Voice, 0, len(voices))
	for _, v := range voices {
		if strings.HasPrefix(v.Locale, "en-") {
			english = append(english, v)
		}
	}
	return english
}
