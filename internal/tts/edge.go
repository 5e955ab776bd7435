package tts

import (
	"context"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voicegraph/voicegraph/internal/observability"
	"github.com/voicegraph/voicegraph/internal/resilience"
)

const (
	edgeTrustedToken = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"
	edgeWSEndpoint   = "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1"
	edgeOrigin       = "chrome-extension://jdiccldimpdaibmpdkjnbmckianbfold"
	edgeUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36 Edg/122.0.0.0"

	// The service streams mp3 regardless of the requested container; the
	// stage converts afterwards if needed.
	edgeOutputFormat = "audio-24khz-48kbitrate-mono-mp3"
)

// EdgeEngine synthesizes speech through the Edge read-aloud websocket
// service. Each Synthesize call opens a fresh connection, streams the
// audio frames for one utterance and closes.
type EdgeEngine struct {
	voice  string
	rate   string
	volume string
	dialer *websocket.Dialer
	logger zerolog.Logger
}

// NewEdgeEngine creates the streaming synthesis engine. rate and volume
// are signed percentage offsets like "+0%" or "-10%".
func NewEdgeEngine(voice, rate, volume string) *EdgeEngine {
	return &EdgeEngine{
		voice:  voice,
		rate:   rate,
		volume: volume,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		logger: observability.ComponentLogger("tts.edge"),
	}
}

// Name identifies the engine in logs and metrics.
func (e *EdgeEngine) Name() string {
	return "edge"
}

// Synthesize streams one utterance and concatenates its audio frames.
// Transient dial failures are retried with backoff.
func (e *EdgeEngine) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var audio []byte

	err := resilience.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := e.synthesizeOnce(ctx, text)
		if err != nil {
			return err
		}
		audio = data
		return nil
	}, resilience.DefaultRetryConfig(), resilience.IsRetryableNetworkError)
	if err != nil {
		return nil, err
	}

	e.logger.Debug().Int("audio_bytes", len(audio)).Int("text_chars", len(text)).
		Msg("edge synthesis complete")
	return audio, nil
}

func (e *EdgeEngine) synthesizeOnce(ctx context.Context, text string) ([]byte, error) {
	connURL := fmt.Sprintf("%s?TrustedClientToken=%s&ConnectionId=%s",
		edgeWSEndpoint, edgeTrustedToken, connectionID())

	header := http.Header{}
	header.Set("Origin", edgeOrigin)
	header.Set("User-Agent", edgeUserAgent)

	conn, resp, err := e.dialer.DialContext(ctx, connURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("edge websocket handshake failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("edge websocket dial failed: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		conn.SetWriteDeadline(deadline)
	}

	if err := conn.WriteMessage(websocket.TextMessage, speechConfigFrame()); err != nil {
		return nil, fmt.Errorf("failed to send speech config: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, e.ssmlFrame(text)); err != nil {
		return nil, fmt.Errorf("failed to send ssml request: %w", err)
	}

	var audio []byte
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("edge stream read failed: %w", err)
		}

		switch msgType {
		case websocket.BinaryMessage:
			payload, ok := audioPayload(data)
			if ok {
				audio = append(audio, payload...)
			}
		case websocket.TextMessage:
			if strings.Contains(string(data), "Path:turn.end") {
				if len(audio) == 0 {
					return nil, fmt.Errorf("edge stream ended without audio frames")
				}
				return audio, nil
			}
		}
	}
}

// audioPayload extracts the mp3 bytes from one binary frame. The frame
// starts with a big-endian uint16 header length, then a text header block;
// only frames whose header carries Path:audio hold sound data.
func audioPayload(frame []byte) ([]byte, bool) {
	if len(frame) < 2 {
		return nil, false
	}
	headerLen := int(binary.BigEndian.Uint16(frame[:2]))
	if len(frame) < 2+headerLen {
		return nil, false
	}
	header := string(frame[2 : 2+headerLen])
	if !strings.Contains(header, "Path:audio") {
		return nil, false
	}
	return frame[2+headerLen:], true
}

func speechConfigFrame() []byte {
	var b strings.Builder
	b.WriteString("X-Timestamp:" + edgeTimestamp() + "\r\n")
	b.WriteString("Content-Type:application/json; charset=utf-8\r\n")
	b.WriteString("Path:speech.config\r\n\r\n")
	b.WriteString(`{"context":{"synthesis":{"audio":{"metadataoptions":` +
		`{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},` +
		`"outputFormat":"` + edgeOutputFormat + `"}}}}`)
	return []byte(b.String())
}

func (e *EdgeEngine) ssmlFrame(text string) []byte {
	var escaped strings.Builder
	xml.EscapeText(&escaped, []byte(text))

	ssml := fmt.Sprintf(
		"<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'>"+
			"<voice name='%s'><prosody pitch='+0Hz' rate='%s' volume='%s'>%s</prosody></voice></speak>",
		e.voice, e.rate, e.volume, escaped.String())

	var b strings.Builder
	b.WriteString("X-RequestId:" + connectionID() + "\r\n")
	b.WriteString("Content-Type:application/ssml+xml\r\n")
	b.WriteString("X-Timestamp:" + edgeTimestamp() + "\r\n")
	b.WriteString("Path:ssml\r\n\r\n")
	b.WriteString(ssml)
	return []byte(b.String())
}

// connectionID is a UUID without dashes, the shape the service expects.
func connectionID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func edgeTimestamp() string {
	return time.Now().UTC().Format("Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)")
}
