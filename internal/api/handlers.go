package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/voicegraph/voicegraph/internal/audio"
	"github.com/voicegraph/voicegraph/internal/observability"
)

// sessionHeader optionally scopes a request to its own conversation
// history. Absent, all requests share the default session.
const sessionHeader = "X-Session-ID"

// maxUploadBytes caps multipart memory buffering.
const maxUploadBytes = 32 << 20

type textRequest struct {
	Text         string `json:"text"`
	OutputFormat string `json:"output_format"`
}

type textResponse struct {
	Success         bool   `json:"success"`
	TranscribedText string `json:"transcribed_text,omitempty"`
	ResponseText    string `json:"response_text,omitempty"`
	Error           string `json:"error,omitempty"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleVoiceProcess runs the full pipeline and streams the reply audio.
func (s *Server) handleVoiceProcess(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)

	format, ok := s.parseOutputFormat(w, r.FormValue("output_format"))
	if !ok {
		return
	}

	audioData, formatHint, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	// Oversized uploads are rejected before any engine runs. An
	// unreadable container reports an unknown duration and is allowed
	// through; the decode stage will give it a proper error.
	if seconds, known := s.normalizer.ProbeDuration(audioData); known && seconds > float64(s.cfg.MaxAudioDurationSec) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Audio too long (max %ds)", s.cfg.MaxAudioDurationSec))
		return
	}

	logger.Info().Str("format_hint", formatHint).Int("bytes", len(audioData)).Msg("processing voice request")

	result := s.pipeline.ProcessAudio(r.Context(), audioData, formatHint, format, r.Header.Get(sessionHeader))
	if !result.Success || len(result.AudioOutput) == 0 {
		writeError(w, http.StatusInternalServerError, orDefault(result.Error, "Processing failed"))
		return
	}

	writeAudio(w, result.AudioOutput, format)
}

// handleVoiceProcessWithText runs the full pipeline but answers with the
// text fields instead of audio.
func (s *Server) handleVoiceProcessWithText(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)

	audioData, formatHint, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	logger.Info().Str("format_hint", formatHint).Int("bytes", len(audioData)).Msg("processing voice request for text")

	result := s.pipeline.ProcessAudio(r.Context(), audioData, formatHint, audio.FormatMP3, r.Header.Get(sessionHeader))
	writeJSON(w, http.StatusOK, textResponse{
		Success:         result.Success,
		TranscribedText: result.TranscribedText,
		ResponseText:    result.ResponseText,
		Error:           result.Error,
	})
}

// handleTextChat generates a reply for typed text and streams its audio.
func (s *Server) handleTextChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTextRequest(w, r)
	if !ok {
		return
	}

	format, ok := s.parseOutputFormat(w, req.OutputFormat)
	if !ok {
		return
	}

	result := s.pipeline.ProcessText(r.Context(), req.Text, format, r.Header.Get(sessionHeader))
	if !result.Success {
		writeError(w, http.StatusInternalServerError, orDefault(result.Error, "Failed"))
		return
	}

	writeAudio(w, result.AudioOutput, format)
}

// handleTextChatText is the text-in text-out path; no synthesis runs.
func (s *Server) handleTextChatText(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTextRequest(w, r)
	if !ok {
		return
	}

	reply, err := s.pipeline.GenerateReply(r.Context(), req.Text, r.Header.Get(sessionHeader))
	if err != nil {
		writeJSON(w, http.StatusOK, textResponse{Success: false, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, textResponse{
		Success:         true,
		TranscribedText: req.Text,
		ResponseText:    reply,
	})
}

func (s *Server) handleConversationClear(w http.ResponseWriter, r *http.Request) {
	s.pipeline.ClearConversation(r.Header.Get(sessionHeader))
	writeJSON(w, http.StatusOK, statusResponse{Status: "cleared"})
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := s.listVoices(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("voice catalogue fetch failed")
		writeError(w, http.StatusBadGateway, "Could not fetch voices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"voices": voices})
}

// readUpload pulls the multipart audio file and derives a format hint from
// its filename. Writes the error response itself on failure.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart request")
		return nil, "", false
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing audio file")
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read audio file")
		return nil, "", false
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "Empty audio file")
		return nil, "", false
	}

	return data, formatHintFromFilename(header.Filename), true
}

func (s *Server) decodeTextRequest(w http.ResponseWriter, r *http.Request) (textRequest, bool) {
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return req, false
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "Text cannot be empty")
		return req, false
	}
	return req, true
}

func (s *Server) parseOutputFormat(w http.ResponseWriter, raw string) (audio.Format, bool) {
	if raw == "" {
		raw = string(audio.FormatMP3)
	}
	format, err := audio.ParseFormat(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Format must be: mp3, ogg, wav")
		return "", false
	}
	return format, true
}

func (s *Server) requestLogger(r *http.Request) zerolog.Logger {
	correlationID := r.Header.Get("X-Correlation-ID")
	if correlationID == "" {
		correlationID = observability.NewCorrelationID()
	}
	return observability.WithCorrelationID(correlationID)
}

// formatHintFromFilename maps a known audio extension to a decoder hint.
func formatHintFromFilename(filename string) string {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 {
		return ""
	}
	switch ext := strings.ToLower(filename[idx+1:]); ext {
	case "wav", "mp3", "ogg", "m4a", "webm", "flac":
		return ext
	default:
		return ""
	}
}

func writeAudio(w http.ResponseWriter, data []byte, format audio.Format) {
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
