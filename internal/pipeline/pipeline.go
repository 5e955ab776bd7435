// Package pipeline runs one voice exchange end to end: speech recognition,
// reply generation, then speech synthesis. Stages execute as a fixed
// ordered sequence with short-circuit on the first stage error; the error
// path synthesizes a spoken apology best-effort so the caller still hears
// something when a stage breaks.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/voicegraph/voicegraph/internal/audio"
	"github.com/voicegraph/voicegraph/internal/llm"
	"github.com/voicegraph/voicegraph/internal/observability"
	"github.com/voicegraph/voicegraph/internal/stt"
	"github.com/voicegraph/voicegraph/internal/tts"
)

const (
	// errNoAudio is the caller-visible message for an empty upload.
	errNoAudio = "No audio recorded"

	// lowConfidenceReply is spoken when the recognizer heard something but
	// does not trust its own transcript.
	lowConfidenceReply = "I'm sorry, I didn't quite catch that. Could you say it again?"

	// apologyReply is spoken by the error path when a stage fails outright.
	apologyReply = "Sorry, I had trouble processing that. Please try again."
)

// State accumulates one request's data as it moves through the stages.
type State struct {
	SessionID    string
	AudioInput   []byte
	FormatHint   string
	OutputFormat audio.Format

	TranscribedText string
	ResponseText    string
	AudioOutput     []byte

	// Err short-circuits the remaining stages and routes to the error path.
	Err error
}

// Result is the terminal outcome of a pipeline run.
type Result struct {
	Success         bool   `json:"success"`
	TranscribedText string `json:"transcribed_text"`
	ResponseText    string `json:"response_text"`
	AudioOutput     []byte `json:"-"`
	Error           string `json:"error,omitempty"`
}

type stage struct {
	name string
	run  func(ctx context.Context, s *State)
}

// Transcriber is the speech-recognition stage surface.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, formatHint string) (stt.Outcome, error)
	Close() error
}

// Replier is the reply-generation stage surface.
type Replier interface {
	Reply(ctx context.Context, sessionID, message string) (string, error)
	ClearHistory(sessionID string)
}

// Synthesizer is the speech-synthesis stage surface.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, format audio.Format) ([]byte, error)
}

// Orchestrator owns the stage sequence. It is built once at startup and
// reused across requests; per-request data lives in State, never here.
type Orchestrator struct {
	transcriber Transcriber
	replier     Replier
	synthesizer Synthesizer
	stages      []stage
	logger      zerolog.Logger
}

// New wires the stages in execution order.
func New(transcriber Transcriber, replier Replier, synthesizer Synthesizer) *Orchestrator {
	o := &Orchestrator{
		transcriber: transcriber,
		replier:     replier,
		synthesizer: synthesizer,
		logger:      observability.ComponentLogger("pipeline"),
	}
	o.stages = []stage{
		{name: "stt", run: o.runSTT},
		{name: "llm", run: o.runLLM},
		{name: "tts", run: o.runTTS},
	}
	return o
}

// ProcessAudio runs the full pipeline from raw uploaded audio. It never
// returns a Go error: every failure is folded into the Result so HTTP
// handlers have one shape to translate.
func (o *Orchestrator) ProcessAudio(ctx context.Context, audioData []byte, formatHint string, outputFormat audio.Format, sessionID string) Result {
	started := time.Now()

	if len(audioData) == 0 {
		observability.RecordPipelineRun("audio", false, started)
		return Result{Success: false, Error: errNoAudio}
	}
	observability.RecordAudioBytes("in", int64(len(audioData)))

	s := &State{
		SessionID:    sessionID,
		AudioInput:   audioData,
		FormatHint:   formatHint,
		OutputFormat: outputFormat,
	}

	for _, st := range o.stages {
		timer := observability.StartStage(st.name)
		st.run(ctx, s)
		timer.Done(s.Err == nil)
		if s.Err != nil {
			o.logger.Error().Err(s.Err).Str("stage", st.name).Msg("pipeline stage failed")
			o.runErrorPath(ctx, s)
			break
		}
	}

	observability.RecordPipelineRun("audio", s.Err == nil, started)
	return o.resultFrom(s)
}

// ProcessText bypasses speech recognition: the text goes straight to reply
// generation and synthesis as a direct two-step call.
func (o *Orchestrator) ProcessText(ctx context.Context, text string, outputFormat audio.Format, sessionID string) Result {
	started := time.Now()

	reply, err := o.replier.Reply(ctx, sessionID, text)
	if err != nil {
		observability.RecordPipelineRun("text", false, started)
		return Result{Success: false, TranscribedText: text, Error: err.Error()}
	}

	audioOut, err := o.synthesizer.Synthesize(ctx, reply, outputFormat)
	if err != nil {
		observability.RecordPipelineRun("text", false, started)
		return Result{Success: false, TranscribedText: text, ResponseText: reply, Error: err.Error()}
	}

	observability.RecordPipelineRun("text", true, started)
	return Result{
		Success:         true,
		TranscribedText: text,
		ResponseText:    reply,
		AudioOutput:     audioOut,
	}
}

// GenerateReply runs only the reply-generation stage, for callers that
// want text without audio.
func (o *Orchestrator) GenerateReply(ctx context.Context, text, sessionID string) (string, error) {
	return o.replier.Reply(ctx, sessionID, text)
}

// ClearConversation wipes the session's history. Idempotent.
func (o *Orchestrator) ClearConversation(sessionID string) {
	o.replier.ClearHistory(sessionID)
}

// Cleanup releases engine resources at shutdown. Best-effort.
func (o *Orchestrator) Cleanup() {
	if err := o.transcriber.Close(); err != nil {
		o.logger.Warn().Err(err).Msg("transcriber cleanup failed")
	}
}

func (o *Orchestrator) runSTT(ctx context.Context, s *State) {
	outcome, err := o.transcriber.Transcribe(ctx, s.AudioInput, s.FormatHint)
	if err != nil {
		s.Err = err
		return
	}

	if outcome.Kind == stt.OutcomeLowConfidence {
		// The transcript exists but is unreliable; ask the user to repeat
		// instead of feeding guesswork to the language model. The reply
		// generation stage sees the response already set and steps aside.
		s.ResponseText = lowConfidenceReply
		return
	}
	s.TranscribedText = outcome.Text
}

func (o *Orchestrator) runLLM(ctx context.Context, s *State) {
	if s.ResponseText != "" {
		return
	}

	reply, err := o.replier.Reply(ctx, s.SessionID, s.TranscribedText)
	if err != nil {
		s.Err = err
		return
	}
	s.ResponseText = reply
}

func (o *Orchestrator) runTTS(ctx context.Context, s *State) {
	audioOut, err := o.synthesizer.Synthesize(ctx, s.ResponseText, s.OutputFormat)
	if err != nil {
		s.Err = err
		return
	}
	s.AudioOutput = audioOut
}

// runErrorPath voices a fixed apology. Any failure here is swallowed: the
// result then carries the apology text without audio.
func (o *Orchestrator) runErrorPath(ctx context.Context, s *State) {
	s.ResponseText = apologyReply

	audioOut, err := o.synthesizer.Synthesize(ctx, apologyReply, s.OutputFormat)
	if err != nil {
		o.logger.Warn().Err(err).Msg("apology synthesis failed, returning text only")
		return
	}
	s.AudioOutput = audioOut
}

func (o *Orchestrator) resultFrom(s *State) Result {
	r := Result{
		Success:         s.Err == nil,
		TranscribedText: s.TranscribedText,
		ResponseText:    s.ResponseText,
		AudioOutput:     s.AudioOutput,
	}
	if s.Err != nil {
		r.Error = userFacingError(s.Err)
	}
	return r
}

// userFacingError maps stage errors onto short caller-visible messages;
// anything unrecognized passes through as-is.
func userFacingError(err error) string {
	switch {
	case errors.Is(err, audio.ErrEmptyAudio):
		return errNoAudio
	case errors.Is(err, stt.ErrTranscriptionFailed):
		return "Could not transcribe audio"
	case errors.Is(err, llm.ErrEmptyMessage):
		return "Message cannot be empty"
	case errors.Is(err, tts.ErrSynthesisFailed):
		return "Speech synthesis failed"
	default:
		return err.Error()
	}
}
