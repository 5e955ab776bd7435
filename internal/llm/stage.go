package llm

import (
	"context"
	"errors"
	"math/rand"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/voicegraph/voicegraph/internal/history"
	"github.com/voicegraph/voicegraph/internal/observability"
)

// ErrEmptyMessage rejects blank input before any provider is contacted.
var ErrEmptyMessage = errors.New("llm: message cannot be empty")

// safeAnswers is the degraded-mode reply set used when every provider
// fails. A random pick keeps an outage from sounding like a broken record.
var safeAnswers = []string{
	"I'm having a little trouble thinking right now. Could you say that again in a moment?",
	"Sorry, my mind went blank for a second. Please try that once more.",
	"I didn't quite manage to come up with an answer. Give me another try?",
	"Something on my end hiccuped. Could you repeat that?",
}

// Completer runs one chat completion against a single backend.
type Completer interface {
	Name() string
	Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error)
}

// Stage produces a conversational reply from the user's message and the
// session's bounded history. Providers are tried in order; total failure
// degrades to a canned safe answer instead of an error, so the pipeline
// always has something to say.
type Stage struct {
	providers    []Completer
	history      *history.Store
	systemPrompt string
	logger       zerolog.Logger
	pick         func(n int) int
}

// NewStage wires the providers in fallback order.
func NewStage(providers []Completer, store *history.Store, systemPrompt string) *Stage {
	return &Stage{
		providers:    providers,
		history:      store,
		systemPrompt: systemPrompt,
		logger:       observability.ComponentLogger("llm"),
		pick:         rand.Intn,
	}
}

// Reply generates the assistant's reply for a session. On provider success
// the exchange is appended to the session history; a safe answer is not
// recorded, since canned outage text would only mislead the model later.
func (s *Stage) Reply(ctx context.Context, sessionID, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}

	messages := s.buildMessages(sessionID, message)

	var lastErr error
	for i, provider := range s.providers {
		reply, err := provider.Complete(ctx, messages)
		if err == nil {
			if i > 0 {
				observability.RecordFallback("llm")
			}
			s.history.AppendExchange(sessionID, message, reply)
			return reply, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		s.logger.Warn().Err(err).Str("provider", provider.Name()).Msg("completion provider failed")
	}

	s.logger.Error().Err(lastErr).Msg("all completion providers failed, using safe answer")
	observability.RecordSafeAnswer()
	return safeAnswers[s.pick(len(safeAnswers))], nil
}

// ClearHistory wipes the session's conversation context.
func (s *Stage) ClearHistory(sessionID string) {
	s.history.Clear(sessionID)
}

func (s *Stage) buildMessages(sessionID, message string) []openai.ChatCompletionMessage {
	turns := s.history.Turns(sessionID)

	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: s.systemPrompt,
	})
	for _, turn := range turns {
		role := openai.ChatMessageRoleUser
		if turn.Role == history.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Text,
		})
	}
	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})
}
