// Package history holds bounded per-session conversation context.
//
// Each session owns an ordered sequence of alternating user/assistant turns.
// Once the bound is exceeded the oldest turns are evicted front-first, which
// preserves alternation because turns are always appended in pairs.
package history

import (
	"sync"

	"github.com/voicegraph/voicegraph/internal/observability"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultMaxTurns bounds stored history to 10 exchanges.
const DefaultMaxTurns = 20

// DefaultSession is used when the caller supplies no session identifier,
// preserving single-user behaviour.
const DefaultSession = "default"

// Turn is one conversation entry.
type Turn struct {
	Role string
	Text string
}

// Store keeps bounded conversation histories keyed by session ID.
// Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
	maxTurns int
}

// NewStore creates a history store. maxTurns <= 0 selects DefaultMaxTurns.
func NewStore(maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Store{
		sessions: make(map[string][]Turn),
		maxTurns: maxTurns,
	}
}

// AppendExchange records one user/assistant exchange and enforces the bound.
func (s *Store) AppendExchange(sessionID, userText, assistantText string) {
	if sessionID == "" {
		sessionID = DefaultSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.sessions[sessionID],
		Turn{Role: RoleUser, Text: userText},
		Turn{Role: RoleAssistant, Text: assistantText},
	)
	if len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}
	s.sessions[sessionID] = turns

	observability.RecordHistoryTurns(sessionID, len(turns))
}

// Turns returns a copy of the stored turns for a session, oldest first.
func (s *Store) Turns(sessionID string) []Turn {
	if sessionID == "" {
		sessionID = DefaultSession
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.sessions[sessionID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Len returns the stored turn count for a session.
func (s *Store) Len(sessionID string) int {
	if sessionID == "" {
		sessionID = DefaultSession
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID])
}

// Clear removes all turns for a session. Idempotent.
func (s *Store) Clear(sessionID string) {
	if sessionID == "" {
		sessionID = DefaultSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)

	observability.RecordHistoryTurns(sessionID, 0)
}
