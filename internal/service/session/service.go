package session

import (
	"errors"
	"sync"
	"time"

	"github.com/kundanmehta01/murf-voice-agent/internal/model/chat"
	"github.com/kundanmehta01/murf-voice-agent/internal/model/persona"
)

var (
	ErrSessionRequired = errors.New("session id is required")
	ErrUnknownPersona  = errors.New("unknown persona")
)

// MaxHistoryTurns bounds the per-session conversation history. Oldest turns
// are dropped once the bound is exceeded.
const MaxHistoryTurns = 50

type state struct {
	personaID string
	turns     []chat.Turn
}

// Service is the process-wide conversation store. Sessions are created
// lazily on first reference and live until the process exits; there is no
// TTL or eviction.
type Service struct {
	mu               sync.RWMutex
	sessions         map[string]*state
	personas         persona.Store
	defaultPersonaID string
	now              func() time.Time
}

// NewService builds a session store backed by the given persona registry.
func NewService(personas persona.Store, defaultPersonaID string) *Service {
	if _, ok := personas.FindByID(defaultPersonaID); !ok {
		defaultPersonaID = persona.DefaultID
	}
	return &Service{
		sessions:         make(map[string]*state),
		personas:         personas,
		defaultPersonaID: defaultPersonaID,
		now:              time.Now,
	}
}

// SetClock overrides the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) getOrCreateLocked(sessionID string) *state {
	st, ok := s.sessions[sessionID]
	if !ok {
		st = &state{personaID: s.defaultPersonaID}
		s.sessions[sessionID] = st
	}
	return st
}

// AppendTurn records a conversation turn, creating the session if needed and
// trimming history to the configured bound.
func (s *Service) AppendTurn(sessionID, role, content string) error {
	if sessionID == "" {
		return ErrSessionRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreateLocked(sessionID)
	st.turns = append(st.turns, chat.Turn{
		Role:      role,
		Content:   content,
		CreatedAt: s.now().UTC(),
	})
	if len(st.turns) > MaxHistoryTurns {
		st.turns = append([]chat.Turn(nil), st.turns[len(st.turns)-MaxHistoryTurns:]...)
	}
	return nil
}

// History returns a copy of the session's turns in insertion order. Unknown
// sessions yield an empty history rather than an error.
func (s *Service) History(sessionID string) []chat.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	copied := make([]chat.Turn, len(st.turns))
	copy(copied, st.turns)
	return copied
}

// ClearHistory removes all turns but keeps the session record, including its
// persona selection.
func (s *Service) ClearHistory(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.sessions[sessionID]; ok {
		st.turns = nil
	}
}

// Persona resolves the session's effective persona. It always returns a
// valid entry, falling back to the default for unseen sessions.
func (s *Service) Persona(sessionID string) persona.Persona {
	s.mu.RLock()
	st, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return s.personas.Get(s.defaultPersonaID)
	}
	return s.personas.Get(st.personaID)
}

// SetPersona switches the session's persona. Unknown identifiers leave the
// current selection untouched and return ErrUnknownPersona.
func (s *Service) SetPersona(sessionID, personaID string) (persona.Persona, error) {
	p, ok := s.personas.FindByID(personaID)
	if !ok {
		return persona.Persona{}, ErrUnknownPersona
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreateLocked(sessionID)
	st.personaID = p.ID
	return p, nil
}
