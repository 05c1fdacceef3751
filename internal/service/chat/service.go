package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-analyst/backend/internal/model/chat"
)

var (
	ErrPersonaRequired = errors.New("persona id is required")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionBusy     = errors.New("session already has a request in flight")
)

// Service owns the set of live sessions. Each session keeps its own state.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService bootstraps the in-memory session registry.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]*Session),
	}
}

// CreateSession provisions an anonymous session bound to a persona.
func (s *Service) CreateSession(_ context.Context, personaID string) (*Session, error) {
	if personaID == "" {
		return nil, ErrPersonaRequired
	}

	session := newSession(uuid.NewString(), personaID, time.Now().UTC())

	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// DeleteSession forgets a session and everything in it.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// SaveMessage appends a turn to the session history.
func (s *Service) SaveMessage(ctx context.Context, sessionID string, turn chat.Turn) error {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	session.Append(turn)
	return nil
}

// LoadTranscript returns stored turns for the provided session.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Turn, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.Turns(), nil
}

// ClearTranscript empties the session history.
func (s *Service) ClearTranscript(ctx context.Context, sessionID string) error {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	session.Clear()
	return nil
}

// ExportTranscript renders the session history in the export format.
func (s *Service) ExportTranscript(ctx context.Context, sessionID string) ([]byte, error) {
	turns, err := s.LoadTranscript(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return chat.MarshalExport(turns)
}
