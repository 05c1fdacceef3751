package chat

import (
	"sync"
	"time"

	"github.com/zhouzirui/z-analyst/backend/internal/model/chat"
	"github.com/zhouzirui/z-analyst/backend/internal/model/document"
)

// Session is the explicit per-conversation state: the turn log, the active document,
// the selected persona and an optional user-supplied credential. Nothing in it is
// shared with other sessions.
type Session struct {
	id        string
	createdAt time.Time

	mu        sync.Mutex
	personaID string
	apiKey    string
	turns     []chat.Turn
	document  *document.Context
	stage     chat.Stage
	// epoch 每次清空对话时递增，进行中的请求据此丢弃过期的写入
	epoch uint64
}

func newSession(id, personaID string, createdAt time.Time) *Session {
	return &Session{
		id:        id,
		personaID: personaID,
		createdAt: createdAt,
		turns:     make([]chat.Turn, 0, 16),
		stage:     chat.StageIdle,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Info returns a snapshot suitable for JSON responses.
func (s *Session) Info() chat.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := chat.Session{
		ID:        s.id,
		PersonaID: s.personaID,
		Stage:     s.stage,
		TurnCount: len(s.turns),
		HasAPIKey: s.apiKey != "",
		CreatedAt: s.createdAt,
	}
	if s.document != nil {
		info.DocumentName = s.document.SourceName
	}
	return info
}

// Append adds a persisted turn at the end of the log.
func (s *Session) Append(turn chat.Turn) {
	s.mu.Lock()
	s.turns = append(s.turns, turn)
	s.mu.Unlock()
}

// Recent returns, in original order, at most the last n turns.
func (s *Session) Recent(n int) []chat.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	if n >= 0 && len(s.turns) > n {
		start = len(s.turns) - n
	}
	out := make([]chat.Turn, len(s.turns)-start)
	copy(out, s.turns[start:])
	return out
}

// Turns returns a copy of the whole log.
func (s *Session) Turns() []chat.Turn {
	return s.Recent(-1)
}

// Clear empties the log unconditionally. A request already in flight keeps running,
// but nothing it appends afterwards reaches the new log.
func (s *Session) Clear() {
	s.mu.Lock()
	s.turns = make([]chat.Turn, 0, 16)
	s.epoch++
	s.mu.Unlock()
}

func (s *Session) appendAt(epoch uint64, turn chat.Turn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.turns = append(s.turns, turn)
	return true
}

// PersonaID returns the selected persona.
func (s *Session) PersonaID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.personaID
}

// SetPersona switches the persona for subsequent turns.
func (s *Session) SetPersona(personaID string) {
	s.mu.Lock()
	s.personaID = personaID
	s.mu.Unlock()
}

// APIKey returns the user-supplied credential, if any.
func (s *Session) APIKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiKey
}

// SetAPIKey stores a user-supplied credential for this session only.
func (s *Session) SetAPIKey(key string) {
	s.mu.Lock()
	s.apiKey = key
	s.mu.Unlock()
}

// Document returns the active document.
func (s *Session) Document() (document.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.document == nil {
		return document.Context{}, false
	}
	return *s.document, true
}

// SetDocument replaces the active document wholesale.
func (s *Session) SetDocument(doc document.Context) {
	s.mu.Lock()
	s.document = &doc
	s.mu.Unlock()
}

// ClearDocument drops the active document.
func (s *Session) ClearDocument() {
	s.mu.Lock()
	s.document = nil
	s.mu.Unlock()
}

// Stage returns the current orchestration stage.
func (s *Session) Stage() chat.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Begin claims the session for one request and returns the log that request reads
// and writes. It fails with ErrSessionBusy while another request is in flight.
func (s *Session) Begin() (*TurnLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != chat.StageIdle {
		return nil, ErrSessionBusy
	}
	s.stage = chat.StageBuildingContext
	return &TurnLog{session: s, epoch: s.epoch}, nil
}

// SetStage records progress of the in-flight request.
func (s *Session) SetStage(stage chat.Stage) {
	s.mu.Lock()
	s.stage = stage
	s.mu.Unlock()
}

// End returns the session to idle.
func (s *Session) End() {
	s.SetStage(chat.StageIdle)
}

// TurnLog is the session log as seen by one in-flight request. Appends made after
// the session was cleared are dropped, so a late reply never lands in a fresh log
// without the question that produced it.
type TurnLog struct {
	session *Session
	epoch   uint64
}

// Recent returns, in original order, at most the last n turns.
func (l *TurnLog) Recent(n int) []chat.Turn {
	return l.session.Recent(n)
}

// Append stores turn unless the log was cleared since Begin.
func (l *TurnLog) Append(turn chat.Turn) {
	l.session.appendAt(l.epoch, turn)
}

// Stale reports whether the log was cleared since Begin.
func (l *TurnLog) Stale() bool {
	l.session.mu.Lock()
	defer l.session.mu.Unlock()
	return l.session.epoch != l.epoch
}
