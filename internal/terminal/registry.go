package terminal

import (
	"fmt"
	"sync"

	"github.com/mrveiss/AutoBot-AI-sub017/internal/infrastructure/logging"
)

// ErrSessionNotFound is returned by id-addressed registry operations.
var ErrSessionNotFound = fmt.Errorf("terminal session not found")

// SessionInfo is the registry's public view of one session.
type SessionInfo struct {
	ID             string `json:"id"`
	SecurityLevel  string `json:"security_level"`
	ConversationID string `json:"conversation_id,omitempty"`
	State          State  `json:"state"`
	Stats          Stats  `json:"stats"`
}

// Registry tracks live sessions and delivers input and signals by id.
type Registry struct {
	logger *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry(logger *logging.Logger) *Registry {
	return &Registry{
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Add registers a session under its id.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

// Remove forgets the session for id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Get looks up a live session.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// List snapshots all live sessions.
func (r *Registry) List() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, SessionInfo{
			ID:             s.ID,
			SecurityLevel:  string(s.SecurityLevel()),
			ConversationID: s.ConversationID(),
			State:          s.State(),
			Stats:          s.Statistics(),
		})
	}
	return out
}

// SendInput submits a command line to a session by id, through the same risk
// pipeline client input uses.
func (r *Registry) SendInput(id, command string) error {
	s, ok := r.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	return s.SubmitCommand(command)
}

// SendSignal delivers a named signal to a session by id.
func (r *Registry) SendSignal(id, signal string) error {
	s, ok := r.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	return s.SendSignal(signal)
}

// CloseAll tears down every live session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
