// Package transcript is the shared output sink for terminal sessions and the
// command executor. It keeps a bounded in-memory ring of recent messages per
// session (what the executor polls for completion detection), appends a
// human-readable transcript file per session, and writes one structured JSON
// line per executed command.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/mrveiss/AutoBot-AI-sub017/internal/infrastructure/logging"
)

// Message is one transcript entry.
type Message struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// CommandEntry is the structured log record for one command.
type CommandEntry struct {
	Timestamp time.Time `json:"timestamp"`
	CommandID string    `json:"command_id,omitempty"`
	Origin    string    `json:"origin"` // "automated" or "manual"
	Status    string    `json:"status"`
	SessionID string    `json:"session_id"`
	Command   string    `json:"command"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	Stdout    string    `json:"stdout,omitempty"`
	Stderr    string    `json:"stderr,omitempty"`
}

// Sink is the collaborator interface sessions and the executor consume.
type Sink interface {
	AddMessage(sender, text, msgType, sessionID string)
	RecentMessages(sessionID string, limit int) []Message
	LogCommand(entry CommandEntry)
	CloseSession(sessionID string)
}

// Store is the file-backed Sink implementation.
type Store struct {
	dir      string
	ringSize int
	trunc    int
	logger   *logging.Logger

	mu    sync.RWMutex
	rings map[string][]Message
	files map[string]*os.File
}

// Options configures a Store.
type Options struct {
	Dir         string
	RingSize    int
	OutputTrunc int
}

// NewStore creates a transcript store rooted at opts.Dir.
func NewStore(opts Options, logger *logging.Logger) *Store {
	if opts.RingSize <= 0 {
		opts.RingSize = 200
	}
	if opts.OutputTrunc <= 0 {
		opts.OutputTrunc = 2000
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		logger.Warn("transcript dir unavailable, persistence disabled",
			zap.String("dir", opts.Dir), zap.Error(err))
	}
	return &Store{
		dir:      opts.Dir,
		ringSize: opts.RingSize,
		trunc:    opts.OutputTrunc,
		logger:   logger,
		rings:    make(map[string][]Message),
		files:    make(map[string]*os.File),
	}
}

// AddMessage appends a message to the session's ring and transcript file.
// Persistence failures are logged and never propagated: transcript writes are
// a secondary concern and must not interrupt the I/O path.
func (s *Store) AddMessage(sender, text, msgType, sessionID string) {
	msg := Message{
		Sender:    sender,
		Text:      text,
		Type:      msgType,
		SessionID: sessionID,
		Timestamp: time.Now(),
	}

	s.mu.Lock()
	ring := append(s.rings[sessionID], msg)
	if len(ring) > s.ringSize {
		ring = ring[len(ring)-s.ringSize:]
	}
	s.rings[sessionID] = ring
	f, err := s.fileLocked(sessionID, ".transcript.log")
	s.mu.Unlock()

	if err != nil {
		s.logger.Debug("transcript file open failed", zap.Error(err))
		return
	}
	line := fmt.Sprintf("[%s] %s: %s\n", msg.Timestamp.Format(time.RFC3339), sender, text)
	if _, err := f.WriteString(line); err != nil {
		s.logger.Debug("transcript write failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// RecentMessages returns up to limit most recent messages for a session,
// oldest first.
func (s *Store) RecentMessages(sessionID string, limit int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ring := s.rings[sessionID]
	if limit <= 0 || limit > len(ring) {
		limit = len(ring)
	}
	out := make([]Message, limit)
	copy(out, ring[len(ring)-limit:])
	return out
}

// LogCommand appends one structured JSON line to the session's command log.
func (s *Store) LogCommand(entry CommandEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.Stdout = truncate(entry.Stdout, s.trunc)
	entry.Stderr = truncate(entry.Stderr, s.trunc)

	data, err := sonic.Marshal(entry)
	if err != nil {
		s.logger.Warn("command log marshal failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	f, err := s.fileLocked(entry.SessionID, ".commands.jsonl")
	s.mu.Unlock()
	if err != nil {
		s.logger.Debug("command log open failed", zap.Error(err))
		return
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		s.logger.Debug("command log write failed", zap.String("session_id", entry.SessionID), zap.Error(err))
	}
}

// CloseSession drops the session's ring and closes its file handles.
func (s *Store) CloseSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rings, sessionID)
	for _, suffix := range []string{".transcript.log", ".commands.jsonl"} {
		key := sessionID + suffix
		if f, ok := s.files[key]; ok {
			f.Close()
			delete(s.files, key)
		}
	}
}

// Close closes all open file handles.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, f := range s.files {
		f.Close()
		delete(s.files, key)
	}
}

// fileLocked returns the append-only file for a session, opening it on first
// use. Caller must hold s.mu.
func (s *Store) fileLocked(sessionID, suffix string) (*os.File, error) {
	key := sessionID + suffix
	if f, ok := s.files[key]; ok {
		return f, nil
	}
	path := filepath.Join(s.dir, sanitize(sessionID)+suffix)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	s.files[key] = f
	return f, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// sanitize keeps session ids filesystem-safe.
func sanitize(id string) string {
	out := make([]byte, 0, len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
