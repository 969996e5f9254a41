// Package terminal bridges one network connection to one PTY process: it
// relays bytes both ways, assesses command risk, and flushes output to the
// transcript sink.
package terminal

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mrveiss/AutoBot-AI-sub017/internal/infrastructure/logging"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/infrastructure/monitoring"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/pty"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/security"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/transcript"
)

// State is the session lifecycle phase.
type State int32

const (
	StateCreated State = iota
	StateActive
	StateClosing
	StateClosed
)

// Conn is the message channel a session serves. *websocket.Conn satisfies it;
// tests substitute a fake.
type Conn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	Close() error
}

// Config carries per-session settings.
type Config struct {
	SecurityLevel   security.Level
	ConversationID  string
	OutputQueueSize int
	MaxStdinBytes   int
	FlushBytes      int
	FlushInterval   time.Duration
}

func (c *Config) defaults() {
	if c.SecurityLevel == "" {
		c.SecurityLevel = security.LevelStandard
	}
	if c.OutputQueueSize <= 0 {
		c.OutputQueueSize = 128
	}
	if c.MaxStdinBytes <= 0 {
		c.MaxStdinBytes = 8192
	}
	if c.FlushBytes <= 0 {
		c.FlushBytes = 2048
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 2 * time.Second
	}
}

// CommandRecord is one entry in the session's command history.
type CommandRecord struct {
	Command   string        `json:"command"`
	Timestamp time.Time     `json:"timestamp"`
	Risk      security.Risk `json:"risk"`
	Blocked   bool          `json:"blocked"`
}

// AuditEntry is one audit-log line.
type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail"`
}

// Stats are per-session counters exposed via the registry.
type Stats struct {
	StartedAt       time.Time `json:"started_at"`
	CommandsRun     int64     `json:"commands_run"`
	CommandsBlocked int64     `json:"commands_blocked"`
	BytesRelayed    int64     `json:"bytes_relayed"`
	OutputDropped   int64     `json:"output_dropped"`
}

// signalNames is the closed set of client-requestable signals.
var signalNames = map[string]syscall.Signal{
	"SIGINT":  syscall.SIGINT,
	"SIGTERM": syscall.SIGTERM,
	"SIGKILL": syscall.SIGKILL,
	"SIGHUP":  syscall.SIGHUP,
}

// promptOnly matches buffers that are nothing but a bare shell prompt, so
// flushing them would pollute the transcript with noise. Interactive shells
// wrap the prompt in CSI/OSC sequences (bracketed paste, title updates), so
// ansiSeq strips those before the filter is applied.
var (
	promptOnly = regexp.MustCompile(`^[\w.@~/:\[\]-]*\s*[$#>%]\s*$`)
	ansiSeq    = regexp.MustCompile(`\x1b(?:\[[0-9;?]*[@-~]|\][^\x07\x1b]*(?:\x07|\x1b\\)?|[@-Z\\-_])`)
)

// Session bridges one Conn to one pty.Process.
type Session struct {
	ID     string
	config Config

	proc       *pty.Process
	conn       Conn
	sink       transcript.Sink
	classifier *security.Classifier
	logger     *logging.Logger
	metrics    *monitoring.Metrics

	state atomic.Int32

	outQ   chan interface{}
	stop   chan struct{}
	dropMu sync.Mutex

	mu             sync.Mutex
	lineBuf        string
	history        []CommandRecord
	audit          []AuditEntry
	flushBuf       strings.Builder
	lastFlush      time.Time
	echoSuppressed bool
	stats          Stats

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSession wires a session; it stays in StateCreated until Run.
func NewSession(id string, cfg Config, proc *pty.Process, conn Conn, sink transcript.Sink,
	classifier *security.Classifier, logger *logging.Logger, metrics *monitoring.Metrics) *Session {
	cfg.defaults()
	s := &Session{
		ID:         id,
		config:     cfg,
		proc:       proc,
		conn:       conn,
		sink:       sink,
		classifier: classifier,
		logger:     logger,
		metrics:    metrics,
		outQ:       make(chan interface{}, cfg.OutputQueueSize),
		stop:       make(chan struct{}),
	}
	s.stats.StartedAt = time.Now()
	s.lastFlush = time.Now()
	return s
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

// SecurityLevel returns the session's security posture.
func (s *Session) SecurityLevel() security.Level {
	return s.config.SecurityLevel
}

// ConversationID returns the external conversation linkage, if any.
func (s *Session) ConversationID() string {
	return s.config.ConversationID
}

// Run serves the connection until it closes: the output relay and queued
// sender run concurrently while Run itself drives the client read loop.
// Always ends with the session closed; releasing the PTY is the caller's job.
func (s *Session) Run() {
	s.state.Store(int32(StateActive))
	if s.metrics != nil {
		s.metrics.SessionsActive.Inc()
	}
	defer func() {
		s.Close()
		if s.metrics != nil {
			s.metrics.SessionsActive.Dec()
		}
	}()

	s.enqueue(newConnectedFrame("terminal session " + s.ID + " attached"))

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.relayLoop()
	}()
	go func() {
		defer s.wg.Done()
		s.sendLoop()
	}()

	s.readLoop()
	s.Close()
	s.wg.Wait()
}

// readLoop decodes client frames and dispatches them. A malformed or failing
// handler answers with an error frame; only a broken connection ends the loop.
func (s *Session) readLoop() {
	for {
		var frame ClientFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if s.State() == StateActive {
				s.logger.Debug("client read ended",
					zap.String("session_id", s.ID), zap.Error(err))
			}
			return
		}
		s.dispatch(frame)
	}
}

// dispatch routes one client frame to its handler.
func (s *Session) dispatch(frame ClientFrame) {
	var err error
	switch frame.Type {
	case FrameInput:
		err = s.handleInput(frame.Text)
	case FrameTerminalStdin:
		err = s.handleStdin(frame.Content, frame.IsPassword)
	case FrameResize:
		err = s.proc.Resize(frame.Rows, frame.Cols)
	case FrameSignal:
		err = s.handleSignal(frame.Signal)
	case FramePing:
		s.enqueue(newPongFrame())
	case FrameTabCompletion:
		completions, prefix := Complete(frame.Text, frame.Cursor)
		s.enqueue(newTabCompletionFrame(completions, prefix))
	default:
		err = fmt.Errorf("unknown message type %q", frame.Type)
	}
	if err != nil {
		s.enqueue(newErrorFrame(err.Error()))
	}
}

// handleInput accumulates text into the partial-line buffer and submits each
// completed line as a command.
func (s *Session) handleInput(text string) error {
	s.mu.Lock()
	s.lineBuf += text
	var lines []string
	for {
		idx := strings.Index(s.lineBuf, "\n")
		if idx < 0 {
			break
		}
		lines = append(lines, strings.TrimRight(s.lineBuf[:idx], "\r"))
		s.lineBuf = s.lineBuf[idx+1:]
	}
	s.mu.Unlock()

	for _, line := range lines {
		if err := s.SubmitCommand(line); err != nil {
			return err
		}
	}
	return nil
}

// SubmitCommand runs one full command line through risk assessment, history
// and audit logging, and forwards it to the PTY unless the security level
// blocks it. Blocked commands answer with a security_warning frame and are
// never written to the PTY.
func (s *Session) SubmitCommand(command string) error {
	risk := s.classifier.Classify(command)
	blocked := s.config.SecurityLevel.Blocks(risk)

	record := CommandRecord{
		Command:   command,
		Timestamp: time.Now(),
		Risk:      risk,
		Blocked:   blocked,
	}

	s.mu.Lock()
	s.history = append(s.history, record)
	s.audit = append(s.audit, AuditEntry{
		Timestamp: record.Timestamp,
		Action:    "command",
		Detail:    fmt.Sprintf("%s (risk=%s blocked=%t)", command, risk, blocked),
	})
	if blocked {
		s.stats.CommandsBlocked++
	} else {
		s.stats.CommandsRun++
	}
	s.mu.Unlock()

	status := "submitted"
	if blocked {
		status = "blocked"
	}
	s.sink.LogCommand(transcript.CommandEntry{
		Origin:    "manual",
		Status:    status,
		SessionID: s.ID,
		Command:   command,
	})
	if s.metrics != nil {
		s.metrics.RecordCommand("manual", status)
		if blocked {
			s.metrics.CommandsBlocked.WithLabelValues(risk.String()).Inc()
		}
	}

	if blocked {
		s.logger.Warn("command blocked",
			zap.String("session_id", s.ID),
			zap.String("risk", risk.String()),
			zap.String("level", string(s.config.SecurityLevel)),
		)
		s.enqueue(newSecurityWarningFrame(
			fmt.Sprintf("command blocked by %s policy", s.config.SecurityLevel), risk.String()))
		return nil
	}

	return s.proc.WriteInput(command + "\n")
}

// handleStdin passes raw bytes straight to the PTY, bypassing command
// buffering. Password payloads suppress local echo into the transcript and
// are never logged.
func (s *Session) handleStdin(content string, isPassword bool) error {
	if len(content) > s.config.MaxStdinBytes {
		return fmt.Errorf("stdin payload exceeds %d bytes", s.config.MaxStdinBytes)
	}
	if isPassword {
		s.mu.Lock()
		s.echoSuppressed = true
		s.mu.Unlock()
	}
	return s.proc.WriteInput(content)
}

// handleSignal maps a client signal name onto the PTY's process group.
func (s *Session) handleSignal(name string) error {
	sig, ok := signalNames[name]
	if !ok {
		return fmt.Errorf("unsupported signal %q", name)
	}
	if err := s.proc.Signal(sig); err != nil {
		return err
	}
	s.mu.Lock()
	s.audit = append(s.audit, AuditEntry{Timestamp: time.Now(), Action: "signal", Detail: name})
	s.mu.Unlock()
	s.enqueue(newSignalSentFrame(name))
	return nil
}

// SendSignal delivers a named signal on behalf of the registry.
func (s *Session) SendSignal(name string) error {
	return s.handleSignal(name)
}

// relayLoop forwards PTY output events to the client queue and the flush
// buffer. It never blocks on the client: enqueue drops the oldest frame when
// the queue is full.
func (s *Session) relayLoop() {
	for {
		select {
		case <-s.stop:
			return
		case ev := <-s.proc.Output():
			switch ev.Type {
			case pty.EventOutput:
				s.mu.Lock()
				s.stats.BytesRelayed += int64(len(ev.Content))
				suppressed := s.echoSuppressed
				s.echoSuppressed = false
				s.mu.Unlock()
				if s.metrics != nil {
					s.metrics.OutputBytes.Add(float64(len(ev.Content)))
				}
				s.enqueue(newOutputFrame(ev.Content, nil))
				if !suppressed {
					s.bufferOutput(ev.Content)
				}
			case pty.EventEOF, pty.EventClose:
				s.state.Store(int32(StateClosing))
				s.flush(true)
				s.enqueue(newTerminalClosedFrame("terminal process ended"))
				return
			}
		}
	}
}

// sendLoop drains the output queue onto the connection. A send failure means
// the network is gone, which tears the session down.
func (s *Session) sendLoop() {
	for {
		select {
		case <-s.stop:
			return
		case frame := <-s.outQ:
			if err := s.conn.WriteJSON(frame); err != nil {
				s.logger.Debug("client send failed, closing",
					zap.String("session_id", s.ID), zap.Error(err))
				s.Close()
				return
			}
			if _, closed := frame.(TerminalClosedFrame); closed {
				s.Close()
				return
			}
		}
	}
}

// enqueue adds a frame to the bounded client queue, dropping the oldest
// pending frame on overflow. Liveness of the PTY relay wins over delivery
// completeness.
func (s *Session) enqueue(frame interface{}) {
	s.dropMu.Lock()
	defer s.dropMu.Unlock()

	select {
	case s.outQ <- frame:
		return
	default:
	}
	select {
	case <-s.outQ:
		s.mu.Lock()
		s.stats.OutputDropped++
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.OutputDropped.Inc()
		}
	default:
	}
	select {
	case s.outQ <- frame:
	default:
	}
}

// bufferOutput accumulates PTY output and flushes to the transcript sink when
// the buffer is large enough, old enough, or contains a line break.
func (s *Session) bufferOutput(content string) {
	s.mu.Lock()
	s.flushBuf.WriteString(content)
	shouldFlush := s.flushBuf.Len() >= s.config.FlushBytes ||
		time.Since(s.lastFlush) >= s.config.FlushInterval ||
		strings.Contains(content, "\n")
	s.mu.Unlock()

	if shouldFlush {
		s.flush(false)
	}
}

// flush writes the accumulated buffer to the transcript sink. Buffers that
// are only a bare shell prompt are discarded, not flushed. force skips the
// prompt filter on teardown.
func (s *Session) flush(force bool) {
	s.mu.Lock()
	text := s.flushBuf.String()
	s.flushBuf.Reset()
	s.lastFlush = time.Now()
	s.mu.Unlock()

	if text == "" {
		return
	}
	if !force && promptOnly.MatchString(strings.TrimSpace(ansiSeq.ReplaceAllString(text, ""))) {
		return
	}
	s.sink.AddMessage("terminal", text, "terminal_output", s.ID)
}

// History returns a copy of the command history.
func (s *Session) History() []CommandRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CommandRecord, len(s.history))
	copy(out, s.history)
	return out
}

// AuditLog returns a copy of the audit entries.
func (s *Session) AuditLog() []AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}

// Statistics returns a snapshot of the session counters.
func (s *Session) Statistics() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close moves the session to closed and shuts the connection. Idempotent.
// Releasing the PTY slot belongs to whoever created it.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.stop)
		s.flush(true)
		s.conn.Close()
		s.logger.Info("session closed", zap.String("session_id", s.ID))
	})
}
