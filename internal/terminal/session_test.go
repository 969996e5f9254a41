package terminal

import (
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrveiss/AutoBot-AI-sub017/internal/infrastructure/logging"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/pty"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/security"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/transcript"
)

// fakeConn is a scripted Conn: ReadJSON serves queued frames, WriteJSON
// records everything the session sends.
type fakeConn struct {
	frames chan ClientFrame

	mu   sync.Mutex
	sent []interface{}

	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan ClientFrame, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadJSON(v interface{}) error {
	select {
	case f := <-c.frames:
		*v.(*ClientFrame) = f
		return nil
	case <-c.closed:
		return io.EOF
	}
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) sentFrames() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]interface{}, len(c.sent))
	copy(out, c.sent)
	return out
}

// fakeSink records transcript traffic for assertions.
type fakeSink struct {
	mu   sync.Mutex
	msgs []transcript.Message
	cmds []transcript.CommandEntry
}

func (f *fakeSink) AddMessage(sender, text, msgType, sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, transcript.Message{
		Sender: sender, Text: text, Type: msgType, SessionID: sessionID,
	})
}

func (f *fakeSink) RecentMessages(sessionID string, limit int) []transcript.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]transcript.Message, len(f.msgs))
	copy(out, f.msgs)
	return out
}

func (f *fakeSink) LogCommand(entry transcript.CommandEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, entry)
}

func (f *fakeSink) CloseSession(sessionID string) {}

func (f *fakeSink) commands() []transcript.CommandEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]transcript.CommandEntry, len(f.cmds))
	copy(out, f.cmds)
	return out
}

func startTestPTY(t *testing.T) *pty.Process {
	t.Helper()
	p := pty.NewProcess("sess-test", pty.Options{
		Shell:     "/bin/bash",
		TermGrace: 200 * time.Millisecond,
	}, logging.NewNop())
	require.NoError(t, p.Start(t.TempDir()))
	t.Cleanup(p.Cleanup)
	return p
}

func newTestSession(t *testing.T, cfg Config, proc *pty.Process, conn Conn, sink transcript.Sink) *Session {
	t.Helper()
	return NewSession("sess-test", cfg, proc, conn, sink,
		security.NewDefaultClassifier(), logging.NewNop(), nil)
}

// One submitted line must produce exactly one history entry and reach the
// shell.
func TestSubmitCommandHistory(t *testing.T) {
	proc := startTestPTY(t)
	conn := newFakeConn()
	sink := &fakeSink{}
	s := newTestSession(t, Config{}, proc, conn, sink)

	require.NoError(t, s.SubmitCommand("echo hi"))

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, "echo hi", history[0].Command)
	assert.Equal(t, security.RiskSafe, history[0].Risk)
	assert.False(t, history[0].Blocked)

	cmds := sink.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, "manual", cmds[0].Origin)
	assert.Equal(t, "submitted", cmds[0].Status)

	// The command must come back out of the PTY.
	assert.Eventually(t, func() bool {
		for {
			ev, ok := proc.PollOutput()
			if !ok {
				return false
			}
			if ev.Type == pty.EventOutput && strings.Contains(ev.Content, "hi") {
				return true
			}
		}
	}, 5*time.Second, 50*time.Millisecond)
}

// A blocked command must answer with a security warning and never reach the
// PTY. The process here was never started, so any write attempt would error.
func TestBlockedCommandNeverReachesPTY(t *testing.T) {
	proc := pty.NewProcess("sess-blocked", pty.Options{}, logging.NewNop())
	conn := newFakeConn()
	sink := &fakeSink{}
	s := newTestSession(t, Config{SecurityLevel: security.LevelRestricted}, proc, conn, sink)

	require.NoError(t, s.SubmitCommand("sudo rm -rf /"))

	history := s.History()
	require.Len(t, history, 1)
	assert.True(t, history[0].Blocked)
	assert.Equal(t, security.RiskDangerous, history[0].Risk)
	assert.EqualValues(t, 1, s.Statistics().CommandsBlocked)
	assert.EqualValues(t, 0, s.Statistics().CommandsRun)

	cmds := sink.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, "blocked", cmds[0].Status)

	warning := <-s.outQ
	frame, ok := warning.(SecurityWarningFrame)
	require.True(t, ok, "expected a security warning, got %T", warning)
	assert.Equal(t, "DANGEROUS", frame.RiskLevel)
}

// STANDARD logs risky commands but does not block them.
func TestStandardLevelOnlyLogs(t *testing.T) {
	proc := startTestPTY(t)
	s := newTestSession(t, Config{SecurityLevel: security.LevelStandard},
		proc, newFakeConn(), &fakeSink{})

	require.NoError(t, s.SubmitCommand("sudo ls"))

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, security.RiskHigh, history[0].Risk)
	assert.False(t, history[0].Blocked)
}

// Partial input accumulates until a newline completes the command.
func TestHandleInputPartialLines(t *testing.T) {
	proc := startTestPTY(t)
	s := newTestSession(t, Config{}, proc, newFakeConn(), &fakeSink{})

	require.NoError(t, s.handleInput("echo h"))
	assert.Empty(t, s.History())

	require.NoError(t, s.handleInput("i\necho tail"))
	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, "echo hi", history[0].Command)

	require.NoError(t, s.handleInput("\n"))
	history = s.History()
	require.Len(t, history, 2)
	assert.Equal(t, "echo tail", history[1].Command)
}

func TestHandleStdinSizeCap(t *testing.T) {
	proc := pty.NewProcess("sess-cap", pty.Options{}, logging.NewNop())
	s := newTestSession(t, Config{MaxStdinBytes: 4}, proc, newFakeConn(), &fakeSink{})

	err := s.handleStdin("12345", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 4 bytes")
}

// The output queue must stay bounded: overflow drops the oldest frame and
// admits the newest.
func TestEnqueueDropsOldest(t *testing.T) {
	proc := pty.NewProcess("sess-q", pty.Options{}, logging.NewNop())
	s := newTestSession(t, Config{OutputQueueSize: 2}, proc, newFakeConn(), &fakeSink{})

	s.enqueue(newOutputFrame("one", nil))
	s.enqueue(newOutputFrame("two", nil))
	s.enqueue(newOutputFrame("three", nil))

	first := (<-s.outQ).(OutputFrame)
	second := (<-s.outQ).(OutputFrame)
	assert.Equal(t, "two", first.Content)
	assert.Equal(t, "three", second.Content)
	assert.EqualValues(t, 1, s.Statistics().OutputDropped)

	select {
	case extra := <-s.outQ:
		t.Fatalf("queue should be empty, got %v", extra)
	default:
	}
}

func TestDispatchPingAndUnknown(t *testing.T) {
	proc := pty.NewProcess("sess-d", pty.Options{}, logging.NewNop())
	s := newTestSession(t, Config{}, proc, newFakeConn(), &fakeSink{})

	s.dispatch(ClientFrame{Type: FramePing})
	_, ok := (<-s.outQ).(PongFrame)
	assert.True(t, ok)

	s.dispatch(ClientFrame{Type: "bogus"})
	frame, ok := (<-s.outQ).(ErrorFrame)
	require.True(t, ok)
	assert.Contains(t, frame.Content, "bogus")
}

// Full lifecycle over a scripted connection: connect, run a command, see its
// output frame, then tear down when the client goes away.
func TestSessionRunLifecycle(t *testing.T) {
	proc := startTestPTY(t)
	conn := newFakeConn()
	sink := &fakeSink{}
	s := newTestSession(t, Config{}, proc, conn, sink)

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	conn.frames <- ClientFrame{Type: FrameInput, Text: "echo run-lifecycle\n"}

	assert.Eventually(t, func() bool {
		for _, f := range conn.sentFrames() {
			if out, ok := f.(OutputFrame); ok && strings.Contains(out.Content, "run-lifecycle") {
				return true
			}
		}
		return false
	}, 5*time.Second, 50*time.Millisecond)

	// First frame on the wire is the greeting.
	frames := conn.sentFrames()
	require.NotEmpty(t, frames)
	_, ok := frames[0].(ConnectedFrame)
	assert.True(t, ok)

	conn.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not shut down after client disconnect")
	}
	assert.Equal(t, StateClosed, s.State())
}

// PTY teardown must surface a terminal_closed frame before the session ends.
func TestSessionClosesOnPTYExit(t *testing.T) {
	proc := startTestPTY(t)
	conn := newFakeConn()
	s := newTestSession(t, Config{}, proc, conn, &fakeSink{})

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	conn.frames <- ClientFrame{Type: FrameInput, Text: "exit\n"}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("session did not shut down after shell exit")
	}

	sawClosed := false
	for _, f := range conn.sentFrames() {
		if _, ok := f.(TerminalClosedFrame); ok {
			sawClosed = true
		}
	}
	assert.True(t, sawClosed, "expected a terminal_closed frame")
	assert.Equal(t, StateClosed, s.State())
}

// Prompt-only buffers must be dropped even when the shell wraps the prompt in
// bracketed-paste and window-title escape sequences. Real output, escaped or
// not, still flushes.
func TestFlushFiltersEscapedPrompt(t *testing.T) {
	proc := pty.NewProcess("sess-flush", pty.Options{}, logging.NewNop())
	sink := &fakeSink{}
	s := newTestSession(t, Config{}, proc, newFakeConn(), sink)

	s.flushBuf.WriteString("\x1b[?2004h\x1b]0;user@host: ~\x07user@host:~$ ")
	s.flush(false)
	assert.Empty(t, sink.RecentMessages("sess-test", 0))

	s.flushBuf.WriteString("\x1b[?2004lreal output\r\n")
	s.flush(false)
	msgs := sink.RecentMessages("sess-test", 0)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "real output")
}

func TestCloseIdempotent(t *testing.T) {
	proc := pty.NewProcess("sess-close", pty.Options{}, logging.NewNop())
	s := newTestSession(t, Config{}, proc, newFakeConn(), &fakeSink{})

	s.Close()
	s.Close()
	assert.Equal(t, StateClosed, s.State())
}

