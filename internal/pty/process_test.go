package pty

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrveiss/AutoBot-AI-sub017/internal/infrastructure/logging"
)

func testOptions() Options {
	return Options{
		Shell:          "/bin/bash",
		Rows:           24,
		Cols:           80,
		EventQueueSize: 256,
		TermGrace:      200 * time.Millisecond,
	}
}

// collectOutput drains events until the predicate matches or the timeout
// expires, returning everything seen.
func collectOutput(t *testing.T, p *Process, timeout time.Duration, match func(string) bool) string {
	t.Helper()
	deadline := time.After(timeout)
	var sb strings.Builder
	for {
		select {
		case ev := <-p.Output():
			if ev.Type == EventOutput {
				sb.WriteString(ev.Content)
				if match(sb.String()) {
					return sb.String()
				}
			}
		case <-deadline:
			return sb.String()
		}
	}
}

func TestProcessEcho(t *testing.T) {
	p := NewProcess("sess-echo", testOptions(), logging.NewNop())
	require.NoError(t, p.Start(t.TempDir()))
	defer p.Cleanup()

	require.True(t, p.IsAlive())
	require.NoError(t, p.WriteInput("echo hello-from-pty\n"))

	out := collectOutput(t, p, 5*time.Second, func(s string) bool {
		return strings.Count(s, "hello-from-pty") >= 1
	})
	assert.Contains(t, out, "hello-from-pty")
}

func TestCleanupIdempotent(t *testing.T) {
	p := NewProcess("sess-cleanup", testOptions(), logging.NewNop())
	require.NoError(t, p.Start(t.TempDir()))
	require.True(t, p.IsAlive())

	p.Cleanup()
	assert.False(t, p.IsAlive())

	// Second call must be a no-op, not a panic or double close.
	p.Cleanup()
	assert.False(t, p.IsAlive())
}

func TestOperationsAfterCleanup(t *testing.T) {
	p := NewProcess("sess-closed", testOptions(), logging.NewNop())
	require.NoError(t, p.Start(t.TempDir()))
	p.Cleanup()

	assert.ErrorIs(t, p.WriteInput("echo nope\n"), ErrProcessClosed)
	assert.ErrorIs(t, p.Resize(40, 120), ErrProcessClosed)
	assert.ErrorIs(t, p.Signal(15), ErrProcessClosed)
}

// A shell exiting on its own must surface as eof and close events, never as
// an error from some other call.
func TestExitProducesEOF(t *testing.T) {
	p := NewProcess("sess-exit", testOptions(), logging.NewNop())
	require.NoError(t, p.Start(t.TempDir()))
	defer p.Cleanup()

	require.NoError(t, p.WriteInput("exit\n"))

	sawEOF := false
	sawClose := false
	deadline := time.After(5 * time.Second)
	for !sawClose {
		select {
		case ev := <-p.Output():
			switch ev.Type {
			case EventEOF:
				sawEOF = true
			case EventClose:
				sawClose = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for eof/close events")
		}
	}
	assert.True(t, sawEOF)

	assert.Eventually(t, func() bool { return !p.IsAlive() },
		2*time.Second, 50*time.Millisecond)
}

func TestResize(t *testing.T) {
	p := NewProcess("sess-resize", testOptions(), logging.NewNop())
	require.NoError(t, p.Start(t.TempDir()))
	defer p.Cleanup()

	assert.NoError(t, p.Resize(48, 160))
}

// The event queue must stay bounded under a stalled consumer: the oldest
// event is dropped and the newest admitted.
func TestPushEventDropsOldest(t *testing.T) {
	opts := testOptions()
	opts.EventQueueSize = 2
	p := NewProcess("sess-drop", opts, logging.NewNop())

	p.pushEvent(Event{Type: EventOutput, Content: "one"})
	p.pushEvent(Event{Type: EventOutput, Content: "two"})
	p.pushEvent(Event{Type: EventOutput, Content: "three"})

	first, ok := p.PollOutput()
	require.True(t, ok)
	second, ok := p.PollOutput()
	require.True(t, ok)
	_, ok = p.PollOutput()
	require.False(t, ok)

	assert.Equal(t, "two", first.Content)
	assert.Equal(t, "three", second.Content)
}

func TestPollOutputNonBlocking(t *testing.T) {
	p := NewProcess("sess-poll", testOptions(), logging.NewNop())

	done := make(chan struct{})
	go func() {
		_, ok := p.PollOutput()
		assert.False(t, ok)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PollOutput blocked on an empty queue")
	}
}
