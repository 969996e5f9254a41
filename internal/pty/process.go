// Package pty owns the pseudo-terminal process bridge: each Process wraps one
// PTY master fd and its child shell, and converts the blocking device pair
// into non-blocking, queryable events over bounded channels.
package pty

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/mrveiss/AutoBot-AI-sub017/internal/infrastructure/logging"
)

// EventType tags output events from the reader loop.
type EventType string

const (
	EventOutput EventType = "output"
	EventEOF    EventType = "eof"
	EventClose  EventType = "close"
)

// Event is one unit of decoded PTY output.
type Event struct {
	Type    EventType
	Content string
}

// ErrProcessClosed is returned by operations on a cleaned-up process.
var ErrProcessClosed = errors.New("pty process closed")

const (
	readBufSize  = 4096
	readDeadline = 100 * time.Millisecond
)

// Options configures a Process.
type Options struct {
	Shell          string // default $SHELL, then /bin/bash
	Rows, Cols     int
	EventQueueSize int
	TermGrace      time.Duration // wait between SIGTERM and SIGKILL on cleanup
}

func (o *Options) defaults() {
	if o.Shell == "" {
		o.Shell = os.Getenv("SHELL")
		if o.Shell == "" {
			o.Shell = "/bin/bash"
		}
	}
	if o.Rows <= 0 {
		o.Rows = 24
	}
	if o.Cols <= 0 {
		o.Cols = 80
	}
	if o.EventQueueSize <= 0 {
		o.EventQueueSize = 256
	}
	if o.TermGrace <= 0 {
		o.TermGrace = 2 * time.Second
	}
}

// Process is one PTY-backed shell. Two persistent goroutines (reader and
// writer) perform all blocking fd syscalls; everything else communicates with
// them only through the events and input channels.
type Process struct {
	SessionID string

	opts   Options
	logger *logging.Logger

	ptmx *os.File
	cmd  *exec.Cmd

	running atomic.Bool
	events  chan Event
	input   chan string
	done    chan struct{} // writer shutdown sentinel
	waited  chan struct{} // closed once the child has been reaped

	dropMu      sync.Mutex // serializes drop-oldest pushes
	cleanupOnce sync.Once
}

// NewProcess creates an unstarted process bound to a session id.
func NewProcess(sessionID string, opts Options, logger *logging.Logger) *Process {
	opts.defaults()
	return &Process{
		SessionID: sessionID,
		opts:      opts,
		logger:    logger,
		events:    make(chan Event, opts.EventQueueSize),
		input:     make(chan string, 16),
		done:      make(chan struct{}),
		waited:    make(chan struct{}),
	}
}

// Start allocates the PTY pair, spawns the shell on the slave side in its own
// process group, and launches the reader and writer loops.
func (p *Process) Start(workingDir string) error {
	if workingDir == "" {
		workingDir = os.Getenv("HOME")
		if workingDir == "" {
			workingDir = "/tmp"
		}
	}

	cmd := exec.Command(p.opts.Shell)
	cmd.Dir = workingDir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	// pty.StartWithSize puts the child in its own session (setsid) with the
	// slave as controlling terminal and closes the slave in the parent.
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(p.opts.Rows),
		Cols: uint16(p.opts.Cols),
	})
	if err != nil {
		return fmt.Errorf("failed to start pty: %w", err)
	}

	p.ptmx = ptmx
	p.cmd = cmd
	p.running.Store(true)

	go func() {
		cmd.Wait()
		close(p.waited)
	}()
	go p.readLoop()
	go p.writeLoop()

	p.logger.Info("pty started",
		zap.String("session_id", p.SessionID),
		zap.String("shell", p.opts.Shell),
		zap.String("dir", workingDir),
		zap.Int("pid", cmd.Process.Pid),
	)
	return nil
}

// readLoop waits for readability with a short deadline so the running flag is
// observed, decodes permissively, and pushes output events. IO errors never
// cross this goroutine boundary: EOF/EIO become an eof event, anything else is
// logged and tolerated once. A terminal close event is always pushed last.
func (p *Process) readLoop() {
	defer p.pushEvent(Event{Type: EventClose})

	buf := make([]byte, readBufSize)
	var lastErr error
	for p.running.Load() {
		p.ptmx.SetReadDeadline(time.Now().Add(readDeadline))
		n, err := p.ptmx.Read(buf)
		if n > 0 {
			p.pushEvent(Event{
				Type:    EventOutput,
				Content: strings.ToValidUTF8(string(buf[:n]), "�"),
			})
		}
		if err == nil {
			lastErr = nil
			continue
		}
		if os.IsTimeout(err) {
			lastErr = nil
			continue
		}
		if isClosedPipe(err) {
			p.pushEvent(Event{Type: EventEOF})
			return
		}
		// Transient read failure: tolerate one occurrence, stop if it repeats.
		if lastErr != nil {
			p.logger.Warn("pty read failing, stopping reader",
				zap.String("session_id", p.SessionID), zap.Error(err))
			return
		}
		p.logger.Warn("pty read error",
			zap.String("session_id", p.SessionID), zap.Error(err))
		lastErr = err
	}
}

// writeLoop drains the input channel onto the master fd. The done channel is
// the shutdown sentinel.
func (p *Process) writeLoop() {
	for {
		select {
		case <-p.done:
			return
		case text := <-p.input:
			if !p.running.Load() {
				return
			}
			if _, err := p.ptmx.WriteString(text); err != nil {
				p.logger.Warn("pty write error",
					zap.String("session_id", p.SessionID), zap.Error(err))
			}
		}
	}
}

// pushEvent enqueues an event, dropping the oldest pending one when the queue
// is full. The reader loop must never block on a slow consumer.
func (p *Process) pushEvent(ev Event) {
	p.dropMu.Lock()
	defer p.dropMu.Unlock()

	select {
	case p.events <- ev:
		return
	default:
	}
	select {
	case <-p.events:
	default:
	}
	select {
	case p.events <- ev:
	default:
	}
}

// WriteInput enqueues text for the writer loop.
func (p *Process) WriteInput(text string) error {
	if !p.running.Load() {
		return ErrProcessClosed
	}
	select {
	case p.input <- text:
		return nil
	case <-p.done:
		return ErrProcessClosed
	}
}

// Output exposes the event stream.
func (p *Process) Output() <-chan Event {
	return p.events
}

// PollOutput returns the next pending event without blocking.
func (p *Process) PollOutput() (Event, bool) {
	select {
	case ev := <-p.events:
		return ev, true
	default:
		return Event{}, false
	}
}

// Resize changes the terminal window size.
func (p *Process) Resize(rows, cols int) error {
	if !p.running.Load() {
		return ErrProcessClosed
	}
	if err := pty.Setsize(p.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		return fmt.Errorf("resize failed: %w", err)
	}
	return nil
}

// Signal delivers sig to the child's process group.
func (p *Process) Signal(sig syscall.Signal) error {
	if !p.running.Load() || p.cmd == nil || p.cmd.Process == nil {
		return ErrProcessClosed
	}
	if err := syscall.Kill(-p.cmd.Process.Pid, sig); err != nil {
		return fmt.Errorf("signal %s failed: %w", sig, err)
	}
	return nil
}

// IsAlive reports whether the shell is still running.
func (p *Process) IsAlive() bool {
	if !p.running.Load() {
		return false
	}
	select {
	case <-p.waited:
		return false
	default:
		return true
	}
}

// Cleanup tears the process down: stop the writer, close the master fd,
// terminate the process group gracefully, and force-kill after the grace
// period. Idempotent and safe to call from any goroutine; worker loops exit
// on their own via the running flag and the closed fd.
func (p *Process) Cleanup() {
	p.cleanupOnce.Do(func() {
		p.running.Store(false)
		close(p.done)

		if p.ptmx != nil {
			p.ptmx.Close()
		}
		if p.cmd == nil || p.cmd.Process == nil {
			return
		}

		pid := p.cmd.Process.Pid
		syscall.Kill(-pid, syscall.SIGTERM)
		select {
		case <-p.waited:
		case <-time.After(p.opts.TermGrace):
			p.logger.Warn("pty did not exit on SIGTERM, killing",
				zap.String("session_id", p.SessionID), zap.Int("pid", pid))
			syscall.Kill(-pid, syscall.SIGKILL)
			select {
			case <-p.waited:
			case <-time.After(time.Second):
				p.logger.Error("pty unreaped after SIGKILL",
					zap.String("session_id", p.SessionID), zap.Int("pid", pid))
			}
		}

		p.logger.Info("pty cleaned up", zap.String("session_id", p.SessionID))
	})
}

// isClosedPipe reports whether err marks the channel as gone: EOF from the
// device, EIO after the slave side closed, or our own fd close.
func isClosedPipe(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.EIO) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, os.ErrClosed)
}
