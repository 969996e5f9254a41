// Package executor drives one programmatic command to completion on an
// existing session/PTY pair. The byte stream carries no exit-code channel, so
// completion is inferred by marker injection plus output-stability polling,
// with a two-stage cancellation protocol when the command hangs.
package executor

import (
	"context"
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mrveiss/AutoBot-AI-sub017/internal/infrastructure/config"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/infrastructure/logging"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/infrastructure/monitoring"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/pty"
	sharedid "github.com/mrveiss/AutoBot-AI-sub017/internal/shared/id"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/terminal"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/transcript"
)

// Result reports one command execution.
type Result struct {
	CommandID    string `json:"command_id"`
	Stdout       string `json:"stdout"`
	Stderr       string `json:"stderr"`
	ExitCode     int    `json:"exit_code"`
	Status       string `json:"status"` // completed, failed, cancelled
	CancelReason string `json:"cancel_reason,omitempty"`
}

// Statuses and cancel reasons recorded on results and command-log entries.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"

	ReasonTimeout = "timeout"
)

const markerPrefix = "__AUTOBOT_MARK_"

// errorIndicators is the fallback heuristic: when marker detection exhausts
// its attempts, recent output containing any of these counts as failure.
var errorIndicators = []string{
	"command not found",
	"permission denied",
	"no such file or directory",
	"operation not permitted",
	"syntax error",
	"segmentation fault",
}

// Executor executes commands over registered PTYs, reading completion through
// the same transcript sink sessions flush to.
type Executor struct {
	ptys     *pty.Registry
	sessions *terminal.Registry
	sink     transcript.Sink
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	cfg      config.ExecutorConfig
}

// New wires an executor.
func New(ptys *pty.Registry, sessions *terminal.Registry, sink transcript.Sink,
	cfg config.ExecutorConfig, logger *logging.Logger, metrics *monitoring.Metrics) *Executor {
	if cfg.PollInitial <= 0 {
		cfg.PollInitial = 100 * time.Millisecond
	}
	if cfg.PollMax <= 0 {
		cfg.PollMax = 2 * time.Second
	}
	if cfg.StabilityWindow <= 0 {
		cfg.StabilityWindow = 2 * time.Second
	}
	if cfg.MarkerAttempts <= 0 {
		cfg.MarkerAttempts = 8
	}
	if cfg.InterruptGrace <= 0 {
		cfg.InterruptGrace = 2 * time.Second
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 60 * time.Second
	}
	return &Executor{
		ptys:     ptys,
		sessions: sessions,
		sink:     sink,
		logger:   logger,
		metrics:  metrics,
		cfg:      cfg,
	}
}

type pollOutcome struct {
	output   string
	exitCode *int
}

// Execute writes the command to the session's PTY and infers its completion.
// On timeout the cancellation protocol runs: interrupt, grace wait, then a
// forced close of the whole PTY slot if the shell is still unresponsive.
// Always returns within timeout plus one poll interval.
func (e *Executor) Execute(ctx context.Context, sessionID, command string, timeout time.Duration) (Result, error) {
	proc, ok := e.ptys.Get(sessionID)
	if !ok {
		return Result{}, fmt.Errorf("execute %q: %w", command, pty.ErrNotFound)
	}
	if timeout <= 0 {
		timeout = e.cfg.DefaultTimeout
	}

	cmdID := sharedid.NewCommandID().String()

	// Single-use random token. Exit-code detection matches this exact string,
	// so output that merely imitates the marker's shape cannot forge success.
	token := markerPrefix + strings.ReplaceAll(uuid.NewString(), "-", "") + "__"

	start := time.Now()
	if err := proc.WriteInput(command + "\n"); err != nil {
		return Result{}, fmt.Errorf("write command: %w", err)
	}
	// Probe the previous command's exit status through the shell itself.
	if err := proc.WriteInput(fmt.Sprintf("echo %s $?\n", token)); err != nil {
		return Result{}, fmt.Errorf("write marker probe: %w", err)
	}

	pollCtx, cancelPoll := context.WithCancel(ctx)
	defer cancelPoll()

	outcomeCh := make(chan pollOutcome, 1)
	go func() {
		outcomeCh <- e.poll(pollCtx, proc, sessionID, token)
	}()

	var outcome pollOutcome
	select {
	case outcome = <-outcomeCh:
	case <-time.After(timeout):
		cancelPoll()
		<-outcomeCh
		return e.cancel(proc, cmdID, sessionID, command, ReasonTimeout, start), nil
	case <-ctx.Done():
		cancelPoll()
		<-outcomeCh
		return e.cancel(proc, cmdID, sessionID, command, ctx.Err().Error(), start), nil
	}

	result := e.resolve(outcome, command, token)
	result.CommandID = cmdID
	exit := result.ExitCode
	e.sink.LogCommand(transcript.CommandEntry{
		CommandID: cmdID,
		Origin:    "automated",
		Status:    result.Status,
		SessionID: sessionID,
		Command:   command,
		ExitCode:  &exit,
		Stdout:    result.Stdout,
		Stderr:    result.Stderr,
	})
	if e.metrics != nil {
		e.metrics.RecordCommand("automated", result.Status)
		e.metrics.CommandDuration.Observe(time.Since(start).Seconds())
	}
	return result, nil
}

// poll watches the session's recent output at an increasing interval until
// the exact marker appears. Stability is only a fallback: the tty echoes the
// command and the probe immediately and then goes quiet while the shell is
// busy, so a stable buffer proves nothing until the marker attempt budget is
// exhausted.
func (e *Executor) poll(ctx context.Context, proc *pty.Process, sessionID, token string) pollOutcome {
	interval := e.cfg.PollInitial
	lastOut := ""
	lastChange := time.Now()
	markerTries := 0

	for {
		select {
		case <-ctx.Done():
			e.drain(proc, sessionID)
			return pollOutcome{output: e.recentOutput(sessionID)}
		case <-time.After(interval):
		}

		e.drain(proc, sessionID)
		out := e.recentOutput(sessionID)

		if markerTries < e.cfg.MarkerAttempts {
			markerTries++
			if code, found := findMarker(out, token); found {
				return pollOutcome{output: out, exitCode: &code}
			}
		}

		if out != lastOut {
			lastOut = out
			lastChange = time.Now()
		} else if markerTries >= e.cfg.MarkerAttempts && out != "" &&
			time.Since(lastChange) >= e.cfg.StabilityWindow {
			return pollOutcome{output: out}
		}

		interval *= 2
		if interval > e.cfg.PollMax {
			interval = e.cfg.PollMax
		}
	}
}

// drain relays pending PTY output into the sink when no live terminal session
// is doing it. Keeps the executor on the same output path either way.
func (e *Executor) drain(proc *pty.Process, sessionID string) {
	if e.sessions != nil {
		if _, live := e.sessions.Get(sessionID); live {
			return
		}
	}
	for {
		ev, ok := proc.PollOutput()
		if !ok {
			return
		}
		if ev.Type == pty.EventOutput && ev.Content != "" {
			e.sink.AddMessage("terminal", ev.Content, "terminal_output", sessionID)
		}
	}
}

// recentOutput joins the sink's recent messages for the session.
func (e *Executor) recentOutput(sessionID string) string {
	msgs := e.sink.RecentMessages(sessionID, 50)
	var sb strings.Builder
	for _, m := range msgs {
		if m.Type == "terminal_output" {
			sb.WriteString(m.Text)
		}
	}
	return sb.String()
}

// resolve turns a poll outcome into a Result, falling back to the
// error-indicator heuristic when the marker was never seen. Detection failure
// resolves to a conservative default rather than an error.
func (e *Executor) resolve(outcome pollOutcome, command, token string) Result {
	stdout := cleanOutput(outcome.output, command, token)

	if outcome.exitCode != nil {
		status := StatusCompleted
		if *outcome.exitCode != 0 {
			status = StatusFailed
		}
		return Result{Stdout: stdout, ExitCode: *outcome.exitCode, Status: status}
	}

	lower := strings.ToLower(outcome.output)
	for _, indicator := range errorIndicators {
		if strings.Contains(lower, indicator) {
			return Result{Stdout: stdout, ExitCode: 1, Status: StatusFailed}
		}
	}
	if strings.TrimSpace(stdout) == "" {
		return Result{Stdout: stdout, ExitCode: 1, Status: StatusFailed}
	}
	return Result{Stdout: stdout, ExitCode: 0, Status: StatusCompleted}
}

// cancel runs the escalation protocol: interrupt the process group, wait the
// grace period, and force-close the whole PTY slot if the shell is still
// alive. Closing the slot rather than signaling one process recovers even
// when the shell itself is unresponsive; the slot can then be recreated.
func (e *Executor) cancel(proc *pty.Process, cmdID, sessionID, command, reason string, start time.Time) Result {
	e.logger.Warn("command cancelled",
		zap.String("command_id", cmdID),
		zap.String("session_id", sessionID),
		zap.String("reason", reason),
		zap.Duration("elapsed", time.Since(start)),
	)

	if err := proc.Signal(syscall.SIGINT); err != nil {
		e.logger.Debug("interrupt failed", zap.String("session_id", sessionID), zap.Error(err))
	}

	deadline := time.Now().Add(e.cfg.InterruptGrace)
	for time.Now().Before(deadline) && proc.IsAlive() {
		time.Sleep(100 * time.Millisecond)
	}

	if proc.IsAlive() {
		if err := e.ptys.Close(sessionID); err != nil {
			// Forced termination failed; the slot is removed regardless so the
			// PTY cannot leak.
			e.logger.Error("forced close failed",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	result := Result{
		CommandID:    cmdID,
		Stdout:       e.recentOutput(sessionID),
		ExitCode:     -1,
		Status:       StatusCancelled,
		CancelReason: reason,
	}
	exit := result.ExitCode
	e.sink.LogCommand(transcript.CommandEntry{
		CommandID: cmdID,
		Origin:    "automated",
		Status:    StatusCancelled,
		SessionID: sessionID,
		Command:   command,
		ExitCode:  &exit,
		Stderr:    reason,
	})
	if e.metrics != nil {
		e.metrics.RecordCommand("automated", StatusCancelled)
	}
	return result
}

// findMarker scans output lines for the exact token followed by an integer
// exit status. Lines still containing "$?" are the echoed probe command, not
// the shell's answer.
func findMarker(output, token string) (int, bool) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		if !strings.HasPrefix(line, token) || strings.Contains(line, "$?") {
			continue
		}
		var code int
		if _, err := fmt.Sscanf(strings.TrimSpace(line[len(token):]), "%d", &code); err == nil {
			return code, true
		}
	}
	return 0, false
}

// cleanOutput strips marker lines and the echoed command from the output.
func cleanOutput(output, command, token string) string {
	output = strings.ReplaceAll(output, "\r\n", "\n")
	output = strings.ReplaceAll(output, "\r", "")

	var kept []string
	seenEcho := false
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, token) {
			continue
		}
		if !seenEcho && command != "" && strings.Contains(line, command) {
			seenEcho = true
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
