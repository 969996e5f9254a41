package pty

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mrveiss/AutoBot-AI-sub017/internal/infrastructure/logging"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/infrastructure/monitoring"
)

// ErrNotFound is returned when no PTY exists for a session id.
var ErrNotFound = fmt.Errorf("pty session not found")

// Registry tracks at most one live Process per session id.
type Registry struct {
	opts    Options
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu    sync.RWMutex
	procs map[string]*Process
}

// NewRegistry creates an empty registry; opts seed every created Process.
func NewRegistry(opts Options, logger *logging.Logger, metrics *monitoring.Metrics) *Registry {
	return &Registry{
		opts:    opts,
		logger:  logger,
		metrics: metrics,
		procs:   make(map[string]*Process),
	}
}

// Create starts a new Process for id. An existing entry is cleaned up first
// so two live PTYs never share an id; the new process is registered only if
// it starts successfully.
func (r *Registry) Create(id, workingDir string) (*Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.procs[id]; ok {
		r.logger.Info("replacing existing pty", zap.String("session_id", id))
		old.Cleanup()
		delete(r.procs, id)
		if r.metrics != nil {
			r.metrics.PTYsActive.Dec()
		}
	}

	proc := NewProcess(id, r.opts, r.logger)
	if err := proc.Start(workingDir); err != nil {
		return nil, fmt.Errorf("create pty %s: %w", id, err)
	}
	r.procs[id] = proc
	if r.metrics != nil {
		r.metrics.PTYsActive.Inc()
		r.metrics.PTYsCreated.Inc()
	}
	return proc, nil
}

// Get looks up the live Process for id.
func (r *Registry) Get(id string) (*Process, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	proc, ok := r.procs[id]
	return proc, ok
}

// Close cleans up and removes the Process for id.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	proc, ok := r.procs[id]
	if ok {
		delete(r.procs, id)
	}
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	proc.Cleanup()
	if r.metrics != nil {
		r.metrics.PTYsActive.Dec()
	}
	return nil
}

// CloseAll tears down every registered Process.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	procs := r.procs
	r.procs = make(map[string]*Process)
	r.mu.Unlock()

	for id, proc := range procs {
		proc.Cleanup()
		if r.metrics != nil {
			r.metrics.PTYsActive.Dec()
		}
		r.logger.Debug("pty closed", zap.String("session_id", id))
	}
}

// Count returns the number of live PTYs.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.procs)
}
