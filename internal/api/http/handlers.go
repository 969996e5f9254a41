// Package http holds the REST handlers for session management and
// programmatic command execution.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrveiss/AutoBot-AI-sub017/internal/executor"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/infrastructure/logging"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/infrastructure/monitoring"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/pty"
	sharedid "github.com/mrveiss/AutoBot-AI-sub017/internal/shared/id"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/shared/validate"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/terminal"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/transcript"
)

// Handlers contains all REST handlers.
type Handlers struct {
	ptys     *pty.Registry
	sessions *terminal.Registry
	exec     *executor.Executor
	sink     transcript.Sink
	logger   *logging.Logger
	metrics  *monitoring.Metrics
}

// NewHandlers creates a new handler set.
func NewHandlers(ptys *pty.Registry, sessions *terminal.Registry, exec *executor.Executor,
	sink transcript.Sink, logger *logging.Logger, metrics *monitoring.Metrics) *Handlers {
	return &Handlers{
		ptys:     ptys,
		sessions: sessions,
		exec:     exec,
		sink:     sink,
		logger:   logger,
		metrics:  metrics,
	}
}

// Root handles the basic liveness check.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "terminal-bridge",
	})
}

// Health reports liveness plus registry counts.
func (h *Handlers) Health(c *gin.Context) {
	resp := gin.H{
		"status":      "healthy",
		"ptys_active": h.ptys.Count(),
		"sessions":    h.sessions.Count(),
	}
	if h.metrics != nil {
		resp["uptime_seconds"] = int64(h.metrics.Uptime().Seconds())
	}
	c.JSON(http.StatusOK, resp)
}

type createSessionRequest struct {
	ID         string `json:"id"`
	WorkingDir string `json:"working_dir"`
}

// CreateSession allocates a PTY slot ahead of a WebSocket attach. The id is
// generated when the client does not bring one.
func (h *Handlers) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ID == "" {
		req.ID = sharedid.NewSessionID().String()
	} else if err := validate.SessionID(req.ID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validate.WorkingDir(req.WorkingDir); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.ptys.Create(req.ID, req.WorkingDir); err != nil {
		h.logger.Error("pty create failed",
			zap.String("session_id", req.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":          req.ID,
		"working_dir": req.WorkingDir,
	})
}

// ListSessions lists live sessions with their statistics.
func (h *Handlers) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessions":    h.sessions.List(),
		"ptys_active": h.ptys.Count(),
	})
}

// DeleteSession closes the session and its PTY slot. Either half existing is
// enough: a forced close can remove the slot while the session lives on.
func (h *Handlers) DeleteSession(c *gin.Context) {
	id := c.Param("id")

	closedSession := false
	if s, ok := h.sessions.Get(id); ok {
		s.Close()
		h.sessions.Remove(id)
		closedSession = true
	}
	if err := h.ptys.Close(id); err == pty.ErrNotFound && !closedSession {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	h.sink.CloseSession(id)

	c.JSON(http.StatusOK, gin.H{"id": id, "closed": true})
}

type executeRequest struct {
	Command        string `json:"command" binding:"required"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ExecuteCommand runs one programmatic command on the session's PTY and
// returns its inferred result. The PTY slot is created on demand so automated
// callers do not need a prior attach.
func (h *Handlers) ExecuteCommand(c *gin.Context) {
	id := c.Param("id")

	if err := validate.SessionID(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validate.Command(req.Command); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, ok := h.ptys.Get(id); !ok {
		if _, err := h.ptys.Create(id, ""); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := h.exec.Execute(c.Request.Context(), id, req.Command,
		time.Duration(req.TimeoutSeconds)*time.Second)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// SessionTranscript returns the session's recent transcript messages.
func (h *Handlers) SessionTranscript(c *gin.Context) {
	id := c.Param("id")
	c.JSON(http.StatusOK, gin.H{
		"id":       id,
		"messages": h.sink.RecentMessages(id, 50),
	})
}
