// Package ws upgrades terminal connections and binds each one to a session.
package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mrveiss/AutoBot-AI-sub017/internal/infrastructure/config"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/infrastructure/logging"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/infrastructure/monitoring"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/pty"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/security"
	sharedid "github.com/mrveiss/AutoBot-AI-sub017/internal/shared/id"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/shared/validate"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/terminal"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/transcript"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // trusted network, no origin policy
	},
}

// Handler upgrades terminal WebSocket requests and runs their sessions.
type Handler struct {
	ptys       *pty.Registry
	sessions   *terminal.Registry
	sink       transcript.Sink
	classifier *security.Classifier
	logger     *logging.Logger
	metrics    *monitoring.Metrics
	cfg        config.TerminalConfig
}

// NewHandler wires a WebSocket handler.
func NewHandler(ptys *pty.Registry, sessions *terminal.Registry, sink transcript.Sink,
	classifier *security.Classifier, cfg config.TerminalConfig,
	logger *logging.Logger, metrics *monitoring.Metrics) *Handler {
	return &Handler{
		ptys:       ptys,
		sessions:   sessions,
		sink:       sink,
		classifier: classifier,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// HandleTerminal upgrades the connection and serves one terminal session over
// it. The PTY slot is created on demand, so connecting to a fresh id works
// the same as reattaching after a forced close. Disconnect tears down both
// the session and its PTY slot.
func (h *Handler) HandleTerminal(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		id = sharedid.NewSessionID().String()
	} else if err := validate.SessionID(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	level := security.ParseLevel(c.Query("security_level"))
	conversationID := c.Query("conversation_id")

	proc, ok := h.ptys.Get(id)
	if !ok {
		var err error
		proc, err = h.ptys.Create(id, c.Query("working_dir"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.String("session_id", id), zap.Error(err))
		return
	}

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}

	session := terminal.NewSession(id, terminal.Config{
		SecurityLevel:   level,
		ConversationID:  conversationID,
		OutputQueueSize: h.cfg.OutputQueueSize,
		MaxStdinBytes:   h.cfg.MaxStdinBytes,
		FlushBytes:      h.cfg.FlushBytes,
		FlushInterval:   h.cfg.FlushInterval,
	}, proc, conn, h.sink, h.classifier, h.logger, h.metrics)

	h.sessions.Add(session)
	h.logger.Info("terminal attached",
		zap.String("session_id", id),
		zap.String("security_level", string(level)),
	)

	session.Run()

	h.sessions.Remove(id)
	if err := h.ptys.Close(id); err != nil && err != pty.ErrNotFound {
		h.logger.Warn("pty close failed", zap.String("session_id", id), zap.Error(err))
	}
	h.sink.CloseSession(id)
	h.logger.Info("terminal detached", zap.String("session_id", id))
}
