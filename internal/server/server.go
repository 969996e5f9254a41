package server

import (
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apihttp "github.com/mrveiss/AutoBot-AI-sub017/internal/api/http"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/api/middleware"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/api/ws"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/executor"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/infrastructure/config"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/infrastructure/logging"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/infrastructure/monitoring"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/pty"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/security"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/terminal"
	"github.com/mrveiss/AutoBot-AI-sub017/internal/transcript"
)

// Server wraps the HTTP router and the component registries.
type Server struct {
	router   *gin.Engine
	cfg      *config.Config
	logger   *logging.Logger
	ptys     *pty.Registry
	sessions *terminal.Registry
	store    *transcript.Store
}

// NewServer wires every component and registers routes.
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	metrics := monitoring.NewMetrics()

	store := transcript.NewStore(transcript.Options{
		Dir:         cfg.Transcript.Dir,
		RingSize:    cfg.Transcript.RingSize,
		OutputTrunc: cfg.Transcript.OutputTrunc,
	}, logger)

	ptys := pty.NewRegistry(pty.Options{
		Shell:          cfg.Terminal.Shell,
		Rows:           cfg.Terminal.Rows,
		Cols:           cfg.Terminal.Cols,
		EventQueueSize: cfg.Terminal.EventQueueSize,
		TermGrace:      cfg.Terminal.TermGrace,
	}, logger, metrics)

	sessions := terminal.NewRegistry(logger)
	classifier := security.NewDefaultClassifier()
	exec := executor.New(ptys, sessions, store, cfg.Executor, logger, metrics)

	if !logging.IsProduction() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit))
	}
	router.Use(monitoring.Middleware(metrics))

	handlers := apihttp.NewHandlers(ptys, sessions, exec, store, logger, metrics)
	wsHandler := ws.NewHandler(ptys, sessions, store, classifier, cfg.Terminal, logger, metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/sessions", handlers.CreateSession)
	router.GET("/sessions", handlers.ListSessions)
	router.DELETE("/sessions/:id", handlers.DeleteSession)
	router.POST("/sessions/:id/execute", handlers.ExecuteCommand)
	router.GET("/sessions/:id/transcript", handlers.SessionTranscript)

	router.GET("/ws/terminal/:id", wsHandler.HandleTerminal)

	return &Server{
		router:   router,
		cfg:      cfg,
		logger:   logger,
		ptys:     ptys,
		sessions: sessions,
		store:    store,
	}, nil
}

// Run starts the HTTP server and blocks.
func (s *Server) Run() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.logger.Info("terminal bridge listening", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close tears down sessions, PTYs, and the transcript store.
func (s *Server) Close() error {
	s.sessions.CloseAll()
	s.ptys.CloseAll()
	s.store.Close()
	return nil
}
