package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alkime/consults/internal/config"
	"github.com/alkime/consults/internal/repository"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

// Server is the portal backend: the recording API consumed by the consult
// client plus an optional static front-end.
type Server struct {
	config *config.Config
	logger *slog.Logger
	router *gin.Engine
	repo   repository.Repository
	now    func() time.Time
}

// New creates a new Server instance
func New(cfg *config.Config, logger *slog.Logger, repo repository.Repository) *Server {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	if cfg.Env == config.EnvProduction {
		router.TrustedPlatform = gin.PlatformFlyIO
		logger.Debug("Configured trusted platform", "platform", "fly.io")
	}

	server := &Server{
		config: cfg,
		logger: logger,
		router: router,
		repo:   repo,
		now:    time.Now,
	}

	setupSecurityMiddleware(router, cfg, logger)
	server.setupRoutes()

	return server
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// HTTPServer wraps the router in an http.Server listening on the configured port.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) setupRoutes() {
	if s.config.PublicDir != "" {
		s.router.Use(static.Serve("/", static.LocalFile(s.config.PublicDir, true)))
		s.logger.Debug("Serving static files", "dir", s.config.PublicDir)
	}

	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api/v1", bearerAuth(s.config.APIToken))
	{
		api.POST("/recordings", s.handleCreateRecording)
		api.GET("/recordings", s.handleListRecordings)
		api.GET("/recordings/:id", s.handleGetRecording)
		api.PATCH("/recordings/:id", s.handleCompleteRecording)
		api.PUT("/recordings/:id/transcript", s.handleSetTranscript)
		api.GET("/appointments/upcoming", s.handleUpcomingAppointments)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "consults",
	})
}
