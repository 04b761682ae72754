package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/studylog/core/docs"
	httpHandlers "github.com/studylog/core/internal/adapters/http"
	"github.com/studylog/core/internal/application/services"
	"github.com/studylog/core/internal/infrastructure/config"
	"github.com/studylog/core/internal/infrastructure/logger"
	"github.com/studylog/core/internal/infrastructure/metrics"
	"github.com/studylog/core/internal/ports"
)

// Server represents the HTTP server
type Server struct {
	echo       *echo.Echo
	config     *config.Config
	logger     *logger.Logger
	store      ports.CollectionRepository
	selections ports.SelectionRepository
	hub        *httpHandlers.Hub
	stopHub    context.CancelFunc
}

// New creates a new server instance
func New(cfg *config.Config, store ports.CollectionRepository, selections ports.SelectionRepository, appLogger *logger.Logger) (*Server, error) {
	e := echo.New()
	e.Validator = NewValidator()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = customErrorHandler(appLogger)

	renderer, err := httpHandlers.NewTemplateRenderer()
	if err != nil {
		return nil, err
	}
	e.Renderer = renderer

	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	// Initialize services
	sessionService, err := services.NewSessionService(selections, cfg.Session, cfg.Store.DefaultCollection, appLogger)
	if err != nil {
		return nil, err
	}

	hub := httpHandlers.NewHub(appLogger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	var recorder *metrics.Recorder
	var studyMetrics ports.StudyMetrics
	if cfg.Metrics.Enabled {
		recorder = metrics.New()
		studyMetrics = recorder
	}
	studyService := services.NewStudyService(store, sessionService, hub, studyMetrics, appLogger)

	if err := store.Ensure(context.Background(), cfg.Store.DefaultCollection); err != nil {
		appLogger.Errorw("Failed to create default database", "database", cfg.Store.DefaultCollection, "error", err)
	}

	// Initialize handlers
	studyHandler := httpHandlers.NewStudyHandler(studyService, appLogger)
	liveHandler := httpHandlers.NewLiveHandler(hub, sessionService, appLogger)

	server := &Server{
		echo:       e,
		config:     cfg,
		logger:     appLogger,
		store:      store,
		selections: selections,
		hub:        hub,
		stopHub:    stopHub,
	}

	server.setupMiddleware()
	if recorder != nil {
		server.setupMetrics(recorder)
	}
	server.setupRoutes(studyHandler, liveHandler, httpHandlers.SessionMiddleware(sessionService, cfg.Session, appLogger))

	return server, nil
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(studyHandler *httpHandlers.StudyHandler, liveHandler *httpHandlers.LiveHandler, session echo.MiddlewareFunc) {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	docs.SwaggerInfo.Title = s.config.App.Name + " API"
	docs.SwaggerInfo.Version = s.config.App.Version
	s.echo.GET("/docs/*", echoSwagger.WrapHandler)

	s.echo.StaticFS("/static", httpHandlers.StaticFiles())

	s.echo.GET("/", studyHandler.Index, session)
	s.echo.POST("/submit", studyHandler.SubmitEntry, session)
	s.echo.GET("/ws", liveHandler.Serve, session)

	api := s.echo.Group("/api")
	api.GET("/data", studyHandler.GetData, session)
	api.GET("/stats", studyHandler.GetStats, session)
	api.GET("/series", studyHandler.GetSeries, session)
	api.GET("/databases", studyHandler.ListDatabases, session)
	api.POST("/switch-db", studyHandler.SwitchDatabase, session)
	api.POST("/create-db", studyHandler.CreateDatabase, session)
	api.POST("/delete-db", studyHandler.DeleteDatabase, session)
}

// setupMetrics configures Prometheus metrics
func (s *Server) setupMetrics(recorder *metrics.Recorder) {
	s.echo.Use(recorder.Middleware())
	s.echo.GET("/metrics", echo.WrapHandler(recorder.Handler()))
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) readinessCheck(c echo.Context) error {
	if info, err := os.Stat(s.store.Dir()); err != nil || !info.IsDir() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "data_dir_unavailable",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()
	if err := s.selections.Ping(ctx); err != nil {
		s.logger.Warnw("Selection store not ready", "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "session_store_not_ready",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.Infow("Starting server", "address", address, "data_dir", s.store.Dir())
	if err := s.echo.Start(address); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	s.stopHub()
	return s.echo.Shutdown(ctx)
}
