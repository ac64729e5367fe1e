package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/moca-trajectory-engine/internal/domain"
	"github.com/moca-trajectory-engine/internal/middleware"
	"github.com/moca-trajectory-engine/internal/service"
)

// PatientService is the registry workflow the HTTP handlers drive.
type PatientService interface {
	CreatePatient(ctx context.Context, doctorID string, details service.PatientDetails, assessments []domain.Assessment) (*service.MutationResult, error)
	GetPatient(ctx context.Context, doctorID, id string) (*domain.Patient, error)
	ListPatients(ctx context.Context, doctorID string) ([]*domain.Patient, error)
	UpdatePatient(ctx context.Context, doctorID, id string, details service.PatientDetails) (*service.MutationResult, error)
	DeletePatient(ctx context.Context, doctorID, id string) error
	AddAssessment(ctx context.Context, doctorID, id string, a domain.Assessment) (*service.MutationResult, error)
	UpdateAssessment(ctx context.Context, doctorID, id string, index int, update []byte) (*service.MutationResult, error)
	DeleteAssessment(ctx context.Context, doctorID, id string, index int) (*service.MutationResult, error)
	Recompute(ctx context.Context, doctorID, id string) (*service.MutationResult, error)
	RecomputeAll(ctx context.Context, doctorID string) (*service.RecomputeSummary, error)
}

// ServerOptions holds the optional collaborators of a Server.
type ServerOptions struct {
	// Gatherer backs the metrics endpoint. Nil disables it.
	Gatherer prometheus.Gatherer
	// HealthCheck probes storage for /health. Nil reports healthy.
	HealthCheck func(ctx context.Context) error
	Version     string
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	patients      PatientService
	options       ServerOptions
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, patients PatientService, logger *logrus.Logger, options ServerOptions) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(corsMiddleware())
	router.Use(middleware.DoctorScope())
	router.Use(middleware.AuditLogger(logger))

	if options.Version == "" {
		options.Version = "dev"
	}

	server := &Server{
		configManager: configManager,
		patients:      patients,
		options:       options,
		logger:        logger,
		router:        router,
	}

	server.setupRoutes()

	return server
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	metrics := s.configManager.GetConfig().Metrics
	if metrics.Enabled && s.options.Gatherer != nil {
		s.router.GET(metrics.Path, gin.WrapH(promhttp.HandlerFor(s.options.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/recompute", s.handleRecomputeAll)

		patients := v1.Group("/patients")
		patients.GET("", s.handleListPatients)
		patients.POST("", s.handleCreatePatient)
		patients.GET("/:id", s.handleGetPatient)
		patients.PUT("/:id", s.handleUpdatePatient)
		patients.DELETE("/:id", s.handleDeletePatient)

		patients.GET("/:id/assessments", s.handleListAssessments)
		patients.POST("/:id/assessments", s.handleAddAssessment)
		patients.PUT("/:id/assessments/:index", s.handleUpdateAssessment)
		patients.DELETE("/:id/assessments/:index", s.handleDeleteAssessment)

		patients.GET("/:id/trajectory", s.handleGetTrajectory)
		patients.POST("/:id/recompute", s.handleRecompute)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   s.options.Version,
		"scoring":   s.configManager.GetScorerConfig().Mode,
	}

	if s.options.HealthCheck != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.options.HealthCheck(ctx); err != nil {
			s.logger.WithError(err).Warn("Health check failed")
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
		}
	}

	c.JSON(status, body)
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, "+middleware.DoctorHeader+", "+middleware.CorrelationHeader)
		c.Header("Access-Control-Expose-Headers", middleware.CorrelationHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
