package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/custodia-labs/aide-core/internal/adapters/driven/auth"
	"github.com/custodia-labs/aide-core/internal/core/ports/driving"
	"github.com/custodia-labs/aide-core/internal/tools"
)

const shutdownTimeout = 30 * time.Second

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP surface of the service: health probes, the OAuth flow,
// integration management, audit, and tool invocation.
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	version    string
	logger     *slog.Logger

	// Services
	oauthService       driving.OAuthService
	integrationService driving.IntegrationService
	tokenService       driving.TokenService
	securityService    driving.SecurityService
	toolRegistry       *tools.Registry

	// Infrastructure
	authAdapter *auth.Adapter
	db          Pinger // PostgreSQL health check
	redisClient Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string
	Logger  *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	oauthService driving.OAuthService,
	integrationService driving.IntegrationService,
	tokenService driving.TokenService,
	securityService driving.SecurityService,
	toolRegistry *tools.Registry,
	authAdapter *auth.Adapter,
	db Pinger,
	redisClient Pinger, // can be nil
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:             http.NewServeMux(),
		version:            cfg.Version,
		logger:             logger,
		oauthService:       oauthService,
		integrationService: integrationService,
		tokenService:       tokenService,
		securityService:    securityService,
		toolRegistry:       toolRegistry,
		authAdapter:        authAdapter,
		db:                 db,
		redisClient:        redisClient,
	}

	s.setupRoutes()
	s.handler = recoverPanics(logger)(requestLogger(logger)(s.router))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authAdapter)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// OAuth flow endpoints
	s.router.Handle("GET /api/v1/oauth/{provider}/authorize",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleOAuthAuthorize)))
	// Callback is public - receives redirects from OAuth providers
	s.router.HandleFunc("GET /api/v1/oauth/{provider}/callback", s.handleOAuthCallback)

	// Integration endpoints (authenticated)
	s.router.Handle("GET /api/v1/oauth/integrations",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListIntegrations)))
	s.router.Handle("POST /api/v1/oauth/integrations/{id}/refresh",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleRefreshIntegration)))
	s.router.Handle("DELETE /api/v1/oauth/integrations/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleRevokeIntegration)))

	// Audit trail (authenticated)
	s.router.Handle("GET /api/v1/oauth/audit",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleAuditTrail)))

	// Tool endpoints (authenticated)
	s.router.Handle("GET /api/v1/tools",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListTools)))
	s.router.Handle("POST /api/v1/tools/{name}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleCallTool)))
}

// Start serves until a listen error or a SIGINT/SIGTERM, then drains
// in-flight requests before returning.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-stop:
	}

	s.logger.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the full middleware chain for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}
