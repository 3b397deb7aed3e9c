package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"pdfqa/internal/config"
	"pdfqa/internal/handler"
	"pdfqa/internal/middleware"
	"pdfqa/internal/models"
	"pdfqa/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

// maxUploadMemory is the part of a multipart upload kept in memory; the rest
// spills to temporary files.
const maxUploadMemory = 32 << 20

const shutdownTimeout = 10 * time.Second

type Server struct {
	router           *gin.Engine
	cfg              *config.Config
	authService      service.AuthService
	assistantService service.AssistantService
	logger           *zap.Logger
	accessLog        *logrus.Logger
}

func NewServer(cfg *config.Config, authService service.AuthService, assistantService service.AssistantService, logger *zap.Logger, accessLog *logrus.Logger) *Server {
	gin.SetMode(cfg.Server.Mode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.AccessLog(accessLog))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.MaxMultipartMemory = maxUploadMemory

	s := &Server{
		router:           router,
		cfg:              cfg,
		authService:      authService,
		assistantService: assistantService,
		logger:           logger,
		accessLog:        accessLog,
	}

	// Setup routes
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	authHandler := handler.NewAuthHandler(s.authService, s.logger)
	userHandler := handler.NewUserHandler(s.authService, s.logger)
	adminHandler := handler.NewAdminHandler(s.authService, s.logger)
	assistantHandler := handler.NewAssistantHandler(s.assistantService, s.logger)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Authentication routes
	authGroup := s.router.Group("/api/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/request-password-reset", authHandler.RequestPasswordReset)
		authGroup.POST("/reset_password/:token", authHandler.ResetPassword)
	}

	// Authenticated routes
	authRequired := s.router.Group("/api")
	authRequired.Use(middleware.AuthMiddleware(s.authService, s.logger))

	userGroup := authRequired.Group("/user")
	{
		userGroup.POST("/update-password", userHandler.UpdatePassword)
		userGroup.POST("/delete", userHandler.Delete)
	}

	adminGroup := authRequired.Group("/admin")
	adminGroup.Use(middleware.RequireRole(models.RoleAdmin, s.logger))
	{
		adminGroup.POST("/delete", adminHandler.DeleteUser)
		adminGroup.GET("/get-all", adminHandler.ListUsers)
	}

	aiGroup := authRequired.Group("/ai")
	{
		aiGroup.GET("/assistants", assistantHandler.ListAssistants)
		aiGroup.GET("/assistant/:name", assistantHandler.GetAssistant)
		aiGroup.POST("/create-assistant", assistantHandler.CreateAssistant)
		aiGroup.POST("/add-pdf", assistantHandler.AddPDF)
		aiGroup.POST("/ask", assistantHandler.Ask)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves HTTP until ctx is done and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", zap.String("port", s.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
