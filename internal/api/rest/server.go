package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fweiler/OpenSupplyCore/internal/api/websocket"
	"github.com/fweiler/OpenSupplyCore/internal/auth"
	"github.com/fweiler/OpenSupplyCore/internal/config"
	"github.com/fweiler/OpenSupplyCore/internal/interfaces"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router      *gin.Engine
	lm          interfaces.LifecycleManager
	logger      *zap.Logger
	server      *http.Server
	wsHub       *websocket.Hub
	authService *auth.AuthService
}

func NewServer(cfg *config.Config, lm interfaces.LifecycleManager, logger *zap.Logger, wsHub *websocket.Hub, authService *auth.AuthService) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:      gin.New(),
		lm:          lm,
		logger:      logger,
		wsHub:       wsHub,
		authService: authService,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	// Public routes (no auth required)
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	{
		// ==================== AUTH ENDPOINTS (PUBLIC) ====================
		authPublic := v1.Group("/auth")
		{
			authPublic.POST("/login", s.login)
			authPublic.POST("/refresh", s.refreshToken)
		}

		// ==================== AUTH ENDPOINTS (AUTHENTICATED) ====================
		authProtected := v1.Group("/auth")
		authProtected.Use(s.authService.AuthMiddleware())
		{
			authProtected.POST("/logout", s.logout)
			authProtected.GET("/me", s.getCurrentUser)
		}

		// ==================== USER MANAGEMENT (ADMIN ONLY) ====================
		users := v1.Group("/users")
		users.Use(s.authService.AuthMiddleware())
		users.Use(auth.RequirePermission(auth.PermAdmin))
		{
			users.POST("", s.createUser)
		}

		// ==================== SYSTEM ====================
		system := v1.Group("/system")
		system.Use(s.authService.AuthMiddleware())
		{
			system.GET("/status", auth.RequirePermission(auth.PermViewer), s.getSystemStatus)
			system.POST("/shutdown", auth.RequirePermission(auth.PermAdmin), s.shutdown)
		}

		// ==================== MODULES ====================
		modules := v1.Group("/modules")
		modules.Use(s.authService.AuthMiddleware())
		{
			// Read operations: Viewer+
			modules.GET("", auth.RequirePermission(auth.PermViewer), s.listModules)
			modules.GET("/parameters", auth.RequirePermission(auth.PermViewer), s.listParameters)
			modules.GET("/:name", auth.RequirePermission(auth.PermViewer), s.getModule)
			modules.GET("/:name/snapshot", auth.RequirePermission(auth.PermViewer), s.getSnapshot)
			modules.GET("/:name/readings", auth.RequirePermission(auth.PermViewer), s.getReadings)
			modules.GET("/:name/events", auth.RequirePermission(auth.PermViewer), s.getEvents)
			modules.POST("/:name/read", auth.RequirePermission(auth.PermViewer), s.readParameter)

			// Write operations: Operator+
			modules.POST("/:name/write", auth.RequirePermission(auth.PermOperator), s.writeParameter)
		}

		// ==================== WEBSOCKET (PUBLIC - Auth via first message) ====================
		ws := v1.Group("/ws")
		{
			ws.GET("/live", s.wsLiveConnection)
			ws.GET("/status", s.authService.AuthMiddleware(), auth.RequirePermission(auth.PermViewer), s.wsStatus)
		}
	}
}

// WebSocket handlers
func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}

func (s *Server) wsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.wsHub.GetClientCount(),
	})
}

// Health check (public)
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}
