// Package api exposes the HTTP surface backing the Telegram mini-app.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"ludo-table-bot/internal/pkg/db"
	"ludo-table-bot/internal/service"
)

// Server hosts the mini-app API.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	lifecycle  *service.LifecycleService
	ledger     *service.LedgerService
	gateway    service.Gateway
	pool       *db.Pool
	miniAppURL string
}

// NewServer creates the API server and registers its routes.
func NewServer(listen string, lifecycle *service.LifecycleService, ledger *service.LedgerService, gateway service.Gateway, pool *db.Pool, miniAppURL string) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:     router,
		lifecycle:  lifecycle,
		ledger:     ledger,
		gateway:    gateway,
		pool:       pool,
		miniAppURL: miniAppURL,
		httpServer: &http.Server{
			Addr:         listen,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// CORS for the mini-app, which is served from a separate origin inside
	// the Telegram web view.
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	s.router.GET("/healthz", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.POST("/tables", s.handleCreateTable)
		api.GET("/users/:id/balance", s.handleUserBalance)

		admin := api.Group("/admin")
		{
			admin.POST("/initialize", s.handleInitialize)
			admin.POST("/pin-button", s.handlePinButton)
		}
	}
}

// Start begins serving. Blocks until the listener fails or Stop is called.
func (s *Server) Start() error {
	log.Info().Str("listen", s.httpServer.Addr).Msg("Starting API server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("Stopping API server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.pool.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
