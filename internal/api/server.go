package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"dex-agent-bot/internal/database"
	"dex-agent-bot/internal/events"
	"dex-agent-bot/internal/logging"
	"dex-agent-bot/internal/signals"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// EngineStatus is the slice of the runner the API reports on
type EngineStatus interface {
	Running() bool
}

// BreadthSource exposes the last computed market breadth
type BreadthSource interface {
	LastBreadth() signals.MarketBreadth
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Host           string
	Port           int
	ProductionMode bool
	AllowedOrigins []string
}

// Server is the HTTP/WS surface: read-only status endpoints plus the
// websocket fan-out of the event bus
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	store      database.Store
	engine     EngineStatus
	breadth    BreadthSource
	hub        *WSHub
	logger     *logging.Logger
	startedAt  time.Time
}

// NewServer builds the router and websocket hub
func NewServer(cfg ServerConfig, store database.Store, engine EngineStatus, breadth BreadthSource, bus *events.Bus, logger *logging.Logger) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:    router,
		store:     store,
		engine:    engine,
		breadth:   breadth,
		hub:       NewWSHub(bus, logger),
		logger:    logger.WithComponent("api"),
		startedAt: time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)

	apiGroup := s.router.Group("/api")
	{
		apiGroup.GET("/engine/status", s.handleEngineStatus)
		apiGroup.GET("/agents", s.handleListAgents)
		apiGroup.GET("/agents/:id/positions", s.handleAgentPositions)
	}
}

// Start runs the hub and listener. Blocks until the listener exits.
func (s *Server) Start() error {
	go s.hub.Run()
	s.logger.Info("api server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startedAt).String(),
	})
}

func (s *Server) handleEngineStatus(c *gin.Context) {
	breadth := s.breadth.LastBreadth()
	c.JSON(http.StatusOK, gin.H{
		"running":    s.engine.Running(),
		"ws_clients": s.hub.ClientCount(),
		"breadth":    breadth,
	})
}

func (s *Server) handleListAgents(c *gin.Context) {
	agents, err := s.store.ListActiveAgents(c.Request.Context())
	if err != nil {
		s.logger.Error("list agents failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list agents"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

func (s *Server) handleAgentPositions(c *gin.Context) {
	agentID := c.Param("id")

	agent, err := s.store.GetAgent(c.Request.Context(), agentID)
	if err != nil {
		s.logger.Error("get agent failed", "agent", agentID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load agent"})
		return
	}
	if agent == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}

	positions, err := s.store.ListOpenPositions(c.Request.Context(), agentID)
	if err != nil {
		s.logger.Error("list positions failed", "agent", agentID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list positions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"agent":     agent,
		"positions": positions,
	})
}
