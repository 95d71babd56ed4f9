// Package api exposes the decision pipeline over HTTP: on-demand analysis,
// backtest runs, and a websocket stream of emitted decisions.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"trading-decision-bot/internal/backtest"
	"trading-decision-bot/internal/engine"
	"trading-decision-bot/internal/events"
	"trading-decision-bot/internal/market"
)

// Config holds HTTP server settings
type Config struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
	ProductionMode bool     `json:"production_mode"`
}

// DefaultConfig returns development server defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000"},
	}
}

// Validate checks the configuration at startup
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Port)
	}
	return nil
}

// Server is the HTTP API server
type Server struct {
	config     Config
	router     *gin.Engine
	httpServer *http.Server
	engine     *engine.Engine
	backtester *backtest.Engine
	data       market.MarketDataSource
	hub        *Hub
	bus        *events.Bus
	logger     zerolog.Logger
}

// NewServer creates the API server and wires its routes. The hub starts
// consuming bus events immediately.
func NewServer(config Config, eng *engine.Engine, backtester *backtest.Engine,
	data market.MarketDataSource, bus *events.Bus, logger zerolog.Logger) *Server {

	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:     config,
		router:     gin.New(),
		engine:     eng,
		backtester: backtester,
		data:       data,
		hub:        NewHub(logger),
		bus:        bus,
		logger:     logger.With().Str("component", "api").Logger(),
	}

	s.router.Use(gin.Recovery())
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s.routes()

	go s.hub.Run()
	bus.SubscribeAll(s.hub.BroadcastEvent)

	return s
}

func (s *Server) routes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/analysis/:symbol", s.handleAnalysis)
		v1.POST("/backtest", s.handleBacktest)
	}
}

// Run starts serving and blocks until the listener fails or Shutdown is
// called.
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
