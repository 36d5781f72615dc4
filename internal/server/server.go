package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// Server serves the REST API and the WebSocket subscription endpoint
type Server struct {
	addr        string
	engine      *gin.Engine
	upgrader    websocket.Upgrader
	connections map[*Connection]bool
	handlers    map[MessageType]messageHandler
	logger      *log.Logger
	clock       quartz.Clock
	mu          sync.RWMutex
	gameService *GameService
}

var ginMode sync.Once

// NewServer creates a server for gameService listening on addr
func NewServer(addr string, gameService *GameService, logger *log.Logger, clock quartz.Clock) *Server {
	ginMode.Do(func() { gin.SetMode(gin.ReleaseMode) })

	s := &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Any page may watch a table
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
		logger:      logger.WithPrefix("server"),
		clock:       clock,
		gameService: gameService,
	}
	s.handlers = s.messageHandlers()
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Starting server", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.closeConnections()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.handleHealth)
	r.GET("/ws", s.handleWebSocket)

	api := r.Group("/api/tables")
	api.POST("", handle(s, s.createTable, nil))
	api.GET("/:id", handle(s, s.getTable, func(c *gin.Context, req *TableRefData) {
		req.TableID = c.Param("id")
	}))
	api.POST("/:id/join", handle(s, s.joinTable, func(c *gin.Context, req *JoinTableData) {
		req.TableID = c.Param("id")
	}))
	api.POST("/:id/leave", handle(s, s.leaveTable, func(c *gin.Context, req *LeaveTableData) {
		req.TableID = c.Param("id")
	}))
	api.POST("/:id/start", handle(s, s.startRound, func(c *gin.Context, req *TableRefData) {
		req.TableID = c.Param("id")
	}))
	api.POST("/:id/dealer", handle(s, s.moveDealer, func(c *gin.Context, req *TableRefData) {
		req.TableID = c.Param("id")
	}))
	api.POST("/:id/actions", handle(s, s.playerAction, func(c *gin.Context, req *PlayerActionData) {
		req.TableID = c.Param("id")
	}))
	api.POST("/:id/end", handle(s, s.endRound, func(c *gin.Context, req *EndRoundData) {
		req.TableID = c.Param("id")
	}))
	api.PUT("/:id/players/:pid/chips", handle(s, s.updateChips, func(c *gin.Context, req *UpdateChipsData) {
		req.TableID = c.Param("id")
		req.PlayerID = c.Param("pid")
	}))
	api.PUT("/:id/players/:pid/active", handle(s, s.setActive, func(c *gin.Context, req *SetActiveData) {
		req.TableID = c.Param("id")
		req.PlayerID = c.Param("pid")
	}))
	api.PUT("/:id/blinds", handle(s, s.updateBlinds, func(c *gin.Context, req *UpdateBlindsData) {
		req.TableID = c.Param("id")
	}))
	api.PUT("/:id/positions", handle(s, s.updatePositions, func(c *gin.Context, req *UpdatePositionsData) {
		req.TableID = c.Param("id")
	}))

	return r
}

// requestLogger logs each request at debug level
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := s.clock.Now()
		c.Next()
		s.logger.Debug("Request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", s.clock.Since(start))
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s.logger, s.gameService, s.handlers, s.clock)
	s.register(client)
	client.Start()

	go func() {
		<-client.ctx.Done()
		s.unregister(client)
	}()
}

func (s *Server) register(conn *Connection) {
	s.mu.Lock()
	s.connections[conn] = true
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info("Client connected", "total", total)
}

func (s *Server) unregister(conn *Connection) {
	s.mu.Lock()
	delete(s.connections, conn)
	total := len(s.connections)
	s.mu.Unlock()
	_ = conn.Close() // Ignore close errors during unregistration
	s.logger.Info("Client disconnected", "total", total)
}

func (s *Server) closeConnections() {
	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.connections))
	for conn := range s.connections {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close() // Ignore close errors during shutdown
	}
}

// ConnectionCount returns the number of open WebSocket connections
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}
