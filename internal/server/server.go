// Package server exposes the session service over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/lox/blackjack/internal/session"
)

const shutdownTimeout = 5 * time.Second

// Server serves the blackjack action API
type Server struct {
	addr     string
	service  *session.Service
	logger   *log.Logger
	router   *gin.Engine
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	connections map[*Connection]bool
	nextConn    atomic.Uint64
	unsubscribe func()
}

// NewServer creates a server for service. Round events are pushed to every
// WebSocket connection watching the round.
func NewServer(addr string, service *session.Service, logger *log.Logger) *Server {
	s := &Server{
		addr:    addr,
		service: service,
		logger:  logger.WithPrefix("server"),
		upgrader: websocket.Upgrader{
			// Clients are not browsers bound to a single origin
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
	}
	s.router = s.routes()
	s.unsubscribe = service.Subscribe(s.broadcast)
	return s
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on l until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Starting server", "addr", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.Stop()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Start listens on the configured address and serves until ctx is done
func (s *Server) Start(ctx context.Context) error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Stop closes every WebSocket connection and stops event delivery
func (s *Server) Stop() {
	s.unsubscribe()

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.connections {
		_ = conn.Close()
	}
	s.connections = make(map[*Connection]bool)
}

// ConnectionCount returns the number of open WebSocket connections
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
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
	s.logger.Info("Client disconnected", "total", total)
}

// broadcast forwards a round event to the connections watching it. It runs
// with the round locked, so delivery never blocks.
func (s *Server) broadcast(ev session.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for conn := range s.connections {
		conn.Notify(ev)
	}
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	origin := "ws-" + strconv.FormatUint(s.nextConn.Add(1), 10)
	conn := NewConnection(ws, origin, s.logger, s.service)
	s.register(conn)
	conn.Start()

	go func() {
		<-conn.Done()
		s.unregister(conn)
	}()
}
