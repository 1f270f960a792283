// Package api is the local bridge between a presentation client and the
// session: REST intents and reads under /api/v1, pushed events on /ws.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ramonehamilton/mtg-commander/internal/api/websocket"
	"github.com/ramonehamilton/mtg-commander/internal/session"
)

// Server represents the REST API server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	port       int
	origins    []string

	// WebSocket hub for real-time events
	wsHub *websocket.Hub

	session *session.Session
}

// Config holds configuration for the API server.
type Config struct {
	Port           int
	AllowedOrigins []string // "*" allows any origin
}

// DefaultConfig returns the default API server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:           8090,
		AllowedOrigins: []string{"*"},
	}
}

// NewServer creates a new API server in front of sess and subscribes the
// WebSocket hub to its events.
func NewServer(cfg *Config, sess *session.Session) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	wsHub := websocket.NewHub(origins)
	wsHub.SetGreeting(func() interface{} { return sess.Snapshot() })

	s := &Server{
		router:  chi.NewRouter(),
		port:    cfg.Port,
		origins: origins,
		wsHub:   wsHub,
		session: sess,
	}

	sess.Events().Register(websocket.NewWebSocketObserver(wsHub))

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Content-Type enforcement for POST/PUT/PATCH only (not GET/DELETE/OPTIONS)
	s.router.Use(s.jsonContentTypeMiddleware)
}

// jsonContentTypeMiddleware enforces application/json content-type for requests with bodies.
func (s *Server) jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if contentType == "" || (contentType != "application/json" && !strings.HasPrefix(contentType, "application/json;")) {
				http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the router, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the WebSocket hub and the HTTP listener in the background.
func (s *Server) Start() error {
	go s.wsHub.Run()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("[API] Server starting on port %d", s.port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[API] Server error: %v", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the API server and the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsHub.Stop()
	if s.httpServer == nil {
		return nil
	}

	log.Println("[API] Shutting down server...")
	return s.httpServer.Shutdown(ctx)
}

// Port returns the port the server is configured to listen on.
func (s *Server) Port() int {
	return s.port
}

// WebSocketHub returns the WebSocket hub.
func (s *Server) WebSocketHub() *websocket.Hub {
	return s.wsHub
}
