// Package api serves the HTTP and WebSocket control surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/seagrayinc/irremote/pkg/dispatch"
	"github.com/seagrayinc/irremote/pkg/waveform"
)

// Router is satisfied by *router.Router.
type Router interface {
	Route(name string) error
	Actions() []string
	NextChoice(name string) (waveform.Choice, error)
}

// Status is the body of GET /api/status.
type Status struct {
	DeviceOpen bool                   `json:"device_open"`
	Device     string                 `json:"device,omitempty"`
	Stats      dispatch.StatsSnapshot `json:"stats"`
	Clients    int                    `json:"ws_clients"`
}

// StatusFunc reports the daemon state; Clients is filled in by the server.
type StatusFunc func() Status

type Config struct {
	AllowedOrigins []string
	JWTSecret      string // empty disables auth
}

type Server struct {
	router Router
	status StatusFunc
	hub    *Hub
	auth   *Authenticator
	cfg    Config
	logger *slog.Logger

	upgrader websocket.Upgrader
	mux      chi.Router
}

func New(r Router, status StatusFunc, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if status == nil {
		status = func() Status { return Status{} }
	}
	s := &Server{
		router: r,
		status: status,
		hub:    NewHub(logger, 0, 0),
		cfg:    cfg,
		logger: logger,
	}
	if cfg.JWTSecret != "" {
		s.auth = NewAuthenticator(cfg.JWTSecret)
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.setupRoutes()
	return s
}

// Hub is registered as a dispatch observer to stream results.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		if s.auth != nil {
			r.Use(s.auth.Middleware)
		}
		r.Get("/actions", s.handleListActions)
		r.Post("/actions/*", s.handlePress)
		r.Get("/status", s.handleStatus)
		r.Get("/ws", s.handleWS)
	})

	s.mux = r
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type actionInfo struct {
	Name string `json:"name"`
	Next string `json:"next"`
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	names := s.router.Actions()
	out := make([]actionInfo, 0, len(names))
	for _, name := range names {
		next, err := s.router.NextChoice(name)
		if err != nil {
			continue
		}
		out = append(out, actionInfo{Name: name, Next: next.String()})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handlePress(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}

	if err := s.router.Route(name); err != nil {
		if errors.Is(err, waveform.ErrUnknownAction) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "action": name})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.status()
	st.Clients = s.hub.Clients()
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	c := newClient(s.hub, conn, r.RemoteAddr)
	s.hub.register <- c

	go c.writePump()
	go c.readPump(s.router.Route)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
