package kvnode

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"kvring/pkg/client"
)

const (
	contentTypeJSON        = "application/json"
	defaultHTTPPort        = "7001"
	defaultShutdownTimeout = time.Second * 5
	maxBodyBytes           = 1 << 20
)

// Server exposes a Store over HTTP.
type Server struct {
	store      *Store
	password   string
	httpServer *http.Server
	URL        string
	addr       string
}

// NewServer creates a server for store listening on host:port.
func NewServer(store *Store, host, port, password string) *Server {
	if port == "" {
		port = defaultHTTPPort
	}
	urlHost := host
	if urlHost == "" || urlHost == "0.0.0.0" {
		urlHost = "localhost"
	}
	return &Server{
		store:    store,
		password: password,
		URL:      "http://" + urlHost + ":" + port,
		addr:     host + ":" + port,
	}
}

// Handler builds the chi router; usable with httptest.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/api/cmd", s.handleCommand)

	return r
}

// Start starts the server in the background.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: time.Second,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("kvnode HTTP server error", "error", err)
		}
	}()

	slog.Info("kvnode HTTP server started", "addr", s.URL, "databases", s.store.Databases())
	return nil
}

// Stop stops the server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Error encoding response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, NewOKResponse())
}

func (s *Server) authorized(r *http.Request) bool {
	if s.password == "" {
		return true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(token), []byte(s.password)) == 1
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.writeJSON(w, http.StatusUnauthorized, NewErrorResponse("NOAUTH Authentication required"))
		return
	}

	db := 0
	if raw := r.Header.Get(client.HeaderDB); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("invalid DB index"))
			return
		}
		db = n
	}

	var req client.CommandRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Failed to decode command"))
		return
	}
	if req.Name == "" {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing command name"))
		return
	}

	value, err := s.store.Execute(db, req.Name, req.Args)
	if err != nil {
		slog.Debug("command failed", "command", req.Name, "db", db, "error", err)
		s.writeJSON(w, http.StatusUnprocessableEntity, NewErrorResponse(err.Error()))
		return
	}

	s.writeJSON(w, http.StatusOK, NewValueResponse(value))
}
