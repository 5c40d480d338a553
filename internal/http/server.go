// Package http is the gateway: it exposes the cluster router over HTTP.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kvring/pkg/client"
	"kvring/pkg/cluster"
)

const (
	contentTypeJSON          = "application/json"
	defaultHTTPPort          = 8080
	defaultReadHeaderTimeout = time.Second
	defaultShutdownTimeout   = time.Second * 5
	maxBodyBytes             = 1 << 20
	compressionLevel         = 3
)

var errNoRouter = errors.New("router is not ready")

// Server represents the HTTP gateway in front of the router
type Server struct {
	holder   *cluster.Holder
	gatherer prometheus.Gatherer

	readHeaderTimeout time.Duration
	shutdownTimeout   time.Duration

	httpServer *http.Server
	URL        string
	addr       string
}

// NewServer creates a gateway serving the router currently held by holder.
// A nil gatherer exposes prometheus.DefaultGatherer; zero timeouts take the defaults.
func NewServer(holder *cluster.Holder, gatherer prometheus.Gatherer, port int, readHeaderTimeout, shutdownTimeout time.Duration) *Server {
	if port == 0 {
		port = defaultHTTPPort
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = defaultReadHeaderTimeout
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	p := strconv.Itoa(port)
	return &Server{
		holder:            holder,
		gatherer:          gatherer,
		readHeaderTimeout: readHeaderTimeout,
		shutdownTimeout:   shutdownTimeout,
		URL:               "http://localhost:" + p,
		addr:              ":" + p,
	}
}

// Handler builds the chi router; usable with httptest.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// JSON-ответы сжимаются zstd (или gzip/deflate) по Accept-Encoding
	compressor := middleware.NewCompressor(compressionLevel, contentTypeJSON)
	compressor.SetEncoder("zstd", newZstdEncoder)
	r.Use(compressor.Handler)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/cmd", s.handleCommand)
		r.Post("/all", s.handleAll)
		r.Get("/hash", s.handleHash)
		r.Get("/clients", s.handleClients)
	})

	return r
}

// Start starts the server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.readHeaderTimeout,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("HTTP server started", "addr", s.URL)
	return nil
}

// Stop stops the server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func newZstdEncoder(w io.Writer, level int) io.Writer {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		slog.Warn("zstd encoder", "error", err)
		return nil
	}
	return enc
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Error encoding response", "error", err)
	}
}

// statusFor maps router and client errors to HTTP statuses.
func statusFor(err error) int {
	var serverErr *client.ServerError
	var transportErr *client.TransportError
	switch {
	case errors.Is(err, cluster.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, cluster.ErrConfiguration), errors.Is(err, errNoRouter):
		return http.StatusServiceUnavailable
	case errors.As(err, &serverErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &transportErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusFor(err), NewErrorResponse(err.Error()))
}

func (s *Server) router() (*cluster.Router, error) {
	r := s.holder.Load()
	if r == nil {
		return nil, errNoRouter
	}
	return r, nil
}

func (s *Server) decodeCommand(w http.ResponseWriter, r *http.Request) (client.CommandRequest, bool) {
	var req client.CommandRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Failed to decode command"))
		return req, false
	}
	if req.Name == "" {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing command name"))
		return req, false
	}
	return req, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.router(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewOKResponse())
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCommand(w, r)
	if !ok {
		return
	}
	rt, err := s.router()
	if err != nil {
		s.writeError(w, err)
		return
	}

	value, err := rt.Execute(r.Context(), req.Name, req.Args...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewValueResponse(value))
}

// handleAll отдаёт частичные результаты вместе с первой ошибкой
func (s *Server) handleAll(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCommand(w, r)
	if !ok {
		return
	}
	rt, err := s.router()
	if err != nil {
		s.writeError(w, err)
		return
	}

	values, err := rt.All(r.Context(), req.Name, req.Args...)
	if err != nil {
		s.writeJSON(w, statusFor(err), Response{Status: StatusError, Value: values, Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, NewValueResponse(values))
}

func (s *Server) handleHash(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing key"))
		return
	}
	rt, err := s.router()
	if err != nil {
		s.writeError(w, err)
		return
	}

	idx, err := rt.Hash(key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	c, err := rt.ClientAt(idx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, HashResponse{Key: key, Index: idx, Client: c.Addr()})
}

func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	rt, err := s.router()
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := ClientsResponse{RingPoints: rt.RingSize()}
	for i, c := range rt.Clients() {
		resp.Clients = append(resp.Clients, ClientInfo{Index: i, Addr: c.Addr()})
	}
	if m, ok := rt.Master(); ok {
		resp.Master = m.Addr()
	}
	s.writeJSON(w, http.StatusOK, resp)
}
