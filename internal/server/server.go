// Package server exposes the HTTP API: job submission and inspection for
// clients, and the pending/claim/complete contract for remote workers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"spectra/internal/config"
	"spectra/internal/dispatch"
	"spectra/internal/jobs"
	"spectra/internal/logging"
	"spectra/internal/storage"
	"spectra/internal/workqueue"
)

const (
	// maxUploadBytes caps the total request body on multipart endpoints.
	maxUploadBytes = 8 << 30
	// multipartMemoryBytes is the form parser's in-memory budget; larger
	// file parts spill to disk.
	multipartMemoryBytes = 32 << 20
)

// Server serves the HTTP API over the job store and dispatcher.
type Server struct {
	cfg        *config.Config
	store      *jobs.Store
	files      *storage.Manager
	dispatcher *dispatch.Dispatcher
	queue      *workqueue.Service
	logger     *slog.Logger

	uploadLimit int64

	listener net.Listener
	server   *http.Server
}

// New wires the API server. The returned server does not listen until Start.
func New(cfg *config.Config, store *jobs.Store, files *storage.Manager, dispatcher *dispatch.Dispatcher, queue *workqueue.Service, logger *slog.Logger) *Server {
	srv := &Server{
		cfg:         cfg,
		store:       store,
		files:       files,
		dispatcher:  dispatcher,
		queue:       queue,
		logger:      logging.WithComponent(logger, "api-server"),
		uploadLimit: maxUploadBytes,
	}

	mux := http.NewServeMux()
	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return authMiddleware(cfg.Paths.APIToken, next)
	}

	mux.HandleFunc("POST /api/v1/jobs", auth(srv.handleSubmit))
	mux.HandleFunc("GET /api/v1/jobs", auth(srv.handleList))
	mux.HandleFunc("GET /api/v1/jobs/{id}", auth(srv.handleGet))
	mux.HandleFunc("GET /api/v1/jobs/{id}/report", auth(srv.handleReport))
	mux.HandleFunc("GET /api/v1/jobs/{id}/visual", auth(srv.handleVisual))
	mux.HandleFunc("GET /api/v1/jobs/{id}/video", auth(srv.handleVideo))
	mux.HandleFunc("DELETE /api/v1/jobs/batch", auth(srv.handleBatchDelete))
	mux.HandleFunc("DELETE /api/v1/jobs/{id}", auth(srv.handleDelete))
	mux.HandleFunc("POST /api/v1/jobs/{id}/fix", auth(srv.handleFix))
	mux.HandleFunc("GET /api/v1/jobs/{id}/fixed-download", auth(srv.handleFixedDownload))

	mux.HandleFunc("GET /api/v1/queue/pending", auth(srv.handlePending))
	mux.HandleFunc("POST /api/v1/queue/{id}/claim", auth(srv.handleClaim))
	mux.HandleFunc("POST /api/v1/queue/{id}/complete", auth(srv.handleComplete))
	mux.HandleFunc("POST /api/v1/queue/{id}/complete-fix", auth(srv.handleCompleteFix))

	mux.HandleFunc("GET /api/v1/status", auth(srv.handleStatus))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start binds the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Paths.APIBind)
	if bind == "" {
		return errors.New("api bind address not configured")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, draining in-flight requests briefly.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// authMiddleware validates bearer tokens. An empty token disables
// authentication and all requests pass through.
func authMiddleware(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		if strings.TrimPrefix(auth, "Bearer ") != token {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseUpload enforces the request body ceiling and parses the multipart
// form, writing the error response itself; the return reports whether the
// caller may proceed.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.uploadLimit)
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		s.writeError(w, http.StatusBadRequest, "invalid multipart request")
		return false
	}
	return true
}

// pathID parses the {id} segment of the request path.
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// loadJob fetches a job and writes the appropriate error response on
// failure; the second return reports whether the caller may proceed.
func (s *Server) loadJob(w http.ResponseWriter, r *http.Request) (*jobs.Job, bool) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return nil, false
	}
	job, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return nil, false
	}
	return job, true
}
