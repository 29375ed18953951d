package http

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cwygoda/grabber/internal/domain"
)

const maxBodyBytes = 1 << 20

// URLMatcher reports whether a listing URL can be processed.
type URLMatcher interface {
	Accepts(url string) bool
}

// Server is the HTTP adapter for listing submissions.
type Server struct {
	svc     *domain.JobService
	mux     *http.ServeMux
	server  *http.Server
	secret  string
	matcher URLMatcher
	log     *zap.Logger
}

// NewServer creates a new HTTP server. When secret is non-empty,
// submissions must carry a valid X-Signature. A nil matcher accepts
// every URL.
func NewServer(svc *domain.JobService, addr string, secret string, matcher URLMatcher, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		svc:     svc,
		mux:     http.NewServeMux(),
		secret:  secret,
		matcher: matcher,
		log:     log,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /listings", s.handleSubmit)
	s.mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// submitRequest is the request body for POST /listings.
type submitRequest struct {
	URL    string `json:"url"`
	Folder string `json:"folder"`
}

// jobResponse is the JSON response for job endpoints.
type jobResponse struct {
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	Folder    string `json:"folder"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	Saved     int    `json:"saved"`
	Total     int    `json:"total"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// errorResponse is the JSON error response.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if s.secret != "" {
		if err := s.verifySignature(r, body); err != nil {
			s.log.Warn("submission verification failed", zap.Error(err))
			s.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
	}

	var req submitRequest
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if req.Folder == "" {
		s.writeError(w, http.StatusBadRequest, "folder is required")
		return
	}

	if s.matcher != nil && !s.matcher.Accepts(req.URL) {
		s.writeError(w, http.StatusUnprocessableEntity, "no processor for URL")
		return
	}

	job, err := s.svc.Submit(r.Context(), req.URL, req.Folder)
	switch {
	case errors.Is(err, domain.ErrInvalidURL):
		s.writeError(w, http.StatusBadRequest, "invalid URL")
		return
	case errors.Is(err, domain.ErrInvalidFolder):
		s.writeError(w, http.StatusBadRequest, "invalid folder name")
		return
	case err != nil:
		s.log.Error("submit failed", zap.String("url", req.URL), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.log.Info("listing queued", zap.Int64("job_id", job.ID), zap.String("url", job.URL), zap.String("folder", job.Folder))
	s.writeJSON(w, http.StatusCreated, jobToResponse(job))
}

const maxTimestampSkew = 5 * time.Minute

// Signature returns the hex SHA-256 of "timestamp\nbody\nsecret".
func Signature(timestamp string, body []byte, secret string) string {
	payload := fmt.Sprintf("%s\n%s\n%s", timestamp, string(body), secret)
	hash := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(hash[:])
}

func (s *Server) verifySignature(r *http.Request, body []byte) error {
	timestamp := r.Header.Get("X-Timestamp")
	if timestamp == "" {
		return fmt.Errorf("missing X-Timestamp header")
	}

	ts, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return fmt.Errorf("invalid X-Timestamp: must be ISO8601/RFC3339 format")
	}

	skew := time.Since(ts)
	if skew < 0 {
		skew = -skew
	}
	if skew > maxTimestampSkew {
		return fmt.Errorf("X-Timestamp too far from current time (skew: %v, max: %v)", skew.Truncate(time.Second), maxTimestampSkew)
	}

	signature := r.Header.Get("X-Signature")
	if signature == "" {
		return fmt.Errorf("missing X-Signature header")
	}

	expected := Signature(timestamp, body, s.secret)
	if subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) != 1 {
		return fmt.Errorf("invalid signature")
	}

	return nil
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	idStr := r.PathValue("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid job ID")
		return
	}

	job, err := s.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.log.Error("get job failed", zap.Int64("job_id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, jobToResponse(job))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func jobToResponse(job *domain.Job) jobResponse {
	return jobResponse{
		ID:        job.ID,
		URL:       job.URL,
		Folder:    job.Folder,
		Status:    string(job.Status),
		Attempts:  job.Attempts,
		Saved:     job.Saved,
		Total:     job.Total,
		Error:     job.Error,
		CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Port extracts the port from the address.
func (s *Server) Port() int {
	addr := s.server.Addr
	if idx := strings.LastIndex(addr, ":"); idx >= 0 {
		port, _ := strconv.Atoi(addr[idx+1:])
		return port
	}
	return 0
}
