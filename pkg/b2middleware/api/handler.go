// Package api exposes the dispatcher over HTTP so a fetcher in another
// process can run its requests through it.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"

	"github.com/sphen13/B2-Middleware/pkg/b2middleware"
)

// maxBodyBytes bounds process request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes an error
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status      string   `json:"status"`
	Authorizers []string `json:"authorizers"`
}

// Handler serves the dispatcher
type Handler struct {
	dispatcher *b2middleware.Dispatcher
	auth       *jwtauth.JWTAuth
	logger     *slog.Logger
}

// Option configures a Handler
type Option func(*Handler)

// WithJWTSecret requires an HS256 bearer token signed with secret on
// /api/v1 routes. An empty secret leaves them open.
func WithJWTSecret(secret string) Option {
	return func(h *Handler) {
		if secret == "" {
			h.auth = nil
			return
		}
		h.auth = jwtauth.New("HS256", []byte(secret), nil)
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates a handler for dispatcher
func NewHandler(dispatcher *b2middleware.Dispatcher, opts ...Option) *Handler {
	h := &Handler{dispatcher: dispatcher}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Routes sets up the HTTP routes
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(h.logger))
	r.Use(RecoveryMiddleware(h.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		if h.auth != nil {
			r.Use(jwtauth.Verifier(h.auth))
			r.Use(jwtauth.Authenticator)
		}
		r.Post("/process", h.handleProcess)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Authorizers: []string{}}
	for _, a := range h.dispatcher.Authorizers() {
		resp.Authorizers = append(resp.Authorizers, a.Name())
	}
	render.JSON(w, r, resp)
}

// handleProcess takes and returns the request hook shape
// {"url": ..., "additional_headers": {...}}.
func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req b2middleware.Request
	if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes), &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.URL == "" {
		h.writeError(w, r, http.StatusBadRequest, "invalid_request", "url is required")
		return
	}

	render.JSON(w, r, h.dispatcher.ProcessRequest(r.Context(), req))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: ErrorBody{
		Code:      code,
		Message:   message,
		RequestID: RequestIDFromContext(r.Context()),
	}})
}
