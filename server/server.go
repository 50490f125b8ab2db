// Package server exposes the dispatch loop over HTTP: message ingestion,
// health and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/engine"
	"github.com/hupe1980/chatmesh/logging"
)

// maxBodyBytes bounds an inbound request body.
const maxBodyBytes = 64 << 10

// Dispatcher is the engine surface the server needs.
type Dispatcher interface {
	ProcessMessage(ctx context.Context, content, senderID, conversationID string, optFns ...func(o *engine.ProcessOptions)) (*core.AgentResponse, error)
	Health() engine.Health
}

// Options configures the HTTP server.
type Options struct {
	// Logger for request-level events. Defaults to a no-op logger.
	Logger logging.Logger

	// RequestTimeout bounds the processing of one request.
	RequestTimeout time.Duration
}

// Server wraps the chi router around a dispatcher.
type Server struct {
	dispatcher Dispatcher
	logger     logging.Logger
	opts       Options
	router     chi.Router
}

// New constructs the HTTP server.
func New(dispatcher Dispatcher, optFns ...func(o *Options)) *Server {
	opts := Options{
		Logger:         logging.NoOpLogger{},
		RequestTimeout: 60 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	s := &Server{
		dispatcher: dispatcher,
		logger:     opts.Logger,
		opts:       opts,
	}
	s.router = s.routes()
	return s
}

// Handler returns the assembled HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/messages", s.handleMessage)
	})
	return r
}

// messageRequest is the POST /v1/messages body.
type messageRequest struct {
	Content        string            `json:"content"`
	SenderID       string            `json:"sender_id"`
	ConversationID string            `json:"conversation_id"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	resp, err := s.dispatcher.ProcessMessage(r.Context(), req.Content, req.SenderID, req.ConversationID,
		func(o *engine.ProcessOptions) { o.Metadata = req.Metadata })
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := s.dispatcher.Health()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":               "ok",
		"uptime_seconds":       int64(health.Uptime.Seconds()),
		"handlers":             health.Handlers,
		"active_conversations": health.ActiveConversations,
	})
}

// writeError maps dispatch failures onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Message})
	case errors.Is(err, engine.ErrConversationBusy):
		s.writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "conversation is busy, retry shortly"})
	case errors.Is(err, engine.ErrClosed):
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "shutting down"})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		s.writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "request timed out"})
	default:
		s.logger.Error("server.dispatch_failed", "error", err.Error())
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("server.encode_failed", "error", err.Error())
	}
}
