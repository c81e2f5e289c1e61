// Package server exposes a running agent over HTTP: health, chat, resume,
// and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/agent"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/model"
	"github.com/ashwin-gangadhar-mdb/maap-agent-builder/graph/store"
)

// Server routes HTTP requests to one compiled agent graph.
type Server struct {
	exec      *graph.Executor
	agentType agent.Type
	limit     int
	timeout   time.Duration
	logger    *slog.Logger
	registry  *prometheus.Registry
	router    chi.Router
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the request logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRecursionLimit sets the per-run node application cap passed to the
// executor. 0 keeps the engine default.
func WithRecursionLimit(limit int) Option {
	return func(s *Server) { s.limit = limit }
}

// WithRunTimeout bounds each chat turn by a wall-clock deadline. 0 (the
// default) leaves runs bounded only by the request context.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithRegistry sets the Prometheus registry served at /metrics. Defaults
// to a fresh registry; pass the one the executor metrics are registered
// in.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// New creates a server around an executor. The agent type decides how the
// chat message maps onto the graph's entry state.
func New(exec *graph.Executor, agentType agent.Type, opts ...Option) *Server {
	s := &Server{
		exec:      exec,
		agentType: agentType,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Post("/chat", s.handleChat)
	r.Post("/resume", s.handleResume)
	r.Get("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP)
	s.router = r
	return s
}

// Handler returns the HTTP handler for mounting or serving.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe blocks serving on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("agent server listening", "addr", addr, "agent_type", string(s.agentType))
	return http.ListenAndServe(addr, s.router)
}

type chatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id"`
}

type chatResponse struct {
	Response string `json:"response"`
	ThreadID string `json:"thread_id"`
}

type errorResponse struct {
	Error string `json:"error"`
	Node  string `json:"node,omitempty"`
	Step  int    `json:"step,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"agent_loaded": true,
		"agent_type":   string(s.agentType),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing required field: message"})
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = uuid.NewString()
	}

	cfg := graph.RunConfig{
		ThreadID:       req.ThreadID,
		UserID:         req.UserID,
		RecursionLimit: s.limit,
	}
	entry, err := s.entryState(r.Context(), req.ThreadID, req.Message)
	if err != nil {
		s.writeRunError(w, req.ThreadID, err)
		return
	}
	var final graph.State
	if s.timeout > 0 {
		final, err = s.exec.RunWithTimeout(r.Context(), s.timeout, entry, cfg)
	} else {
		final, err = s.exec.Run(r.Context(), entry, cfg)
	}
	if err != nil {
		s.writeRunError(w, req.ThreadID, err)
		return
	}
	s.logger.Info("chat turn complete", "thread_id", req.ThreadID)
	writeJSON(w, http.StatusOK, chatResponse{
		Response: responseFrom(final),
		ThreadID: req.ThreadID,
	})
}

type resumeRequest struct {
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id"`
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	var req resumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.ThreadID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing required field: thread_id"})
		return
	}

	cfg := graph.RunConfig{
		ThreadID:       req.ThreadID,
		UserID:         req.UserID,
		RecursionLimit: s.limit,
	}
	final, err := s.exec.Resume(r.Context(), cfg)
	if err != nil {
		s.writeRunError(w, req.ThreadID, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Response: responseFrom(final),
		ThreadID: req.ThreadID,
	})
}

// entryState maps one user message onto the agent's entry state. The
// reflect and plan-execute graphs take the objective as input; the
// conversational graphs take it as a message appended to the thread's
// prior conversation, so every turn sees what came before it.
func (s *Server) entryState(ctx context.Context, threadID, message string) (graph.State, error) {
	switch s.agentType {
	case agent.TypeReflect, agent.TypePlanExecuteReplan:
		return graph.State{"input": message}, nil
	}
	history, err := s.threadHistory(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return graph.State{
		"messages": append(history, model.Message{Role: model.RoleUser, Content: message}),
	}, nil
}

// threadHistory restores the messages of a thread's latest checkpoint. A
// thread with no checkpoints yet has no history.
func (s *Server) threadHistory(ctx context.Context, threadID string) ([]model.Message, error) {
	prior, err := s.exec.LatestState(ctx, threadID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var msgs []model.Message
	if err := graph.Decode(prior, "messages", &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *Server) writeRunError(w http.ResponseWriter, threadID string, err error) {
	var recursionErr *graph.RecursionLimitError
	var nodeErr *graph.NodeError
	var contextErr *graph.MissingContextError
	switch {
	case errors.As(err, &contextErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &recursionErr):
		s.logger.Warn("run hit recursion limit", "thread_id", threadID, "limit", recursionErr.Limit)
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: err.Error(),
			Step:  recursionErr.LastStep,
		})
	case errors.As(err, &nodeErr):
		s.logger.Error("run failed", "thread_id", threadID, "node", nodeErr.Node, "step", nodeErr.Step, "err", nodeErr.Err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: err.Error(),
			Node:  nodeErr.Node,
			Step:  nodeErr.Step,
		})
	default:
		s.logger.Error("run failed", "thread_id", threadID, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

// responseFrom derives the user-visible reply from a final state: an
// explicit response field when the graph sets one, otherwise the newest
// message's content.
func responseFrom(state graph.State) string {
	if resp := graph.StringValue(state, "final_response"); resp != "" {
		return resp
	}
	if resp := graph.StringValue(state, "response"); resp != "" {
		return resp
	}
	var msgs []model.Message
	if err := graph.Decode(state, "messages", &msgs); err == nil && len(msgs) > 0 {
		return msgs[len(msgs)-1].Content
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
