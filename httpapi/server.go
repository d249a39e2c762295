// Package httpapi exposes the question pipeline over HTTP. The surface is a
// single POST endpoint; internal error detail never leaves the server.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/urbanfabric/bizgraph/query"
)

// QueryService answers natural-language questions. *query.Session satisfies
// it.
type QueryService interface {
	Ask(ctx context.Context, question, additionalContext string) (*query.Answer, error)
}

// Server handles the HTTP surface.
type Server struct {
	svc QueryService
	log *slog.Logger
}

// NewServer builds a Server over the given service.
func NewServer(svc QueryService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, log: logger}
}

// Routes assembles the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/api/query", s.handleQuery)
	r.Get("/healthz", s.handleHealth)
	return r
}

type queryRequest struct {
	Query             string `json:"query"`
	AdditionalContext string `json:"additional_context,omitempty"`
}

type answerPayload struct {
	Query            string         `json:"query"`
	Reasoning        string         `json:"reasoning"`
	Interpretation   string         `json:"interpretation"`
	SuggestedQueries []string       `json:"suggested_queries"`
	Visualization    *query.MapSpec `json:"visualization,omitempty"`
}

type queryResponse struct {
	Success bool           `json:"success"`
	Data    *answerPayload `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, queryResponse{Error: "invalid request body"})
		return
	}

	answer, err := s.svc.Ask(r.Context(), req.Query, req.AdditionalContext)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, queryResponse{
		Success: true,
		Data: &answerPayload{
			Query:            answer.Cypher,
			Reasoning:        answer.Reasoning,
			Interpretation:   answer.Interpretation,
			SuggestedQueries: answer.FollowUps,
			Visualization:    answer.Visualization,
		},
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var persistent *query.PersistentInvalidQuery
	switch {
	case errors.Is(err, query.ErrEmptyQuestion):
		s.writeJSON(w, http.StatusBadRequest, queryResponse{Error: "query cannot be empty"})
	case errors.As(err, &persistent):
		// Actionable for the caller: more context may produce a valid query.
		s.writeJSON(w, http.StatusUnprocessableEntity, queryResponse{Error: persistent.Error()})
	default:
		s.log.Error("query processing failed",
			"request_id", middleware.GetReqID(r.Context()), "error", err)
		s.writeJSON(w, http.StatusInternalServerError, queryResponse{Error: "internal server error"})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("writing response failed", "error", err)
	}
}
