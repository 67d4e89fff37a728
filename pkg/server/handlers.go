package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/metrics"
	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/pipeline"
)

const maxRequestBody = 64 << 10

type queryRequest struct {
	Question string `json:"question"`
	Table    string `json:"table,omitempty"`
}

type summarizeRequest struct {
	Table string `json:"table"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	scope := pipeline.ScopeAll()
	if req.Table != "" {
		scope = pipeline.ScopeTable(req.Table)
	}

	start := time.Now()
	env := s.cfg.Pipeline.Run(r.Context(), pipeline.Request{
		Question: req.Question,
		Scope:    scope,
	})
	metrics.QueryDuration.Observe(time.Since(start).Seconds())

	outcome := "ok"
	if env.Failure != nil {
		outcome = string(env.Failure.Kind)
	}
	metrics.QueriesTotal.WithLabelValues(outcome).Inc()

	s.writeJSON(w, http.StatusOK, env)
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	desc, err := s.cfg.Catalog.Describe(r.Context())
	if err != nil {
		s.log.Error("server: schema introspection failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to describe tables")
		return
	}
	s.writeJSON(w, http.StatusOK, desc)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Table) == "" {
		s.writeError(w, http.StatusBadRequest, "table is required")
		return
	}

	summary, err := s.cfg.Pipeline.Summarize(r.Context(), req.Table)
	if err != nil {
		var kindErr *pipeline.KindError
		if errors.As(err, &kindErr) && kindErr.Kind == pipeline.KindUnknownTable {
			s.writeError(w, http.StatusNotFound, kindErr.Detail)
			return
		}
		s.log.Error("server: summarize failed", "table", req.Table, "error", err)
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("server: failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
