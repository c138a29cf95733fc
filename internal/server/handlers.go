package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/boardgamelab/rulesearch/internal/models"
	"github.com/boardgamelab/rulesearch/internal/query"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "Board Game Rules Search API"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = s.search.DefaultLimit
	}
	if s.search.MaxLimit > 0 && limit > s.search.MaxLimit {
		limit = s.search.MaxLimit
	}

	s.logger.Debug("query request", zap.String("question", req.Question), zap.Int("limit", limit))
	results, err := s.engine.Search(r.Context(), req.Question, limit)
	if err != nil {
		if errors.Is(err, query.ErrInvalidArgument) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "search failed: "+err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, models.QueryResponse{
		Query:        req.Question,
		Results:      results,
		TotalResults: len(results),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	games, err := s.store.CountGames(ctx)
	if err != nil {
		s.logger.Error("status: count games failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rules, err := s.store.CountRules(ctx)
	if err != nil {
		s.logger.Error("status: count rules failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	embedded, err := s.store.CountEmbedded(ctx)
	if err != nil {
		s.logger.Error("status: count embedded failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"games":          games,
		"rules":          rules,
		"rules_embedded": embedded,
		"config": map[string]interface{}{
			"default_limit": s.search.DefaultLimit,
			"max_limit":     s.search.MaxLimit,
		},
	})
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	report, err := s.pipeline.Backfill(r.Context())
	if err != nil {
		s.logger.Error("backfill failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{
		"candidates": report.Candidates,
		"embedded":   report.Embedded,
		"failed":     report.Failed,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
