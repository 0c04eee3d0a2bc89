package api

import (
	"context"
	"net/http"

	"github.com/seantiz/fam/internal/model"
)

type statsResponse struct {
	Tasks *model.StatisticsTable `json:"tasks"`
	Total int                    `json:"total"`
}

type failuresResponse struct {
	Failures *model.FailureTable `json:"failures"`
	Total    int                 `json:"total"`
}

type purgeResponse struct {
	Removed   []string `json:"removed"`
	Remaining int      `json:"remaining"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	table, err := s.tasks.StatisticsSnapshot()
	if err != nil {
		s.logger.Error("statistics snapshot", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to aggregate statistics")
		return
	}
	s.writeJSON(w, http.StatusOK, statsResponse{Tasks: table, Total: table.Len()})
}

func (s *Server) handleGetFailures(w http.ResponseWriter, r *http.Request) {
	table, err := s.tasks.FailuresSnapshot()
	if err != nil {
		s.logger.Error("failures snapshot", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to aggregate failures")
		return
	}
	s.writeJSON(w, http.StatusOK, failuresResponse{Failures: table, Total: table.Len()})
}

// handlePurge runs one sweep. Archival outlives a disconnecting client.
func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	removed := s.tasks.PurgeCompleted(context.WithoutCancel(r.Context()))
	if removed == nil {
		removed = []string{}
	}
	s.writeJSON(w, http.StatusOK, purgeResponse{Removed: removed, Remaining: s.tasks.Len()})
}
