package api

import (
	"net/http"

	"github.com/seantiz/fam/internal/runner"
)

type listActionsResponse struct {
	Actions []string `json:"actions"`
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	names := s.catalog.List()
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, http.StatusOK, listActionsResponse{Actions: names})
}

type runnerResponse struct {
	runner.Stats
	PurgePolicy string `json:"purge_policy"`
}

func (s *Server) handleGetRunner(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, runnerResponse{
		Stats:       s.runner.Stats(),
		PurgePolicy: s.tasks.Policy().String(),
	})
}
