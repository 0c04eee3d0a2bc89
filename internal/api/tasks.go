package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/seantiz/fam/internal/action"
	"github.com/seantiz/fam/internal/model"
	"github.com/seantiz/fam/internal/registry"
	"github.com/seantiz/fam/internal/runner"
)

const defaultSaveInterval = 10

// createTaskRequest is the JSON body for POST /v1/tasks.
type createTaskRequest struct {
	Label        string   `json:"label"`
	Action       string   `json:"action"`
	Items        []string `json:"items"`
	SaveInterval *int     `json:"save_interval"`
}

type listTasksResponse struct {
	Tasks []string `json:"tasks"`
	Total int      `json:"total"`
}

type taskFailuresResponse struct {
	Name     string          `json:"name"`
	Failures []model.Failure `json:"failures"`
}

// handleCreateTask creates a task, queues its items and seals it.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Label == "" {
		s.writeError(w, http.StatusBadRequest, "label is required")
		return
	}
	if req.Action == "" {
		s.writeError(w, http.StatusBadRequest, "action is required")
		return
	}

	saveInterval := defaultSaveInterval
	if req.SaveInterval != nil {
		saveInterval = *req.SaveInterval
	}
	if saveInterval < 0 {
		s.writeError(w, http.StatusBadRequest, "save_interval must not be negative")
		return
	}

	fn, err := s.catalog.Resolve(req.Action)
	if errors.Is(err, action.ErrUnknownAction) {
		s.writeError(w, http.StatusBadRequest, "unknown action: "+req.Action)
		return
	}
	if err != nil {
		s.logger.Error("resolve action", "action", req.Action, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to resolve action")
		return
	}

	task, err := s.tasks.Create(r.Context(), req.Label, s.source, saveInterval)
	if errors.Is(err, registry.ErrResourceAcquisition) {
		s.logger.Warn("create task", "label", req.Label, "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "resource session unavailable")
		return
	}
	if err != nil {
		s.logger.Error("create task", "label", req.Label, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	err = task.SubmitAll(req.Items, fn)
	// Seal even on a partial submission so the task can still complete
	// and be purged.
	task.Seal()
	if errors.Is(err, runner.ErrClosed) {
		s.logger.Warn("submit items", "task", task.Name(), "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "runner is shutting down")
		return
	}
	if err != nil {
		s.logger.Error("submit items", "task", task.Name(), "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit items")
		return
	}

	s.logger.Info("task created", "task", task.Name(), "action", req.Action, "items", len(req.Items))
	s.writeJSON(w, http.StatusCreated, task.Statistics())
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	names := s.tasks.Names()
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, http.StatusOK, listTasksResponse{Tasks: names, Total: len(names)})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.tasks.Get(nameParam(r))
	if !ok {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	s.writeJSON(w, http.StatusOK, task.Statistics())
}

func (s *Server) handleHasTask(w http.ResponseWriter, r *http.Request) {
	if !s.tasks.Has(nameParam(r)) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetTaskFailures(w http.ResponseWriter, r *http.Request) {
	task, ok := s.tasks.Get(nameParam(r))
	if !ok {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}

	failures := task.Failures()
	if failures == nil {
		failures = []model.Failure{}
	}
	s.writeJSON(w, http.StatusOK, taskFailuresResponse{Name: task.Name(), Failures: failures})
}
