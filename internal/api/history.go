package api

import (
	"errors"
	"net/http"

	"github.com/seantiz/fam/internal/model"
	"github.com/seantiz/fam/internal/store"
)

type listHistoryResponse struct {
	Tasks  []model.HistoryRecord `json:"tasks"`
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

type listEntriesResponse struct {
	Entries []model.Entry `json:"entries"`
	Total   int           `json:"total"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	records, total, err := s.history.ListHistory(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}

	if records == nil {
		records = []model.HistoryRecord{}
	}

	s.writeJSON(w, http.StatusOK, listHistoryResponse{
		Tasks:  records,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	rec, err := s.history.GetHistory(r.Context(), nameParam(r))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "task history not found")
		return
	}
	if err != nil {
		s.logger.Error("get history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get task history")
		return
	}

	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	entries, total, err := s.history.ListEntries(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list entries", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list entries")
		return
	}

	if entries == nil {
		entries = []model.Entry{}
	}

	s.writeJSON(w, http.StatusOK, listEntriesResponse{
		Entries: entries,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}
