package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nilsaker/hearthkeep/internal/apierr"
	"github.com/nilsaker/hearthkeep/internal/scheduler"
	"github.com/nilsaker/hearthkeep/internal/supervisor"
)

func (h *handler) getSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !allowedService(r, id) {
		writeCoreError(w, apierr.NotFoundf(id))
		return
	}
	m, err := h.d.Manager.LoadService(id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	if m.Schedule == nil {
		writeJSON(w, http.StatusOK, supervisor.Schedule{})
		return
	}
	writeJSON(w, http.StatusOK, *m.Schedule)
}

func (h *handler) putSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !allowedService(r, id) {
		writeCoreError(w, apierr.NotFoundf(id))
		return
	}
	var sch supervisor.Schedule
	if err := decodeJSON(r, &sch); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if sch.Enabled {
		if err := scheduler.ValidateCron(sch.Cron); err != nil {
			writeCoreError(w, err)
			return
		}
	}

	m, err := h.d.Manager.LoadService(id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	m.Schedule = &sch
	if err := h.d.Manager.UpdateService(id, m); err != nil {
		writeCoreError(w, err)
		return
	}
	if err := h.d.Scheduler.Upsert(id, sch); err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sch)
}

type validateScheduleRequest struct {
	Cron string `json:"cron"`
}

type validateScheduleResponse struct {
	Valid    bool        `json:"valid"`
	NextRuns []string    `json:"next_runs,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// validateSchedule returns {valid, next_runs[5]} without touching any
// stored manifest (spec.md §6 "validate_cron").
func (h *handler) validateSchedule(w http.ResponseWriter, r *http.Request) {
	var req validateScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := scheduler.ValidateCron(req.Cron); err != nil {
		writeJSON(w, http.StatusOK, validateScheduleResponse{Valid: false, Error: err.Error()})
		return
	}
	runs, err := scheduler.NextRuns(req.Cron, 5)
	if err != nil {
		writeJSON(w, http.StatusOK, validateScheduleResponse{Valid: false, Error: err.Error()})
		return
	}
	out := make([]string, len(runs))
	for i, t := range runs {
		out[i] = t.Format("2006-01-02T15:04:05Z07:00")
	}
	writeJSON(w, http.StatusOK, validateScheduleResponse{Valid: true, NextRuns: out})
}
