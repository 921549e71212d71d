package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nilsaker/hearthkeep/internal/apierr"
	"github.com/nilsaker/hearthkeep/internal/supervisor"
)

// listServices returns every service the caller may see: all of them for
// the dev secret, or the subset in the caller's service_ids otherwise
// (spec.md §6 "list_services (filtered by caller)").
func (h *handler) listServices(w http.ResponseWriter, r *http.Request) {
	views, err := h.d.Manager.ListServices()
	if err != nil {
		writeCoreError(w, err)
		return
	}
	if isDev(r) {
		writeJSON(w, http.StatusOK, views)
		return
	}
	u, _ := userFromCtx(r)
	filtered := make([]supervisor.ServiceView, 0, len(views))
	for _, v := range views {
		if u.HasService(v.Manifest.ID) {
			filtered = append(filtered, v)
		}
	}
	writeJSON(w, http.StatusOK, filtered)
}

// createService defaults clear_log_on_start to true: a decoded zero-value
// Manifest can't distinguish "omitted" from "explicitly false" (spec.md
// §3), and that defaulting responsibility sits with this adapter.
func (h *handler) createService(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	var m supervisor.Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	var raw map[string]json.RawMessage
	_ = json.Unmarshal(body, &raw)
	if _, present := raw["clear_log_on_start"]; !present {
		m.ClearLogOnStart = true
	}

	if err := h.d.Manager.CreateService(m); err != nil {
		writeCoreError(w, err)
		return
	}
	if m.Schedule != nil {
		_ = h.d.Scheduler.Upsert(m.ID, *m.Schedule)
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *handler) getService(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, m)
}

func (h *handler) updateService(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !allowedService(r, id) {
		writeCoreError(w, apierr.NotFoundf(id))
		return
	}
	var m supervisor.Manifest
	if err := decodeJSON(r, &m); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.d.Manager.UpdateService(id, m); err != nil {
		writeCoreError(w, err)
		return
	}
	if m.Schedule != nil {
		_ = h.d.Scheduler.Upsert(id, *m.Schedule)
	} else {
		h.d.Scheduler.Remove(id)
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *handler) deleteService(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !allowedService(r, id) {
		writeCoreError(w, apierr.NotFoundf(id))
		return
	}
	if err := h.d.Manager.DeleteService(id); err != nil {
		writeCoreError(w, err)
		return
	}
	h.d.Scheduler.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !allowedService(r, id) {
		writeCoreError(w, apierr.NotFoundf(id))
		return
	}
	st, err := h.d.Manager.Status(id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handler) start(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !allowedService(r, id) {
		writeCoreError(w, apierr.NotFoundf(id))
		return
	}
	st, err := h.d.Manager.Start(id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handler) stop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !allowedService(r, id) {
		writeCoreError(w, apierr.NotFoundf(id))
		return
	}
	if err := h.d.Manager.Stop(id); err != nil {
		writeCoreError(w, err)
		return
	}
	st, err := h.d.Manager.Status(id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handler) shutdown(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !allowedService(r, id) {
		writeCoreError(w, apierr.NotFoundf(id))
		return
	}
	st, err := h.d.Manager.Shutdown(id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handler) kill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !allowedService(r, id) {
		writeCoreError(w, apierr.NotFoundf(id))
		return
	}
	if err := h.d.Manager.Kill(id); err != nil {
		writeCoreError(w, err)
		return
	}
	st, err := h.d.Manager.Status(id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handler) restart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !allowedService(r, id) {
		writeCoreError(w, apierr.NotFoundf(id))
		return
	}
	st, err := h.d.Manager.Restart(id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
