package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nilsaker/hearthkeep/internal/supervisor"
)

func (h *handler) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.d.Manager.ListGroups()
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var g supervisor.Group
	if err := decodeJSON(r, &g); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.d.Manager.CreateGroup(g); err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *handler) updateGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var g supervisor.Group
	if err := decodeJSON(r, &g); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	g.ID = id
	if err := h.d.Manager.UpdateGroup(g); err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.d.Manager.DeleteGroup(id); err != nil {
		writeCoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reorderGroupsRequest struct {
	IDs []string `json:"ids"`
}

func (h *handler) reorderGroups(w http.ResponseWriter, r *http.Request) {
	var req reorderGroupsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.d.Manager.ReorderGroups(req.IDs); err != nil {
		writeCoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
