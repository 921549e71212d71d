package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nilsaker/hearthkeep/internal/apierr"
	"github.com/nilsaker/hearthkeep/internal/users"
)

// redact strips the bcrypt hash before a user record ever reaches a
// response body.
func redact(u users.User) users.User {
	u.PasswordHash = ""
	return u
}

func redactAll(list []users.User) []users.User {
	out := make([]users.User, len(list))
	for i, u := range list {
		out[i] = redact(u)
	}
	return out
}

// User administration is dev-secret-gated: spec.md doesn't carve out a
// separate admin role, and the dev claim set is the only one with no
// service_ids scoping, so it doubles as the administrative identity.
func requireDev(w http.ResponseWriter, r *http.Request) bool {
	if !isDev(r) {
		writeCoreError(w, apierr.Forbiddenf("admin access required"))
		return false
	}
	return true
}

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	if !requireDev(w, r) {
		return
	}
	list, err := h.d.Users.ListUsers()
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, redactAll(list))
}

type createUserRequest struct {
	Username   string   `json:"username"`
	Password   string   `json:"password"`
	ServiceIDs []string `json:"service_ids"`
}

func (h *handler) createUser(w http.ResponseWriter, r *http.Request) {
	if !requireDev(w, r) {
		return
	}
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	u, err := h.d.Users.CreateUser(req.Username, req.Password, req.ServiceIDs)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, redact(u))
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, ok := userFromCtx(r)
	if !isDev(r) && !(ok && u.ID == id) {
		writeCoreError(w, apierr.Forbiddenf("admin access required"))
		return
	}
	loaded, err := h.d.Users.LoadUser(id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, redact(loaded))
}

type updateUserRequest struct {
	ServiceIDs []string `json:"service_ids"`
}

func (h *handler) updateUser(w http.ResponseWriter, r *http.Request) {
	if !requireDev(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.d.Users.UpdateUser(id, req.ServiceIDs); err != nil {
		writeCoreError(w, err)
		return
	}
	u, err := h.d.Users.LoadUser(id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, redact(u))
}

type changePasswordRequest struct {
	NewPassword string `json:"new_password"`
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, ok := userFromCtx(r)
	if !isDev(r) && !(ok && u.ID == id) {
		writeCoreError(w, apierr.Forbiddenf("admin access required"))
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.d.Users.ChangePassword(id, req.NewPassword); err != nil {
		writeCoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
