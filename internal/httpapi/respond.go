package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/nilsaker/hearthkeep/internal/apierr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeCoreError maps a core-level error to its pinned HTTP status
// (spec.md §7), using the error's own message since, unlike the auth
// middleware, these are not credential-shaped and don't need generic
// flattening.
func writeCoreError(w http.ResponseWriter, err error) {
	kind := apierr.KindOf(err)
	writeError(w, apierr.HTTPStatus(kind), err.Error())
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
