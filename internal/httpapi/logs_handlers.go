package httpapi

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nilsaker/hearthkeep/internal/apierr"
)

// logs serves either a one-shot base64 snapshot (?tail=N) or a live
// text/event-stream (?follow=true), per spec.md §6.
func (h *handler) logs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !allowedService(r, id) {
		writeCoreError(w, apierr.Forbiddenf("not permitted to access service "+id))
		return
	}

	if r.URL.Query().Get("follow") == "true" {
		h.followLogs(w, r, id)
		return
	}

	tail := 0
	if v := r.URL.Query().Get("tail"); v != "" {
		tail, _ = strconv.Atoi(v)
	}
	data, err := h.d.Manager.TailRaw(id, tail)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"data": base64.StdEncoding.EncodeToString(data)})
}

func (h *handler) followLogs(w http.ResponseWriter, r *http.Request, id string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	backlog, sub, err := h.d.Manager.FollowRaw(id)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if len(backlog) > 0 {
		writeSSEData(w, backlog)
		flusher.Flush()
	}
	if sub == nil {
		// No live registry handle (service not running under this process);
		// backlog is all there is to offer.
		return
	}
	defer sub.Close()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-sub.C():
			if !ok {
				return
			}
			if chunk.Lagged > 0 {
				writeSSENotice(w, fmt.Sprintf("dropped %d messages", chunk.Lagged))
			} else {
				writeSSEData(w, chunk.Data)
			}
			flusher.Flush()
		}
	}
}

func writeSSEData(w http.ResponseWriter, data []byte) {
	fmt.Fprintf(w, "event: data\ndata: %s\n\n", base64.StdEncoding.EncodeToString(data))
}

func writeSSENotice(w http.ResponseWriter, msg string) {
	fmt.Fprintf(w, "event: notice\ndata: %s\n\n", msg)
}
