package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/nilsaker/hearthkeep/internal/apierr"
	"github.com/nilsaker/hearthkeep/internal/supervisor"
)

// attachReplayBytes bounds the initial log-replay frame sent on connect
// (spec.md §6: "one initial binary frame with the last ≤64 KiB of the log").
const attachReplayBytes = 64 * 1024

// attachSignal is the client→server text-frame payload shape.
type attachSignal struct {
	Signal string `json:"signal"`
}

// attachNotice is the server→client text-frame payload shape.
type attachNotice struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

var signalByName = map[string]syscall.Signal{
	"INT":  syscall.SIGINT,
	"TERM": syscall.SIGTERM,
	"KILL": syscall.SIGKILL,
}

func (h *handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkOrigin,
	}
}

func (h *handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients (CLI attachers) legitimately omit Origin.
		return true
	}
	for _, allowed := range h.d.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return len(h.d.CORSOrigins) == 0
}

// attach upgrades to a WebSocket and implements the bidirectional terminal
// protocol of spec.md §6: binary frames carry raw PTY bytes in both
// directions; client text frames are signal requests; server text frames
// are JSON notices.
func (h *handler) attach(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !allowedService(r, id) {
		writeCoreError(w, apierr.Forbiddenf("not permitted to access service "+id))
		return
	}

	ah, err := h.d.Manager.Attach(id)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		h.d.Log.Warn().Err(err).Str("service_id", id).Msg("attach: websocket upgrade failed")
		return
	}
	defer conn.Close()
	defer ah.Output.Close()

	if backlog, err := h.d.Manager.TailRaw(id, attachReplayBytes); err == nil && len(backlog) > 0 {
		_ = conn.WriteMessage(websocket.BinaryMessage, backlog)
	}

	done := make(chan struct{})
	go h.attachReadPump(conn, ah, done)
	h.attachWritePump(conn, ah, done)
}

// attachReadPump handles client→server frames until the connection closes
// or the manager's output subscription is torn down: binary frames are
// forwarded to the PTY's input channel, text frames are decoded as signal
// requests and sent directly to the root PID (not the process tree — a
// signal, unlike kill(), is meant for the foreground process itself).
func (h *handler) attachReadPump(conn *websocket.Conn, ah supervisor.AttachHandle, done chan struct{}) {
	defer close(done)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		switch msgType {
		case websocket.BinaryMessage:
			select {
			case ah.Input <- data:
			case <-done:
				return
			}
		case websocket.TextMessage:
			var sig attachSignal
			if err := json.Unmarshal(data, &sig); err != nil {
				continue
			}
			if s, ok := signalByName[sig.Signal]; ok {
				_ = syscall.Kill(ah.PID, s)
			}
		}
	}
}

// attachWritePump pumps live PTY output (and lag notices) to the client
// until the read pump signals done or the subscription channel closes.
func (h *handler) attachWritePump(conn *websocket.Conn, ah supervisor.AttachHandle, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case chunk, ok := <-ah.Output.C():
			if !ok {
				return
			}
			if chunk.Lagged > 0 {
				writeNotice(conn, "notice", fmt.Sprintf("dropped %d messages", chunk.Lagged))
				continue
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, chunk.Data); err != nil {
				return
			}
		}
	}
}

func writeNotice(conn *websocket.Conn, kind, msg string) {
	b, err := json.Marshal(attachNotice{Type: kind, Message: msg})
	if err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, b)
}
