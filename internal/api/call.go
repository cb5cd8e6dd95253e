package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/YogyashriPatil/fullstack-chat-app/internal/call"
	"github.com/YogyashriPatil/fullstack-chat-app/internal/media"
)

func registerCall(mux *http.ServeMux, d Deps) {
	// POST /api/call/start
	handlePost(mux, "/api/call/start", func(w http.ResponseWriter, r *http.Request, req struct {
		PeerID string `json:"peer_id"`
	}) {
		if req.PeerID == "" {
			http.Error(w, "missing peer_id", http.StatusBadRequest)
			return
		}
		s, err := d.Calls.StartCall(r.Context(), req.PeerID)
		if err != nil {
			http.Error(w, fmt.Sprintf("start call: %v", err), callErrorStatus(err))
			return
		}
		writeJSON(w, s.Status())
	})

	// POST /api/call/accept
	handlePost(mux, "/api/call/accept", func(w http.ResponseWriter, r *http.Request, req struct{}) {
		if err := d.Calls.AcceptIncoming(r.Context()); err != nil {
			http.Error(w, fmt.Sprintf("accept call: %v", err), callErrorStatus(err))
			return
		}
		writeJSON(w, map[string]string{"status": "accepted"})
	})

	// POST /api/call/reject
	handlePost(mux, "/api/call/reject", func(w http.ResponseWriter, r *http.Request, req struct{}) {
		if err := d.Calls.RejectIncoming(); err != nil {
			http.Error(w, fmt.Sprintf("reject call: %v", err), callErrorStatus(err))
			return
		}
		writeJSON(w, map[string]string{"status": "rejected"})
	})

	// POST /api/call/end — idempotent, safe with no live call.
	handlePost(mux, "/api/call/end", func(w http.ResponseWriter, r *http.Request, req struct{}) {
		d.Calls.EndCall()
		writeJSON(w, map[string]string{"status": "ended"})
	})

	// GET /api/call/status
	handleGet(mux, "/api/call/status", func(w http.ResponseWriter, r *http.Request) {
		s, ok := d.Calls.Active()
		if !ok {
			writeJSON(w, map[string]string{"state": "idle"})
			return
		}
		writeJSON(w, s.Status())
	})
}

func callErrorStatus(err error) int {
	switch {
	case errors.Is(err, call.ErrCallInProgress):
		return http.StatusConflict
	case errors.Is(err, call.ErrRemoteUnreachable):
		return http.StatusNotFound
	case errors.Is(err, call.ErrNoSuchCall):
		return http.StatusNotFound
	case errors.Is(err, media.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
