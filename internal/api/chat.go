package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/YogyashriPatil/fullstack-chat-app/internal/chat"
)

func registerChat(mux *http.ServeMux, d Deps) {
	// GET /api/chat/history?peer={id}&limit={n}
	handleGet(mux, "/api/chat/history", func(w http.ResponseWriter, r *http.Request) {
		peerID := r.URL.Query().Get("peer")
		if peerID == "" {
			http.Error(w, "missing peer", http.StatusBadRequest)
			return
		}
		limit := 200
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		msgs, err := d.Chat.Conversation(peerID, limit)
		if err != nil {
			http.Error(w, fmt.Sprintf("load history: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, msgs)
	})

	// POST /api/chat/send
	handlePost(mux, "/api/chat/send", func(w http.ResponseWriter, r *http.Request, req struct {
		To         string `json:"to"`
		Content    string `json:"content"`
		Attachment string `json:"attachment"`
	}) {
		if req.To == "" {
			http.Error(w, "missing to", http.StatusBadRequest)
			return
		}
		msg, err := d.Chat.Send(r.Context(), req.To, req.Content, req.Attachment)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, chat.ErrEmptyMessage) {
				status = http.StatusBadRequest
			}
			http.Error(w, fmt.Sprintf("send message: %v", err), status)
			return
		}
		writeJSON(w, msg)
	})

	// POST /api/chat/delete
	handlePost(mux, "/api/chat/delete", func(w http.ResponseWriter, r *http.Request, req struct {
		ID string `json:"id"`
	}) {
		if req.ID == "" {
			http.Error(w, "missing id", http.StatusBadRequest)
			return
		}
		if err := d.Chat.DeleteMessage(req.ID); err != nil {
			http.Error(w, fmt.Sprintf("delete message: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	})

	// POST /api/chat/clear
	handlePost(mux, "/api/chat/clear", func(w http.ResponseWriter, r *http.Request, req struct {
		Peer string `json:"peer"`
	}) {
		if req.Peer == "" {
			http.Error(w, "missing peer", http.StatusBadRequest)
			return
		}
		if err := d.Chat.ClearConversation(req.Peer); err != nil {
			http.Error(w, fmt.Sprintf("clear conversation: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"status": "cleared"})
	})
}
