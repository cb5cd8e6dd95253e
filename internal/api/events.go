package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 65536,
	// The API binds to loopback; UI origins vary (dev server, file://).
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsEvent is the envelope for everything pushed over the websocket feed.
type wsEvent struct {
	Kind    string `json:"kind"` // "call", "chat", "peer"
	Payload any    `json:"payload"`
}

func registerEvents(mux *http.ServeMux, d Deps) {
	// GET /api/call/events — SSE stream of call lifecycle events. Each
	// connection gets its own subscription channel; unsubscribed on
	// disconnect so the manager never accumulates stale listeners.
	handleGet(mux, "/api/call/events", func(w http.ResponseWriter, r *http.Request) {
		sseHeaders(w)
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		evCh := d.Calls.SubscribeEvents()
		defer d.Calls.UnsubscribeEvents(evCh)

		fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"ok\"}\n\n")
		flusher.Flush()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-evCh:
				if !ok {
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: call\ndata: %s\n\n", data)
				flusher.Flush()
			}
		}
	})

	// GET /api/events/ws — websocket feed of call, chat, and peer events.
	handleGet(mux, "/api/events/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("API: websocket upgrade: %v", err)
			return
		}
		defer conn.Close()

		callCh := d.Calls.SubscribeEvents()
		defer d.Calls.UnsubscribeEvents(callCh)
		chatCh := d.Chat.Subscribe()
		defer d.Chat.Unsubscribe(chatCh)
		peerCh := d.Peers.Subscribe()
		defer d.Peers.Unsubscribe(peerCh)

		// Reader goroutine: we never expect client frames, but reading is
		// what surfaces the close.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ctx := r.Context()
		for {
			var ev wsEvent
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case e, ok := <-callCh:
				if !ok {
					return
				}
				ev = wsEvent{Kind: "call", Payload: e}
			case m, ok := <-chatCh:
				if !ok {
					return
				}
				ev = wsEvent{Kind: "chat", Payload: m}
			case p, ok := <-peerCh:
				if !ok {
					return
				}
				ev = wsEvent{Kind: "peer", Payload: p}
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	})
}
