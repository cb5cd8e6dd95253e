package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/YogyashriPatil/fullstack-chat-app/internal/call"
	"github.com/YogyashriPatil/fullstack-chat-app/internal/chat"
	"github.com/YogyashriPatil/fullstack-chat-app/internal/state"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	SelfID    string
	SelfLabel func() string
	Peers     *state.PeerTable
	Calls     *call.Manager
	Chat      *chat.Manager
}

// Server is the local HTTP API the UI talks to.
type Server struct {
	deps Deps
	srv  *http.Server
}

func New(addr string, d Deps) *Server {
	mux := http.NewServeMux()

	handleGet(mux, "/api/self", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{
			"peer_id": d.SelfID,
			"label":   d.SelfLabel(),
		})
	})

	registerPeers(mux, d)
	registerCall(mux, d)
	registerChat(mux, d)
	registerEvents(mux, d)

	return &Server{
		deps: d,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() {
	go func() {
		log.Printf("API: listening on http://%s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("API: server stopped: %v", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
