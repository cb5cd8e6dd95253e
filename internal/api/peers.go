package api

import (
	"net/http"
	"sort"
)

type peerVM struct {
	PeerID    string `json:"peer_id"`
	Label     string `json:"label"`
	Reachable bool   `json:"reachable"`
	LastSeen  int64  `json:"last_seen"` // unix millis
}

func registerPeers(mux *http.ServeMux, d Deps) {
	handleGet(mux, "/api/peers", func(w http.ResponseWriter, r *http.Request) {
		snap := d.Peers.Snapshot()
		out := make([]peerVM, 0, len(snap))
		for id, p := range snap {
			out = append(out, peerVM{
				PeerID:    id,
				Label:     p.Label,
				Reachable: p.Reachable,
				LastSeen:  p.LastSeen.UnixMilli(),
			})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].PeerID < out[j].PeerID })
		writeJSON(w, out)
	})
}
