package proto

import "time"

const (
	PresenceTopic = "chatapp.presence.v1"
	MdnsTag       = "chatapp-mdns"

	// Prefix for per-peer signaling inbox topics. Every peer subscribes to
	// its own inbox; call signaling addressed to that peer is published there.
	SignalTopicPrefix = "chatapp.signal.v1."

	// libp2p stream protocol ID for direct chat messages
	ChatProtoID = "/chatapp/chat/1.0.0"
)

const (
	TypeOnline  = "online"
	TypeUpdate  = "update"
	TypeOffline = "offline"
)

// SignalTopic returns the signaling inbox topic name for a peer.
func SignalTopic(peerID string) string {
	return SignalTopicPrefix + peerID
}

// PresenceMsg is broadcast on the presence topic.
type PresenceMsg struct {
	Type   string   `json:"type"` // online|update|offline
	PeerID string   `json:"peerId"`
	Label  string   `json:"label,omitempty"`
	Addrs  []string `json:"addrs,omitempty"` // multiaddresses for WAN connectivity
	TS     int64    `json:"ts"`
}

func NowMillis() int64 { return time.Now().UnixMilli() }
