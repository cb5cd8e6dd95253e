package call

import "github.com/pion/webrtc/v4"

// Conn abstracts the point-to-point connection a session negotiates. The
// production implementation wraps a pion PeerConnection; tests substitute a
// fake to drive the state machine deterministically.
type Conn interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	RemoteDescription() *webrtc.SessionDescription
	AddICECandidate(webrtc.ICECandidateInit) error
	AddTrack(webrtc.TrackLocal) error
	OnICECandidate(func(*webrtc.ICECandidate))
	OnTrack(func(*webrtc.TrackRemote))
	OnConnectionStateChange(func(webrtc.PeerConnectionState))
	Close() error
}

// ConnFactory builds a fresh Conn for one session. Called at most once per
// session; the session owns the result and closes it exactly once.
type ConnFactory func() (Conn, error)
