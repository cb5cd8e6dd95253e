package call

import (
	"fmt"
	"log"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/YogyashriPatil/fullstack-chat-app/internal/media"
)

// pionConn adapts a pion PeerConnection to the Conn interface.
type pionConn struct {
	pc *webrtc.PeerConnection
}

func (c *pionConn) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *pionConn) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *pionConn) SetLocalDescription(sd webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(sd)
}

func (c *pionConn) SetRemoteDescription(sd webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(sd)
}

func (c *pionConn) RemoteDescription() *webrtc.SessionDescription {
	return c.pc.RemoteDescription()
}

func (c *pionConn) AddICECandidate(cand webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(cand)
}

func (c *pionConn) AddTrack(t webrtc.TrackLocal) error {
	_, err := c.pc.AddTrack(t)
	return err
}

func (c *pionConn) OnICECandidate(fn func(*webrtc.ICECandidate)) {
	c.pc.OnICECandidate(fn)
}

func (c *pionConn) OnTrack(fn func(*webrtc.TrackRemote)) {
	c.pc.OnTrack(func(t *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fn(t)
	})
}

func (c *pionConn) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	c.pc.OnConnectionStateChange(fn)
}

func (c *pionConn) Close() error {
	return c.pc.Close()
}

// NewPionFactory returns a ConnFactory producing real peer connections with
// the media manager's codecs, default interceptors, and the given ICE
// servers.
func NewPionFactory(mediaMgr *media.Manager, iceServers []string) ConnFactory {
	return func() (Conn, error) {
		mediaEngine := &webrtc.MediaEngine{}
		if err := mediaMgr.Populate(mediaEngine); err != nil {
			return nil, fmt.Errorf("populate media engine: %w", err)
		}

		interceptorRegistry := &interceptor.Registry{}
		if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
			return nil, fmt.Errorf("register interceptors: %w", err)
		}

		// Generous ICE timeouts so a brief relay/NAT hiccup does not
		// immediately terminate the call.
		se := webrtc.SettingEngine{}
		se.SetICETimeouts(30*time.Second, 120*time.Second, 2*time.Second)

		api := webrtc.NewAPI(
			webrtc.WithMediaEngine(mediaEngine),
			webrtc.WithInterceptorRegistry(interceptorRegistry),
			webrtc.WithSettingEngine(se),
		)

		urls := iceServers
		if len(urls) == 0 {
			urls = []string{"stun:stun.l.google.com:19302"}
		}
		pc, err := api.NewPeerConnection(webrtc.Configuration{
			ICEServers: []webrtc.ICEServer{{URLs: urls}},
		})
		if err != nil {
			return nil, fmt.Errorf("new peer connection: %w", err)
		}
		return &pionConn{pc: pc}, nil
	}
}

// addRecvOnlyTransceivers adds recvonly transceivers for any kind with no
// local track, so CreateOffer/CreateAnswer always produces valid m-lines
// with ICE credentials.
func addRecvOnlyTransceivers(conn Conn, tracks *media.Tracks) {
	pc, ok := conn.(*pionConn)
	if !ok {
		return
	}
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
		if tracks.HasKind(kind) {
			continue
		}
		if _, err := pc.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			log.Printf("CALL: AddTransceiver(%s) error: %v", kind, err)
		}
	}
}
