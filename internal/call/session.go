package call

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/YogyashriPatil/fullstack-chat-app/internal/media"
	"github.com/YogyashriPatil/fullstack-chat-app/internal/signal"
)

// Session owns one negotiation handshake and one underlying connection.
// All state transitions are serialized through the session mutex; blocking
// operations (media acquisition, description exchange) run unlocked and
// their completions re-check for a terminal state, so a hang-up during an
// in-flight operation turns the eventual completion into a no-op.
type Session struct {
	id      string
	role    Role
	remote  string
	media   *media.Manager
	router  *signal.Router
	newConn ConnFactory
	timeout time.Duration

	mu           sync.Mutex
	state        State
	reason       EndReason
	conn         Conn
	tracks       *media.Tracks
	remoteTracks []*webrtc.TrackRemote
	pendingOffer *webrtc.SessionDescription // callee: remote offer held until accept
	answerTimer  *time.Timer

	queue CandidateQueue

	onState func(*Session, State)
	onEnd   func(*Session, EndReason)

	done chan struct{}
}

// SessionStatus is a UI-facing snapshot of a session.
type SessionStatus struct {
	ID         string `json:"id"`
	Role       string `json:"role"`
	Remote     string `json:"remote"`
	State      string `json:"state"`
	Reason     string `json:"reason,omitempty"`
	Error      string `json:"error,omitempty"`
	RemoteRecv int    `json:"remote_tracks"`
}

func (s *Session) ID() string     { return s.id }
func (s *Session) Role() Role     { return s.role }
func (s *Session) Remote() string { return s.remote }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Reason() EndReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Err maps a failed session onto the user-visible error taxonomy. Nil while
// the session is live and for expected outcomes (hangup, decline, busy).
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errLocked()
}

func (s *Session) errLocked() error {
	if !s.state.Terminal() {
		return nil
	}
	switch s.reason {
	case ReasonTimeout:
		return ErrSignalingTimeout
	case ReasonMediaFailed:
		return media.ErrDeviceUnavailable
	case ReasonConnFailed:
		return ErrConnectionFailed
	default:
		return nil
	}
}

// Done is closed once the session reaches a terminal state and all
// resources have been released.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := SessionStatus{
		ID:         s.id,
		Role:       s.role.String(),
		Remote:     s.remote,
		State:      s.state.String(),
		RemoteRecv: len(s.remoteTracks),
	}
	if s.reason != ReasonNone {
		st.Reason = s.reason.String()
	}
	if err := s.errLocked(); err != nil {
		st.Error = err.Error()
	}
	return st
}

// RemoteTracks returns the incoming media reported so far. Read-only for
// callers; the session keeps ownership.
func (s *Session) RemoteTracks() []*webrtc.TrackRemote {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*webrtc.TrackRemote, len(s.remoteTracks))
	copy(out, s.remoteTracks)
	return out
}

// transitionLocked records a state change. Caller holds s.mu.
func (s *Session) transitionLocked(to State) {
	from := s.state
	s.state = to
	log.Printf("CALL [%s]: %s → %s", s.id, from, to)
	if s.onState != nil {
		s.onState(s, to)
	}
}

// start drives the caller side: acquire media, build the connection, send
// the offer, then wait (via timer) for the answer.
func (s *Session) start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("start in state %s: %w", s.state, ErrSessionTerminal)
	}
	s.transitionLocked(StateAcquiringMedia)
	s.mu.Unlock()

	tracks, err := s.media.Acquire(ctx)
	if err != nil {
		s.terminate(ReasonMediaFailed, "")
		return err
	}

	s.mu.Lock()
	if s.state.Terminal() {
		// Hung up while the device was opening; the teardown already ran.
		s.mu.Unlock()
		s.media.Release()
		return ErrSessionTerminal
	}
	s.tracks = tracks
	s.mu.Unlock()

	conn, err := s.setupConn()
	if err != nil {
		s.terminate(ReasonConnFailed, "")
		return err
	}

	offer, err := conn.CreateOffer()
	if err != nil {
		s.terminate(ReasonConnFailed, "")
		return fmt.Errorf("create offer: %w", err)
	}
	if err := conn.SetLocalDescription(offer); err != nil {
		s.terminate(ReasonConnFailed, "")
		return fmt.Errorf("set local description: %w", err)
	}

	// Enter OfferSent before the emit: the answer can land before the
	// send call returns, and it must find the session ready for it.
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return ErrSessionTerminal
	}
	s.transitionLocked(StateOfferSent)
	s.answerTimer = time.AfterFunc(s.timeout, s.onAnswerTimeout)
	s.mu.Unlock()

	// Best-effort: the relay surfaces no delivery errors. An unreachable
	// callee shows up as a signaling timeout instead.
	if err := s.router.SendOffer(ctx, s.remote, offer); err != nil {
		log.Printf("CALL [%s]: send offer: %v", s.id, err)
	}
	return nil
}

// prewarmMedia starts acquiring the capture device as soon as an offer
// arrives so answering is fast. Failure declines the call.
func (s *Session) prewarmMedia(ctx context.Context) {
	go func() {
		if _, err := s.media.Acquire(ctx); err != nil {
			log.Printf("CALL [%s]: media acquisition failed: %v", s.id, err)
			s.terminate(ReasonMediaFailed, signal.KindReject)
			return
		}
		if s.State().Terminal() {
			s.media.Release()
		}
	}()
}

// accept drives the callee side: apply the stored remote offer, flush
// buffered candidates, answer.
func (s *Session) accept(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return ErrSessionTerminal
	}
	if s.state != StateOfferReceived || s.pendingOffer == nil {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("accept in state %s", st)
	}
	offer := *s.pendingOffer
	s.mu.Unlock()

	tracks, err := s.media.Acquire(ctx)
	if err != nil {
		s.terminate(ReasonMediaFailed, signal.KindReject)
		return err
	}

	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		s.media.Release()
		return ErrSessionTerminal
	}
	s.tracks = tracks
	s.mu.Unlock()

	conn, err := s.setupConn()
	if err != nil {
		s.terminate(ReasonConnFailed, signal.KindReject)
		return err
	}

	if err := conn.SetRemoteDescription(offer); err != nil {
		s.terminate(ReasonConnFailed, signal.KindReject)
		return fmt.Errorf("set remote description: %w", err)
	}
	if err := s.queue.Flush(conn); err != nil {
		// A bad candidate is not fatal; other paths may still connect.
		log.Printf("CALL [%s]: flush candidates: %v", s.id, err)
	}

	answer, err := conn.CreateAnswer()
	if err != nil {
		s.terminate(ReasonConnFailed, signal.KindReject)
		return fmt.Errorf("create answer: %w", err)
	}
	if err := conn.SetLocalDescription(answer); err != nil {
		s.terminate(ReasonConnFailed, signal.KindReject)
		return fmt.Errorf("set local description: %w", err)
	}

	// Same ordering as the caller side: the connected event may race the
	// send, and it only counts once the session is in AnswerSent.
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return ErrSessionTerminal
	}
	s.transitionLocked(StateAnswerSent)
	s.mu.Unlock()

	if err := s.router.SendAnswer(ctx, s.remote, answer); err != nil {
		log.Printf("CALL [%s]: send answer: %v", s.id, err)
	}
	return nil
}

// setupConn builds the underlying connection, wires its callbacks, and
// attaches the local tracks.
func (s *Session) setupConn() (Conn, error) {
	conn, err := s.newConn()
	if err != nil {
		return nil, fmt.Errorf("new connection: %w", err)
	}

	conn.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		if s.State().Terminal() {
			return
		}
		if err := s.router.SendCandidate(context.Background(), s.remote, c.ToJSON()); err != nil {
			log.Printf("CALL [%s]: send candidate: %v", s.id, err)
		}
	})
	conn.OnTrack(func(t *webrtc.TrackRemote) {
		s.mu.Lock()
		s.remoteTracks = append(s.remoteTracks, t)
		s.mu.Unlock()
		log.Printf("CALL [%s]: remote %s track", s.id, t.Kind())
	})
	conn.OnConnectionStateChange(s.handleConnState)

	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		_ = conn.Close()
		return nil, ErrSessionTerminal
	}
	s.conn = conn
	tracks := s.tracks
	s.mu.Unlock()

	for _, t := range tracks.Locals() {
		if err := conn.AddTrack(t); err != nil {
			log.Printf("CALL [%s]: add track: %v", s.id, err)
		}
	}
	addRecvOnlyTransceivers(conn, tracks)
	return conn, nil
}

// handleAnswer applies the remote answer and flushes buffered candidates.
func (s *Session) handleAnswer(sd webrtc.SessionDescription) {
	s.mu.Lock()
	if s.state != StateOfferSent {
		st := s.state
		s.mu.Unlock()
		log.Printf("CALL [%s]: answer ignored in state %s", s.id, st)
		return
	}
	if s.answerTimer != nil {
		s.answerTimer.Stop()
		s.answerTimer = nil
	}
	conn := s.conn
	s.mu.Unlock()

	if err := conn.SetRemoteDescription(sd); err != nil {
		log.Printf("CALL [%s]: set remote description: %v", s.id, err)
		s.terminate(ReasonConnFailed, signal.KindEnd)
		return
	}
	if err := s.queue.Flush(conn); err != nil {
		log.Printf("CALL [%s]: flush candidates: %v", s.id, err)
	}

	s.mu.Lock()
	if s.state == StateOfferSent {
		s.transitionLocked(StateAnswerReceived)
	}
	s.mu.Unlock()
}

// handleCandidate buffers or applies one remote connectivity candidate.
// Safe to call at any point between creation and termination; candidates
// arriving before the remote description are buffered by the queue.
func (s *Session) handleCandidate(c webrtc.ICECandidateInit) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	conn := s.conn
	s.mu.Unlock()

	if err := s.queue.Add(conn, c); err != nil {
		log.Printf("CALL [%s]: apply candidate: %v", s.id, err)
	}
}

func (s *Session) handleConnState(st webrtc.PeerConnectionState) {
	log.Printf("CALL [%s]: connection state %s", s.id, st)
	switch st {
	case webrtc.PeerConnectionStateConnected:
		s.mu.Lock()
		if s.state == StateAnswerSent || s.state == StateAnswerReceived {
			s.transitionLocked(StateConnected)
		}
		s.mu.Unlock()
	case webrtc.PeerConnectionStateDisconnected,
		webrtc.PeerConnectionStateFailed,
		webrtc.PeerConnectionStateClosed:
		s.terminate(ReasonConnFailed, "")
	}
}

// onAnswerTimeout commits the timeout under the same lock that checks the
// state, so a timer firing concurrently with an accepted answer cannot tear
// the session down.
func (s *Session) onAnswerTimeout() {
	s.mu.Lock()
	if s.state != StateOfferSent {
		s.mu.Unlock()
		return
	}
	log.Printf("CALL [%s]: no answer from %s within %s", s.id, s.remote, s.timeout)
	s.terminateLocked(ReasonTimeout, signal.KindEnd)
}

// End hangs up locally. Safe from any state; idempotent.
func (s *Session) End() {
	s.terminate(ReasonHangup, signal.KindEnd)
}

// decline rejects an incoming call before it was accepted.
func (s *Session) decline() {
	s.terminate(ReasonDeclined, signal.KindReject)
}

func (s *Session) handleRemoteEnd()    { s.terminate(ReasonRemoteHangup, "") }
func (s *Session) handleRemoteBusy()   { s.terminate(ReasonBusy, "") }
func (s *Session) handleRemoteReject() { s.terminate(ReasonRejected, "") }

// terminate releases the capture device, moves the session to its terminal
// state, closes the underlying connection and clears the candidate queue,
// in that order, before any notification goes out. Idempotent: local
// hang-up and a remote close notification may race, the second one is a
// no-op.
func (s *Session) terminate(reason EndReason, notify signal.Kind) {
	s.mu.Lock()
	s.terminateLocked(reason, notify)
}

// terminateLocked is terminate with s.mu already held; it releases the lock.
func (s *Session) terminateLocked(reason EndReason, notify signal.Kind) {
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	if s.answerTimer != nil {
		s.answerTimer.Stop()
		s.answerTimer = nil
	}
	s.reason = reason
	conn := s.conn
	// Release the device before the terminal state is visible: a fresh
	// Acquire admitted after this transition must reopen the source, not
	// share the dying hold.
	s.media.Release()
	s.transitionLocked(reason.terminalState())
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	s.queue.Clear()

	switch notify {
	case signal.KindEnd:
		_ = s.router.SendEnd(context.Background(), s.remote)
	case signal.KindReject:
		_ = s.router.SendReject(context.Background(), s.remote)
	}

	log.Printf("CALL [%s]: terminated (%s)", s.id, reason)
	if s.onEnd != nil {
		s.onEnd(s, reason)
	}
	close(s.done)
}

func newSessionID() string {
	return uuid.NewString()
}
