package call

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/YogyashriPatil/fullstack-chat-app/internal/media"
	"github.com/YogyashriPatil/fullstack-chat-app/internal/signal"
)

// Presence answers whether a peer is currently believed reachable.
// Satisfied by *state.PeerTable.
type Presence interface {
	IsReachable(peerID string) bool
}

// IncomingCall is handed to subscribers when a remote offer arrives.
// Exactly one of Accept or Reject should be invoked.
type IncomingCall struct {
	SessionID string
	From      string
	Accept    func(ctx context.Context) error
	Reject    func()
}

// Event is the manager's feed for UI consumers.
type Event struct {
	Type      string `json:"type"` // "incoming", "state", "ended"
	SessionID string `json:"session_id"`
	Remote    string `json:"remote"`
	State     string `json:"state,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Manager enforces the single-active-call rule and owns session lifetime.
// It binds the signaling router so inbound messages reach the right
// session, answers busy to third parties, and guarantees that whatever
// path a call ends through, media and connection resources are released.
type Manager struct {
	selfID   string
	router   *signal.Router
	media    *media.Manager
	presence Presence
	newConn  ConnFactory
	timeout  time.Duration

	mu     sync.Mutex
	active *Session

	incomingMu sync.RWMutex
	incoming   []chan *IncomingCall

	eventMu sync.RWMutex
	events  []chan Event
}

// NewManager wires a controller onto the given signaling transport.
func NewManager(selfID string, tr signal.Transport, mediaMgr *media.Manager, presence Presence, newConn ConnFactory, timeout time.Duration) *Manager {
	m := &Manager{
		selfID:   selfID,
		media:    mediaMgr,
		presence: presence,
		newConn:  newConn,
		timeout:  timeout,
	}
	m.router = signal.NewRouter(tr, selfID, m.activeRemote)
	m.router.Bind(signal.Handlers{
		Offer:     m.onOffer,
		Answer:    m.onAnswer,
		Candidate: m.onCandidate,
		End:       m.onRemoteEnd,
		Busy:      m.onRemoteBusy,
		Reject:    m.onRemoteReject,
	})
	return m
}

// activeRemote reports the peer the current live session belongs to, for
// the router's stale-sender filtering.
func (m *Manager) activeRemote() (string, bool) {
	s := m.current()
	if s == nil {
		return "", false
	}
	return s.remote, true
}

// current returns the active session if it has not yet terminated.
func (m *Manager) current() *Session {
	m.mu.Lock()
	s := m.active
	m.mu.Unlock()
	if s == nil || s.State().Terminal() {
		return nil
	}
	return s
}

func (m *Manager) newSession(role Role, remote string) *Session {
	s := &Session{
		id:      newSessionID(),
		role:    role,
		remote:  remote,
		media:   m.media,
		router:  m.router,
		newConn: m.newConn,
		timeout: m.timeout,
		state:   StateIdle,
		done:    make(chan struct{}),
	}
	s.onState = func(s *Session, st State) {
		m.broadcast(Event{Type: "state", SessionID: s.id, Remote: s.remote, State: st.String()})
	}
	s.onEnd = func(s *Session, reason EndReason) {
		// The terminated session stays visible via Active until the next
		// call replaces it, so callers can read the final state and reason.
		m.broadcast(Event{Type: "ended", SessionID: s.id, Remote: s.remote, State: s.State().String(), Reason: reason.String()})
	}
	return s
}

// StartCall places an outgoing call. Exactly one call may be live at a
// time; a second StartCall fails without touching the existing session.
func (m *Manager) StartCall(ctx context.Context, remote string) (*Session, error) {
	if remote == m.selfID {
		return nil, fmt.Errorf("cannot call self")
	}
	if !m.presence.IsReachable(remote) {
		return nil, fmt.Errorf("peer %s: %w", remote, ErrRemoteUnreachable)
	}

	s := m.newSession(Caller, remote)

	m.mu.Lock()
	if m.active != nil && !m.active.State().Terminal() {
		m.mu.Unlock()
		return nil, ErrCallInProgress
	}
	m.active = s
	m.mu.Unlock()

	log.Printf("CALL: starting %s call to %s", s.id, remote)
	if err := s.start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// onOffer admits at most one live call. A duplicate offer from the current
// remote is dropped; an offer from anyone else gets a busy reply and the
// existing session is left untouched.
func (m *Manager) onOffer(from string, sd webrtc.SessionDescription) {
	m.mu.Lock()
	if m.active != nil && !m.active.State().Terminal() {
		activeRemote := m.active.remote
		m.mu.Unlock()
		if from == activeRemote {
			log.Printf("CALL: duplicate offer from %s ignored", from)
			return
		}
		log.Printf("CALL: busy, rejecting offer from %s", from)
		_ = m.router.SendBusy(context.Background(), from)
		return
	}
	s := m.newIncomingSession(from, sd)
	m.active = s
	m.mu.Unlock()

	log.Printf("CALL: incoming %s from %s", s.id, from)
	s.prewarmMedia(context.Background())

	ic := &IncomingCall{
		SessionID: s.id,
		From:      from,
		Accept:    func(ctx context.Context) error { return s.accept(ctx) },
		Reject:    func() { s.decline() },
	}
	m.broadcast(Event{Type: "incoming", SessionID: s.id, Remote: from, State: s.State().String()})

	m.incomingMu.RLock()
	subs := make([]chan *IncomingCall, len(m.incoming))
	copy(subs, m.incoming)
	m.incomingMu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- ic:
		default:
			log.Printf("CALL: incoming listener full, dropping notification")
		}
	}
}

func (m *Manager) newIncomingSession(from string, sd webrtc.SessionDescription) *Session {
	s := m.newSession(Callee, from)
	s.state = StateOfferReceived
	s.pendingOffer = &sd
	return s
}

func (m *Manager) onAnswer(from string, sd webrtc.SessionDescription) {
	if s := m.current(); s != nil {
		s.handleAnswer(sd)
	}
}

func (m *Manager) onCandidate(from string, c webrtc.ICECandidateInit) {
	if s := m.current(); s != nil {
		s.handleCandidate(c)
	}
}

func (m *Manager) onRemoteEnd(from string) {
	if s := m.current(); s != nil {
		s.handleRemoteEnd()
	}
}

func (m *Manager) onRemoteBusy(from string) {
	if s := m.current(); s != nil {
		s.handleRemoteBusy()
	}
}

func (m *Manager) onRemoteReject(from string) {
	if s := m.current(); s != nil {
		s.handleRemoteReject()
	}
}

// AcceptIncoming answers the pending incoming call, if any.
func (m *Manager) AcceptIncoming(ctx context.Context) error {
	s := m.current()
	if s == nil || s.role != Callee {
		return ErrNoSuchCall
	}
	return s.accept(ctx)
}

// RejectIncoming declines the pending incoming call, if any.
func (m *Manager) RejectIncoming() error {
	s := m.current()
	if s == nil || s.role != Callee || s.State() != StateOfferReceived {
		return ErrNoSuchCall
	}
	s.decline()
	return nil
}

// EndCall hangs up the active call. No-op when nothing is live.
func (m *Manager) EndCall() {
	m.mu.Lock()
	s := m.active
	m.mu.Unlock()
	if s == nil {
		return
	}
	s.End()
}

// Active returns the current session, terminal or not, so callers can
// still read the final state and reason after a call ends.
func (m *Manager) Active() (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.active != nil
}

// SubscribeIncoming registers a listener for incoming call offers.
func (m *Manager) SubscribeIncoming() chan *IncomingCall {
	ch := make(chan *IncomingCall, 4)
	m.incomingMu.Lock()
	m.incoming = append(m.incoming, ch)
	m.incomingMu.Unlock()
	return ch
}

func (m *Manager) UnsubscribeIncoming(ch chan *IncomingCall) {
	m.incomingMu.Lock()
	for i, c := range m.incoming {
		if c == ch {
			m.incoming = append(m.incoming[:i], m.incoming[i+1:]...)
			break
		}
	}
	m.incomingMu.Unlock()
}

// SubscribeEvents registers a listener for session lifecycle events.
func (m *Manager) SubscribeEvents() chan Event {
	ch := make(chan Event, 16)
	m.eventMu.Lock()
	m.events = append(m.events, ch)
	m.eventMu.Unlock()
	return ch
}

func (m *Manager) UnsubscribeEvents(ch chan Event) {
	m.eventMu.Lock()
	for i, c := range m.events {
		if c == ch {
			m.events = append(m.events[:i], m.events[i+1:]...)
			break
		}
	}
	m.eventMu.Unlock()
}

func (m *Manager) broadcast(ev Event) {
	m.eventMu.RLock()
	defer m.eventMu.RUnlock()
	for _, ch := range m.events {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close hangs up any live call. Called on shutdown.
func (m *Manager) Close() {
	m.EndCall()
}
