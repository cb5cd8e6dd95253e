package call

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"github.com/YogyashriPatil/fullstack-chat-app/internal/media"
	"github.com/YogyashriPatil/fullstack-chat-app/internal/signal"
)

type presenceFunc func(string) bool

func (f presenceFunc) IsReachable(id string) bool { return f(id) }

var allOnline = presenceFunc(func(string) bool { return true })

// connLog hands out fake connections and remembers them for inspection.
type connLog struct {
	mu    sync.Mutex
	conns []*fakeConn
}

func (l *connLog) factory() (Conn, error) {
	fc := newFakeConn()
	l.mu.Lock()
	l.conns = append(l.conns, fc)
	l.mu.Unlock()
	return fc, nil
}

func (l *connLog) last() *fakeConn {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.conns) == 0 {
		return nil
	}
	return l.conns[len(l.conns)-1]
}

type testPeer struct {
	id    string
	mgr   *Manager
	conns *connLog
	media *media.Manager
}

func newTestPeer(t *testing.T, bus *signal.Loopback, id string, presence Presence) *testPeer {
	t.Helper()
	p := &testPeer{
		id:    id,
		conns: &connLog{},
		media: media.NewManager(media.NewNullSource()),
	}
	p.mgr = NewManager(id, bus.Endpoint(id), p.media, presence, p.conns.factory, 2*time.Second)
	t.Cleanup(p.mgr.Close)
	return p
}

func awaitIncoming(t *testing.T, ch chan *IncomingCall) *IncomingCall {
	t.Helper()
	select {
	case ic := <-ch:
		return ic
	case <-time.After(2 * time.Second):
		t.Fatal("no incoming call")
		return nil
	}
}

func TestManagerEndToEndCall(t *testing.T) {
	bus := signal.NewLoopback()
	t.Cleanup(bus.Close)
	ctx := context.Background()

	alice := newTestPeer(t, bus, "alice", allOnline)
	bob := newTestPeer(t, bus, "bob", allOnline)
	inc := bob.mgr.SubscribeIncoming()
	defer bob.mgr.UnsubscribeIncoming(inc)

	s, err := alice.mgr.StartCall(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, StateOfferSent, s.State())
	require.True(t, alice.media.Held())

	ic := awaitIncoming(t, inc)
	require.Equal(t, "alice", ic.From)
	bobS, ok := bob.mgr.Active()
	require.True(t, ok)
	require.Equal(t, StateOfferReceived, bobS.State())

	require.NoError(t, ic.Accept(ctx))
	require.Equal(t, StateAnswerSent, bobS.State())
	eventually(t, func() bool { return s.State() == StateAnswerReceived }, "caller should apply the answer")

	alice.conns.last().connState(webrtc.PeerConnectionStateConnected)
	bob.conns.last().connState(webrtc.PeerConnectionStateConnected)
	require.Equal(t, StateConnected, s.State())
	require.Equal(t, StateConnected, bobS.State())

	alice.mgr.EndCall()
	require.Equal(t, StateEnded, s.State())
	require.Equal(t, ReasonHangup, s.Reason())
	require.False(t, alice.media.Held())

	eventually(t, func() bool { return bobS.State() == StateEnded }, "callee should see the hang-up")
	require.Equal(t, ReasonRemoteHangup, bobS.Reason())
	require.False(t, bob.media.Held())
	require.Equal(t, 1, bob.conns.last().closes())
}

func TestManagerBusyThirdCaller(t *testing.T) {
	bus := signal.NewLoopback()
	t.Cleanup(bus.Close)
	ctx := context.Background()

	alice := newTestPeer(t, bus, "alice", allOnline)
	bob := newTestPeer(t, bus, "bob", allOnline)
	carol := newTestPeer(t, bus, "carol", allOnline)
	inc := bob.mgr.SubscribeIncoming()
	defer bob.mgr.UnsubscribeIncoming(inc)

	s, err := alice.mgr.StartCall(ctx, "bob")
	require.NoError(t, err)
	require.NoError(t, awaitIncoming(t, inc).Accept(ctx))
	eventually(t, func() bool { return s.State() == StateAnswerReceived }, "call should be established")

	// Carol calls the busy alice: her call ends with busy, not an error
	// state, and alice's session is untouched.
	carolS, err := carol.mgr.StartCall(ctx, "alice")
	require.NoError(t, err)
	eventually(t, func() bool { return carolS.State() == StateEnded }, "busy reply should end the call")
	require.Equal(t, ReasonBusy, carolS.Reason())
	require.False(t, carol.media.Held())

	require.Equal(t, StateAnswerReceived, s.State())
	remote, ok := alice.mgr.activeRemote()
	require.True(t, ok)
	require.Equal(t, "bob", remote)
}

func TestManagerSecondStartRejected(t *testing.T) {
	bus := signal.NewLoopback()
	t.Cleanup(bus.Close)
	ctx := context.Background()

	alice := newTestPeer(t, bus, "alice", allOnline)
	newTestPeer(t, bus, "bob", allOnline)

	s, err := alice.mgr.StartCall(ctx, "bob")
	require.NoError(t, err)

	_, err = alice.mgr.StartCall(ctx, "carol")
	require.ErrorIs(t, err, ErrCallInProgress)

	active, ok := alice.mgr.Active()
	require.True(t, ok)
	require.Equal(t, s.ID(), active.ID())
	require.Equal(t, StateOfferSent, active.State())
}

func TestManagerUnreachablePeer(t *testing.T) {
	bus := signal.NewLoopback()
	t.Cleanup(bus.Close)

	alice := newTestPeer(t, bus, "alice", presenceFunc(func(string) bool { return false }))

	_, err := alice.mgr.StartCall(context.Background(), "bob")
	require.ErrorIs(t, err, ErrRemoteUnreachable)
	_, ok := alice.mgr.Active()
	require.False(t, ok)
	require.False(t, alice.media.Held())
}

func TestManagerRejectIncoming(t *testing.T) {
	bus := signal.NewLoopback()
	t.Cleanup(bus.Close)
	ctx := context.Background()

	alice := newTestPeer(t, bus, "alice", allOnline)
	bob := newTestPeer(t, bus, "bob", allOnline)
	inc := bob.mgr.SubscribeIncoming()
	defer bob.mgr.UnsubscribeIncoming(inc)

	s, err := alice.mgr.StartCall(ctx, "bob")
	require.NoError(t, err)
	awaitIncoming(t, inc)

	require.NoError(t, bob.mgr.RejectIncoming())
	bobS, _ := bob.mgr.Active()
	require.Equal(t, StateEnded, bobS.State())
	require.Equal(t, ReasonDeclined, bobS.Reason())

	eventually(t, func() bool { return s.State() == StateEnded }, "caller should see the rejection")
	require.Equal(t, ReasonRejected, s.Reason())
	require.False(t, alice.media.Held())
}

func TestManagerCandidatesBufferedAcrossRelay(t *testing.T) {
	bus := signal.NewLoopback()
	t.Cleanup(bus.Close)
	ctx := context.Background()

	alice := newTestPeer(t, bus, "alice", allOnline)
	bob := newTestPeer(t, bus, "bob", allOnline)
	inc := bob.mgr.SubscribeIncoming()
	defer bob.mgr.UnsubscribeIncoming(inc)

	_, err := alice.mgr.StartCall(ctx, "bob")
	require.NoError(t, err)
	awaitIncoming(t, inc)
	bobS, _ := bob.mgr.Active()

	// Candidates race ahead of the accept over the relay; the callee must
	// hold them until its remote description is applied.
	ep := bus.Endpoint("alice")
	for i := 1; i <= 3; i++ {
		payload, err := signal.CandidatePayload(cand(i))
		require.NoError(t, err)
		require.NoError(t, ep.Emit(ctx, "bob", &signal.Message{
			Kind: signal.KindCandidate, From: "alice", To: "bob", Payload: payload,
		}))
	}
	eventually(t, func() bool { return bobS.queue.Len() == 3 }, "candidates should be buffered")
	require.Nil(t, bob.conns.last())

	require.NoError(t, bob.mgr.AcceptIncoming(ctx))
	got := bob.conns.last().addedCandidates()
	require.Len(t, got, 3)
	for i, c := range got {
		require.Equal(t, cand(i+1).Candidate, c.Candidate)
	}
}

func TestManagerDuplicateOfferIgnored(t *testing.T) {
	bus := signal.NewLoopback()
	t.Cleanup(bus.Close)
	ctx := context.Background()

	alice := newTestPeer(t, bus, "alice", allOnline)
	bob := newTestPeer(t, bus, "bob", allOnline)
	inc := bob.mgr.SubscribeIncoming()
	defer bob.mgr.UnsubscribeIncoming(inc)

	_, err := alice.mgr.StartCall(ctx, "bob")
	require.NoError(t, err)
	awaitIncoming(t, inc)
	bobS, _ := bob.mgr.Active()

	// A relay redelivery of the same offer must not spawn a second session.
	payload, err := signal.DescriptionPayload(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer, SDP: "v=0 test offer",
	})
	require.NoError(t, err)
	require.NoError(t, bus.Endpoint("alice").Emit(ctx, "bob", &signal.Message{
		Kind: signal.KindOffer, From: "alice", To: "bob", Payload: payload,
	}))

	time.Sleep(50 * time.Millisecond)
	active, ok := bob.mgr.Active()
	require.True(t, ok)
	require.Equal(t, bobS.ID(), active.ID())
	require.Equal(t, StateOfferReceived, active.State())
	select {
	case <-inc:
		t.Fatal("duplicate offer should not notify listeners")
	default:
	}
}
