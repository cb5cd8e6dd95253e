package call

import "errors"

var (
	// ErrCallInProgress rejects a second start/accept while a session is
	// non-terminal. The existing session is left untouched.
	ErrCallInProgress = errors.New("a call is already in progress")

	// ErrRemoteUnreachable is the pre-flight presence check failing; no
	// session is created.
	ErrRemoteUnreachable = errors.New("remote participant is not reachable")

	// ErrSignalingTimeout means no answer arrived within the configured
	// bound. The session has already transitioned to failed.
	ErrSignalingTimeout = errors.New("no answer within signaling timeout")

	// ErrConnectionFailed means the negotiated connection dropped or never
	// came up.
	ErrConnectionFailed = errors.New("peer connection failed")

	// ErrNoSuchCall means accept/reject referenced no pending incoming call.
	ErrNoSuchCall = errors.New("no such incoming call")

	// ErrSessionTerminal rejects operations on an already-ended session.
	ErrSessionTerminal = errors.New("session already terminated")
)
