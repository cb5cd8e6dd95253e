package call

// Role fixes which side of the handshake a session plays. Exactly one offer
// and one answer per session; strict role assignment avoids glare.
type Role int

const (
	Caller Role = iota + 1
	Callee
)

func (r Role) String() string {
	switch r {
	case Caller:
		return "caller"
	case Callee:
		return "callee"
	default:
		return "unknown"
	}
}

// State is the negotiation state of a session.
type State int

const (
	StateIdle State = iota
	StateAcquiringMedia
	StateOfferSent
	StateOfferReceived
	StateAnswerSent
	StateAnswerReceived
	StateConnected
	StateEnded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiringMedia:
		return "acquiring-media"
	case StateOfferSent:
		return "offer-sent"
	case StateOfferReceived:
		return "offer-received"
	case StateAnswerSent:
		return "answer-sent"
	case StateAnswerReceived:
		return "answer-received"
	case StateConnected:
		return "connected"
	case StateEnded:
		return "ended"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is absorbing. No transition leaves a
// terminal state; a new call requires a new session.
func (s State) Terminal() bool {
	return s == StateEnded || s == StateFailed
}

// EndReason records why a session reached a terminal state.
type EndReason int

const (
	ReasonNone EndReason = iota
	ReasonHangup
	ReasonRemoteHangup
	ReasonDeclined     // we declined an incoming call
	ReasonRejected     // remote declined our call
	ReasonBusy         // remote was in another call
	ReasonTimeout      // no answer within the signaling bound
	ReasonMediaFailed  // local capture device unavailable
	ReasonConnFailed   // underlying connection failed or dropped
)

func (r EndReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonHangup:
		return "hangup"
	case ReasonRemoteHangup:
		return "remote-hangup"
	case ReasonDeclined:
		return "declined"
	case ReasonRejected:
		return "rejected"
	case ReasonBusy:
		return "busy"
	case ReasonTimeout:
		return "timeout"
	case ReasonMediaFailed:
		return "media-failed"
	case ReasonConnFailed:
		return "connection-failed"
	default:
		return "unknown"
	}
}

// terminalState maps a reason to Ended or Failed. Expected outcomes (hangup,
// decline, busy) end the session; errors fail it.
func (r EndReason) terminalState() State {
	switch r {
	case ReasonTimeout, ReasonMediaFailed, ReasonConnFailed:
		return StateFailed
	default:
		return StateEnded
	}
}
