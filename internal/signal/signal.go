// Package signal defines the wire envelopes exchanged over the relay
// transport during call negotiation, and the thin router that maps inbound
// envelopes to controller actions. It performs no call logic itself.
package signal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Kind identifies one signaling message type. Delivery order is only
// guaranteed between messages of the same kind.
type Kind string

const (
	KindOffer     Kind = "call-offer"
	KindAnswer    Kind = "call-answer"
	KindCandidate Kind = "ice-candidate"
	KindEnd       Kind = "end-call"
	KindBusy      Kind = "call-busy"
	KindReject    Kind = "call-reject"
)

// Message is one signaling envelope.
type Message struct {
	Kind    Kind            `json:"kind"`
	From    string          `json:"from"`
	To      string          `json:"to"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Transport is the relay channel the router publishes to and consumes from.
// Emit is best-effort, at-most-once: an unreachable target drops the message
// silently. Handlers registered with On are invoked once per received message,
// in receipt order for messages of the same kind.
type Transport interface {
	Emit(ctx context.Context, to string, msg *Message) error
	On(kind Kind, handler func(*Message))
}

// DescriptionPayload carries an SDP offer or answer.
func DescriptionPayload(sd webrtc.SessionDescription) (json.RawMessage, error) {
	b, err := json.Marshal(sd)
	if err != nil {
		return nil, fmt.Errorf("marshal description: %w", err)
	}
	return b, nil
}

// ParseDescription decodes an SDP payload.
func ParseDescription(raw json.RawMessage) (webrtc.SessionDescription, error) {
	var sd webrtc.SessionDescription
	if err := json.Unmarshal(raw, &sd); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("parse description: %w", err)
	}
	if sd.SDP == "" {
		return webrtc.SessionDescription{}, fmt.Errorf("empty session description")
	}
	return sd, nil
}

// CandidatePayload carries one ICE candidate.
func CandidatePayload(c webrtc.ICECandidateInit) (json.RawMessage, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal candidate: %w", err)
	}
	return b, nil
}

// ParseCandidate decodes an ICE candidate payload.
func ParseCandidate(raw json.RawMessage) (webrtc.ICECandidateInit, error) {
	var c webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &c); err != nil {
		return webrtc.ICECandidateInit{}, fmt.Errorf("parse candidate: %w", err)
	}
	return c, nil
}
