package signal

import (
	"context"
	"log"

	"github.com/pion/webrtc/v4"
)

// Handlers receives validated inbound signaling events. Offer is always
// delivered (a new offer may arrive while no session exists); the other
// handlers only fire for messages from the active session's remote.
type Handlers struct {
	Offer     func(from string, sd webrtc.SessionDescription)
	Answer    func(from string, sd webrtc.SessionDescription)
	Candidate func(from string, c webrtc.ICECandidateInit)
	End       func(from string)
	Busy      func(from string)
	Reject    func(from string)
}

// Router dispatches inbound transport messages to controller handlers and
// serializes outbound messages symmetrically.
type Router struct {
	tr   Transport
	self string

	// activeRemote reports the remote participant of the current session,
	// if any. Messages from any other identity (except offers) are ignored,
	// not errors — stale or duplicate relay delivery is expected.
	activeRemote func() (string, bool)
}

func NewRouter(tr Transport, selfID string, activeRemote func() (string, bool)) *Router {
	return &Router{tr: tr, self: selfID, activeRemote: activeRemote}
}

// Bind registers the inbound handlers on the transport. Call once.
func (r *Router) Bind(h Handlers) {
	r.tr.On(KindOffer, func(m *Message) {
		sd, err := ParseDescription(m.Payload)
		if err != nil {
			log.Printf("SIGNAL: bad offer from %s: %v", m.From, err)
			return
		}
		if h.Offer != nil {
			h.Offer(m.From, sd)
		}
	})
	r.tr.On(KindAnswer, func(m *Message) {
		if !r.fromActiveRemote(m) {
			return
		}
		sd, err := ParseDescription(m.Payload)
		if err != nil {
			log.Printf("SIGNAL: bad answer from %s: %v", m.From, err)
			return
		}
		if h.Answer != nil {
			h.Answer(m.From, sd)
		}
	})
	r.tr.On(KindCandidate, func(m *Message) {
		if !r.fromActiveRemote(m) {
			return
		}
		c, err := ParseCandidate(m.Payload)
		if err != nil {
			log.Printf("SIGNAL: bad candidate from %s: %v", m.From, err)
			return
		}
		if h.Candidate != nil {
			h.Candidate(m.From, c)
		}
	})
	r.tr.On(KindEnd, func(m *Message) {
		if !r.fromActiveRemote(m) {
			return
		}
		if h.End != nil {
			h.End(m.From)
		}
	})
	r.tr.On(KindBusy, func(m *Message) {
		if !r.fromActiveRemote(m) {
			return
		}
		if h.Busy != nil {
			h.Busy(m.From)
		}
	})
	r.tr.On(KindReject, func(m *Message) {
		if !r.fromActiveRemote(m) {
			return
		}
		if h.Reject != nil {
			h.Reject(m.From)
		}
	})
}

func (r *Router) fromActiveRemote(m *Message) bool {
	remote, ok := r.activeRemote()
	if !ok || m.From != remote {
		log.Printf("SIGNAL: ignoring %s from %s (no matching session)", m.Kind, m.From)
		return false
	}
	return true
}

func (r *Router) SendOffer(ctx context.Context, to string, sd webrtc.SessionDescription) error {
	payload, err := DescriptionPayload(sd)
	if err != nil {
		return err
	}
	return r.tr.Emit(ctx, to, &Message{Kind: KindOffer, From: r.self, To: to, Payload: payload})
}

func (r *Router) SendAnswer(ctx context.Context, to string, sd webrtc.SessionDescription) error {
	payload, err := DescriptionPayload(sd)
	if err != nil {
		return err
	}
	return r.tr.Emit(ctx, to, &Message{Kind: KindAnswer, From: r.self, To: to, Payload: payload})
}

func (r *Router) SendCandidate(ctx context.Context, to string, c webrtc.ICECandidateInit) error {
	payload, err := CandidatePayload(c)
	if err != nil {
		return err
	}
	return r.tr.Emit(ctx, to, &Message{Kind: KindCandidate, From: r.self, To: to, Payload: payload})
}

func (r *Router) SendEnd(ctx context.Context, to string) error {
	return r.tr.Emit(ctx, to, &Message{Kind: KindEnd, From: r.self, To: to})
}

func (r *Router) SendBusy(ctx context.Context, to string) error {
	return r.tr.Emit(ctx, to, &Message{Kind: KindBusy, From: r.self, To: to})
}

func (r *Router) SendReject(ctx context.Context, to string) error {
	return r.tr.Emit(ctx, to, &Message{Kind: KindReject, From: r.self, To: to})
}
