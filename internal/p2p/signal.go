package p2p

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	pubsub "github.com/libp2p/go-libp2p-pubsub"

	"github.com/YogyashriPatil/fullstack-chat-app/internal/proto"
	"github.com/YogyashriPatil/fullstack-chat-app/internal/signal"
)

// SignalTransport carries call signaling over gossipsub. Every peer
// subscribes to its own inbox topic; a message addressed to a peer is
// published there. Delivery is best-effort at-most-once; a single read
// loop dispatches inbound messages, so receipt order is preserved.
type SignalTransport struct {
	node *Node
	self string
	sub  *pubsub.Subscription

	// Joined outbound inbox topics, cached per target peer. Gossipsub
	// rejects publishing to a topic joined twice.
	outMu sync.Mutex
	out   map[string]*pubsub.Topic

	handlerMu sync.RWMutex
	handlers  map[signal.Kind][]func(*signal.Message)
}

// NewSignalTransport joins this peer's signaling inbox and starts the
// dispatch loop. Runs until ctx is cancelled.
func (n *Node) NewSignalTransport(ctx context.Context) (*SignalTransport, error) {
	inbox, err := n.ps.Join(proto.SignalTopic(n.ID()))
	if err != nil {
		return nil, fmt.Errorf("join signal inbox: %w", err)
	}
	sub, err := inbox.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("subscribe signal inbox: %w", err)
	}

	t := &SignalTransport{
		node:     n,
		self:     n.ID(),
		sub:      sub,
		out:      make(map[string]*pubsub.Topic),
		handlers: make(map[signal.Kind][]func(*signal.Message)),
	}
	go t.readLoop(ctx)
	return t, nil
}

// Emit publishes msg to the target peer's inbox. Best-effort: a published
// message may never arrive if the target is gone.
func (t *SignalTransport) Emit(ctx context.Context, to string, msg *signal.Message) error {
	topic, err := t.outbox(to)
	if err != nil {
		return err
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal signal message: %w", err)
	}
	return topic.Publish(ctx, b)
}

// On registers a handler for one message kind. Handlers run on the
// dispatch loop; they must not block.
func (t *SignalTransport) On(kind signal.Kind, handler func(*signal.Message)) {
	t.handlerMu.Lock()
	t.handlers[kind] = append(t.handlers[kind], handler)
	t.handlerMu.Unlock()
}

func (t *SignalTransport) outbox(peerID string) (*pubsub.Topic, error) {
	t.outMu.Lock()
	defer t.outMu.Unlock()
	if topic, ok := t.out[peerID]; ok {
		return topic, nil
	}
	topic, err := t.node.ps.Join(proto.SignalTopic(peerID))
	if err != nil {
		return nil, fmt.Errorf("join signal outbox for %s: %w", peerID, err)
	}
	t.out[peerID] = topic
	return topic, nil
}

func (t *SignalTransport) readLoop(ctx context.Context) {
	for {
		m, err := t.sub.Next(ctx)
		if err != nil {
			return
		}
		origin := m.GetFrom()
		if origin == t.node.Host.ID() {
			continue
		}

		var msg signal.Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			log.Printf("SIGNAL: bad message on inbox: %v", err)
			continue
		}
		if msg.From == "" || msg.Kind == "" {
			continue
		}
		// The gossip envelope authenticates the originator; the From field
		// must match it or the message is a spoof.
		if msg.From != origin.String() {
			log.Printf("SIGNAL: sender %s claims identity %s, dropping", origin, msg.From)
			continue
		}
		if msg.To != "" && msg.To != t.self {
			continue
		}

		t.handlerMu.RLock()
		handlers := t.handlers[msg.Kind]
		t.handlerMu.RUnlock()
		for _, h := range handlers {
			h(&msg)
		}
	}
}
