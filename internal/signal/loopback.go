package signal

import (
	"context"
	"sync"
)

// Loopback is an in-process relay bus connecting named endpoints. It mirrors
// the relay contract: at-most-once delivery, messages to unknown endpoints
// are dropped silently, and ordering is preserved per kind only (each kind
// has its own delivery queue). Used by tests and the local two-peer harness.
type Loopback struct {
	mu        sync.Mutex
	endpoints map[string]*LoopbackEndpoint
	closed    bool
}

func NewLoopback() *Loopback {
	return &Loopback{endpoints: make(map[string]*LoopbackEndpoint)}
}

// Endpoint returns the transport endpoint for id, creating it if needed.
func (l *Loopback) Endpoint(id string) *LoopbackEndpoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	ep, ok := l.endpoints[id]
	if !ok {
		ep = &LoopbackEndpoint{
			id:       id,
			bus:      l,
			handlers: make(map[Kind][]func(*Message)),
			queues:   make(map[Kind]chan *Message),
		}
		l.endpoints[id] = ep
	}
	return ep
}

// Close stops all endpoint dispatchers. Emit after Close is a silent drop.
func (l *Loopback) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for _, ep := range l.endpoints {
		ep.close()
	}
}

func (l *Loopback) lookup(id string) (*LoopbackEndpoint, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, false
	}
	ep, ok := l.endpoints[id]
	return ep, ok
}

// LoopbackEndpoint implements Transport for one participant on the bus.
type LoopbackEndpoint struct {
	id  string
	bus *Loopback

	mu       sync.Mutex
	handlers map[Kind][]func(*Message)
	queues   map[Kind]chan *Message
	closed   bool
}

func (ep *LoopbackEndpoint) Emit(_ context.Context, to string, msg *Message) error {
	target, ok := ep.bus.lookup(to)
	if !ok {
		return nil // unreachable target: silent drop, per contract
	}
	target.deliver(msg)
	return nil
}

func (ep *LoopbackEndpoint) On(kind Kind, handler func(*Message)) {
	ep.mu.Lock()
	ep.handlers[kind] = append(ep.handlers[kind], handler)
	ep.mu.Unlock()
}

// deliver queues the message on the per-kind dispatch queue so handlers run
// off the sender's goroutine, in receipt order for that kind.
func (ep *LoopbackEndpoint) deliver(msg *Message) {
	ep.mu.Lock()
	if ep.closed {
		ep.mu.Unlock()
		return
	}
	q, ok := ep.queues[msg.Kind]
	if !ok {
		q = make(chan *Message, 64)
		ep.queues[msg.Kind] = q
		go ep.dispatch(q)
	}
	ep.mu.Unlock()

	select {
	case q <- msg:
	default:
		// best-effort transport: drop when the queue is full
	}
}

func (ep *LoopbackEndpoint) dispatch(q chan *Message) {
	for msg := range q {
		ep.mu.Lock()
		hs := make([]func(*Message), len(ep.handlers[msg.Kind]))
		copy(hs, ep.handlers[msg.Kind])
		ep.mu.Unlock()
		for _, h := range hs {
			h(msg)
		}
	}
}

func (ep *LoopbackEndpoint) close() {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.closed {
		return
	}
	ep.closed = true
	for _, q := range ep.queues {
		close(q)
	}
}
