package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"

	"github.com/YogyashriPatil/fullstack-chat-app/internal/proto"
	"github.com/YogyashriPatil/fullstack-chat-app/internal/storage"
	"github.com/YogyashriPatil/fullstack-chat-app/internal/util"
)

const (
	// DefaultBufferSize is the number of recent messages kept in memory for
	// quick event replay; full history lives in the database.
	DefaultBufferSize = 100

	// maxFrameSize bounds one inbound message frame. Attachments ride along
	// as data URLs, so the cap is generous.
	maxFrameSize = 8 << 20
)

var ErrEmptyMessage = errors.New("message needs text or an attachment")

// Manager sends and receives direct chat messages over a libp2p stream
// protocol and persists them to the message store.
type Manager struct {
	host   host.Host
	db     *storage.DB
	selfID string

	mu        sync.RWMutex
	recent    *util.RingBuffer[*Message]
	listeners []chan *Message
}

func New(h host.Host, db *storage.DB, bufferSize int) *Manager {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	m := &Manager{
		host:   h,
		db:     db,
		selfID: h.ID().String(),
		recent: util.NewRingBuffer[*Message](bufferSize),
	}
	h.SetStreamHandler(protocol.ID(proto.ChatProtoID), m.handleStream)
	return m
}

// Send delivers a direct message to a peer and records it locally.
func (m *Manager) Send(ctx context.Context, toPeerID, content, attachment string) (*Message, error) {
	if content == "" && attachment == "" {
		return nil, ErrEmptyMessage
	}
	pid, err := peer.Decode(toPeerID)
	if err != nil {
		return nil, fmt.Errorf("invalid peer id %q: %w", toPeerID, err)
	}

	msg := NewMessage(m.selfID, toPeerID, content, attachment)

	stream, err := m.host.NewStream(ctx, pid, protocol.ID(proto.ChatProtoID))
	if err != nil {
		return nil, fmt.Errorf("open chat stream: %w", err)
	}
	defer stream.Close()

	if err := json.NewEncoder(stream).Encode(msg); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	m.record(msg)
	log.Printf("CHAT: sent message %s to %s", msg.ID, toPeerID)
	return msg, nil
}

func (m *Manager) handleStream(stream network.Stream) {
	defer stream.Close()
	remote := stream.Conn().RemotePeer().String()

	var msg Message
	if err := json.NewDecoder(io.LimitReader(stream, maxFrameSize)).Decode(&msg); err != nil {
		log.Printf("CHAT: bad message from %s: %v", remote, err)
		return
	}
	// The stream already authenticates the sender; a mismatched From field
	// is a spoof attempt.
	if msg.From != remote {
		log.Printf("CHAT: message from %s claims sender %s, rejecting", remote, msg.From)
		return
	}
	if msg.Content == "" && msg.Attachment == "" {
		return
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	msg.To = m.selfID

	m.record(&msg)
	log.Printf("CHAT: received message %s from %s", msg.ID, msg.From)
}

// record persists the message and notifies listeners. Persistence failures
// are logged, not fatal: the message is already on the wire.
func (m *Manager) record(msg *Message) {
	if m.db != nil {
		err := m.db.SaveMessage(storage.StoredMessage{
			ID:         msg.ID,
			FromPeer:   msg.From,
			ToPeer:     msg.To,
			Content:    msg.Content,
			Attachment: msg.Attachment,
			Timestamp:  msg.Timestamp,
		})
		if err != nil {
			log.Printf("CHAT: persist message %s: %v", msg.ID, err)
		}
	}
	m.recent.Push(msg)

	m.mu.RLock()
	for _, ch := range m.listeners {
		select {
		case ch <- msg:
		default:
		}
	}
	m.mu.RUnlock()
}

// Conversation returns the stored history with one peer, oldest first.
func (m *Manager) Conversation(peerID string, limit int) ([]*Message, error) {
	if m.db == nil {
		out := make([]*Message, 0)
		for _, msg := range m.recent.Snapshot() {
			if msg.From == peerID || msg.To == peerID {
				out = append(out, msg)
			}
		}
		return out, nil
	}
	stored, err := m.db.Conversation(m.selfID, peerID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*Message, 0, len(stored))
	for _, sm := range stored {
		out = append(out, &Message{
			ID:         sm.ID,
			From:       sm.FromPeer,
			To:         sm.ToPeer,
			Content:    sm.Content,
			Attachment: sm.Attachment,
			Timestamp:  sm.Timestamp,
		})
	}
	return out, nil
}

// DeleteMessage removes one message from the store.
func (m *Manager) DeleteMessage(id string) error {
	if m.db == nil {
		return nil
	}
	return m.db.DeleteMessage(id)
}

// ClearConversation wipes the stored history with one peer.
func (m *Manager) ClearConversation(peerID string) error {
	if m.db == nil {
		return nil
	}
	return m.db.DeleteConversation(m.selfID, peerID)
}

// Recent returns the in-memory tail of the message feed.
func (m *Manager) Recent() []*Message {
	return m.recent.Snapshot()
}

func (m *Manager) LocalPeerID() string { return m.selfID }

// Subscribe returns a channel receiving every new message, sent or received.
func (m *Manager) Subscribe() chan *Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan *Message, 10)
	m.listeners = append(m.listeners, ch)
	return ch
}

func (m *Manager) Unsubscribe(ch chan *Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, listener := range m.listeners {
		if listener == ch {
			close(listener)
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, listener := range m.listeners {
		close(listener)
	}
	m.listeners = nil
	return nil
}
