package chat

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	libp2p "github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"

	"github.com/YogyashriPatil/fullstack-chat-app/internal/storage"
)

func newConnectedHosts(t *testing.T) (host.Host, host.Host) {
	t.Helper()
	h1, err := libp2p.New(libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h1.Close() })
	h2, err := libp2p.New(libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h2.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h1.Connect(ctx, peer.AddrInfo{ID: h2.ID(), Addrs: h2.Addrs()}))
	return h1, h2
}

func newTestManager(t *testing.T, h host.Host) *Manager {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "messages.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	m := New(h, db, 10)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestSendAndReceive(t *testing.T) {
	h1, h2 := newConnectedHosts(t)
	m1 := newTestManager(t, h1)
	m2 := newTestManager(t, h2)

	sub := m2.Subscribe()
	defer m2.Unsubscribe(sub)

	sent, err := m1.Send(context.Background(), h2.ID().String(), "hello there", "")
	require.NoError(t, err)
	require.NotEmpty(t, sent.ID)

	var got *Message
	select {
	case got = <-sub:
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
	require.Equal(t, sent.ID, got.ID)
	require.Equal(t, h1.ID().String(), got.From)
	require.Equal(t, "hello there", got.Content)

	// Both sides persisted the exchange.
	hist, err := m2.Conversation(h1.ID().String(), 50)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.Equal(t, sent.ID, hist[0].ID)

	hist, err = m1.Conversation(h2.ID().String(), 50)
	require.NoError(t, err)
	require.Len(t, hist, 1)
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	h1, h2 := newConnectedHosts(t)
	m1 := newTestManager(t, h1)
	newTestManager(t, h2)

	_, err := m1.Send(context.Background(), h2.ID().String(), "", "")
	require.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSendAttachmentOnly(t *testing.T) {
	h1, h2 := newConnectedHosts(t)
	m1 := newTestManager(t, h1)
	m2 := newTestManager(t, h2)

	sub := m2.Subscribe()
	defer m2.Unsubscribe(sub)

	_, err := m1.Send(context.Background(), h2.ID().String(), "", "data:image/png;base64,iVBORw0KGgo=")
	require.NoError(t, err)

	select {
	case got := <-sub:
		require.Empty(t, got.Content)
		require.NotEmpty(t, got.Attachment)
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}

func TestSendInvalidPeerID(t *testing.T) {
	h1, _ := newConnectedHosts(t)
	m1 := newTestManager(t, h1)

	_, err := m1.Send(context.Background(), "not-a-peer-id", "hi", "")
	require.Error(t, err)
}
