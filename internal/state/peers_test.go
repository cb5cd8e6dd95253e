package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeerTableReachability(t *testing.T) {
	tbl := NewPeerTable()

	assert.False(t, tbl.IsReachable("p1"), "unknown peer must not be reachable")

	tbl.Upsert("p1", "alice")
	assert.True(t, tbl.IsReachable("p1"))

	tbl.MarkOffline("p1")
	assert.False(t, tbl.IsReachable("p1"))

	// Peer stays in the table while offline, just unreachable.
	sp, ok := tbl.Get("p1")
	require.True(t, ok)
	assert.False(t, sp.Reachable)
	assert.False(t, sp.OfflineSince.IsZero())
}

func TestPeerTableUpsertRestoresReachability(t *testing.T) {
	tbl := NewPeerTable()
	tbl.Upsert("p1", "alice")
	tbl.MarkOffline("p1")
	tbl.Upsert("p1", "alice")
	assert.True(t, tbl.IsReachable("p1"))
}

func TestPeerTablePruneStale(t *testing.T) {
	tbl := NewPeerTable()
	tbl.Upsert("p1", "alice")
	tbl.Upsert("p2", "bob")
	tbl.MarkOffline("p2")

	// p1's TTL expired: becomes offline but is kept during the grace window.
	tbl.PruneStale(time.Now().Add(time.Second), time.Now().Add(-time.Hour))
	assert.False(t, tbl.IsReachable("p1"))
	_, ok := tbl.Get("p1")
	assert.True(t, ok)

	// Grace window elapsed: offline peers are dropped entirely.
	tbl.PruneStale(time.Now().Add(time.Second), time.Now().Add(time.Second))
	_, ok = tbl.Get("p1")
	assert.False(t, ok)
	_, ok = tbl.Get("p2")
	assert.False(t, ok)
}

func TestPeerTableSubscribe(t *testing.T) {
	tbl := NewPeerTable()
	ch := tbl.Subscribe()
	defer tbl.Unsubscribe(ch)

	tbl.Upsert("p1", "alice")

	select {
	case evt := <-ch:
		assert.Equal(t, "update", evt.Type)
		assert.Equal(t, "p1", evt.PeerID)
	case <-time.After(time.Second):
		t.Fatal("no peer event received")
	}
}
