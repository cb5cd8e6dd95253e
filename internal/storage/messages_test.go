package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "messages.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestConversationPairSymmetry(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.SaveMessage(StoredMessage{ID: "m1", FromPeer: "a", ToPeer: "b", Content: "hi", Timestamp: 1}))
	require.NoError(t, db.SaveMessage(StoredMessage{ID: "m2", FromPeer: "b", ToPeer: "a", Content: "hey", Timestamp: 2}))
	require.NoError(t, db.SaveMessage(StoredMessage{ID: "m3", FromPeer: "a", ToPeer: "c", Content: "other", Timestamp: 3}))

	// Both directions of the pair, ordered by time, third party excluded.
	msgs, err := db.Conversation("a", "b", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)

	// Querying from the other side yields the same conversation.
	msgs2, err := db.Conversation("b", "a", 0)
	require.NoError(t, err)
	assert.Equal(t, msgs, msgs2)
}

func TestSaveMessageDuplicateIgnored(t *testing.T) {
	db := openTestDB(t)

	m := StoredMessage{ID: "m1", FromPeer: "a", ToPeer: "b", Content: "hi", Timestamp: 1}
	require.NoError(t, db.SaveMessage(m))
	require.NoError(t, db.SaveMessage(m))

	msgs, err := db.Conversation("a", "b", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestDeleteMessage(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.SaveMessage(StoredMessage{ID: "m1", FromPeer: "a", ToPeer: "b", Timestamp: 1}))
	require.NoError(t, db.DeleteMessage("m1"))
	require.NoError(t, db.DeleteMessage("m1"), "deleting a missing id is a no-op")

	msgs, err := db.Conversation("a", "b", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestConversationLimit(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, db.SaveMessage(StoredMessage{
			ID: string(rune('a' + i)), FromPeer: "a", ToPeer: "b", Timestamp: int64(i),
		}))
	}
	msgs, err := db.Conversation("a", "b", 3)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
}
