package call

import (
	"fmt"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func cand(i int) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate: fmt.Sprintf("candidate:%d 1 udp 2130706431 192.0.2.%d 51000 typ host", i, i),
	}
}

func TestQueueBuffersBeforeFlush(t *testing.T) {
	fc := newFakeConn()
	var q CandidateQueue

	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Add(fc, cand(i)))
	}
	require.Equal(t, 3, q.Len())
	require.Empty(t, fc.addedCandidates())
}

func TestQueueFlushAppliesInOrder(t *testing.T) {
	fc := newFakeConn()
	var q CandidateQueue

	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Add(fc, cand(i)))
	}
	require.NoError(t, q.Flush(fc))

	got := fc.addedCandidates()
	require.Len(t, got, 3)
	for i, c := range got {
		require.Equal(t, cand(i+1).Candidate, c.Candidate)
	}
	require.Equal(t, 0, q.Len())
}

func TestQueueFlushOnce(t *testing.T) {
	fc := newFakeConn()
	var q CandidateQueue

	require.NoError(t, q.Add(fc, cand(1)))
	require.NoError(t, q.Flush(fc))
	require.NoError(t, q.Flush(fc))
	require.Len(t, fc.addedCandidates(), 1)
}

func TestQueueDirectAfterFlush(t *testing.T) {
	fc := newFakeConn()
	var q CandidateQueue

	require.NoError(t, q.Flush(fc))
	require.NoError(t, q.Add(fc, cand(7)))
	require.Len(t, fc.addedCandidates(), 1)
	require.Equal(t, 0, q.Len())
}

func TestQueueClearDropsBuffered(t *testing.T) {
	fc := newFakeConn()
	var q CandidateQueue

	require.NoError(t, q.Add(fc, cand(1)))
	require.NoError(t, q.Add(fc, cand(2)))
	q.Clear()
	require.NoError(t, q.Flush(fc))
	require.Empty(t, fc.addedCandidates())
}
