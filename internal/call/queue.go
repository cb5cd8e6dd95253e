package call

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// CandidateQueue buffers connectivity candidates that arrive before the
// remote description is applied. Candidate delivery races independently
// against the offer/answer exchange over the relay, so applying a candidate
// too early would fail; the queue absorbs that race. After Flush, candidates
// bypass the buffer and are applied directly.
type CandidateQueue struct {
	mu      sync.Mutex
	pending []webrtc.ICECandidateInit
	flushed bool
}

// Add applies c to conn when the queue has been flushed, otherwise buffers
// it in arrival order.
func (q *CandidateQueue) Add(conn Conn, c webrtc.ICECandidateInit) error {
	q.mu.Lock()
	if !q.flushed {
		q.pending = append(q.pending, c)
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()
	return conn.AddICECandidate(c)
}

// Flush applies every buffered candidate to conn in the order enqueued,
// then empties the buffer. Runs exactly once; later calls are no-ops.
// Must be called immediately after the remote description is first applied.
func (q *CandidateQueue) Flush(conn Conn) error {
	q.mu.Lock()
	if q.flushed {
		q.mu.Unlock()
		return nil
	}
	q.flushed = true
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, c := range pending {
		if err := conn.AddICECandidate(c); err != nil {
			return err
		}
	}
	return nil
}

// Clear drops any buffered candidates without applying them. Used on
// teardown.
func (q *CandidateQueue) Clear() {
	q.mu.Lock()
	q.pending = nil
	q.mu.Unlock()
}

// Len returns the number of buffered candidates.
func (q *CandidateQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
