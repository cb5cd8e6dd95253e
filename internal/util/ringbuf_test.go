package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingBufferBelowCapacity(t *testing.T) {
	r := NewRingBuffer[int](4)
	r.Push(1)
	r.Push(2)
	require.Equal(t, 2, r.Len())
	require.Equal(t, []int{1, 2}, r.Snapshot())
}

func TestRingBufferEvictsOldest(t *testing.T) {
	r := NewRingBuffer[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	require.Equal(t, 3, r.Len())
	require.Equal(t, []int{3, 4, 5}, r.Snapshot())

	r.Push(6)
	require.Equal(t, []int{4, 5, 6}, r.Snapshot())
}

func TestRingBufferSnapshotIsACopy(t *testing.T) {
	r := NewRingBuffer[int](2)
	r.Push(1)
	snap := r.Snapshot()
	snap[0] = 99
	require.Equal(t, []int{1}, r.Snapshot())
}
