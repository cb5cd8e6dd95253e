package media

import (
	"context"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	opens  int
	fail   bool
	closed int
}

func (f *fakeSource) Open(context.Context) (*Tracks, error) {
	f.opens++
	if f.fail {
		return nil, ErrDeviceUnavailable
	}
	return &Tracks{
		closers: []func() error{func() error { f.closed++; return nil }},
	}, nil
}

func (f *fakeSource) Populate(*webrtc.MediaEngine) error { return nil }

func TestAcquireIdempotent(t *testing.T) {
	src := &fakeSource{}
	m := NewManager(src)

	first, err := m.Acquire(context.Background())
	require.NoError(t, err)

	second, err := m.Acquire(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second, "second acquire must return the held handle")
	assert.Equal(t, 1, src.opens, "device opened once")
	assert.True(t, m.Held())
}

func TestReleaseStopsTracksAndIsSafeWhenIdle(t *testing.T) {
	src := &fakeSource{}
	m := NewManager(src)

	m.Release() // nothing held: no-op

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)

	m.Release()
	assert.Equal(t, 1, src.closed)
	assert.False(t, m.Held())

	m.Release() // double release: no double-stop
	assert.Equal(t, 1, src.closed)
}

func TestAcquireAfterReleaseReopens(t *testing.T) {
	src := &fakeSource{}
	m := NewManager(src)

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)
	m.Release()

	_, err = m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.opens)
}

func TestAcquireDeviceUnavailable(t *testing.T) {
	src := &fakeSource{fail: true}
	m := NewManager(src)

	_, err := m.Acquire(context.Background())
	require.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.False(t, m.Held())
}
