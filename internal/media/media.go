// Package media owns the local capture device. One session at a time holds
// the device; acquisition is idempotent and release is guaranteed safe on
// every call exit path.
package media

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/pion/webrtc/v4"
)

// ErrDeviceUnavailable means the capture device could not be opened (denied,
// busy, or absent). Fatal to the call attempt that triggered the acquire.
var ErrDeviceUnavailable = errors.New("media device unavailable")

// Tracks is the set of local tracks captured from the device. It may be
// empty on platforms without capture support (receive-only calls).
type Tracks struct {
	locals  []webrtc.TrackLocal
	closers []func() error
}

// Locals returns the tracks to attach to a peer connection.
func (t *Tracks) Locals() []webrtc.TrackLocal {
	if t == nil {
		return nil
	}
	return t.locals
}

// HasKind reports whether a local track of the given kind was captured.
func (t *Tracks) HasKind(kind webrtc.RTPCodecType) bool {
	if t == nil {
		return false
	}
	for _, l := range t.locals {
		if l.Kind() == kind {
			return true
		}
	}
	return false
}

func (t *Tracks) stop() {
	for _, c := range t.closers {
		if err := c(); err != nil {
			log.Printf("MEDIA: track close error: %v", err)
		}
	}
	t.closers = nil
	t.locals = nil
}

// Source opens the platform capture device. Implementations live behind
// build tags; tests substitute their own.
type Source interface {
	// Open captures local tracks. Returns ErrDeviceUnavailable (possibly
	// wrapped) when no device can be opened at all.
	Open(ctx context.Context) (*Tracks, error)

	// Populate registers the codecs of captured tracks on a media engine,
	// so peer connections created for these tracks can negotiate them.
	Populate(*webrtc.MediaEngine) error
}

// Manager serializes access to the capture device. Acquire is idempotent:
// while a device session is held, further acquires return the same handle.
type Manager struct {
	mu  sync.Mutex
	src Source
	cur *Tracks
}

func NewManager(src Source) *Manager {
	return &Manager{src: src}
}

// Acquire opens the device, or returns the already-held tracks.
func (m *Manager) Acquire(ctx context.Context) (*Tracks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur != nil {
		return m.cur, nil
	}
	tracks, err := m.src.Open(ctx)
	if err != nil {
		return nil, err
	}
	m.cur = tracks
	log.Printf("MEDIA: device acquired (%d tracks)", len(tracks.Locals()))
	return tracks, nil
}

// Release stops and releases all held tracks. Safe to call when nothing is
// held.
func (m *Manager) Release() {
	m.mu.Lock()
	cur := m.cur
	m.cur = nil
	m.mu.Unlock()
	if cur == nil {
		return
	}
	cur.stop()
	log.Printf("MEDIA: device released")
}

// Held reports whether a device session is currently held.
func (m *Manager) Held() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur != nil
}

// Populate delegates codec registration to the source.
func (m *Manager) Populate(me *webrtc.MediaEngine) error {
	return m.src.Populate(me)
}
