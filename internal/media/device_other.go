//go:build !linux

package media

import (
	"context"
	"log"

	"github.com/pion/webrtc/v4"
)

// deviceSource on non-Linux platforms performs no hardware capture.
// Camera/mic capture via pion/mediadevices requires platform-specific
// drivers (V4L2/malgo on Linux); elsewhere calls run receive-only.
type deviceSource struct{}

// NewDeviceSource builds the platform capture source.
func NewDeviceSource() (Source, error) {
	return &deviceSource{}, nil
}

func (s *deviceSource) Populate(me *webrtc.MediaEngine) error {
	return me.RegisterDefaultCodecs()
}

func (s *deviceSource) Open(_ context.Context) (*Tracks, error) {
	log.Printf("MEDIA: no local capture on this platform — receive-only")
	return &Tracks{}, nil
}
