package media

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// nullSource disables local capture; calls run receive-only.
type nullSource struct{}

// NewNullSource returns a source that captures nothing. Used when media is
// disabled in config.
func NewNullSource() Source { return nullSource{} }

func (nullSource) Open(context.Context) (*Tracks, error) { return &Tracks{}, nil }

func (nullSource) Populate(me *webrtc.MediaEngine) error {
	return me.RegisterDefaultCodecs()
}
