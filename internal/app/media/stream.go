package media

import (
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// Stream is a snapshot of the active source for renderers. Holding it never
// keeps a device open.
type Stream struct {
	Source domain.Source
	Tracks []TrackInfo
}

type TrackInfo struct {
	ID      string
	Kind    core.TrackKind
	Enabled bool
}

func (s *Stream) HasVideo() bool {
	if s == nil {
		return false
	}
	for _, t := range s.Tracks {
		if t.Kind == core.TrackVideo && t.Enabled {
			return true
		}
	}
	return false
}
