package core

import "context"

type TrackKind int

const (
	TrackAudio TrackKind = iota + 1
	TrackVideo
)

func (k TrackKind) String() string {
	switch k {
	case TrackAudio:
		return "audio"
	case TrackVideo:
		return "video"
	default:
		return "unknown"
	}
}

// Track is a live capture track.
type Track interface {
	ID() string
	Kind() TrackKind
	// SetEnabled mutes or unmutes the track without touching the device.
	SetEnabled(bool)
	Enabled() bool
	// Stop releases the device. Calling it twice is safe.
	Stop() error
	// OnEnded is invoked when the device ends the track; err is nil after Stop.
	OnEnded(func(err error))
}

// Capturer is the device permission boundary.
// Errors wrap domain.ErrPermissionDenied or domain.ErrDeviceUnavailable.
type Capturer interface {
	// UserMedia requests camera and microphone.
	UserMedia(ctx context.Context) ([]Track, error)
	// DisplayMedia requests a screen capture source.
	DisplayMedia(ctx context.Context) ([]Track, error)
}
