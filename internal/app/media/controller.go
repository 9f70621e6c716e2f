// Package media owns the local capture source. Camera and screen capture are
// mutually exclusive: installing one always stops the other's tracks.
package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// ErrAbandoned is returned when an acquisition finished after Release or
// after another source was installed. Its tracks are already stopped.
var ErrAbandoned = errors.New("media: acquisition abandoned")

// Event reports changes the controller did not initiate from a method call,
// such as a device disappearing.
type Event struct {
	State domain.MediaState
	Err   error
}

type flags struct {
	video bool
	audio bool
}

type Controller struct {
	capturer core.Capturer

	mu      sync.Mutex
	gen     uint64
	source  domain.Source
	tracks  []core.Track
	enabled flags
	// camera flags from before the current screen share
	saved   *flags
	onEvent func(Event)
}

func NewController(c core.Capturer) *Controller {
	return &Controller{capturer: c}
}

// OnEvent sets the callback for device-initiated changes.
func (c *Controller) OnEvent(fn func(Event)) {
	c.mu.Lock()
	c.onEvent = fn
	c.mu.Unlock()
}

func (c *Controller) State() domain.MediaState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() domain.MediaState {
	return domain.MediaState{
		ActiveSource: c.source,
		VideoEnabled: c.enabled.video,
		AudioEnabled: c.enabled.audio,
	}
}

// AcquireCamera requests camera and microphone. It is a no-op while any
// source is active.
func (c *Controller) AcquireCamera(ctx context.Context) error {
	c.mu.Lock()
	if c.source != domain.SourceNone {
		c.mu.Unlock()
		return nil
	}
	g := c.gen
	c.mu.Unlock()

	tracks, err := c.capturer.UserMedia(ctx)
	if err != nil {
		return c.failed(ctx, g, fmt.Errorf("acquire camera: %w", err))
	}
	return c.install(ctx, g, domain.SourceCamera, tracks, flags{video: true, audio: true}, nil)
}

func (c *Controller) SetVideoEnabled(v bool) { c.setEnabled(core.TrackVideo, v) }

func (c *Controller) SetMicEnabled(v bool) { c.setEnabled(core.TrackAudio, v) }

// ToggleVideo flips the video flag in one step, reporting false when the
// active source has no video track.
func (c *Controller) ToggleVideo() bool { return c.toggle(core.TrackVideo) }

func (c *Controller) ToggleMic() bool { return c.toggle(core.TrackAudio) }

func (c *Controller) setEnabled(kind core.TrackKind, v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyEnabled(kind, v)
}

func (c *Controller) toggle(kind core.TrackKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := !c.enabled.audio
	if kind == core.TrackVideo {
		v = !c.enabled.video
	}
	return c.applyEnabled(kind, v)
}

// applyEnabled must be called with c.mu held.
func (c *Controller) applyEnabled(kind core.TrackKind, v bool) bool {
	if !hasKind(c.tracks, kind) {
		return false
	}
	for _, t := range c.tracks {
		if t.Kind() == kind {
			t.SetEnabled(v)
		}
	}
	if kind == core.TrackVideo {
		c.enabled.video = v
	} else {
		c.enabled.audio = v
	}
	log.Debug().Str("module", "media").Str("kind", kind.String()).Bool("enabled", v).Msg("track toggled")
	return true
}

// StartScreenShare swaps the active source for a screen capture. When the
// picker is cancelled the current source stays untouched.
func (c *Controller) StartScreenShare(ctx context.Context) error {
	c.mu.Lock()
	if c.source == domain.SourceScreen {
		c.mu.Unlock()
		return nil
	}
	g := c.gen
	var saved *flags
	if c.source == domain.SourceCamera {
		prior := c.enabled
		saved = &prior
	}
	c.mu.Unlock()

	tracks, err := c.capturer.DisplayMedia(ctx)
	if err != nil {
		return c.failed(ctx, g, fmt.Errorf("start screen share: %w", err))
	}
	return c.install(ctx, g, domain.SourceScreen, tracks, flags{video: true, audio: true}, saved)
}

// StopScreenShare releases the screen and reacquires the camera with the
// flags it had before sharing. On failure the source falls back to none.
func (c *Controller) StopScreenShare(ctx context.Context) error {
	c.mu.Lock()
	if c.source != domain.SourceScreen {
		c.mu.Unlock()
		return nil
	}
	want := flags{video: true, audio: true}
	if c.saved != nil {
		want = *c.saved
	}
	old := c.resetLocked()
	g := c.gen
	c.mu.Unlock()

	stopAll(old)
	log.Info().Str("module", "media").Msg("screen share stopped")

	tracks, err := c.capturer.UserMedia(ctx)
	if err != nil {
		return c.failed(ctx, g, fmt.Errorf("restore camera: %w", err))
	}
	return c.install(ctx, g, domain.SourceCamera, tracks, want, nil)
}

// Release stops every track of the active source. Acquisitions still in
// flight are abandoned when they complete.
func (c *Controller) Release() {
	c.mu.Lock()
	src := c.source
	old := c.resetLocked()
	c.mu.Unlock()

	stopAll(old)
	log.Info().Str("module", "media").Str("source", src.String()).Int("tracks", len(old)).Msg("released")
}

// Stream returns the read-only render handle, or nil without a source.
func (c *Controller) Stream() *Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source == domain.SourceNone {
		return nil
	}
	s := &Stream{Source: c.source, Tracks: make([]TrackInfo, 0, len(c.tracks))}
	for _, t := range c.tracks {
		s.Tracks = append(s.Tracks, TrackInfo{ID: t.ID(), Kind: t.Kind(), Enabled: t.Enabled()})
	}
	return s
}

// resetLocked detaches the current tracks and invalidates pending acquisitions.
func (c *Controller) resetLocked() []core.Track {
	old := c.tracks
	c.tracks = nil
	c.source = domain.SourceNone
	c.enabled = flags{}
	c.saved = nil
	c.gen++
	return old
}

func (c *Controller) install(ctx context.Context, g uint64, src domain.Source, tracks []core.Track, want flags, saved *flags) error {
	c.mu.Lock()
	if c.gen != g || ctx.Err() != nil {
		c.mu.Unlock()
		stopAll(tracks)
		log.Info().Str("module", "media").Str("source", src.String()).Msg("acquisition abandoned")
		return ErrAbandoned
	}
	old := c.tracks
	c.gen++
	gen := c.gen
	c.source = src
	c.tracks = tracks
	c.saved = saved
	c.enabled = flags{
		video: want.video && hasKind(tracks, core.TrackVideo),
		audio: want.audio && hasKind(tracks, core.TrackAudio),
	}
	for _, t := range tracks {
		if t.Kind() == core.TrackVideo {
			t.SetEnabled(c.enabled.video)
		} else {
			t.SetEnabled(c.enabled.audio)
		}
	}
	c.mu.Unlock()

	for _, t := range tracks {
		t.OnEnded(func(err error) { c.trackEnded(gen, err) })
	}
	stopAll(old)
	log.Info().Str("module", "media").Str("source", src.String()).Int("tracks", len(tracks)).Msg("source installed")
	return nil
}

func (c *Controller) failed(ctx context.Context, g uint64, err error) error {
	c.mu.Lock()
	stale := c.gen != g
	c.mu.Unlock()
	if stale || ctx.Err() != nil {
		return ErrAbandoned
	}
	log.Warn().Err(err).Str("module", "media").Msg("capture failed")
	return err
}

// trackEnded handles a device ending one of the installed tracks. A nil err
// means we stopped it ourselves.
func (c *Controller) trackEnded(g uint64, err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	if c.gen != g {
		c.mu.Unlock()
		return
	}
	if c.source == domain.SourceScreen {
		c.mu.Unlock()
		log.Info().Str("module", "media").Err(err).Msg("screen capture ended, restoring camera")
		go func() {
			err := c.StopScreenShare(context.Background())
			if err != nil && !errors.Is(err, ErrAbandoned) {
				c.emit(Event{State: c.State(), Err: err})
				return
			}
			c.emit(Event{State: c.State()})
		}()
		return
	}
	old := c.resetLocked()
	state := c.stateLocked()
	c.mu.Unlock()

	stopAll(old)
	log.Warn().Str("module", "media").Err(err).Msg("capture device ended")
	c.emit(Event{State: state, Err: fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)})
}

func (c *Controller) emit(ev Event) {
	c.mu.Lock()
	fn := c.onEvent
	c.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func hasKind(tracks []core.Track, kind core.TrackKind) bool {
	for _, t := range tracks {
		if t.Kind() == kind {
			return true
		}
	}
	return false
}

func stopAll(tracks []core.Track) {
	for _, t := range tracks {
		if err := t.Stop(); err != nil {
			log.Error().Err(err).Str("module", "media").Str("track", t.ID()).Msg("stop track")
		}
	}
}
