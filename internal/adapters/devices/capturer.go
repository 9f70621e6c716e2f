// Package devices captures local camera, microphone and screen with
// pion/mediadevices. Drivers register themselves through blank imports in
// the binary that wants them.
package devices

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

type Options struct {
	VideoWidth  int
	VideoHeight int
}

type Capturer struct {
	opts Options
}

var _ core.Capturer = (*Capturer)(nil)

func NewCapturer(opts Options) *Capturer {
	return &Capturer{opts: opts}
}

func (c *Capturer) UserMedia(ctx context.Context) ([]core.Track, error) {
	return c.capture(ctx, "user", func() (mediadevices.MediaStream, error) {
		return mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
			Video: c.videoConstraints,
			Audio: func(*mediadevices.MediaTrackConstraints) {},
		})
	})
}

func (c *Capturer) DisplayMedia(ctx context.Context) ([]core.Track, error) {
	return c.capture(ctx, "display", func() (mediadevices.MediaStream, error) {
		return mediadevices.GetDisplayMedia(mediadevices.MediaStreamConstraints{
			Video: func(*mediadevices.MediaTrackConstraints) {},
		})
	})
}

func (c *Capturer) videoConstraints(mc *mediadevices.MediaTrackConstraints) {
	if c.opts.VideoWidth > 0 {
		mc.Width = prop.IntRanged{Max: c.opts.VideoWidth}
	}
	if c.opts.VideoHeight > 0 {
		mc.Height = prop.IntRanged{Max: c.opts.VideoHeight}
	}
}

type result struct {
	stream mediadevices.MediaStream
	err    error
}

// capture runs open off the caller's goroutine so a cancelled ctx returns
// promptly; a stream that arrives late is closed.
func (c *Capturer) capture(ctx context.Context, what string, open func() (mediadevices.MediaStream, error)) ([]core.Track, error) {
	done := make(chan result, 1)
	go func() {
		s, err := open()
		done <- result{s, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.err == nil {
				closeAll(r.stream.GetTracks())
			}
		}()
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			log.Warn().Err(r.err).Str("module", "devices").Str("media", what).Msg("capture failed")
			return nil, classify(r.err)
		}
		raw := r.stream.GetTracks()
		if len(raw) == 0 {
			return nil, fmt.Errorf("%w: no tracks", domain.ErrDeviceUnavailable)
		}
		tracks := make([]core.Track, 0, len(raw))
		for _, t := range raw {
			tracks = append(tracks, wrap(t))
		}
		log.Info().Str("module", "devices").Str("media", what).Int("tracks", len(tracks)).Msg("capture started")
		return tracks, nil
	}
}

func classify(err error) error {
	if errors.Is(err, fs.ErrPermission) || strings.Contains(strings.ToLower(err.Error()), "permission denied") {
		return fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
}

func closeAll(ts []mediadevices.Track) {
	for _, t := range ts {
		_ = t.Close()
	}
}

type track struct {
	raw     mediadevices.Track
	enabled atomic.Bool
	stopped atomic.Bool

	stopOnce sync.Once
	stopErr  error

	mu      sync.Mutex
	onEnded func(error)
}

func wrap(raw mediadevices.Track) *track {
	t := &track{raw: raw}
	t.enabled.Store(true)
	raw.OnEnded(t.ended)
	return t
}

func (t *track) ID() string { return t.raw.ID() }

func (t *track) Kind() core.TrackKind {
	if t.raw.Kind() == webrtc.RTPCodecTypeVideo {
		return core.TrackVideo
	}
	return core.TrackAudio
}

func (t *track) SetEnabled(on bool) { t.enabled.Store(on) }

func (t *track) Enabled() bool { return t.enabled.Load() }

func (t *track) Stop() error {
	t.stopOnce.Do(func() {
		t.stopped.Store(true)
		t.stopErr = t.raw.Close()
		t.fire(nil)
	})
	return t.stopErr
}

func (t *track) OnEnded(fn func(error)) {
	t.mu.Lock()
	t.onEnded = fn
	t.mu.Unlock()
}

// ended is the driver callback. Errors after our own Stop are teardown noise.
func (t *track) ended(err error) {
	if t.stopped.Load() {
		return
	}
	if err == nil {
		err = errors.New("track ended")
	}
	log.Warn().Err(err).Str("module", "devices").Str("track", t.raw.ID()).Msg("track ended by device")
	t.fire(err)
}

func (t *track) fire(err error) {
	t.mu.Lock()
	fn := t.onEnded
	t.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
