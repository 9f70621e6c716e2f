package session

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/app/media"
	"github.com/dkeye/Meet/internal/domain"
)

// acquireCamera runs off the caller's goroutine. Failures become Updates;
// the session carries on with the initials placeholder.
func (s *Session) acquireCamera(ctx context.Context, g uint64) {
	err := s.media.AcquireCamera(ctx)
	if !s.current(g) || errors.Is(err, media.ErrAbandoned) || ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "session").Str("kind", domain.KindOf(err).String()).Msg("camera unavailable")
	}
	s.publish(err)
}

// active reports the live generation and its context, or ok=false when no
// visit is in progress.
func (s *Session) active() (g uint64, ctx context.Context, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseIdle || s.lifeCtx == nil {
		return 0, nil, false
	}
	return s.gen, s.lifeCtx, true
}

// ToggleVideo flips the camera or screen video track. Without any source it
// retries the camera in the background.
func (s *Session) ToggleVideo() { s.toggle(s.media.ToggleVideo) }

func (s *Session) ToggleMic() { s.toggle(s.media.ToggleMic) }

func (s *Session) toggle(flip func() bool) {
	g, ctx, ok := s.active()
	if !ok {
		return
	}
	if !flip() && s.media.State().ActiveSource == domain.SourceNone {
		s.background(func() { s.acquireCamera(ctx, g) })
		return
	}
	s.publish(nil)
}

// ToggleScreenShare starts or stops the screen share. A cancelled picker
// leaves the current source alone and is reported, not fatal.
func (s *Session) ToggleScreenShare(ctx context.Context) error {
	g, life, ok := s.active()
	if !ok {
		return domain.ErrNotJoined
	}
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	unhook := context.AfterFunc(life, stop)
	defer unhook()

	var err error
	if s.media.State().ActiveSource == domain.SourceScreen {
		err = s.media.StopScreenShare(ctx)
	} else {
		err = s.media.StartScreenShare(ctx)
	}
	if errors.Is(err, media.ErrAbandoned) || !s.current(g) {
		return err
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("screen share")
	}
	s.publish(err)
	return err
}

func (s *Session) onMediaEvent(ev media.Event) {
	if _, _, ok := s.active(); !ok {
		return
	}
	s.publish(ev.Err)
}
