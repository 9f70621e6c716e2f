package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

func leaveFrame(self domain.UserID) protocol.Frame { return protocol.Leave{UserID: self} }

// readEvents drains one channel in arrival order until its terminal event.
func (s *Session) readEvents(g uint64, ch core.SignalChannel) {
	for ev := range ch.Events() {
		if ev.Disconnected {
			s.disconnected(g, ch, ev.Err)
			continue
		}
		if s.apply(g, ch, ev.Frame) {
			s.publish(nil)
		}
	}
}

// discard closes a channel nobody reads. Its events are drained so the
// channel's reader never blocks on a full buffer.
func discard(ch core.SignalChannel) {
	go func() {
		for range ch.Events() {
		}
	}()
	_ = ch.Close()
}

func (s *Session) apply(g uint64, ch core.SignalChannel, f protocol.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != g || s.ch != ch {
		return false
	}
	if fr, ok := f.(protocol.Forum); ok {
		e := s.chat.AppendRemote(fr.SenderID, fr.Text)
		log.Debug().Str("module", "session").Str("user", string(e.SenderID)).Msg("chat received")
		return true
	}
	return s.presence.Apply(f)
}

// disconnected handles the channel's terminal event. A nil err means we
// closed it ourselves.
func (s *Session) disconnected(g uint64, ch core.SignalChannel, err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	if s.gen != g || s.ch != ch {
		s.mu.Unlock()
		return
	}
	log.Warn().Err(err).Str("module", "session").Str("meeting", string(s.meeting)).Msg("connection lost")
	if !s.reconnect.Enabled {
		s.mu.Unlock()
		s.teardown(g)
		s.publish(err)
		return
	}
	s.ch = nil
	s.phase = PhaseReconnecting
	s.presence.Disconnected()
	self, life := s.self.ID, s.lifeCtx
	s.mu.Unlock()

	s.publish(err)
	s.background(func() { s.redial(life, g, self) })
}

// redial reconnects with exponential backoff, keeping the media source and
// chat. The roster starts empty and admission restarts at waiting.
func (s *Session) redial(ctx context.Context, g uint64, self domain.UserID) {
	wait := s.reconnect.InitialBackoff
	if wait <= 0 {
		wait = time.Second
	}
	var lastErr error
	for attempt := 1; attempt <= s.reconnect.MaxAttempts; attempt++ {
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}

		ch, err := s.connector.Connect(ctx, self)
		if err == nil {
			s.resume(g, ch)
			return
		}
		if ctx.Err() != nil {
			return
		}
		lastErr = err
		log.Warn().Err(err).Str("module", "session").Int("attempt", attempt).Dur("backoff", wait).Msg("redial failed")
		wait *= 2
		if s.reconnect.MaxBackoff > 0 && wait > s.reconnect.MaxBackoff {
			wait = s.reconnect.MaxBackoff
		}
	}

	log.Error().Err(lastErr).Str("module", "session").Msg("giving up on relay")
	s.teardown(g)
	s.publish(fmt.Errorf("%w: gave up after %d attempts", domain.ErrConnectionLost, s.reconnect.MaxAttempts))
}

func (s *Session) resume(g uint64, ch core.SignalChannel) {
	s.mu.Lock()
	if s.gen != g {
		s.mu.Unlock()
		discard(ch)
		return
	}
	s.ch = ch
	s.phase = PhaseJoined
	s.presence.Registered()
	s.mu.Unlock()

	log.Info().Str("module", "session").Msg("reconnected")
	go s.readEvents(g, ch)
	s.publish(nil)
}

// Approve lets a waiting participant in. The local roster drops the entry
// right away; the relay's userApproved adds it back as active.
func (s *Session) Approve(id domain.UserID) error {
	s.mu.Lock()
	ch := s.ch
	if ch == nil {
		s.mu.Unlock()
		return domain.ErrNotConnected
	}
	if !s.presence.Approve(id) {
		s.mu.Unlock()
		return fmt.Errorf("approve %s: %w", id, domain.ErrNotWaiting)
	}
	s.mu.Unlock()

	err := ch.Send(protocol.Approve{UserID: id})
	if err != nil {
		err = fmt.Errorf("approve %s: %w", id, err)
	}
	s.publish(nil)
	return err
}

// SendChat echoes text locally and sends it to the relay. Blank text is a
// no-op. The local entry stays even if the send fails.
func (s *Session) SendChat(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	s.mu.Lock()
	ch := s.ch
	if ch == nil {
		s.mu.Unlock()
		return domain.ErrNotConnected
	}
	self := s.self.ID
	s.chat.AppendLocal(text)
	s.mu.Unlock()

	err := ch.Send(protocol.Forum{SenderID: self, Text: text})
	if err != nil {
		err = fmt.Errorf("send chat: %w", err)
	}
	s.publish(nil)
	return err
}
