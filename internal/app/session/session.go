// Package session binds media, signaling, presence and chat into one meeting
// visit. It is the only surface a UI talks to.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/app/chat"
	"github.com/dkeye/Meet/internal/app/media"
	"github.com/dkeye/Meet/internal/app/presence"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// ErrAbandoned is returned by Join when Leave ran before the connection was up.
var ErrAbandoned = errors.New("session: join abandoned")

// ReconnectPolicy is disabled by default; a lost connection then ends the visit.
type ReconnectPolicy struct {
	Enabled        bool
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type Options struct {
	Connector core.Connector
	Media     *media.Controller
	Reconnect ReconnectPolicy
}

type Session struct {
	connector core.Connector
	media     *media.Controller
	reconnect ReconnectPolicy

	mu       sync.Mutex
	gen      uint64
	phase    Phase
	meeting  domain.MeetingID
	self     domain.User
	presence *presence.Machine
	chat     *chat.Log
	ch       core.SignalChannel
	// lifeCtx is cancelled when the visit ends
	lifeCtx context.Context
	cancel  context.CancelFunc
	// bg tracks device and redial goroutines
	bg sync.WaitGroup

	subMu   sync.Mutex
	subs    map[int]func(Update)
	nextSub int
	// notifyMu keeps deliveries in mutation order
	notifyMu sync.Mutex
}

func New(opts Options) *Session {
	s := &Session{
		connector: opts.Connector,
		media:     opts.Media,
		reconnect: opts.Reconnect,
		subs:      make(map[int]func(Update)),
	}
	s.media.OnEvent(s.onMediaEvent)
	return s
}

// Subscribe registers fn for every Update. fn runs on the goroutine that
// caused the change and must not call back into the Session synchronously.
func (s *Session) Subscribe(fn func(Update)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Session) publish(err error) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	u := Update{View: s.View(), Err: err}
	s.subMu.Lock()
	fns := make([]func(Update), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}

func (s *Session) View() View {
	s.mu.Lock()
	v := View{
		MeetingID: s.meeting,
		Self:      s.self,
		Phase:     s.phase,
	}
	if s.presence != nil {
		v.Admission = s.presence.Admission()
		v.Roster = s.presence.Roster()
	}
	if s.chat != nil {
		v.Chat = s.chat.Entries()
	}
	s.mu.Unlock()

	v.Media = s.media.State()
	v.Stream = s.media.Stream()
	return v
}

// Join connects to the relay under user and starts the camera in the
// background. It returns once register was sent. A nil user fails with
// domain.ErrNotAuthenticated and leaves the session untouched.
func (s *Session) Join(ctx context.Context, meetingID domain.MeetingID, user *domain.User) error {
	if user == nil || user.ID == "" {
		return domain.ErrNotAuthenticated
	}
	if !user.ID.Valid() {
		return domain.ErrInvalidUserID
	}
	if strings.TrimSpace(string(meetingID)) == "" {
		return domain.ErrInvalidMeetingID
	}

	s.mu.Lock()
	if s.phase != PhaseIdle {
		s.mu.Unlock()
		return domain.ErrAlreadyJoined
	}
	s.gen++
	g := s.gen
	life, cancel := context.WithCancel(context.Background())
	s.lifeCtx, s.cancel = life, cancel
	s.phase = PhaseConnecting
	s.meeting = meetingID
	s.self = *user
	s.presence = presence.NewMachine(user.ID)
	s.chat = chat.NewLog()
	s.mu.Unlock()

	l := log.With().Str("module", "session").Str("meeting", string(meetingID)).Str("self", string(user.ID)).Logger()
	l.Info().Msg("joining")
	s.publish(nil)

	s.background(func() { s.acquireCamera(life, g) })

	dialCtx, stop := context.WithCancel(ctx)
	defer stop()
	unhook := context.AfterFunc(life, stop)
	defer unhook()

	ch, err := s.connector.Connect(dialCtx, user.ID)
	if err != nil {
		if !s.current(g) {
			return ErrAbandoned
		}
		l.Warn().Err(err).Msg("connect failed")
		s.teardown(g)
		s.publish(err)
		return fmt.Errorf("join %s: %w", meetingID, err)
	}

	s.mu.Lock()
	if s.gen != g {
		s.mu.Unlock()
		discard(ch)
		return ErrAbandoned
	}
	s.ch = ch
	s.phase = PhaseJoined
	s.presence.Registered()
	s.mu.Unlock()

	go s.readEvents(g, ch)
	l.Info().Msg("registered")
	s.publish(nil)
	return nil
}

// Leave is safe in any state. Media is released before the socket is closed,
// then the state is cleared. Acquisitions still in flight are abandoned.
func (s *Session) Leave() {
	s.mu.Lock()
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.lifeCtx, s.cancel = nil, nil
	}
	ch := s.ch
	s.ch = nil
	self := s.self.ID
	meeting := s.meeting
	s.phase = PhaseIdle
	s.mu.Unlock()

	s.media.Release()

	if ch != nil {
		if err := ch.Send(leaveFrame(self)); err != nil {
			log.Debug().Err(err).Str("module", "session").Msg("leave frame not sent")
		}
		if err := ch.Close(); err != nil {
			log.Warn().Err(err).Str("module", "session").Msg("close channel")
		}
	}

	s.mu.Lock()
	s.meeting = ""
	s.self = domain.User{}
	s.presence = nil
	s.chat = nil
	s.mu.Unlock()

	log.Info().Str("module", "session").Str("meeting", string(meeting)).Str("self", string(self)).Msg("left")
	s.publish(nil)
}

func (s *Session) background(fn func()) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		fn()
	}()
}

func (s *Session) current(g uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == g
}

// teardown ends a visit that failed on its own: media is released and the
// admission demoted, but the chat log and meeting id stay for a rejoin prompt.
func (s *Session) teardown(g uint64) {
	s.mu.Lock()
	if s.gen != g {
		s.mu.Unlock()
		return
	}
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.lifeCtx, s.cancel = nil, nil
	}
	ch := s.ch
	s.ch = nil
	s.phase = PhaseIdle
	if s.presence != nil {
		s.presence.Disconnected()
	}
	s.mu.Unlock()

	s.media.Release()
	if ch != nil {
		_ = ch.Close()
	}
}
