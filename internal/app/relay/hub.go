// Package relay routes presence and chat frames between the clients of a
// single relay. Frames are not scoped by meeting: every connected client
// shares one waiting room.
package relay

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/metrics"
	"github.com/dkeye/Meet/internal/protocol"
)

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       domain.UserID `json:"id"`
	Approved bool          `json:"approved"`
}

type Hub struct {
	Registry *Registry
	Limiter  *RateLimiter
	Metrics  *metrics.Metrics
	Policy   Policy
}

// NewHub builds a hub with SimplePolicy. Both limiter and m may be nil.
func NewHub(limiter *RateLimiter, m *metrics.Metrics) *Hub {
	return &Hub{Registry: NewRegistry(), Limiter: limiter, Metrics: m, Policy: SimplePolicy{}}
}

// Attach binds a fresh connection. A previous connection with the same sid is cancelled.
func (h *Hub) Attach(sid SessionID, conn Conn, cancel context.CancelFunc) {
	h.Metrics.ConnOpened()
	if old, ok := h.Registry.Bind(sid, conn, cancel); ok {
		h.Metrics.ConnClosed()
		log.Warn().Str("module", "relay").Str("sid", string(sid)).Msg("replacing connection")
		if old.Cancel != nil {
			old.Cancel()
		}
		old.Conn.Close()
		if old.User != "" {
			h.broadcast(protocol.Leave{UserID: old.User}, func(s regSnap) bool { return s.SID != sid })
		}
	}
}

// Detach forgets sid and tells everybody else it left. Stale connections
// that were already replaced are ignored.
func (h *Hub) Detach(sid SessionID, conn Conn) {
	e, ok := h.Registry.Unbind(sid, conn)
	if !ok {
		return
	}
	h.Metrics.ConnClosed()
	if e.User == "" {
		return
	}
	h.Limiter.Forget(e.User)
	h.broadcast(protocol.Leave{UserID: e.User}, all)
}

// OnMessage handles one transport message, which may carry several frames.
func (h *Hub) OnMessage(sid SessionID, data []byte) {
	for _, line := range protocol.Split(string(data)) {
		f, err := protocol.Parse(line)
		if err != nil {
			log.Warn().Err(err).Str("module", "relay").Str("sid", string(sid)).Msg("dropping frame")
			continue
		}
		h.OnFrame(sid, f)
	}
}

func (h *Hub) OnFrame(sid SessionID, f protocol.Frame) {
	e, ok := h.Registry.Get(sid)
	if !ok {
		return
	}
	h.Metrics.IncFrame(string(f.Verb()))
	switch f := f.(type) {
	case protocol.Register:
		h.register(sid, e, f.UserID)
	case protocol.Approve:
		if !e.Approved {
			log.Warn().Str("module", "relay").Str("user", string(e.User)).Msg("approve from non-member")
			return
		}
		h.admit(f.UserID)
	case protocol.Leave:
		if e.User == "" || f.UserID != e.User {
			return
		}
		h.Registry.Unregister(sid)
		h.broadcast(protocol.Leave{UserID: e.User}, func(s regSnap) bool { return s.SID != sid })
	case protocol.Forum:
		if !e.Approved {
			return
		}
		if !h.Limiter.Allow(e.User) {
			h.Metrics.IncRateLimited()
			log.Warn().Str("module", "relay").Str("user", string(e.User)).Msg("forum rate limited")
			return
		}
		h.broadcast(protocol.Forum{SenderID: e.User, Text: f.Text}, approved)
	default:
		log.Warn().Str("module", "relay").Str("verb", string(f.Verb())).Msg("unexpected client frame")
	}
}

func (h *Hub) register(sid SessionID, e sessionEntry, uid domain.UserID) {
	if e.User != "" && e.User != uid {
		h.broadcast(protocol.Leave{UserID: e.User}, func(s regSnap) bool { return s.SID != sid })
	}
	host, ok := h.Registry.Register(sid, uid)
	if !ok {
		return
	}
	if host {
		log.Info().Str("module", "relay").Str("user", string(uid)).Msg("host registered")
		h.welcome(uid)
		return
	}
	h.broadcast(protocol.JoinRequest{UserID: uid}, func(s regSnap) bool { return s.SID != sid && s.Approved })
}

func (h *Hub) admit(uid domain.UserID) {
	if !h.Registry.Approve(uid) {
		return
	}
	log.Info().Str("module", "relay").Str("user", string(uid)).Msg("approved")
	h.welcome(uid)
}

// welcome announces an approved uid and catches it up on who is in and who is waiting.
func (h *Hub) welcome(uid domain.UserID) {
	h.broadcast(protocol.Approved{UserID: uid}, func(s regSnap) bool { return s.Approved })

	for _, s := range h.Registry.Registered() {
		if s.User == uid {
			continue
		}
		if s.Approved {
			h.sendTo(uid, protocol.Approved{UserID: s.User})
		} else {
			h.sendTo(uid, protocol.JoinRequest{UserID: s.User})
		}
	}
}

func (h *Hub) sendTo(uid domain.UserID, f protocol.Frame) {
	h.broadcast(f, func(s regSnap) bool { return s.User == uid })
}

func (h *Hub) broadcast(f protocol.Frame, match func(regSnap) bool) {
	data := []byte(protocol.Encode(f))
	sent, dropped := 0, 0
	for _, s := range h.Registry.Registered() {
		if !match(s) {
			continue
		}
		if err := s.Conn.TrySend(data); err != nil {
			dropped++
			h.Metrics.IncDropped()
			if errors.Is(err, domain.ErrBackpressure) && h.Policy.OnBackPressure(s.User) == KickMember {
				log.Warn().Str("module", "relay").Str("user", string(s.User)).Msg("kicking slow client")
				h.Registry.Cancel(s.SID)
			}
			continue
		}
		sent++
	}
	log.Debug().Str("module", "relay").Str("verb", string(f.Verb())).Int("sent_to", sent).Int("dropped", dropped).Msg("broadcast result")
}

func (h *Hub) Members() []MemberDTO {
	snaps := h.Registry.Registered()
	out := make([]MemberDTO, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, MemberDTO{ID: s.User, Approved: s.Approved})
	}
	return out
}

// RefreshMetrics updates the member gauges; it runs before each scrape.
func (h *Hub) RefreshMetrics() {
	waiting, active := 0, 0
	for _, s := range h.Registry.Registered() {
		if s.Approved {
			active++
		} else {
			waiting++
		}
	}
	h.Metrics.SetMembers(waiting, active)
}

func all(regSnap) bool { return true }

func approved(s regSnap) bool { return s.Approved }
