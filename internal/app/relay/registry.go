package relay

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
)

type SessionID string

// Conn is a connected relay client. Owned by the adapter; the adapter must Close() it.
type Conn interface {
	TrySend([]byte) error
	Close()
}

type sessionEntry struct {
	User     domain.UserID
	Conn     Conn
	Cancel   context.CancelFunc
	Approved bool
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[SessionID]*sessionEntry)}
}

// Bind stores the connection of sid and returns the entry it replaced, if any.
func (r *Registry) Bind(sid SessionID, conn Conn, cancel context.CancelFunc) (sessionEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.sessions[sid]
	r.sessions[sid] = &sessionEntry{Conn: conn, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound connection")
	if !ok {
		return sessionEntry{}, false
	}
	return *old, true
}

// Unbind removes sid if it is still served by conn.
func (r *Registry) Unbind(sid SessionID, conn Conn) (sessionEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok || e.Conn != conn {
		return sessionEntry{}, false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	return *e, true
}

func (r *Registry) Get(sid SessionID) (sessionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return sessionEntry{}, false
	}
	return *e, true
}

// Register names the user behind sid. Re-registering resets approval, except
// that a user registering while no other session is approved becomes the host
// and is approved at once.
func (r *Registry) Register(sid SessionID, uid domain.UserID) (host, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false, false
	}
	e.User = uid
	e.Approved = false
	host = true
	for other, o := range r.sessions {
		if other != sid && o.Approved {
			host = false
			break
		}
	}
	e.Approved = host
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(uid)).Bool("host", host).Msg("registered")
	return host, true
}

// Unregister forgets the user of sid while keeping the connection.
func (r *Registry) Unregister(sid SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		e.User = ""
		e.Approved = false
	}
}

// Approve marks every session registered as uid, reporting whether any was pending.
func (r *Registry) Approve(uid domain.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := false
	for _, e := range r.sessions {
		if e.User == uid && !e.Approved {
			e.Approved = true
			changed = true
		}
	}
	return changed
}

type regSnap struct {
	SID      SessionID
	User     domain.UserID
	Conn     Conn
	Approved bool
}

// Registered returns every session that sent register, sorted by user.
func (r *Registry) Registered() []regSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]regSnap, 0, len(r.sessions))
	for sid, e := range r.sessions {
		if e.User == "" {
			continue
		}
		out = append(out, regSnap{SID: sid, User: e.User, Conn: e.Conn, Approved: e.Approved})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User < out[j].User })
	return out
}

func (r *Registry) Cancel(sid SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
