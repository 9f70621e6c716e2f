// Package presence tracks the local admission state and the roster of other
// participants from signaling frames.
//
// A waiting participant that is never approved stays waiting forever; there
// is no admission timeout.
package presence

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

// Machine is not safe for concurrent use; the session serialises access.
type Machine struct {
	self      domain.UserID
	admission domain.Admission
	roster    map[domain.UserID]domain.PresenceState
	// order keeps the roster in first-seen order
	order []domain.UserID
}

func NewMachine(self domain.UserID) *Machine {
	return &Machine{
		self:   self,
		roster: make(map[domain.UserID]domain.PresenceState),
	}
}

func (m *Machine) Admission() domain.Admission { return m.admission }

// Registered records that register was sent for self.
func (m *Machine) Registered() {
	if m.admission == domain.Unregistered {
		m.admission = domain.WaitingForApproval
		log.Info().Str("module", "presence").Str("self", string(m.self)).Msg("waiting for approval")
	}
}

// Disconnected demotes self to Unregistered and forgets the roster, which
// can no longer be kept current.
func (m *Machine) Disconnected() {
	m.admission = domain.Unregistered
	m.roster = make(map[domain.UserID]domain.PresenceState)
	m.order = nil
}

// Apply folds an inbound frame into the state and reports whether anything
// changed. Frames that do not concern presence are ignored.
func (m *Machine) Apply(f protocol.Frame) bool {
	switch f := f.(type) {
	case protocol.JoinRequest:
		if f.UserID == m.self {
			return false
		}
		if _, ok := m.roster[f.UserID]; ok {
			return false
		}
		m.put(f.UserID, domain.PresenceWaiting)
		log.Info().Str("module", "presence").Str("user", string(f.UserID)).Msg("join request")
		return true

	case protocol.Joined:
		if f.UserID == m.self {
			return false
		}
		return m.activate(f.UserID)

	case protocol.Approved:
		if f.UserID == m.self {
			if m.admission == domain.Admitted {
				return false
			}
			m.admission = domain.Admitted
			log.Info().Str("module", "presence").Str("self", string(m.self)).Msg("admitted")
			return true
		}
		return m.activate(f.UserID)

	case protocol.Leave:
		if _, ok := m.roster[f.UserID]; !ok {
			return false
		}
		m.remove(f.UserID)
		log.Info().Str("module", "presence").Str("user", string(f.UserID)).Msg("left")
		return true
	}
	return false
}

// Approve drops id from the waiting set right away, before the relay
// confirms with userApproved. It reports false if id was not waiting.
func (m *Machine) Approve(id domain.UserID) bool {
	if st, ok := m.roster[id]; !ok || st != domain.PresenceWaiting {
		return false
	}
	m.remove(id)
	log.Info().Str("module", "presence").Str("user", string(id)).Msg("approved locally")
	return true
}

// Roster returns participants in first-seen order.
func (m *Machine) Roster() []domain.Participant {
	out := make([]domain.Participant, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, domain.Participant{ID: id, State: m.roster[id]})
	}
	return out
}

func (m *Machine) activate(id domain.UserID) bool {
	if st, ok := m.roster[id]; ok && st == domain.PresenceActive {
		return false
	}
	m.put(id, domain.PresenceActive)
	log.Info().Str("module", "presence").Str("user", string(id)).Msg("active")
	return true
}

func (m *Machine) put(id domain.UserID, st domain.PresenceState) {
	if _, ok := m.roster[id]; !ok {
		m.order = append(m.order, id)
	}
	m.roster[id] = st
}

func (m *Machine) remove(id domain.UserID) {
	delete(m.roster, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}
