package session

import (
	"github.com/dkeye/Meet/internal/app/media"
	"github.com/dkeye/Meet/internal/domain"
)

// Phase is the connection lifecycle of a session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseJoined
	PhaseReconnecting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConnecting:
		return "connecting"
	case PhaseJoined:
		return "joined"
	case PhaseReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// View is a read-only copy of the session state for renderers.
type View struct {
	MeetingID domain.MeetingID
	Self      domain.User
	Phase     Phase
	Admission domain.Admission
	Roster    []domain.Participant
	Chat      []domain.ChatEntry
	Media     domain.MediaState
	// Stream is nil while no capture source is active.
	Stream *media.Stream
}

// Waiting lists participants asking to be let in.
func (v View) Waiting() []domain.Participant {
	var out []domain.Participant
	for _, p := range v.Roster {
		if p.State == domain.PresenceWaiting {
			out = append(out, p)
		}
	}
	return out
}

// Update is published after every change. Err carries asynchronous failures
// such as a denied camera or a lost connection.
type Update struct {
	View View
	Err  error
}
