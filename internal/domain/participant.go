package domain

// PresenceState is where a remote participant stands in the waiting room.
type PresenceState int

const (
	PresenceWaiting PresenceState = iota
	PresenceActive
	PresenceLeft
)

func (s PresenceState) String() string {
	switch s {
	case PresenceWaiting:
		return "waiting"
	case PresenceActive:
		return "active"
	case PresenceLeft:
		return "left"
	default:
		return "unknown"
	}
}

// Participant is a roster entry. The roster is keyed by ID.
type Participant struct {
	ID    UserID        `json:"id"`
	State PresenceState `json:"state"`
}

// Admission is the local user's own progress through the waiting room.
type Admission int

const (
	Unregistered Admission = iota
	WaitingForApproval
	Admitted
)

func (a Admission) String() string {
	switch a {
	case Unregistered:
		return "unregistered"
	case WaitingForApproval:
		return "waiting_for_approval"
	case Admitted:
		return "admitted"
	default:
		return "unknown"
	}
}
