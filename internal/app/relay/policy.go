package relay

import "github.com/dkeye/Meet/internal/domain"

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a client that cannot keep up.
type Policy interface {
	OnBackPressure(user domain.UserID) BackpressureAction
}

// SimplePolicy disconnects slow clients; they rejoin through the waiting room.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.UserID) BackpressureAction {
	return KickMember
}
