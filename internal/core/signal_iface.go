package core

import (
	"context"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

// SignalEvent is either an inbound frame or the terminal disconnect.
// Disconnected events carry a nil Err when the close was requested locally.
type SignalEvent struct {
	Frame        protocol.Frame
	Disconnected bool
	Err          error
}

// SignalChannel abstracts the relay connection.
// Owned by the adapter; the owner must Close() it.
type SignalChannel interface {
	// Events yields frames in arrival order, then one Disconnected event, then closes.
	Events() <-chan SignalEvent
	// Send is fire-and-forget.
	Send(protocol.Frame) error
	Close() error
}

// Connector opens a channel and registers selfID on it.
type Connector interface {
	Connect(ctx context.Context, selfID domain.UserID) (SignalChannel, error)
}
