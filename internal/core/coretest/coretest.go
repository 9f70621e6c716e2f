// Package coretest provides in-memory tracks and signal channels for tests.
package coretest

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

type Track struct {
	id   string
	kind core.TrackKind

	mu      sync.Mutex
	enabled bool
	stopped bool
	stops   int
	onEnded func(error)
}

func NewTrack(kind core.TrackKind) *Track {
	return &Track{id: uuid.NewString(), kind: kind, enabled: true}
}

func (t *Track) ID() string           { return t.id }
func (t *Track) Kind() core.TrackKind { return t.kind }

func (t *Track) SetEnabled(v bool) {
	t.mu.Lock()
	t.enabled = v
	t.mu.Unlock()
}

func (t *Track) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Track) Stop() error {
	t.mu.Lock()
	t.stops++
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	fn := t.onEnded
	t.mu.Unlock()
	if fn != nil {
		fn(nil)
	}
	return nil
}

func (t *Track) OnEnded(fn func(error)) {
	t.mu.Lock()
	t.onEnded = fn
	t.mu.Unlock()
}

// End simulates the device going away.
func (t *Track) End(err error) {
	t.mu.Lock()
	t.stopped = true
	fn := t.onEnded
	t.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (t *Track) Live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped
}

// Stops counts Stop calls, including redundant ones.
func (t *Track) Stops() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops
}

// Camera returns a fresh video+audio pair.
func Camera() (video, audio *Track) {
	return NewTrack(core.TrackVideo), NewTrack(core.TrackAudio)
}

func AsTracks(ts ...*Track) []core.Track {
	out := make([]core.Track, 0, len(ts))
	for _, t := range ts {
		out = append(out, t)
	}
	return out
}

// LiveCount counts tracks that were not stopped.
func LiveCount(ts ...*Track) int {
	n := 0
	for _, t := range ts {
		if t.Live() {
			n++
		}
	}
	return n
}

// Channel is an in-memory core.SignalChannel.
type Channel struct {
	events chan core.SignalEvent

	mu     sync.Mutex
	sent   []protocol.Frame
	closed bool
}

func NewChannel() *Channel {
	return &Channel{events: make(chan core.SignalEvent, 64)}
}

func (c *Channel) Events() <-chan core.SignalEvent { return c.events }

func (c *Channel) Send(f protocol.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrChannelClosed
	}
	c.sent = append(c.sent, f)
	return nil
}

func (c *Channel) Close() error {
	c.finish(nil)
	return nil
}

// Deliver pushes an inbound frame. It is a no-op once the channel is closed.
func (c *Channel) Deliver(frames ...protocol.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for _, f := range frames {
		c.events <- core.SignalEvent{Frame: f}
	}
}

// Fail simulates the relay dropping the connection.
func (c *Channel) Fail(err error) { c.finish(err) }

func (c *Channel) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.events <- core.SignalEvent{Disconnected: true, Err: err}
	close(c.events)
}

func (c *Channel) Sent() []protocol.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Frame, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
