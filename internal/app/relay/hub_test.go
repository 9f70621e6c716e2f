package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Meet/internal/domain"
)

type recConn struct {
	mu     sync.Mutex
	frames []string
	closed bool
	full   bool
}

func (c *recConn) TrySend(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return domain.ErrBackpressure
	}
	c.frames = append(c.frames, string(b))
	return nil
}

func (c *recConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// take returns and clears what was sent so far.
func (c *recConn) take() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.frames
	c.frames = nil
	return out
}

func attach(h *Hub, sid SessionID) *recConn {
	c := &recConn{}
	h.Attach(sid, c, func() {})
	return c
}

func send(h *Hub, sid SessionID, line string) {
	h.OnMessage(sid, []byte(line))
}

func TestHub_firstRegistrantHosts(t *testing.T) {
	h := NewHub(nil, nil)
	host := attach(h, "s1")

	send(h, "s1", "register:u1")
	assert.Equal(t, []string{"userApproved:u1"}, host.take())
	assert.Equal(t, []MemberDTO{{ID: "u1", Approved: true}}, h.Members())
}

func TestHub_waitingRoom(t *testing.T) {
	h := NewHub(nil, nil)
	host := attach(h, "s1")
	guest := attach(h, "s2")
	send(h, "s1", "register:u1")
	host.take()

	send(h, "s2", "register:u2")
	assert.Equal(t, []string{"userJoinRequest:u2"}, host.take())
	assert.Empty(t, guest.take())

	// guests cannot let themselves in
	send(h, "s2", "approve:u2")
	assert.Empty(t, host.take())

	send(h, "s1", "approve:u2")
	assert.Equal(t, []string{"userApproved:u2"}, host.take())
	assert.Equal(t, []string{"userApproved:u2", "userApproved:u1"}, guest.take())

	// approving twice is a no-op
	send(h, "s1", "approve:u2")
	assert.Empty(t, host.take())
}

func TestHub_lateApproverSeesPending(t *testing.T) {
	h := NewHub(nil, nil)
	attach(h, "s1")
	b := attach(h, "s2")
	attach(h, "s3")
	send(h, "s1", "register:u1")
	send(h, "s2", "register:u2")
	send(h, "s3", "register:u3")

	send(h, "s1", "approve:u2")
	got := b.take()
	assert.Contains(t, got, "userApproved:u1")
	assert.Contains(t, got, "userJoinRequest:u3")
}

func TestHub_forum(t *testing.T) {
	h := NewHub(nil, nil)
	host := attach(h, "s1")
	guest := attach(h, "s2")
	send(h, "s1", "register:u1")
	send(h, "s2", "register:u2")
	host.take()
	guest.take()

	// waiting users are muted
	send(h, "s2", "forum:u2:hello")
	assert.Empty(t, host.take())

	send(h, "s1", "forum:spoofed:hi: there")
	assert.Equal(t, []string{"forum:u1:hi: there"}, host.take())
	assert.Empty(t, guest.take())
}

func TestHub_forumRateLimit(t *testing.T) {
	rl := NewRateLimiter(2, time.Second)
	now := time.Unix(100, 0)
	rl.now = func() time.Time { return now }
	h := NewHub(rl, nil)
	c := attach(h, "s1")
	send(h, "s1", "register:u1")
	c.take()

	send(h, "s1", "forum:u1:a\nforum:u1:b\nforum:u1:c")
	assert.Equal(t, []string{"forum:u1:a", "forum:u1:b"}, c.take())

	now = now.Add(2 * time.Second)
	send(h, "s1", "forum:u1:d")
	assert.Equal(t, []string{"forum:u1:d"}, c.take())
}

func TestHub_leaveAndDetach(t *testing.T) {
	h := NewHub(nil, nil)
	a := attach(h, "s1")
	b := attach(h, "s2")
	c := attach(h, "s3")
	send(h, "s1", "register:u1")
	send(h, "s2", "register:u2")
	send(h, "s3", "register:u3")
	send(h, "s1", "approve:u2")
	a.take()
	b.take()
	c.take()

	// leaving for someone else is ignored
	send(h, "s2", "userLeave:u1")
	assert.Empty(t, a.take())

	send(h, "s2", "userLeave:u2")
	assert.Equal(t, []string{"userLeave:u2"}, a.take())
	assert.Empty(t, b.take())

	h.Detach("s3", c)
	assert.Equal(t, []string{"userLeave:u3"}, a.take())
	assert.Equal(t, []MemberDTO{{ID: "u1", Approved: true}}, h.Members())

	// unregistered sockets leave silently
	h.Detach("s2", b)
	assert.Empty(t, a.take())
}

func TestHub_reattachClosesOld(t *testing.T) {
	h := NewHub(nil, nil)
	host := attach(h, "s1")
	send(h, "s1", "register:u1")
	old := attach(h, "s2")
	send(h, "s2", "register:u2")
	host.take()

	cancelled := false
	h.Attach("s2", &recConn{}, func() { cancelled = true })
	assert.False(t, cancelled)
	assert.True(t, old.closed)
	assert.Equal(t, []string{"userLeave:u2"}, host.take())

	// the old socket's reader exiting must not evict the new one
	h.Detach("s2", old)
	_, ok := h.Registry.Get("s2")
	assert.True(t, ok)
}

func TestHub_backpressureCancels(t *testing.T) {
	h := NewHub(nil, nil)
	attach(h, "s1")
	send(h, "s1", "register:u1")

	cancelled := false
	slow := &recConn{}
	h.Attach("s2", slow, func() { cancelled = true })
	send(h, "s2", "register:u2")
	send(h, "s1", "approve:u2")
	require.NotEmpty(t, slow.take())

	slow.full = true
	send(h, "s1", "forum:u1:hi")
	assert.True(t, cancelled)
}

func TestHub_malformedDropped(t *testing.T) {
	h := NewHub(nil, nil)
	c := attach(h, "s1")
	send(h, "s1", "garbage\nregister:\nregister:u1")
	assert.Equal(t, []string{"userApproved:u1"}, c.take())
	assert.Len(t, h.Registry.Registered(), 1)
	assert.Equal(t, domain.UserID("u1"), h.Registry.Registered()[0].User)
}

type dropOnly struct{}

func (dropOnly) OnBackPressure(domain.UserID) BackpressureAction { return DropFrame }

func TestHub_dropPolicyKeepsSlowClient(t *testing.T) {
	h := NewHub(nil, nil)
	h.Policy = dropOnly{}
	attach(h, "s1")
	send(h, "s1", "register:u1")

	cancelled := false
	slow := &recConn{full: true}
	h.Attach("s2", slow, func() { cancelled = true })
	send(h, "s2", "register:u2")
	send(h, "s1", "approve:u2")
	assert.False(t, cancelled)
	assert.Len(t, h.Members(), 2)
}

func TestHub_concurrentFirstRegistrantsOneHost(t *testing.T) {
	for range 50 {
		h := NewHub(nil, nil)
		sids := []SessionID{"s1", "s2", "s3", "s4"}
		for _, sid := range sids {
			attach(h, sid)
		}

		var wg sync.WaitGroup
		for i, sid := range sids {
			wg.Add(1)
			go func() {
				defer wg.Done()
				send(h, sid, "register:u"+string(rune('1'+i)))
			}()
		}
		wg.Wait()

		hosts := 0
		for _, m := range h.Members() {
			if m.Approved {
				hosts++
			}
		}
		require.Equal(t, 1, hosts)
	}
}

func TestHub_reregisterAloneStaysHost(t *testing.T) {
	h := NewHub(nil, nil)
	c := attach(h, "s1")
	send(h, "s1", "register:u1")
	c.take()

	send(h, "s1", "register:u1")
	assert.Equal(t, []string{"userApproved:u1"}, c.take())
	assert.Equal(t, []MemberDTO{{ID: "u1", Approved: true}}, h.Members())
}
