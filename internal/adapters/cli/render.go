package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode"

	"github.com/dkeye/Meet/internal/app/session"
	"github.com/dkeye/Meet/internal/domain"
)

// Renderer prints session updates as they arrive. It only prints what
// changed since the last update.
type Renderer struct {
	mu    sync.Mutex
	out   io.Writer
	color bool

	shownChat int
	status    string
	roster    string
}

func NewRenderer(out io.Writer, color bool) *Renderer {
	return &Renderer{out: out, color: color}
}

// Update is a session.Subscribe callback.
func (r *Renderer) Update(u session.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u.Err != nil {
		r.line(red, "! %s: %v", domain.KindOf(u.Err), u.Err)
	}

	v := u.View
	if st := statusLine(v); st != r.status {
		r.status = st
		r.line(bold, "%s", st)
	}
	if ro := rosterLine(v); ro != r.roster {
		r.roster = ro
		if ro != "" {
			r.line(dim, "%s", ro)
		}
	}

	if len(v.Chat) < r.shownChat {
		// a new visit started with an empty log
		r.shownChat = 0
	}
	for _, e := range v.Chat[r.shownChat:] {
		who := printable(string(e.SenderID))
		if e.IsSelf() {
			who = "you"
		}
		r.line("", "%s <%s> %s", e.ReceivedAt.Format("15:04"), who, printable(e.Text))
	}
	r.shownChat = len(v.Chat)
}

// Who prints the full roster.
func (r *Renderer) Who(v session.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.line("", "you: %s (%s)", printable(v.Self.Name), printable(string(v.Self.ID)))
	if len(v.Roster) == 0 {
		r.line(dim, "nobody else is here")
		return
	}
	for _, p := range v.Roster {
		r.line("", "  %-8s %s", p.State, printable(string(p.ID)))
	}
}

func (r *Renderer) Printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.line("", format, args...)
}

const (
	bold  = "\x1b[1m"
	dim   = "\x1b[2m"
	red   = "\x1b[31m"
	reset = "\x1b[0m"
)

func (r *Renderer) line(style, format string, args ...any) {
	s := fmt.Sprintf(format, args...)
	if r.color && style != "" {
		s = style + s + reset
	}
	fmt.Fprintln(r.out, s)
}

func statusLine(v session.View) string {
	if v.Phase == session.PhaseIdle && v.MeetingID == "" {
		return "not in a meeting"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | %s", v.MeetingID, v.Phase, v.Admission)
	b.WriteString(" | ")
	b.WriteString(mediaLabel(v))
	return b.String()
}

// mediaLabel shows the user's initials in place of video when there is none.
func mediaLabel(v session.View) string {
	var video string
	switch {
	case v.Stream.HasVideo() && v.Media.ActiveSource == domain.SourceScreen:
		video = "sharing screen"
	case v.Stream.HasVideo():
		video = "camera on"
	default:
		video = "(" + v.Self.Initials() + ")"
	}
	mic := "mic off"
	if v.Media.AudioEnabled {
		mic = "mic on"
	}
	return video + ", " + mic
}

func rosterLine(v session.View) string {
	var active, waiting []string
	for _, p := range v.Roster {
		switch p.State {
		case domain.PresenceActive:
			active = append(active, printable(string(p.ID)))
		case domain.PresenceWaiting:
			waiting = append(waiting, printable(string(p.ID)))
		}
	}
	var parts []string
	if len(active) > 0 {
		parts = append(parts, "in: "+strings.Join(active, ", "))
	}
	if len(waiting) > 0 {
		parts = append(parts, "waiting: "+strings.Join(waiting, ", ")+" (/approve <id>)")
	}
	return strings.Join(parts, " | ")
}

// printable drops control runes so remote text cannot drive the terminal.
func printable(s string) string {
	return strings.Map(func(r rune) rune {
		if r != '\t' && unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
