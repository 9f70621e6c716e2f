package cli

import (
	"bufio"
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/app/session"
	"github.com/dkeye/Meet/internal/domain"
)

// Meeting is the part of *session.Session the loop drives.
type Meeting interface {
	ToggleVideo()
	ToggleMic()
	ToggleScreenShare(ctx context.Context) error
	Approve(id domain.UserID) error
	SendChat(text string) error
	View() session.View
	Leave()
}

// Run reads commands from in until /leave, EOF or ctx is done. The session
// is left on every exit path.
func Run(ctx context.Context, m Meeting, in io.Reader, r *Renderer) error {
	defer m.Leave()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case line := <-lines:
			if done := exec(ctx, m, r, line); done {
				return nil
			}
		}
	}
}

func exec(ctx context.Context, m Meeting, r *Renderer, line string) (done bool) {
	cmd, err := ParseCommand(line)
	if err != nil {
		r.Printf("%v (try /help)", err)
		return false
	}
	switch cmd.Kind {
	case CmdChat:
		if err := m.SendChat(cmd.Text); err != nil {
			r.Printf("chat not sent: %v", err)
		}
	case CmdVideo:
		m.ToggleVideo()
	case CmdMic:
		m.ToggleMic()
	case CmdShare:
		// failures are also published to the renderer as updates
		if err := m.ToggleScreenShare(ctx); err != nil {
			log.Debug().Err(err).Str("module", "cli").Msg("screen share")
		}
	case CmdApprove:
		if err := m.Approve(cmd.User); err != nil {
			if errors.Is(err, domain.ErrNotWaiting) {
				r.Printf("%s is not waiting", cmd.User)
			} else {
				r.Printf("approve failed: %v", err)
			}
		}
	case CmdWho:
		r.Who(m.View())
	case CmdHelp:
		r.Printf("%s", usage)
	case CmdLeave:
		return true
	}
	return false
}
