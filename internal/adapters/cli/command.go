// Package cli is the terminal face of a meeting session.
package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/Meet/internal/domain"
)

type CommandKind int

const (
	CmdChat CommandKind = iota
	CmdVideo
	CmdMic
	CmdShare
	CmdApprove
	CmdWho
	CmdLeave
	CmdHelp
)

type Command struct {
	Kind CommandKind
	// Text is the chat line for CmdChat.
	Text string
	// User is the target of CmdApprove.
	User domain.UserID
}

var ErrUnknownCommand = errors.New("unknown command")

const usage = `commands:
  /video          toggle camera video
  /mic            toggle microphone
  /share          start or stop screen sharing
  /approve <id>   let a waiting participant in
  /who            list participants
  /leave          leave the meeting
anything else is sent as chat`

// ParseCommand reads one input line. Lines not starting with a slash are
// chat; "//text" sends "/text" as chat.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "/") {
		return Command{Kind: CmdChat, Text: line}, nil
	}
	if strings.HasPrefix(line, "//") {
		return Command{Kind: CmdChat, Text: line[1:]}, nil
	}

	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]
	switch name {
	case "/video":
		return Command{Kind: CmdVideo}, nil
	case "/mic":
		return Command{Kind: CmdMic}, nil
	case "/share":
		return Command{Kind: CmdShare}, nil
	case "/who":
		return Command{Kind: CmdWho}, nil
	case "/leave", "/quit":
		return Command{Kind: CmdLeave}, nil
	case "/help":
		return Command{Kind: CmdHelp}, nil
	case "/approve":
		if len(args) != 1 {
			return Command{}, fmt.Errorf("usage: /approve <id>")
		}
		return Command{Kind: CmdApprove, User: domain.UserID(args[0])}, nil
	}
	return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
}
