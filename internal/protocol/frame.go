// Package protocol is the single translation boundary between the relay's
// colon-separated text frames and typed values.
package protocol

import (
	"fmt"
	"strings"

	"github.com/dkeye/Meet/internal/domain"
)

// Verb is the leading token of a frame.
type Verb string

const (
	VerbRegister    Verb = "register"
	VerbJoinRequest Verb = "userJoinRequest"
	VerbJoined      Verb = "userJoin"
	VerbApprove     Verb = "approve"
	VerbApproved    Verb = "userApproved"
	VerbLeave       Verb = "userLeave"
	VerbForum       Verb = "forum"
	fieldSeparator       = ":"
)

// Frame is one of Register, JoinRequest, Joined, Approve, Approved, Leave or Forum.
type Frame interface {
	Verb() Verb
	fields() []string
}

// Register announces presence under an identifier.
type Register struct{ UserID domain.UserID }

// JoinRequest reports a participant waiting for approval.
type JoinRequest struct{ UserID domain.UserID }

// Joined is the legacy join announcement of relays without a waiting room.
type Joined struct{ UserID domain.UserID }

// Approve grants a pending participant access.
type Approve struct{ UserID domain.UserID }

// Approved confirms a participant is now active.
type Approved struct{ UserID domain.UserID }

// Leave reports a participant leaving, or announces our own departure.
type Leave struct{ UserID domain.UserID }

// Forum is a chat message. Text may contain the separator.
type Forum struct {
	SenderID domain.UserID
	Text     string
}

func (Register) Verb() Verb    { return VerbRegister }
func (JoinRequest) Verb() Verb { return VerbJoinRequest }
func (Joined) Verb() Verb      { return VerbJoined }
func (Approve) Verb() Verb     { return VerbApprove }
func (Approved) Verb() Verb    { return VerbApproved }
func (Leave) Verb() Verb       { return VerbLeave }
func (Forum) Verb() Verb       { return VerbForum }

func (f Register) fields() []string    { return []string{string(f.UserID)} }
func (f JoinRequest) fields() []string { return []string{string(f.UserID)} }
func (f Joined) fields() []string      { return []string{string(f.UserID)} }
func (f Approve) fields() []string     { return []string{string(f.UserID)} }
func (f Approved) fields() []string    { return []string{string(f.UserID)} }
func (f Leave) fields() []string       { return []string{string(f.UserID)} }
func (f Forum) fields() []string       { return []string{string(f.SenderID), f.Text} }

// fieldCount is the fixed number of fields per verb. The last field swallows
// any further separators.
var fieldCount = map[Verb]int{
	VerbRegister:    1,
	VerbJoinRequest: 1,
	VerbJoined:      1,
	VerbApprove:     1,
	VerbApproved:    1,
	VerbLeave:       1,
	VerbForum:       2,
}

// Parse decodes a single frame. Every failure wraps domain.ErrMalformedFrame.
func Parse(line string) (Frame, error) {
	line = strings.TrimRight(line, "\r\n")
	verb, rest, ok := strings.Cut(line, fieldSeparator)
	if !ok {
		return nil, fmt.Errorf("%w: no separator in %q", domain.ErrMalformedFrame, truncate(line))
	}
	n, known := fieldCount[Verb(verb)]
	if !known {
		return nil, fmt.Errorf("%w: unknown verb %q", domain.ErrMalformedFrame, truncate(verb))
	}
	fields := strings.SplitN(rest, fieldSeparator, n)
	if len(fields) != n {
		return nil, fmt.Errorf("%w: %s wants %d fields, got %d", domain.ErrMalformedFrame, verb, n, len(fields))
	}
	id := domain.UserID(fields[0])
	if id == "" {
		return nil, fmt.Errorf("%w: %s with empty user id", domain.ErrMalformedFrame, verb)
	}
	if strings.Contains(string(id), fieldSeparator) {
		return nil, fmt.Errorf("%w: %s user id contains %q", domain.ErrMalformedFrame, verb, fieldSeparator)
	}

	switch Verb(verb) {
	case VerbRegister:
		return Register{UserID: id}, nil
	case VerbJoinRequest:
		return JoinRequest{UserID: id}, nil
	case VerbJoined:
		return Joined{UserID: id}, nil
	case VerbApprove:
		return Approve{UserID: id}, nil
	case VerbApproved:
		return Approved{UserID: id}, nil
	case VerbLeave:
		return Leave{UserID: id}, nil
	default:
		return Forum{SenderID: id, Text: fields[1]}, nil
	}
}

// Split breaks a transport message into frame lines, skipping blank ones.
func Split(payload string) []string {
	var out []string
	for _, line := range strings.Split(payload, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Encode renders f without a trailing newline. Newlines inside fields are
// replaced by spaces so a frame never spans two lines. User ids are not
// escaped and must satisfy domain.UserID.Valid; only the chat text, being the
// last field, may contain the separator.
func Encode(f Frame) string {
	fields := f.fields()
	parts := make([]string, 0, len(fields)+1)
	parts = append(parts, string(f.Verb()))
	for _, field := range fields {
		parts = append(parts, lineBreaks.Replace(field))
	}
	return strings.Join(parts, fieldSeparator)
}

var lineBreaks = strings.NewReplacer("\r", " ", "\n", " ")

func truncate(s string) string {
	const max = 32
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
