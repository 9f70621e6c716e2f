package domain

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	MeetingIDLen    = 12
	minMeetingIDLen = 11
	maxMeetingIDLen = 64
)

// MeetingID is an opaque grouping key. It never appears in a wire frame.
type MeetingID string

var meetingIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// NewMeetingID returns a random lower-case base36 token.
func NewMeetingID() MeetingID {
	id := uuid.New()
	s := new(big.Int).SetBytes(id[:]).Text(36)
	for len(s) < MeetingIDLen {
		s = "0" + s
	}
	return MeetingID(s[:MeetingIDLen])
}

func ParseMeetingID(raw string) (MeetingID, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) < minMeetingIDLen || len(raw) > maxMeetingIDLen || !meetingIDPattern.MatchString(raw) {
		return "", ErrInvalidMeetingID
	}
	return MeetingID(raw), nil
}
