package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	u, err := NewUser("u1", "  Ada Lovelace ")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", u.Name)

	_, err = NewUser("", "Ada")
	assert.ErrorIs(t, err, ErrInvalidUserID)

	_, err = NewUser("u1:hi", "Ada")
	assert.ErrorIs(t, err, ErrInvalidUserID)

	_, err = NewUser("u1", "   ")
	assert.ErrorIs(t, err, ErrUsernameEmpty)

	_, err = NewUser("u1", strings.Repeat("x", MaxUsernameLen+1))
	assert.ErrorIs(t, err, ErrUsernameTooLong)
}

func TestUserID_Valid(t *testing.T) {
	assert.True(t, UserID("64f1c0ffee").Valid())
	assert.False(t, UserID("").Valid())
	assert.False(t, UserID("a:b").Valid())
	assert.False(t, UserID("a\nb").Valid())
	assert.False(t, UserID(strings.Repeat("x", MaxUserIDLen+1)).Valid())
}

func TestUser_Initials(t *testing.T) {
	cases := map[string]string{
		"Ada Lovelace":     "AL",
		"grace":            "G",
		"élodie  de  vaux": "ÉDV",
		"":                 "?",
	}
	for name, want := range cases {
		u := &User{ID: "x", Name: name}
		assert.Equal(t, want, u.Initials(), name)
	}
}

func TestNewMeetingID(t *testing.T) {
	seen := make(map[MeetingID]struct{})
	for i := 0; i < 200; i++ {
		id := NewMeetingID()
		require.Len(t, string(id), MeetingIDLen)
		_, err := ParseMeetingID(string(id))
		require.NoError(t, err)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 200)
}

func TestParseMeetingID(t *testing.T) {
	_, err := ParseMeetingID("short")
	assert.ErrorIs(t, err, ErrInvalidMeetingID)

	_, err = ParseMeetingID("has/slash/inside")
	assert.ErrorIs(t, err, ErrInvalidMeetingID)

	id, err := ParseMeetingID(" k3j4h5g6f7d8 ")
	require.NoError(t, err)
	assert.Equal(t, MeetingID("k3j4h5g6f7d8"), id)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindPermissionDenied, KindOf(fmt.Errorf("camera: %w", ErrPermissionDenied)))
	assert.Equal(t, KindDeviceUnavailable, KindOf(ErrDeviceUnavailable))
	assert.Equal(t, KindConnectionLost, KindOf(fmt.Errorf("dial: %w", ErrConnectionLost)))
	assert.Equal(t, KindNotAuthenticated, KindOf(ErrNotAuthenticated))
	assert.Equal(t, "connection_lost", KindConnectionLost.String())
}
