// Package domain contains entity without logic, just meta-data
package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxUserIDLen   = 64
	MaxUsernameLen = 36
)

type UserID string

// Valid reports whether id can travel in a wire frame: it must be non-empty,
// bounded, and free of the field separator and line breaks.
func (id UserID) Valid() bool {
	return id != "" && len(id) <= MaxUserIDLen && !strings.ContainsAny(string(id), ":\r\n")
}

// User is the authenticated local user handed to a session by the auth collaborator.
type User struct {
	ID    UserID `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(id UserID, name string) (*User, error) {
	if !id.Valid() {
		return nil, ErrInvalidUserID
	}
	u := &User{ID: id}
	if err := u.SetName(name); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *User) SetName(name string) error {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if utf8.RuneCountInString(name) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	u.Name = name
	return nil
}

// Initials is what gets rendered instead of video when no picture is available.
func (u *User) Initials() string {
	var b strings.Builder
	for _, part := range strings.Fields(u.Name) {
		r, _ := utf8.DecodeRuneInString(part)
		b.WriteRune(unicode.ToUpper(r))
	}
	if b.Len() == 0 {
		return "?"
	}
	return b.String()
}
