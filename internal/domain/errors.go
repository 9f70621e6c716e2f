package domain

import "errors"

var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrConnectionLost    = errors.New("connection lost")
	ErrMalformedFrame    = errors.New("malformed frame")
	ErrNotAuthenticated  = errors.New("not authenticated")

	ErrAlreadyJoined    = errors.New("already joined")
	ErrNotJoined        = errors.New("not joined")
	ErrNotConnected     = errors.New("not connected")
	ErrNotWaiting       = errors.New("participant is not waiting")
	ErrInvalidMeetingID = errors.New("invalid meeting id")
	ErrBackpressure     = errors.New("backpressure")
	ErrChannelClosed    = errors.New("channel closed")

	ErrInvalidUserID   = errors.New("invalid user id")
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

// ErrorKind groups errors the way subscribers are expected to react to them.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindPermissionDenied
	KindDeviceUnavailable
	KindConnectionLost
	KindMalformedFrame
	KindNotAuthenticated
)

func (k ErrorKind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission_denied"
	case KindDeviceUnavailable:
		return "device_unavailable"
	case KindConnectionLost:
		return "connection_lost"
	case KindMalformedFrame:
		return "malformed_frame"
	case KindNotAuthenticated:
		return "not_authenticated"
	default:
		return "unknown"
	}
}

// KindOf classifies err. Every kind except KindUnknown is recoverable.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrDeviceUnavailable):
		return KindDeviceUnavailable
	case errors.Is(err, ErrConnectionLost):
		return KindConnectionLost
	case errors.Is(err, ErrMalformedFrame):
		return KindMalformedFrame
	case errors.Is(err, ErrNotAuthenticated):
		return KindNotAuthenticated
	default:
		return KindUnknown
	}
}
