package domain

// Source is the active capture origin. Camera and Screen are mutually exclusive.
type Source int

const (
	SourceNone Source = iota
	SourceCamera
	SourceScreen
)

func (s Source) String() string {
	switch s {
	case SourceCamera:
		return "camera"
	case SourceScreen:
		return "screen"
	default:
		return "none"
	}
}

// MediaState flags only mean something while a track of that kind exists.
type MediaState struct {
	ActiveSource Source `json:"active_source"`
	VideoEnabled bool   `json:"video_enabled"`
	AudioEnabled bool   `json:"audio_enabled"`
}
