package domain

import "time"

// SelfSender marks entries authored locally and not echoed by the relay.
const SelfSender UserID = "self"

// ChatEntry is immutable once appended to a log.
type ChatEntry struct {
	Text       string    `json:"text"`
	SenderID   UserID    `json:"sender_id"`
	ReceivedAt time.Time `json:"received_at"`
}

func (e ChatEntry) IsSelf() bool { return e.SenderID == SelfSender }
