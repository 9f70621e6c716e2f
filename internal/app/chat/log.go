// Package chat keeps the append-only chat log of one session.
package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/domain"
)

// Log never deduplicates: a local echo and the relay's copy of the same
// message are two entries.
type Log struct {
	mu      sync.RWMutex
	entries []domain.ChatEntry
	now     func() time.Time
}

func NewLog() *Log {
	return &Log{now: time.Now}
}

// AppendLocal adds a self-authored entry. Blank text is ignored and
// reported with ok=false.
func (l *Log) AppendLocal(text string) (domain.ChatEntry, bool) {
	if strings.TrimSpace(text) == "" {
		return domain.ChatEntry{}, false
	}
	return l.append(domain.SelfSender, text), true
}

func (l *Log) AppendRemote(sender domain.UserID, text string) domain.ChatEntry {
	return l.append(sender, text)
}

func (l *Log) append(sender domain.UserID, text string) domain.ChatEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := domain.ChatEntry{Text: text, SenderID: sender, ReceivedAt: l.now()}
	l.entries = append(l.entries, e)
	return e
}

// Entries returns a copy in receive order.
func (l *Log) Entries() []domain.ChatEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.ChatEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
