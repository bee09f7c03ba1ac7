package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultDismissAfter is how long transient confirmations stay visible.
const DefaultDismissAfter = 3 * time.Second

// maxNotices bounds the banner queue; the oldest are dropped first.
const maxNotices = 20

// Level is the color of a banner.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notice is a dismissible banner.
type Notice struct {
	ID        string     `json:"id"`
	Level     Level      `json:"level"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Notifier queues banners for one session. Success and info banners expire
// on their own; errors stay until dismissed.
type Notifier struct {
	mu           sync.Mutex
	notices      []Notice
	dismissAfter time.Duration
	now          func() time.Time
}

// NewNotifier creates a notifier whose transient banners last dismissAfter.
func NewNotifier(dismissAfter time.Duration) *Notifier {
	if dismissAfter <= 0 {
		dismissAfter = DefaultDismissAfter
	}
	return &Notifier{dismissAfter: dismissAfter, now: time.Now}
}

func (n *Notifier) Success(msg string) { n.Push(LevelSuccess, msg) }
func (n *Notifier) Error(msg string)   { n.Push(LevelError, msg) }
func (n *Notifier) Info(msg string)    { n.Push(LevelInfo, msg) }

// Push queues a banner and returns it.
func (n *Notifier) Push(level Level, msg string) Notice {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	notice := Notice{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   msg,
		CreatedAt: now,
	}
	if level != LevelError {
		exp := now.Add(n.dismissAfter)
		notice.ExpiresAt = &exp
	}

	n.notices = append(n.notices, notice)
	if len(n.notices) > maxNotices {
		n.notices = n.notices[len(n.notices)-maxNotices:]
	}
	return notice
}

// Dismiss removes a banner and reports whether it was present.
func (n *Notifier) Dismiss(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, notice := range n.notices {
		if notice.ID == id {
			n.notices = append(n.notices[:i], n.notices[i+1:]...)
			return true
		}
	}
	return false
}

// Pending returns the banners still visible, dropping expired ones.
func (n *Notifier) Pending() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	kept := n.notices[:0]
	for _, notice := range n.notices {
		if notice.ExpiresAt == nil || now.Before(*notice.ExpiresAt) {
			kept = append(kept, notice)
		}
	}
	n.notices = kept

	out := make([]Notice, len(kept))
	copy(out, kept)
	return out
}
