package kanban

import (
	"sync"
	"time"
)

// NoticeTTL is how long a notice stays visible.
const NoticeTTL = 3 * time.Second

// NoticeLevel distinguishes confirmations from rejections.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
)

// Notice is a transient, non-persistent message shown to the acting user.
type Notice struct {
	Level    NoticeLevel `json:"level"`
	Message  string      `json:"message"`
	PostedAt time.Time   `json:"postedAt"`
}

// Notices holds the single visible notice and dismisses it after a TTL.
// A newer notice replaces the current one and restarts the timer.
type Notices struct {
	mu      sync.Mutex
	current *Notice
	gen     int
	ttl     time.Duration
}

// NewNotices creates a notice holder. A non-positive ttl uses NoticeTTL.
func NewNotices(ttl time.Duration) *Notices {
	if ttl <= 0 {
		ttl = NoticeTTL
	}
	return &Notices{ttl: ttl}
}

// Post shows a notice.
func (n *Notices) Post(level NoticeLevel, message string) {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	n.gen++
	gen := n.gen
	n.current = &Notice{Level: level, Message: message, PostedAt: time.Now()}

	time.AfterFunc(n.ttl, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.gen == gen {
			n.current = nil
		}
	})
}

// Current returns the visible notice, if any.
func (n *Notices) Current() (Notice, bool) {
	if n == nil {
		return Notice{}, false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Notice{}, false
	}
	return *n.current, true
}

// Dismiss hides the visible notice immediately.
func (n *Notices) Dismiss() {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.gen++
	n.current = nil
}
