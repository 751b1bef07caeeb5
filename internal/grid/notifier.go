package grid

import (
	"sync"
	"time"
)

type Severity string

const (
	SeverityOk    Severity = "success"
	SeverityError Severity = "error"
)

// Message is a transient user-facing status line.
type Message struct {
	Text     string
	Severity Severity
}

// Notifier holds at most one status message that expires on its own after a
// fixed interval. Every store and controller reports through it; recoverable
// failures reduce to a single message here instead of bubbling further.
type Notifier struct {
	mu       sync.Mutex
	current  Message
	deadline time.Time
	ttl      time.Duration
	now      func() time.Time
}

const DefaultMessageTTL = 4 * time.Second

func NewNotifier(ttl time.Duration) *Notifier {
	if ttl <= 0 {
		ttl = DefaultMessageTTL
	}
	return &Notifier{ttl: ttl, now: time.Now}
}

func (n *Notifier) publish(text string, severity Severity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = Message{Text: text, Severity: severity}
	n.deadline = n.now().Add(n.ttl)
}

func (n *Notifier) Ok(text string) { n.publish(text, SeverityOk) }

func (n *Notifier) Error(text string) { n.publish(text, SeverityError) }

// Current returns the live message, or ok=false once it has expired.
func (n *Notifier) Current() (Message, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current.Text == "" || n.now().After(n.deadline) {
		return Message{}, false
	}
	return n.current, true
}

func (n *Notifier) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = Message{}
}
