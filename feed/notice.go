package feed

import (
	"slices"
	"sync"
	"time"
)

type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a user-visible message, usually raised when a remote call fails.
type Notice struct {
	Level   NoticeLevel
	Message string
	Err     error
	At      time.Time
}

type Notices struct {
	mu    sync.Mutex
	items []Notice
}

func NewNotices() *Notices {
	return &Notices{}
}

func (n *Notices) Add(level NoticeLevel, message string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.items = append(n.items, Notice{
		Level:   level,
		Message: message,
		Err:     err,
		At:      time.Now(),
	})
}

func (n *Notices) Error(message string, err error) {
	n.Add(NoticeError, message, err)
}

func (n *Notices) Info(message string) {
	n.Add(NoticeInfo, message, nil)
}

func (n *Notices) List() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()

	return slices.Clone(n.items)
}

// Drain returns all pending notices and forgets them.
func (n *Notices) Drain() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()

	items := n.items
	n.items = nil

	return items
}
