package user

import (
	"sync"

	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
)

// SessionHub fans session changes out to the subscribers of one session.
// A nil session means that session signed out. Other sessions of the same
// user are not affected.
type SessionHub struct {
	mu     sync.Mutex
	subs   map[string]map[chan *outbound.Session]struct{}
	buffer int
}

// NewSessionHub creates a hub whose subscriber channels hold buffer updates.
func NewSessionHub(buffer int) *SessionHub {
	if buffer < 1 {
		buffer = 1
	}
	return &SessionHub{
		subs:   make(map[string]map[chan *outbound.Session]struct{}),
		buffer: buffer,
	}
}

// Subscribe returns a channel of updates for sessionID and a cancel
// function that closes it.
func (h *SessionHub) Subscribe(sessionID string) (<-chan *outbound.Session, func()) {
	ch := make(chan *outbound.Session, h.buffer)

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan *outbound.Session]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[sessionID], ch)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers session to every subscriber of sessionID. Slow subscribers
// drop the oldest pending update so the latest state always arrives.
func (h *SessionHub) Publish(sessionID string, session *outbound.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[sessionID] {
		for {
			select {
			case ch <- session:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Subscribers returns the number of open subscriptions for sessionID.
func (h *SessionHub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}
