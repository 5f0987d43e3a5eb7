package orchestrator

import (
	"context"
	"sync"

	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
)

// SessionObserver holds the client's current session and notifies
// observers when it changes. A nil session means signed out.
type SessionObserver struct {
	mu        sync.Mutex
	current   *outbound.Session
	observers map[chan *outbound.Session]struct{}
}

// NewSessionObserver starts signed out.
func NewSessionObserver() *SessionObserver {
	return &SessionObserver{observers: make(map[chan *outbound.Session]struct{})}
}

// Current returns the session, or nil when signed out.
func (o *SessionObserver) Current() *outbound.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Set replaces the session and notifies observers.
func (o *SessionObserver) Set(session *outbound.Session) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.current = session
	for ch := range o.observers {
		replaceLatest(ch, session)
	}
}

// Observe returns a channel that first yields the current session and then
// every change, until ctx is done.
func (o *SessionObserver) Observe(ctx context.Context) <-chan *outbound.Session {
	ch := make(chan *outbound.Session, 1)

	o.mu.Lock()
	ch <- o.current
	o.observers[ch] = struct{}{}
	o.mu.Unlock()

	go func() {
		<-ctx.Done()
		o.mu.Lock()
		delete(o.observers, ch)
		close(ch)
		o.mu.Unlock()
	}()

	return ch
}

// replaceLatest sends v, dropping a pending value if the buffer is full.
func replaceLatest(ch chan *outbound.Session, v *outbound.Session) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
