package bus

import (
	"context"
	"sync"
)

type localSub struct {
	ch   chan string
	done chan struct{}
	once sync.Once
}

func (s *localSub) cancel() {
	s.once.Do(func() { close(s.done) })
}

// Local is an in-process Bus.
type Local struct {
	mu     sync.RWMutex
	subs   map[*localSub]struct{}
	closed bool
	buffer int
}

// NewLocal creates an in-process bus whose subscribers buffer up to buffer events.
func NewLocal(buffer int) *Local {
	if buffer <= 0 {
		buffer = 64
	}
	return &Local{
		subs:   make(map[*localSub]struct{}),
		buffer: buffer,
	}
}

// Publish blocks until every subscriber accepted the event, cancelled, or ctx ends.
func (l *Local) Publish(ctx context.Context, roomID string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	for s := range l.subs {
		select {
		case s.ch <- roomID:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe registers a new subscriber.
func (l *Local) Subscribe(ctx context.Context) (<-chan string, func(), error) {
	s := &localSub{
		ch:   make(chan string, l.buffer),
		done: make(chan struct{}),
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, nil, ErrClosed
	}
	l.subs[s] = struct{}{}
	l.mu.Unlock()

	cancel := func() {
		// done is closed before taking the lock so a publisher blocked on
		// this subscriber releases its read lock.
		s.cancel()
		l.mu.Lock()
		delete(l.subs, s)
		l.mu.Unlock()
	}
	return s.ch, cancel, nil
}

// Close cancels all subscribers and rejects further publishes.
func (l *Local) Close() error {
	l.mu.RLock()
	for s := range l.subs {
		s.cancel()
	}
	l.mu.RUnlock()

	l.mu.Lock()
	l.closed = true
	l.subs = make(map[*localSub]struct{})
	l.mu.Unlock()
	return nil
}
