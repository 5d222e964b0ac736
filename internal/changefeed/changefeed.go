// Package changefeed announces committed aggregate changes so every view can
// re-list the store. Delivery is at-least-once; a spurious event only costs a
// refresh.
package changefeed

import (
	"context"
	"sync"
	"time"
)

type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

type Event struct {
	Op          Op        `json:"op"`
	AggregateID string    `json:"aggregate_id"`
	Owner       string    `json:"owner"`
	At          time.Time `json:"at"`
}

// Feed publishes events and fans them out to subscribers.
type Feed interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(fn func(Event)) (unsubscribe func(), err error)
	Close() error
}

// Local is an in-process feed. Handlers run synchronously on the publisher's
// goroutine.
type Local struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
}

func NewLocal() *Local {
	return &Local{subs: make(map[int]func(Event))}
}

func (l *Local) Publish(_ context.Context, ev Event) error {
	l.mu.RLock()
	handlers := make([]func(Event), 0, len(l.subs))
	for _, fn := range l.subs {
		handlers = append(handlers, fn)
	}
	l.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
	return nil
}

func (l *Local) Subscribe(fn func(Event)) (func(), error) {
	l.mu.Lock()
	id := l.next
	l.next++
	l.subs[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}, nil
}

func (l *Local) Close() error {
	l.mu.Lock()
	l.subs = make(map[int]func(Event))
	l.mu.Unlock()
	return nil
}
