// Package pubsub is the transport behind the gateway's broadcast groups.
// A Broker fans opaque payloads out to every subscriber of a channel,
// including subscribers in other gateway processes when backed by Redis.
package pubsub

import (
	"context"
	"sync"
)

type Handler func(payload []byte)

type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe registers a handler for a channel and returns a function
	// that cancels the subscription.
	Subscribe(ctx context.Context, channel string, h Handler) (func(), error)
}

// Local is an in-process broker. Delivery is synchronous, which keeps
// single-instance deployments ordered and makes tests deterministic.
type Local struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]Handler
}

func NewLocal() *Local {
	return &Local{handlers: make(map[string]map[int]Handler)}
}

func (l *Local) Publish(_ context.Context, channel string, payload []byte) error {
	l.mu.RLock()
	hs := make([]Handler, 0, len(l.handlers[channel]))
	for _, h := range l.handlers[channel] {
		hs = append(hs, h)
	}
	l.mu.RUnlock()

	for _, h := range hs {
		h(payload)
	}
	return nil
}

func (l *Local) Subscribe(_ context.Context, channel string, h Handler) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handlers[channel] == nil {
		l.handlers[channel] = make(map[int]Handler)
	}
	id := l.nextID
	l.nextID++
	l.handlers[channel][id] = h

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.handlers[channel], id)
		if len(l.handlers[channel]) == 0 {
			delete(l.handlers, channel)
		}
	}, nil
}
