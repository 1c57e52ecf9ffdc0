package transport

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/opd-ai/peerlink/address"
	"github.com/opd-ai/peerlink/protocol"
)

// Handler processes an inbound message for one event.
type Handler func(msg *protocol.Message, from address.Endpoint)

// Reactor dispatches inbound messages to the handler registered for their
// event. Handlers run concurrently, at most workers at a time, with no
// ordering guarantee between messages.
type Reactor struct {
	mu       sync.RWMutex
	handlers map[protocol.Event]Handler
	sem      *semaphore.Weighted
	ctx      context.Context
	wg       sync.WaitGroup
}

// NewReactor creates a reactor whose handlers stop being scheduled once ctx
// is done.
func NewReactor(ctx context.Context, workers int64) *Reactor {
	if workers <= 0 {
		workers = 1
	}
	return &Reactor{
		handlers: make(map[protocol.Event]Handler),
		sem:      semaphore.NewWeighted(workers),
		ctx:      ctx,
	}
}

// Register installs handler for event, replacing any previous one.
func (r *Reactor) Register(event protocol.Event, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = handler
}

// Unregister removes the handler for event.
func (r *Reactor) Unregister(event protocol.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, event)
}

// Has reports whether a handler is registered for event.
func (r *Reactor) Has(event protocol.Event) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[event]
	return ok
}

// Dispatch schedules the handler for msg.Event and returns immediately.
// Messages for events without a handler are dropped and Dispatch returns
// false.
func (r *Reactor) Dispatch(msg *protocol.Message, from address.Endpoint) bool {
	r.mu.RLock()
	handler, exists := r.handlers[msg.Event]
	r.mu.RUnlock()

	if !exists {
		logrus.WithFields(logrus.Fields{
			"function": "Dispatch",
			"event":    msg.Event.String(),
			"from":     from.String(),
		}).Debug("No handler registered, dropping message")
		return false
	}

	r.wg.Add(1)
	go r.run(handler, msg, from)
	return true
}

func (r *Reactor) run(handler Handler, msg *protocol.Message, from address.Endpoint) {
	defer r.wg.Done()

	if err := r.sem.Acquire(r.ctx, 1); err != nil {
		return
	}
	defer r.sem.Release(1)

	defer func() {
		if rec := recover(); rec != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Dispatch",
				"event":    msg.Event.String(),
				"from":     from.String(),
				"panic":    rec,
			}).Error("Handler panicked")
		}
	}()

	handler(msg, from)
}

// Wait blocks until every scheduled handler has returned.
func (r *Reactor) Wait() {
	r.wg.Wait()
}
