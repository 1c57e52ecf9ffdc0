package transport

import (
	"context"
	"sync"
	"time"
)

type slot[V any] struct {
	ready    chan struct{}
	value    V
	filled   bool
	filledAt time.Time
}

// Table correlates values arriving on the receive goroutine with callers
// waiting for them. Each key has its own wake channel, so a Put only wakes
// the waiter for that key.
type Table[K comparable, V any] struct {
	mu    sync.Mutex
	slots map[K]*slot[V]
	clock TimeProvider
}

// NewTable creates an empty table. A nil clock uses the system clock.
func NewTable[K comparable, V any](clock TimeProvider) *Table[K, V] {
	return &Table[K, V]{
		slots: make(map[K]*slot[V]),
		clock: getTimeProvider(clock),
	}
}

// get returns the slot for key, creating it. Caller holds mu.
func (t *Table[K, V]) get(key K) *slot[V] {
	s, ok := t.slots[key]
	if !ok {
		s = &slot[V]{ready: make(chan struct{})}
		t.slots[key] = s
	}
	return s
}

// Put stores value under key and wakes its waiter. Only the first value for
// a key is kept; Put reports whether this call stored it.
func (t *Table[K, V]) Put(key K, value V) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.get(key)
	if s.filled {
		return false
	}
	s.value = value
	s.filled = true
	s.filledAt = t.clock.Now()
	close(s.ready)
	return true
}

// Await blocks until key is filled, timeout elapses or ctx is done. A
// filled slot stays in the table until Forget or Sweep removes it, so a
// caller may Await the same key again after a resend.
func (t *Table[K, V]) Await(ctx context.Context, key K, timeout time.Duration) (V, bool) {
	t.mu.Lock()
	s := t.get(key)
	t.mu.Unlock()

	var zero V
	if timeout <= 0 {
		select {
		case <-s.ready:
			return s.value, true
		default:
			return zero, false
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.ready:
		return s.value, true
	case <-timer.C:
		return zero, false
	case <-ctx.Done():
		return zero, false
	}
}

// Forget removes key whether or not it was filled.
func (t *Table[K, V]) Forget(key K) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.slots, key)
}

// Sweep evicts filled entries older than maxAge and returns how many were
// removed. Unfilled entries belong to a live waiter and are left alone.
func (t *Table[K, V]) Sweep(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.clock.Now().Add(-maxAge)
	removed := 0
	for key, s := range t.slots {
		if s.filled && s.filledAt.Before(cutoff) {
			delete(t.slots, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries currently held.
func (t *Table[K, V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}
