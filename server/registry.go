package server

import (
	"errors"
	"sync"

	"github.com/opd-ai/peerlink/address"
)

// ErrRegistryClosed is returned by registry operations after Close.
var ErrRegistryClosed = errors.New("registry closed")

// Registry stores the reachability records of registered users.
type Registry interface {
	// Put inserts or replaces the record for info.UserID
	Put(info address.NetworkInfo) error

	// Delete removes the record of userID; unknown ids are not an error
	Delete(userID string) error

	// Get returns the record of userID and whether it exists
	Get(userID string) (address.NetworkInfo, bool, error)

	// Close releases the registry
	Close() error
}

// MemoryRegistry is a Registry kept in process memory.
type MemoryRegistry struct {
	mu      sync.RWMutex
	records map[string]address.NetworkInfo
	closed  bool
}

// NewMemoryRegistry creates an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{records: make(map[string]address.NetworkInfo)}
}

func (r *MemoryRegistry) Put(info address.NetworkInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRegistryClosed
	}
	r.records[info.UserID] = info
	return nil
}

func (r *MemoryRegistry) Delete(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRegistryClosed
	}
	delete(r.records, userID)
	return nil
}

func (r *MemoryRegistry) Get(userID string) (address.NetworkInfo, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return address.NetworkInfo{}, false, ErrRegistryClosed
	}
	info, ok := r.records[userID]
	return info, ok, nil
}

func (r *MemoryRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
