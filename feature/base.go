package feature

import (
	"errors"
	"sync"

	"github.com/opd-ai/peerlink/address"
	"github.com/opd-ai/peerlink/interfaces"
	"github.com/opd-ai/peerlink/protocol"
	"github.com/opd-ai/peerlink/transport"
)

var (
	// ErrNoRemoteEndpoint is returned when sending before connectivity has
	// been resolved.
	ErrNoRemoteEndpoint = errors.New("remote endpoint not resolved")
	// ErrNotConfigured is returned when a controller has no transport.
	ErrNotConfigured = errors.New("feature controller not configured")
)

// Base is the state shared by all feature controllers.
type Base struct {
	event protocol.Event

	mu        sync.RWMutex
	userID    string
	transport interfaces.IReliableTransport
	remote    address.Endpoint
}

// Event returns the event the controller handles.
func (b *Base) Event() protocol.Event {
	return b.event
}

// Configure binds the controller to its sender.
func (b *Base) Configure(userID string, tr interfaces.IReliableTransport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.userID = userID
	b.transport = tr
}

// SetRemoteEndpoint sets the destination of outbound messages.
func (b *Base) SetRemoteEndpoint(ep address.Endpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remote = ep
}

// RemoteEndpoint returns the current destination and whether one is set.
func (b *Base) RemoteEndpoint() (address.Endpoint, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.remote, b.remote.IsValid()
}

// RegisterHandler installs handler for the controller event.
func (b *Base) RegisterHandler(handler transport.Handler) error {
	b.mu.RLock()
	tr := b.transport
	b.mu.RUnlock()
	if tr == nil {
		return ErrNotConfigured
	}
	tr.RegisterHandler(b.event, handler)
	return nil
}

func (b *Base) target() (interfaces.IReliableTransport, string, address.Endpoint, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.transport == nil {
		return nil, "", address.Endpoint{}, ErrNotConfigured
	}
	if !b.remote.IsValid() {
		return nil, "", address.Endpoint{}, ErrNoRemoteEndpoint
	}
	return b.transport, b.userID, b.remote, nil
}

// SendMessage sends payload unreliably to the remote endpoint.
func (b *Base) SendMessage(payload []byte) error {
	tr, userID, remote, err := b.target()
	if err != nil {
		return err
	}
	tr.SendMessage(protocol.NewMessage(userID, b.event, payload), remote)
	return nil
}

// SendReliableMessage sends payload reliably to the remote endpoint.
func (b *Base) SendReliableMessage(payload []byte, handler transport.ReplyHandler) transport.Result {
	tr, userID, remote, err := b.target()
	if err != nil {
		return transport.ExtraError(err)
	}
	return tr.SendReliableMessage(protocol.NewMessage(userID, b.event, payload), remote, nil, handler)
}
