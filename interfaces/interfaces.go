package interfaces

import (
	"github.com/opd-ai/peerlink/address"
	"github.com/opd-ai/peerlink/protocol"
	"github.com/opd-ai/peerlink/transport"
)

// IReliableSender sends messages on behalf of one user.
type IReliableSender interface {
	// UserID returns the sender id stamped on outbound messages
	UserID() string

	// SendMessage transmits a message once without waiting
	SendMessage(msg *protocol.Message, to address.Endpoint)

	// SendReliableMessage blocks until the message is acknowledged, answered,
	// timed out or failed. A nil config uses the transport defaults.
	SendReliableMessage(msg *protocol.Message, to address.Endpoint, cfg *transport.ReliableConfig, handler transport.ReplyHandler) transport.Result
}

// IReliableTransport is the full transport surface used by controllers.
type IReliableTransport interface {
	IReliableSender

	// RegisterHandler installs the inbound handler for an event
	RegisterHandler(event protocol.Event, handler transport.Handler)

	// UnregisterHandler removes the inbound handler for an event
	UnregisterHandler(event protocol.Event)

	// TestConnect probes an endpoint and reports whether it acknowledged
	TestConnect(to address.Endpoint) bool

	// AddKeepAliveEndpoint adds an endpoint to the keep-alive set
	AddKeepAliveEndpoint(ep address.Endpoint)

	// RemoveKeepAliveEndpoint removes an endpoint from the keep-alive set
	RemoveKeepAliveEndpoint(ep address.Endpoint)

	// LocalEndpoint returns the bound socket address
	LocalEndpoint() address.Endpoint
}

// IRendezvousClient talks to the registration server.
type IRendezvousClient interface {
	// Register publishes the host endpoint of this user
	Register(host address.Endpoint) bool

	// Unregister removes this user from the server
	Unregister() bool

	// GetInfo fetches the reachability record of one user
	GetInfo(userID string) (address.NetworkInfo, bool)

	// GetInfos fetches the records of several users in one request
	GetInfos(userIDs []string) ([]address.NetworkInfo, bool)

	// Endpoint returns the server endpoint
	Endpoint() address.Endpoint
}

// IRelayClient talks to the relay server.
type IRelayClient interface {
	// Relay asks the server to forward traffic to and from remotePublic
	Relay(remotePublic address.Endpoint) bool

	// Unrelay removes every route created for this user
	Unrelay() bool

	// Endpoint returns the server endpoint
	Endpoint() address.Endpoint
}

// IFeatureController is a per-event controller managed by the connection
// controller.
type IFeatureController interface {
	// Event returns the event the controller handles
	Event() protocol.Event

	// Configure binds the controller to its sender
	Configure(userID string, transport IReliableTransport)

	// SetRemoteEndpoint updates the destination of outbound messages
	SetRemoteEndpoint(ep address.Endpoint)

	// RegisterControllerHandler installs the inbound handler
	RegisterControllerHandler()
}

var _ IReliableTransport = (*transport.Engine)(nil)
