package peerlink

import (
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerlink/address"
	"github.com/opd-ai/peerlink/assist"
	"github.com/opd-ai/peerlink/controller"
	"github.com/opd-ai/peerlink/factory"
	"github.com/opd-ai/peerlink/interfaces"
	"github.com/opd-ai/peerlink/transport"
)

// ErrNoServer is returned when a rendezvous or relay server address is missing.
var ErrNoServer = errors.New("rendezvous and relay server addresses are required")

// Options contains configuration for creating a Node.
type Options struct {
	// UserID identifies this node to the rendezvous server and its peers.
	UserID string
	// ListenAddr is the local UDP address; "" binds an ephemeral port.
	ListenAddr string
	// RendezvousServer and RelayServer are host:port addresses.
	RendezvousServer string
	RelayServer      string
	// HostAddress overrides the discovered private address.
	HostAddress netip.Addr
	// Reliable holds the defaults of reliable sends.
	Reliable transport.ReliableConfig
	// Workers bounds concurrent sends and handlers.
	Workers int
	// KeepAliveInterval is the PING period towards the relay and watched users.
	KeepAliveInterval time.Duration
	// PollInterval is the liveness polling period of WatchRegisteredUsers.
	PollInterval time.Duration
}

// NewOptions returns Options with a random user id and reliability settings
// from factory.NewEngineFactory.
func NewOptions() *Options {
	config := factory.NewEngineFactory().CurrentConfig()
	return &Options{
		UserID:            uuid.NewString(),
		Reliable:          config.Reliable,
		Workers:           config.Workers,
		KeepAliveInterval: transport.DefaultKeepAliveInterval,
		PollInterval:      controller.DefaultPollInterval,
	}
}

// Node is one peer: a transport engine plus the clients and controller
// built on it.
type Node struct {
	options    *Options
	engine     *transport.Engine
	private    address.Endpoint
	rendezvous *assist.RendezvousClient
	relay      *assist.RelayClient
	central    *controller.Central
	closeOnce  sync.Once
}

// New creates a Node, registers it with the rendezvous server and starts
// keep-alive towards the relay server. A failed registration is logged and
// does not fail New.
func New(options *Options) (*Node, error) {
	if options == nil {
		options = NewOptions()
	}
	if options.UserID == "" {
		return nil, errors.New("user id is required")
	}
	if options.RendezvousServer == "" || options.RelayServer == "" {
		return nil, ErrNoServer
	}
	rendezvousEndpoint, err := address.ResolveEndpoint(options.RendezvousServer)
	if err != nil {
		return nil, fmt.Errorf("rendezvous server: %w", err)
	}
	relayEndpoint, err := address.ResolveEndpoint(options.RelayServer)
	if err != nil {
		return nil, fmt.Errorf("relay server: %w", err)
	}

	engineOpts := transport.NewOptions(options.UserID)
	engineOpts.ListenAddr = options.ListenAddr
	engineOpts.Defaults = options.Reliable
	engineOpts.Workers = options.Workers
	engine, err := transport.NewEngine(engineOpts)
	if err != nil {
		return nil, err
	}

	host := options.HostAddress
	if !host.IsValid() {
		host, err = address.HostAddress()
		if err != nil {
			_ = engine.Stop()
			return nil, fmt.Errorf("discover host address: %w", err)
		}
	}
	private := address.NewEndpoint(host, engine.LocalEndpoint().Port)

	rendezvous := assist.NewRendezvousClient(engine, rendezvousEndpoint)
	relay := assist.NewRelayClient(engine, relayEndpoint)
	central, err := controller.NewCentral(controller.Options{
		UserID:       options.UserID,
		Transport:    engine,
		Rendezvous:   rendezvous,
		Relay:        relay,
		PollInterval: options.PollInterval,
	})
	if err != nil {
		_ = engine.Stop()
		return nil, err
	}

	n := &Node{
		options:    options,
		engine:     engine,
		private:    private,
		rendezvous: rendezvous,
		relay:      relay,
		central:    central,
	}

	if !rendezvous.Register(private) {
		logrus.WithFields(logrus.Fields{
			"function":   "New",
			"user_id":    options.UserID,
			"rendezvous": rendezvousEndpoint.String(),
		}).Warn("Registration with rendezvous server failed")
	}

	keepAlive := options.KeepAliveInterval
	if keepAlive <= 0 {
		keepAlive = transport.DefaultKeepAliveInterval
	}
	engine.KeepAlive(keepAlive)
	engine.AddKeepAliveEndpoint(relayEndpoint)
	central.RegisterControllerHandler()

	logrus.WithFields(logrus.Fields{
		"function": "New",
		"user_id":  options.UserID,
		"private":  private.String(),
		"local":    engine.LocalEndpoint().String(),
	}).Info("Node started")
	return n, nil
}

// UserID returns the node's user id.
func (n *Node) UserID() string {
	return n.options.UserID
}

// PrivateEndpoint returns the endpoint registered as this node's private one.
func (n *Node) PrivateEndpoint() address.Endpoint {
	return n.private
}

// Engine returns the node's transport engine.
func (n *Node) Engine() *transport.Engine {
	return n.engine
}

// Central returns the node's connection controller.
func (n *Node) Central() *controller.Central {
	return n.central
}

// Rendezvous returns the node's rendezvous client.
func (n *Node) Rendezvous() *assist.RendezvousClient {
	return n.rendezvous
}

// Relay returns the node's relay client.
func (n *Node) Relay() *assist.RelayClient {
	return n.relay
}

// RegisterFeature attaches a feature controller to the session.
func (n *Node) RegisterFeature(f interfaces.IFeatureController) error {
	return n.central.RegisterFeature(f)
}

// Connect starts a session with remoteUserID.
func (n *Node) Connect(remoteUserID string) bool {
	return n.central.Connect(remoteUserID)
}

// Disconnect ends the current session.
func (n *Node) Disconnect() bool {
	return n.central.Disconnect()
}

// State returns the session state.
func (n *Node) State() controller.State {
	return n.central.State()
}

// Close releases the relay, unregisters from the rendezvous server and stops
// the engine. It is safe to call more than once.
func (n *Node) Close() error {
	var err error
	n.closeOnce.Do(func() {
		n.central.Close()
		err = n.engine.Stop()

		logrus.WithFields(logrus.Fields{
			"function": "Close",
			"user_id":  n.options.UserID,
		}).Info("Node closed")
	})
	return err
}
