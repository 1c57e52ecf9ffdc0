package controller

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerlink/address"
	"github.com/opd-ai/peerlink/interfaces"
	"github.com/opd-ai/peerlink/protocol"
	"github.com/opd-ai/peerlink/transport"
)

// DefaultPollInterval is the liveness polling period.
const DefaultPollInterval = 10 * time.Second

// State is the connection state of a Central.
type State int

const (
	// StateDisconnected means no peer session is active.
	StateDisconnected State = iota
	// StateConnected means a handshake completed with the remote user.
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// EstablishHook decides whether to accept an inbound connection from
// remoteUserID.
type EstablishHook func(remoteUserID string) bool

// Hook is run on connection lifecycle events.
type Hook func()

// UserHook is run when a watched user comes online or goes offline.
type UserHook func(userID string)

// Options configures a Central.
type Options struct {
	UserID       string
	Transport    interfaces.IReliableTransport
	Rendezvous   interfaces.IRendezvousClient
	Relay        interfaces.IRelayClient
	PollInterval time.Duration
}

// Central is the connection controller of one node.
type Central struct {
	userID       string
	transport    interfaces.IReliableTransport
	rendezvous   interfaces.IRendezvousClient
	relay        interfaces.IRelayClient
	pollInterval time.Duration

	mu             sync.Mutex
	state          State
	remoteUserID   string
	remoteEndpoint address.Endpoint
	features       []interfaces.IFeatureController
	establishHook  EstablishHook
	connectHook    Hook
	terminateHook  Hook
	remoteUserIDs  []string
	tracked        map[string]address.NetworkInfo

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	pollOnce  sync.Once
	closeOnce sync.Once
}

// NewCentral creates a connection controller. The inbound handler is not
// installed until RegisterControllerHandler is called.
func NewCentral(opts Options) (*Central, error) {
	if opts.Transport == nil || opts.Rendezvous == nil || opts.Relay == nil {
		return nil, errors.New("central controller requires transport, rendezvous and relay clients")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Central{
		userID:       opts.UserID,
		transport:    opts.Transport,
		rendezvous:   opts.Rendezvous,
		relay:        opts.Relay,
		pollInterval: opts.PollInterval,
		tracked:      make(map[string]address.NetworkInfo),
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// State returns the connection state.
func (c *Central) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RemoteUserID returns the user of the current or last session.
func (c *Central) RemoteUserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteUserID
}

// RemoteEndpoint returns the resolved remote endpoint and whether one is set.
func (c *Central) RemoteEndpoint() (address.Endpoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteEndpoint, c.remoteEndpoint.IsValid()
}

// SetEstablishHook sets the inbound accept decision. Without one every
// inbound ESTABLISH is rejected.
func (c *Central) SetEstablishHook(hook EstablishHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.establishHook = hook
}

// SetConnectHook sets the hook run after accepting an inbound connection.
func (c *Central) SetConnectHook(hook Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectHook = hook
}

// SetTerminateHook sets the hook run when the peer terminates the session.
func (c *Central) SetTerminateHook(hook Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terminateHook = hook
}

// SetRemoteUserIDs sets the users watched by WatchRegisteredUsers.
func (c *Central) SetRemoteUserIDs(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remoteUserIDs = append([]string(nil), ids...)
}

// RegisterFeature configures f with this node's transport, installs its
// handler and passes it the current remote endpoint, if any.
func (c *Central) RegisterFeature(f interfaces.IFeatureController) error {
	if f == nil {
		return errors.New("feature controller is nil")
	}
	f.Configure(c.userID, c.transport)
	f.RegisterControllerHandler()

	c.mu.Lock()
	c.features = append(c.features, f)
	remote := c.remoteEndpoint
	c.mu.Unlock()

	if remote.IsValid() {
		f.SetRemoteEndpoint(remote)
	}
	return nil
}

// RegisterControllerHandler installs the connection-control handler.
func (c *Central) RegisterControllerHandler() {
	c.transport.RegisterHandler(protocol.EventConnect, c.handle)
}

// TestConnect resolves an endpoint for remoteUserID and broadcasts it to the
// registered features. It reports false, selecting nothing, when no tier
// succeeds.
func (c *Central) TestConnect(remoteUserID string) bool {
	info, ok := c.rendezvous.GetInfo(remoteUserID)
	if !ok || !info.IsOnline() {
		logrus.WithFields(logrus.Fields{
			"function":       "TestConnect",
			"remote_user_id": remoteUserID,
		}).Warn("Remote user is not registered")
		return false
	}
	public, _ := info.PublicEndpoint()

	var selected address.Endpoint
	var tier string
	switch {
	case info.Private.IsValid() && c.transport.TestConnect(info.Private):
		selected, tier = info.Private, "private"
	case c.transport.TestConnect(public):
		selected, tier = public, "public"
	case c.relay.Relay(public):
		selected, tier = c.relay.Endpoint(), "relay"
	default:
		logrus.WithFields(logrus.Fields{
			"function":       "TestConnect",
			"remote_user_id": remoteUserID,
			"private":        info.Private.String(),
			"public":         public.String(),
		}).Warn("Remote user unreachable on every tier")
		return false
	}

	c.mu.Lock()
	c.remoteUserID = remoteUserID
	c.remoteEndpoint = selected
	features := append([]interfaces.IFeatureController(nil), c.features...)
	c.mu.Unlock()

	for _, f := range features {
		f.SetRemoteEndpoint(selected)
	}

	logrus.WithFields(logrus.Fields{
		"function":       "TestConnect",
		"remote_user_id": remoteUserID,
		"tier":           tier,
		"endpoint":       selected.String(),
	}).Info("Remote endpoint resolved")
	return true
}

// Connect runs the ESTABLISH handshake with remoteUserID. It is refused
// while a session is active.
func (c *Central) Connect(remoteUserID string) bool {
	if c.State() != StateDisconnected {
		logrus.WithFields(logrus.Fields{
			"function":       "Connect",
			"remote_user_id": remoteUserID,
		}).Warn("Already connected")
		return false
	}
	if !c.TestConnect(remoteUserID) {
		return false
	}

	if !c.handshake(protocol.ConnectEstablish) {
		logrus.WithFields(logrus.Fields{
			"function":       "Connect",
			"remote_user_id": remoteUserID,
		}).Warn("Connection not accepted")
		return false
	}
	c.setState(StateConnected)

	logrus.WithFields(logrus.Fields{
		"function":       "Connect",
		"remote_user_id": remoteUserID,
	}).Info("Connected")
	return true
}

// Disconnect runs the TERMINATE handshake with the current remote endpoint.
// It does not check the state, so calling it while disconnected still
// performs a round trip.
func (c *Central) Disconnect() bool {
	if !c.handshake(protocol.ConnectTerminate) {
		logrus.WithFields(logrus.Fields{
			"function":       "Disconnect",
			"remote_user_id": c.RemoteUserID(),
		}).Warn("Terminate not confirmed")
		return false
	}
	c.setState(StateDisconnected)

	logrus.WithFields(logrus.Fields{
		"function":       "Disconnect",
		"remote_user_id": c.RemoteUserID(),
	}).Info("Disconnected")
	return true
}

// handshake sends flag with a fresh verification number and reports whether
// the peer answered with that number plus one.
func (c *Central) handshake(flag protocol.Flag) bool {
	remote, ok := c.RemoteEndpoint()
	if !ok {
		return false
	}
	v := verificationNumber()
	payload, err := protocol.EncodePayload(flag, v)
	if err != nil {
		return false
	}
	msg := protocol.NewMessage(c.userID, protocol.EventConnect, payload)
	result := c.transport.SendReliableMessage(msg, remote, nil, expectAnswer(flag, v+1))
	matched, ok := result.ReplyBool()
	return ok && matched
}

func expectAnswer(flag protocol.Flag, want int) transport.ReplyHandler {
	return func(reply *protocol.Message) (any, error) {
		p, err := reply.DecodePayload()
		if err != nil {
			return nil, err
		}
		if p.Flag != flag {
			return false, nil
		}
		got, err := p.Int()
		if err != nil {
			return nil, err
		}
		return got == want, nil
	}
}

// verificationNumber returns a random non-negative int whose successor does
// not overflow.
func verificationNumber() int {
	return rand.IntN(math.MaxInt32)
}

func (c *Central) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *Central) handle(msg *protocol.Message, from address.Endpoint) {
	p, err := msg.DecodePayload()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handle",
			"from":     from.String(),
			"error":    err.Error(),
		}).Warn("Dropping malformed connection message")
		return
	}

	switch p.Flag {
	case protocol.ConnectEstablish:
		c.handleEstablish(msg, p)
	case protocol.ConnectTerminate:
		c.handleTerminate(msg, p, from)
	default:
		logrus.WithFields(logrus.Fields{
			"function": "handle",
			"from":     from.String(),
			"flag":     p.Flag,
		}).Warn("Unknown connection flag")
	}
}

func (c *Central) handleEstablish(msg *protocol.Message, p protocol.Payload) {
	remoteUserID := msg.SenderID
	if c.State() != StateDisconnected {
		logrus.WithFields(logrus.Fields{
			"function":       "handleEstablish",
			"remote_user_id": remoteUserID,
		}).Info("Ignoring ESTABLISH while connected")
		return
	}
	v, err := p.Int()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":       "handleEstablish",
			"remote_user_id": remoteUserID,
			"error":          err.Error(),
		}).Warn("ESTABLISH without verification number")
		return
	}
	if !c.TestConnect(remoteUserID) {
		return
	}

	c.mu.Lock()
	hook := c.establishHook
	c.mu.Unlock()
	accept := hook != nil && hook(remoteUserID)

	answer := -1
	if accept {
		answer = v + 1
	}
	remote, _ := c.RemoteEndpoint()
	result := c.reply(msg, protocol.ConnectEstablish, answer, remote)
	if !result.IsReceived() || !accept {
		logrus.WithFields(logrus.Fields{
			"function":       "handleEstablish",
			"remote_user_id": remoteUserID,
			"accepted":       accept,
			"result":         result.String(),
		}).Info("Inbound connection not established")
		return
	}

	c.setState(StateConnected)
	logrus.WithFields(logrus.Fields{
		"function":       "handleEstablish",
		"remote_user_id": remoteUserID,
	}).Info("Inbound connection established")

	c.mu.Lock()
	connected := c.connectHook
	c.mu.Unlock()
	if connected != nil {
		connected()
	}
}

func (c *Central) handleTerminate(msg *protocol.Message, p protocol.Payload, from address.Endpoint) {
	v, err := p.Int()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleTerminate",
			"from":     from.String(),
			"error":    err.Error(),
		}).Warn("TERMINATE without verification number")
		return
	}
	remote, ok := c.RemoteEndpoint()
	if !ok {
		remote = from
	}
	result := c.reply(msg, protocol.ConnectTerminate, v+1, remote)
	if !result.IsReceived() {
		logrus.WithFields(logrus.Fields{
			"function": "handleTerminate",
			"to":       remote.String(),
			"result":   result.String(),
		}).Warn("TERMINATE reply not acknowledged")
		return
	}

	c.setState(StateDisconnected)
	logrus.WithFields(logrus.Fields{
		"function":       "handleTerminate",
		"remote_user_id": msg.SenderID,
	}).Info("Session terminated by peer")

	c.mu.Lock()
	terminated := c.terminateHook
	c.mu.Unlock()
	if terminated != nil {
		terminated()
	}
}

func (c *Central) reply(msg *protocol.Message, flag protocol.Flag, answer int, to address.Endpoint) transport.Result {
	payload, err := protocol.EncodePayload(flag, answer)
	if err != nil {
		return transport.ExtraError(err)
	}
	reply := protocol.NewReply(c.userID, protocol.EventConnect, msg.ID, payload)
	return c.transport.SendReliableMessage(reply, to, nil, nil)
}

// Close stops liveness polling, releases any relay and unregisters from the
// rendezvous server. It does not stop the transport. It is safe to call more
// than once.
func (c *Central) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.wg.Wait()
		c.transport.UnregisterHandler(protocol.EventConnect)
		c.relay.Unrelay()
		c.rendezvous.Unregister()

		logrus.WithFields(logrus.Fields{
			"function": "Close",
			"user_id":  c.userID,
		}).Info("Central controller closed")
	})
}
