package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/opd-ai/peerlink/address"
	"github.com/opd-ai/peerlink/limits"
	"github.com/opd-ai/peerlink/protocol"
)

// ErrStopped is reported by operations on an engine that has been stopped.
var ErrStopped = errors.New("transport engine stopped")

// Engine is a reliable-UDP endpoint bound to one socket.
type Engine struct {
	userID   string
	conn     net.PacketConn
	local    address.Endpoint
	defaults ReliableConfig
	entryTTL time.Duration

	reactor *Reactor
	acks    *Table[uint32, struct{}]
	replies *Table[uint32, *protocol.Message]
	sendSem *semaphore.Weighted

	keepAliveMu   sync.Mutex
	keepAliveSet  map[address.Endpoint]struct{}
	keepAliveWake chan struct{}
	keepAliveOnce sync.Once

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  atomic.Bool
}

// NewEngine binds the UDP socket described by opts and starts the receive
// loop and the correlation sweeper.
func NewEngine(opts *Options) (*Engine, error) {
	if opts == nil {
		opts = NewOptions("")
	}
	o := *opts
	o.normalize()

	listenAddr := o.ListenAddr
	if listenAddr == "" {
		listenAddr = ":0"
	}
	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
	}
	local, err := address.FromNetAddr(conn.LocalAddr())
	if err != nil {
		conn.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	clock := getTimeProvider(o.TimeProvider)

	e := &Engine{
		userID:        o.UserID,
		conn:          conn,
		local:         local,
		defaults:      o.Defaults,
		entryTTL:      o.EntryTTL,
		reactor:       NewReactor(ctx, int64(o.Workers)),
		acks:          NewTable[uint32, struct{}](clock),
		replies:       NewTable[uint32, *protocol.Message](clock),
		sendSem:       semaphore.NewWeighted(int64(o.Workers)),
		keepAliveSet:  make(map[address.Endpoint]struct{}),
		keepAliveWake: make(chan struct{}, 1),
		ctx:           ctx,
		cancel:        cancel,
	}

	e.wg.Add(2)
	go e.processPackets()
	go e.sweep(o.SweepInterval)

	logrus.WithFields(logrus.Fields{
		"function": "NewEngine",
		"user_id":  e.userID,
		"local":    local.String(),
		"workers":  o.Workers,
	}).Info("Transport engine started")

	return e, nil
}

// UserID returns the sender id stamped on outbound messages.
func (e *Engine) UserID() string {
	return e.userID
}

// LocalAddr returns the address the socket is bound to.
func (e *Engine) LocalAddr() net.Addr {
	return e.conn.LocalAddr()
}

// LocalEndpoint returns the bound address as an Endpoint.
func (e *Engine) LocalEndpoint() address.Endpoint {
	return e.local
}

// Reactor returns the dispatcher for inbound messages.
func (e *Engine) Reactor() *Reactor {
	return e.reactor
}

// RegisterHandler installs the handler for event.
func (e *Engine) RegisterHandler(event protocol.Event, handler Handler) {
	e.reactor.Register(event, handler)
}

// UnregisterHandler removes the handler for event.
func (e *Engine) UnregisterHandler(event protocol.Event) {
	e.reactor.Unregister(event)
}

// IsStopped reports whether Stop has been called.
func (e *Engine) IsStopped() bool {
	return e.stopped.Load()
}

// Stop closes the socket and stops every background goroutine. It is safe
// to call more than once.
func (e *Engine) Stop() error {
	var err error
	e.stopOnce.Do(func() {
		e.stopped.Store(true)
		e.cancel()
		err = e.conn.Close()
		e.wg.Wait()
		e.reactor.Wait()

		logrus.WithFields(logrus.Fields{
			"function": "Stop",
			"user_id":  e.userID,
			"local":    e.local.String(),
		}).Info("Transport engine stopped")
	})
	return err
}

// processPackets runs the receive loop until the engine stops.
func (e *Engine) processPackets() {
	defer e.wg.Done()
	buffer := make([]byte, limits.MaxPacketSize)

	for {
		err := e.processIncomingPacket(buffer)
		if err != nil && (e.stopped.Load() || errors.Is(err, net.ErrClosed)) {
			return
		}
	}
}

// processIncomingPacket reads, acknowledges and routes one datagram.
func (e *Engine) processIncomingPacket(buffer []byte) error {
	data, from, err := e.readPacketData(buffer)
	if err != nil {
		return err
	}

	msg, err := protocol.DecodeMessage(data)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "processIncomingPacket",
			"from":     from.String(),
			"size":     len(data),
			"error":    err.Error(),
		}).Debug("Dropping undecodable datagram")
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"function": "processIncomingPacket",
		"from":     from.String(),
		"message":  msg.String(),
	}).Debug("Received message")

	if msg.Reliable {
		e.acknowledge(msg, from)
	}

	switch msg.Code {
	case protocol.CodeAck:
		e.acks.Put(msg.RepliedID, struct{}{})
	case protocol.CodeReply:
		e.replies.Put(msg.RepliedID, msg)
	default:
		e.reactor.Dispatch(msg, from)
	}
	return nil
}

// readPacketData blocks for one datagram.
func (e *Engine) readPacketData(buffer []byte) ([]byte, address.Endpoint, error) {
	n, addr, err := e.conn.ReadFrom(buffer)
	if err != nil {
		return nil, address.Endpoint{}, e.handleReadError(err)
	}
	from, err := address.FromNetAddr(addr)
	if err != nil {
		return nil, address.Endpoint{}, err
	}
	return buffer[:n], from, nil
}

func (e *Engine) handleReadError(err error) error {
	if e.stopped.Load() || errors.Is(err, net.ErrClosed) {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"function": "readPacketData",
		"error":    err.Error(),
	}).Debug("Transient read error")
	return err
}

func (e *Engine) acknowledge(msg *protocol.Message, to address.Endpoint) {
	if err := e.write(protocol.NewAck(e.userID, msg), to); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "acknowledge",
			"to":         to.String(),
			"message_id": msg.ID,
			"error":      err.Error(),
		}).Warn("Failed to send ACK")
	}
}

// write encodes msg and transmits it once.
func (e *Engine) write(msg *protocol.Message, to address.Endpoint) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	return e.writeRaw(data, to)
}

func (e *Engine) writeRaw(data []byte, to address.Endpoint) error {
	if e.stopped.Load() {
		return ErrStopped
	}
	if !to.IsValid() {
		return fmt.Errorf("%w: %s", address.ErrInvalidEndpoint, to)
	}
	if _, err := e.conn.WriteTo(data, to.UDPAddr()); err != nil {
		return fmt.Errorf("failed to send to %s: %w", to, err)
	}
	return nil
}

// sweep evicts correlation entries that nobody claimed.
func (e *Engine) sweep(interval time.Duration) {
	defer e.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.sweepOnce()
		}
	}
}

func (e *Engine) sweepOnce() {
	acks := e.acks.Sweep(e.entryTTL)
	replies := e.replies.Sweep(e.entryTTL)
	if acks+replies > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "sweep",
			"acks":     acks,
			"replies":  replies,
		}).Debug("Evicted unclaimed correlation entries")
	}
}
