package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerlink/address"
	"github.com/opd-ai/peerlink/limits"
	"github.com/opd-ai/peerlink/protocol"
)

// RelayUserID is the sender id of relay server messages.
const RelayUserID = "peerlink-relay"

// Relay forwards datagrams between routed endpoint pairs.
type Relay struct {
	conn  net.PacketConn
	local address.Endpoint

	mu     sync.RWMutex
	routes map[address.Endpoint]address.Endpoint

	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewRelay starts a relay server on listenAddr.
func NewRelay(listenAddr string) (*Relay, error) {
	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
	}
	local, err := address.FromNetAddr(conn.LocalAddr())
	if err != nil {
		conn.Close()
		return nil, err
	}

	r := &Relay{
		conn:   conn,
		local:  local,
		routes: make(map[address.Endpoint]address.Endpoint),
	}
	r.wg.Add(1)
	go r.processPackets()

	logrus.WithFields(logrus.Fields{
		"function": "NewRelay",
		"local":    local.String(),
	}).Info("Relay server listening")
	return r, nil
}

// Endpoint returns the address the relay is bound to.
func (r *Relay) Endpoint() address.Endpoint {
	return r.local
}

// Partner returns the endpoint traffic from ep is forwarded to.
func (r *Relay) Partner(ep address.Endpoint) (address.Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	partner, ok := r.routes[ep]
	return partner, ok
}

// RouteCount returns the number of directed routes.
func (r *Relay) RouteCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}

// Close stops the relay. It is safe to call more than once.
func (r *Relay) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := r.conn.Close()
	r.wg.Wait()
	return err
}

func (r *Relay) processPackets() {
	defer r.wg.Done()
	buffer := make([]byte, limits.MaxPacketSize)

	for {
		n, addr, err := r.conn.ReadFrom(buffer)
		if err != nil {
			if r.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		from, err := address.FromNetAddr(addr)
		if err != nil {
			continue
		}
		r.processDatagram(buffer[:n], from)
	}
}

func (r *Relay) processDatagram(data []byte, from address.Endpoint) {
	if msg, err := protocol.DecodeMessage(data); err == nil && consumed(msg) {
		if msg.Reliable {
			r.write(protocol.NewAck(RelayUserID, msg), from)
		}
		if msg.Event == protocol.EventRelay && msg.Code == protocol.CodeData {
			r.control(msg, from)
		}
		return
	}

	partner, ok := r.Partner(from)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function": "processDatagram",
			"from":     from.String(),
		}).Debug("No route, dropping datagram")
		return
	}
	if _, err := r.conn.WriteTo(data, partner.UDPAddr()); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "processDatagram",
			"from":     from.String(),
			"to":       partner.String(),
			"error":    err.Error(),
		}).Debug("Forward failed")
	}
}

// consumed reports whether msg is addressed to the relay itself.
func consumed(msg *protocol.Message) bool {
	return msg.Code == protocol.CodePing || msg.Event == protocol.EventRelay
}

func (r *Relay) control(msg *protocol.Message, from address.Endpoint) {
	p, err := msg.DecodePayload()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "control",
			"from":     from.String(),
			"error":    err.Error(),
		}).Warn("Dropping malformed relay request")
		return
	}

	switch p.Flag {
	case protocol.RelayRequest:
		target, ok := p.Data.(address.Endpoint)
		accepted := ok && target.IsValid() && target != from
		if accepted {
			r.addRoute(from, target)
		}
		r.reply(msg, from, accepted)

		logrus.WithFields(logrus.Fields{
			"function": "control",
			"user_id":  msg.SenderID,
			"from":     from.String(),
			"target":   target.String(),
			"accepted": accepted,
		}).Info("Relay requested")
	case protocol.RelayRelease:
		r.removeRoutes(from)
		logrus.WithFields(logrus.Fields{
			"function": "control",
			"user_id":  msg.SenderID,
			"from":     from.String(),
		}).Info("Relay released")
	default:
		logrus.WithFields(logrus.Fields{
			"function": "control",
			"from":     from.String(),
			"flag":     p.Flag,
		}).Warn("Unknown relay flag")
	}
}

func (r *Relay) addRoute(a, b address.Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropLocked(a)
	r.dropLocked(b)
	r.routes[a] = b
	r.routes[b] = a
}

func (r *Relay) removeRoutes(ep address.Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropLocked(ep)
}

// dropLocked removes ep and its reverse route. Caller holds mu.
func (r *Relay) dropLocked(ep address.Endpoint) {
	partner, ok := r.routes[ep]
	if !ok {
		return
	}
	delete(r.routes, ep)
	if back, ok := r.routes[partner]; ok && back == ep {
		delete(r.routes, partner)
	}
}

func (r *Relay) reply(msg *protocol.Message, to address.Endpoint, accepted bool) {
	payload, err := protocol.EncodePayload(protocol.RelayRequest, accepted)
	if err != nil {
		return
	}
	r.write(protocol.NewReply(RelayUserID, protocol.EventRelay, msg.ID, payload), to)
}

func (r *Relay) write(msg *protocol.Message, to address.Endpoint) {
	data, err := msg.Encode()
	if err == nil {
		_, err = r.conn.WriteTo(data, to.UDPAddr())
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "write",
			"to":       to.String(),
			"error":    err.Error(),
		}).Debug("Relay send failed")
	}
}
