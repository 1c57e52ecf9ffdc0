package server

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerlink/address"
	"github.com/opd-ai/peerlink/protocol"
	"github.com/opd-ai/peerlink/transport"
)

// RendezvousUserID is the sender id of rendezvous server messages.
const RendezvousUserID = "peerlink-rendezvous"

// Rendezvous answers registration and lookup requests.
type Rendezvous struct {
	engine   *transport.Engine
	registry Registry
}

// NewRendezvous starts a rendezvous server on listenAddr backed by registry.
// A nil registry uses a MemoryRegistry.
func NewRendezvous(listenAddr string, registry Registry) (*Rendezvous, error) {
	if registry == nil {
		registry = NewMemoryRegistry()
	}
	opts := transport.NewOptions(RendezvousUserID)
	opts.ListenAddr = listenAddr
	engine, err := transport.NewEngine(opts)
	if err != nil {
		return nil, err
	}

	s := &Rendezvous{engine: engine, registry: registry}
	engine.RegisterHandler(protocol.EventRendezvous, s.handle)

	logrus.WithFields(logrus.Fields{
		"function": "NewRendezvous",
		"local":    engine.LocalEndpoint().String(),
	}).Info("Rendezvous server listening")
	return s, nil
}

// Endpoint returns the address the server is bound to.
func (s *Rendezvous) Endpoint() address.Endpoint {
	return s.engine.LocalEndpoint()
}

// Close stops the server and closes its registry.
func (s *Rendezvous) Close() error {
	err := s.engine.Stop()
	if rerr := s.registry.Close(); err == nil {
		err = rerr
	}
	return err
}

func (s *Rendezvous) handle(msg *protocol.Message, from address.Endpoint) {
	p, err := msg.DecodePayload()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handle",
			"from":     from.String(),
			"error":    err.Error(),
		}).Warn("Dropping malformed rendezvous request")
		return
	}

	switch p.Flag {
	case protocol.RendezvousRegister:
		s.register(msg.SenderID, p.Data, from)
	case protocol.RendezvousUnregister:
		s.unregister(msg.SenderID)
	case protocol.RendezvousGetInfo:
		s.getInfo(msg, p.Data, from)
	default:
		logrus.WithFields(logrus.Fields{
			"function": "handle",
			"from":     from.String(),
			"flag":     p.Flag,
		}).Warn("Unknown rendezvous flag")
	}
}

func (s *Rendezvous) register(userID string, data any, from address.Endpoint) {
	private, ok := data.(address.Endpoint)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function": "register",
			"user_id":  userID,
		}).Warn("Register request without endpoint")
		return
	}
	info := address.NewNetworkInfo(userID, private, from)
	if err := s.registry.Put(info); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "register",
			"user_id":  userID,
			"error":    err.Error(),
		}).Warn("Failed to store registration")
		return
	}
	logrus.WithFields(logrus.Fields{
		"function": "register",
		"user_id":  userID,
		"private":  private.String(),
		"public":   from.String(),
	}).Info("User registered")
}

func (s *Rendezvous) unregister(userID string) {
	if err := s.registry.Delete(userID); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "unregister",
			"user_id":  userID,
			"error":    err.Error(),
		}).Warn("Failed to remove registration")
		return
	}
	logrus.WithFields(logrus.Fields{
		"function": "unregister",
		"user_id":  userID,
	}).Info("User unregistered")
}

// lookup returns one record per id; unknown users are reported offline.
func (s *Rendezvous) lookup(userIDs []string) []address.NetworkInfo {
	infos := make([]address.NetworkInfo, 0, len(userIDs))
	for _, id := range userIDs {
		info, ok, err := s.registry.Get(id)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "lookup",
				"user_id":  id,
				"error":    err.Error(),
			}).Warn("Registry lookup failed")
		}
		if !ok || err != nil {
			info = address.OfflineInfo(id)
		}
		infos = append(infos, info)
	}
	return infos
}

func (s *Rendezvous) getInfo(msg *protocol.Message, data any, from address.Endpoint) {
	ids, _ := data.([]string)
	payload, err := protocol.EncodePayload(protocol.RendezvousGetInfo, s.lookup(ids))
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "getInfo",
			"from":     from.String(),
			"error":    err.Error(),
		}).Warn("Failed to encode lookup reply")
		return
	}
	reply := protocol.NewReply(RendezvousUserID, protocol.EventRendezvous, msg.ID, payload)
	result := s.engine.SendReliableMessage(reply, from, nil, nil)
	if !result.IsReceived() {
		logrus.WithFields(logrus.Fields{
			"function": "getInfo",
			"to":       from.String(),
			"result":   result.String(),
		}).Warn("Lookup reply not acknowledged")
	}
}
