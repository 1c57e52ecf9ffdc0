package assist

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerlink/address"
	"github.com/opd-ai/peerlink/interfaces"
	"github.com/opd-ai/peerlink/protocol"
)

// RelayClient implements interfaces.IRelayClient.
type RelayClient struct {
	sender interfaces.IReliableSender
	server address.Endpoint
}

// NewRelayClient creates a client for the relay server at server.
func NewRelayClient(sender interfaces.IReliableSender, server address.Endpoint) *RelayClient {
	return &RelayClient{sender: sender, server: server}
}

// Endpoint returns the server endpoint.
func (c *RelayClient) Endpoint() address.Endpoint {
	return c.server
}

// Relay asks the server to forward traffic between this user and
// remotePublic. It succeeds only when the server answers true.
func (c *RelayClient) Relay(remotePublic address.Endpoint) bool {
	payload, err := protocol.EncodePayload(protocol.RelayRequest, remotePublic)
	if err != nil {
		return false
	}
	msg := protocol.NewMessage(c.sender.UserID(), protocol.EventRelay, payload)
	result := c.sender.SendReliableMessage(msg, c.server, nil, func(reply *protocol.Message) (any, error) {
		p, err := reply.DecodePayload()
		if err != nil {
			return nil, err
		}
		if p.Flag != protocol.RelayRequest {
			return false, nil
		}
		ok, err := p.Bool()
		if err != nil {
			return nil, fmt.Errorf("relay reply: %w", err)
		}
		return ok, nil
	})

	accepted, _ := result.ReplyBool()
	logrus.WithFields(logrus.Fields{
		"function": "Relay",
		"server":   c.server.String(),
		"remote":   remotePublic.String(),
		"result":   result.String(),
	}).Debug("Relay request finished")
	return accepted
}

// Unrelay asks the server to drop this user's routes.
func (c *RelayClient) Unrelay() bool {
	payload, err := protocol.EncodePayload(protocol.RelayRelease, nil)
	if err != nil {
		return false
	}
	msg := protocol.NewMessage(c.sender.UserID(), protocol.EventRelay, payload)
	result := c.sender.SendReliableMessage(msg, c.server, nil, nil)

	logrus.WithFields(logrus.Fields{
		"function": "Unrelay",
		"server":   c.server.String(),
		"result":   result.String(),
	}).Debug("Unrelay request finished")
	return result.IsReceived()
}
