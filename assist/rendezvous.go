package assist

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerlink/address"
	"github.com/opd-ai/peerlink/interfaces"
	"github.com/opd-ai/peerlink/protocol"
	"github.com/opd-ai/peerlink/transport"
)

// RendezvousClient implements interfaces.IRendezvousClient.
type RendezvousClient struct {
	sender interfaces.IReliableSender
	server address.Endpoint
}

// NewRendezvousClient creates a client for the rendezvous server at server.
func NewRendezvousClient(sender interfaces.IReliableSender, server address.Endpoint) *RendezvousClient {
	return &RendezvousClient{sender: sender, server: server}
}

// Endpoint returns the server endpoint.
func (c *RendezvousClient) Endpoint() address.Endpoint {
	return c.server
}

// Register publishes host as this user's private endpoint.
func (c *RendezvousClient) Register(host address.Endpoint) bool {
	result := c.send("Register", protocol.RendezvousRegister, host, nil)
	return result.IsReceived()
}

// Unregister removes this user from the server.
func (c *RendezvousClient) Unregister() bool {
	result := c.send("Unregister", protocol.RendezvousUnregister, nil, nil)
	return result.IsReceived()
}

// GetInfo fetches the record of one user. The bool reports whether the
// server answered; an unknown user yields an offline record.
func (c *RendezvousClient) GetInfo(userID string) (address.NetworkInfo, bool) {
	infos, ok := c.GetInfos([]string{userID})
	if !ok || len(infos) == 0 {
		return address.NetworkInfo{}, false
	}
	return infos[0], true
}

// GetInfos fetches one record per requested id, in request order.
func (c *RendezvousClient) GetInfos(userIDs []string) ([]address.NetworkInfo, bool) {
	result := c.send("GetInfos", protocol.RendezvousGetInfo, userIDs, decodeInfos)
	if !result.IsReplied() {
		return nil, false
	}
	infos, ok := result.Data.([]address.NetworkInfo)
	return infos, ok
}

func decodeInfos(reply *protocol.Message) (any, error) {
	p, err := reply.DecodePayload()
	if err != nil {
		return nil, err
	}
	if p.Flag != protocol.RendezvousGetInfo {
		return nil, fmt.Errorf("unexpected rendezvous reply flag %d", p.Flag)
	}
	infos, ok := p.Data.([]address.NetworkInfo)
	if !ok {
		return nil, fmt.Errorf("unexpected rendezvous reply data %T", p.Data)
	}
	return infos, nil
}

func (c *RendezvousClient) send(op string, flag protocol.Flag, data any, handler transport.ReplyHandler) transport.Result {
	payload, err := protocol.EncodePayload(flag, data)
	if err != nil {
		return transport.ExtraError(err)
	}
	msg := protocol.NewMessage(c.sender.UserID(), protocol.EventRendezvous, payload)
	result := c.sender.SendReliableMessage(msg, c.server, nil, handler)

	logrus.WithFields(logrus.Fields{
		"function": op,
		"server":   c.server.String(),
		"result":   result.String(),
	}).Debug("Rendezvous request finished")

	return result
}
