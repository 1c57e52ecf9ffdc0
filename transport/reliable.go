package transport

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerlink/address"
	"github.com/opd-ai/peerlink/protocol"
)

// SendMessage transmits msg once without waiting for anything. Failures are
// logged and otherwise ignored.
func (e *Engine) SendMessage(msg *protocol.Message, to address.Endpoint) {
	if e.stopped.Load() {
		return
	}
	go func() {
		if err := e.write(msg, to); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "SendMessage",
				"to":       to.String(),
				"event":    msg.Event.String(),
				"error":    err.Error(),
			}).Debug("Unreliable send failed")
		}
	}()
}

// SendMessageSync transmits msg once and returns the socket error, if any.
func (e *Engine) SendMessageSync(msg *protocol.Message, to address.Endpoint) error {
	return e.write(msg, to)
}

// SendReliableMessage transmits msg, retransmitting until an ACK arrives or
// the resend budget is spent. With a non-nil handler it then waits for the
// correlated REPLY and returns the handler's value. A nil cfg uses the
// engine defaults.
func (e *Engine) SendReliableMessage(msg *protocol.Message, to address.Endpoint, cfg *ReliableConfig, handler ReplyHandler) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			result = ExtraError(fmt.Errorf("reliable send panicked: %v", rec))
		}
	}()

	if e.stopped.Load() {
		return ExtraError(ErrStopped)
	}
	if !to.IsValid() {
		return ExtraError(fmt.Errorf("%w: %s", address.ErrInvalidEndpoint, to))
	}
	c := e.resolveConfig(cfg, handler != nil)

	if err := e.sendSem.Acquire(e.ctx, 1); err != nil {
		return ExtraError(ErrStopped)
	}
	defer e.sendSem.Release(1)

	msg.Reliable = true
	data, err := msg.Encode()
	if err != nil {
		return ExtraError(err)
	}

	defer e.acks.Forget(msg.ID)
	if handler != nil {
		defer e.replies.Forget(msg.ID)
	}

	if err := e.writeRaw(data, to); err != nil {
		return ExtraError(err)
	}

	if !e.awaitAck(msg, data, to, c) {
		return e.timeoutResult(msg, to, "ack")
	}
	if handler == nil {
		return Received()
	}

	reply, ok := e.replies.Await(e.ctx, msg.ID, c.ReplyTimeout)
	if !ok {
		return e.timeoutResult(msg, to, "reply")
	}
	value, err := handler(reply)
	if err != nil {
		return ExtraError(fmt.Errorf("reply handler for message %d: %w", msg.ID, err))
	}
	return Replied(value)
}

// awaitAck waits for the ACK of msg, resending data on each expired window.
func (e *Engine) awaitAck(msg *protocol.Message, data []byte, to address.Endpoint, c ReliableConfig) bool {
	remaining := c.ResendCount
	for {
		if _, ok := e.acks.Await(e.ctx, msg.ID, c.AckTimeout); ok {
			return true
		}
		if e.ctx.Err() != nil || remaining <= 0 {
			return false
		}
		remaining--

		logrus.WithFields(logrus.Fields{
			"function":   "SendReliableMessage",
			"to":         to.String(),
			"message_id": msg.ID,
			"remaining":  remaining,
		}).Debug("ACK window expired, resending")

		if err := e.writeRaw(data, to); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "SendReliableMessage",
				"to":         to.String(),
				"message_id": msg.ID,
				"error":      err.Error(),
			}).Debug("Resend failed")
		}
	}
}

func (e *Engine) timeoutResult(msg *protocol.Message, to address.Endpoint, stage string) Result {
	if e.ctx.Err() != nil {
		return ExtraError(ErrStopped)
	}
	logrus.WithFields(logrus.Fields{
		"function":   "SendReliableMessage",
		"to":         to.String(),
		"event":      msg.Event.String(),
		"message_id": msg.ID,
		"stage":      stage,
	}).Debug("Reliable send timed out")
	return Timeout()
}

func (e *Engine) resolveConfig(cfg *ReliableConfig, wantReply bool) ReliableConfig {
	if cfg == nil {
		return e.defaults
	}
	c := *cfg
	if c.AckTimeout <= 0 {
		c.AckTimeout = e.defaults.AckTimeout
	}
	if c.ResendCount < 0 {
		c.ResendCount = 0
	}
	if wantReply && c.ReplyTimeout <= 0 {
		c.ReplyTimeout = e.defaults.ReplyTimeout
	}
	return c
}

// TestConnect probes to with a reliable PING and reports whether it was
// acknowledged.
func (e *Engine) TestConnect(to address.Endpoint) bool {
	cfg := TestConnectConfig()
	result := e.SendReliableMessage(protocol.NewPing(e.userID), to, &cfg, nil)

	logrus.WithFields(logrus.Fields{
		"function": "TestConnect",
		"to":       to.String(),
		"result":   result.String(),
	}).Debug("Reachability probe finished")

	return result.IsReceived()
}
