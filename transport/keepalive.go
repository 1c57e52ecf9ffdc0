package transport

import (
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"

	"github.com/opd-ai/peerlink/address"
	"github.com/opd-ai/peerlink/protocol"
)

// DefaultKeepAliveInterval is used when KeepAlive is given a non-positive
// interval.
const DefaultKeepAliveInterval = 5 * time.Second

// KeepAlive starts the keep-alive goroutine. Only the first call has an
// effect.
func (e *Engine) KeepAlive(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultKeepAliveInterval
	}
	e.keepAliveOnce.Do(func() {
		if e.stopped.Load() {
			return
		}
		e.wg.Add(1)
		go e.keepAliveLoop(interval)

		logrus.WithFields(logrus.Fields{
			"function": "KeepAlive",
			"interval": interval.String(),
		}).Info("Keep-alive started")
	})
}

// AddKeepAliveEndpoint adds ep to the keep-alive set.
func (e *Engine) AddKeepAliveEndpoint(ep address.Endpoint) {
	if !ep.IsValid() {
		return
	}
	e.keepAliveMu.Lock()
	e.keepAliveSet[ep] = struct{}{}
	e.keepAliveMu.Unlock()
	e.wakeKeepAlive()
}

// RemoveKeepAliveEndpoint removes ep from the keep-alive set.
func (e *Engine) RemoveKeepAliveEndpoint(ep address.Endpoint) {
	e.keepAliveMu.Lock()
	delete(e.keepAliveSet, ep)
	e.keepAliveMu.Unlock()
	e.wakeKeepAlive()
}

// KeepAliveEndpoints returns a snapshot of the keep-alive set.
func (e *Engine) KeepAliveEndpoints() []address.Endpoint {
	e.keepAliveMu.Lock()
	defer e.keepAliveMu.Unlock()
	return maps.Keys(e.keepAliveSet)
}

func (e *Engine) wakeKeepAlive() {
	select {
	case e.keepAliveWake <- struct{}{}:
	default:
	}
}

func (e *Engine) keepAliveLoop(interval time.Duration) {
	defer e.wg.Done()

	for {
		for _, ep := range e.KeepAliveEndpoints() {
			if err := e.write(protocol.NewPing(e.userID), ep); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "keepAliveLoop",
					"to":       ep.String(),
					"error":    err.Error(),
				}).Debug("Keep-alive ping failed")
			}
		}

		timer := time.NewTimer(interval)
		select {
		case <-e.ctx.Done():
			timer.Stop()
			return
		case <-e.keepAliveWake:
			timer.Stop()
		case <-timer.C:
		}
	}
}
