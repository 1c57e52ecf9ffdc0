package feature

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerlink/address"
	"github.com/opd-ai/peerlink/limits"
	"github.com/opd-ai/peerlink/protocol"
)

// Video streams encoded frames (JPEG or similar) to the remote peer.
type Video struct {
	Base

	paused atomic.Bool

	hookMu   sync.Mutex
	inHooks  []func(frame []byte)
	outHooks []func(frame []byte)
}

// NewVideo creates an unconfigured video controller.
func NewVideo() *Video {
	return &Video{Base: Base{event: protocol.EventVideo}}
}

// OnReceive adds a hook run for every inbound frame.
func (v *Video) OnReceive(hook func(frame []byte)) {
	v.hookMu.Lock()
	defer v.hookMu.Unlock()
	v.inHooks = append(v.inHooks, hook)
}

// OnSend adds a hook run for every frame sent.
func (v *Video) OnSend(hook func(frame []byte)) {
	v.hookMu.Lock()
	defer v.hookMu.Unlock()
	v.outHooks = append(v.outHooks, hook)
}

// TogglePause pauses or resumes sending and reports whether it is now paused.
func (v *Video) TogglePause() bool {
	for {
		old := v.paused.Load()
		if v.paused.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Paused reports whether sending is paused.
func (v *Video) Paused() bool {
	return v.paused.Load()
}

// SendFrame sends one encoded frame unreliably. Frames are dropped silently
// while paused.
func (v *Video) SendFrame(frame []byte) error {
	if v.paused.Load() {
		return nil
	}
	if err := limits.ValidateMediaFrame(frame); err != nil {
		return err
	}
	if err := v.SendMessage(frame); err != nil {
		return err
	}

	v.hookMu.Lock()
	hooks := append([]func([]byte){}, v.outHooks...)
	v.hookMu.Unlock()
	for _, hook := range hooks {
		hook(frame)
	}
	return nil
}

// RegisterControllerHandler installs the inbound video handler.
func (v *Video) RegisterControllerHandler() {
	if err := v.RegisterHandler(v.handle); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "RegisterControllerHandler",
			"event":    v.Event().String(),
			"error":    err.Error(),
		}).Warn("Video controller not configured")
	}
}

func (v *Video) handle(msg *protocol.Message, from address.Endpoint) {
	if len(msg.Payload) == 0 {
		logrus.WithFields(logrus.Fields{
			"function": "handle",
			"from":     from.String(),
		}).Debug("Dropping empty video frame")
		return
	}

	v.hookMu.Lock()
	hooks := append([]func([]byte){}, v.inHooks...)
	v.hookMu.Unlock()
	for _, hook := range hooks {
		hook(msg.Payload)
	}
}
