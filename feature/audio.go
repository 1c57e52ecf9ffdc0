package feature

import (
	"fmt"
	"sync"

	"github.com/pion/opus"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerlink/address"
	"github.com/opd-ai/peerlink/limits"
	"github.com/opd-ai/peerlink/protocol"
)

// pcmBufferSize holds 40 ms of 16-bit samples at 48 kHz.
const pcmBufferSize = 1920 * 2

// AudioFrame is one inbound or outbound audio packet. PCM holds the decoded
// little-endian 16-bit samples when decoding succeeded.
type AudioFrame struct {
	Encoded    []byte
	PCM        []int16
	SampleRate int
	Stereo     bool
}

// Audio streams Opus packets to the remote peer.
type Audio struct {
	Base

	decodeMu sync.Mutex
	decoder  opus.Decoder
	output   []byte

	hookMu   sync.Mutex
	inHooks  []func(AudioFrame)
	outHooks []func(AudioFrame)
}

// NewAudio creates an unconfigured audio controller.
func NewAudio() *Audio {
	return &Audio{
		Base:    Base{event: protocol.EventAudio},
		decoder: opus.NewDecoder(),
		output:  make([]byte, pcmBufferSize),
	}
}

// OnReceive adds a hook run for every inbound packet.
func (a *Audio) OnReceive(hook func(AudioFrame)) {
	a.hookMu.Lock()
	defer a.hookMu.Unlock()
	a.inHooks = append(a.inHooks, hook)
}

// OnSend adds a hook run for every outbound packet.
func (a *Audio) OnSend(hook func(AudioFrame)) {
	a.hookMu.Lock()
	defer a.hookMu.Unlock()
	a.outHooks = append(a.outHooks, hook)
}

// SendFrame sends one Opus packet unreliably.
func (a *Audio) SendFrame(packet []byte) error {
	if err := limits.ValidateMediaFrame(packet); err != nil {
		return err
	}
	if err := a.SendMessage(packet); err != nil {
		return err
	}

	a.hookMu.Lock()
	hooks := append([]func(AudioFrame){}, a.outHooks...)
	a.hookMu.Unlock()
	for _, hook := range hooks {
		hook(AudioFrame{Encoded: packet})
	}
	return nil
}

// Decode converts one Opus packet to PCM.
func (a *Audio) Decode(packet []byte) (frame AudioFrame, err error) {
	frame.Encoded = packet
	if len(packet) == 0 {
		return frame, limits.ErrPacketEmpty
	}

	a.decodeMu.Lock()
	defer a.decodeMu.Unlock()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("opus decode panicked: %v", rec)
		}
	}()

	bandwidth, stereo, err := a.decoder.Decode(packet, a.output)
	if err != nil {
		return frame, fmt.Errorf("opus decode failed: %w", err)
	}

	count := len(a.output) / 2
	pcm := make([]int16, count)
	for i := range pcm {
		pcm[i] = int16(a.output[i*2]) | int16(a.output[i*2+1])<<8
	}
	frame.PCM = pcm
	frame.SampleRate = bandwidth.SampleRate()
	frame.Stereo = stereo
	return frame, nil
}

// RegisterControllerHandler installs the inbound audio handler.
func (a *Audio) RegisterControllerHandler() {
	if err := a.RegisterHandler(a.handle); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "RegisterControllerHandler",
			"event":    a.Event().String(),
			"error":    err.Error(),
		}).Warn("Audio controller not configured")
	}
}

func (a *Audio) handle(msg *protocol.Message, from address.Endpoint) {
	frame, err := a.Decode(msg.Payload)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handle",
			"from":     from.String(),
			"size":     len(msg.Payload),
			"error":    err.Error(),
		}).Debug("Delivering undecoded audio frame")
	}

	a.hookMu.Lock()
	hooks := append([]func(AudioFrame){}, a.inHooks...)
	a.hookMu.Unlock()
	for _, hook := range hooks {
		hook(frame)
	}
}
