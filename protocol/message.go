package protocol

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"github.com/opd-ai/peerlink/limits"
)

// Code identifies the role of a message in the reliability protocol.
type Code uint8

const (
	// CodeData is an application or control message.
	CodeData Code = iota
	// CodeAck acknowledges raw receipt of a reliable message.
	CodeAck
	// CodeReply answers a specific earlier message.
	CodeReply
	// CodePing probes reachability and keeps NAT bindings open.
	CodePing
)

// String returns a human-readable representation of the Code.
func (c Code) String() string {
	switch c {
	case CodeData:
		return "DATA"
	case CodeAck:
		return "ACK"
	case CodeReply:
		return "REPLY"
	case CodePing:
		return "PING"
	default:
		return fmt.Sprintf("Code(%d)", uint8(c))
	}
}

// Message is the envelope of every datagram.
type Message struct {
	SenderID  string
	Event     Event
	ID        uint32
	Code      Code
	Reliable  bool
	RepliedID uint32
	Payload   []byte
}

var lastID atomic.Uint32

func init() {
	lastID.Store(rand.Uint32())
}

// NextID returns a fresh message id.
func NextID() uint32 {
	return lastID.Add(1)
}

// NewMessage creates a DATA message for the given event.
func NewMessage(senderID string, event Event, payload []byte) *Message {
	return &Message{
		SenderID: senderID,
		Event:    event,
		ID:       NextID(),
		Code:     CodeData,
		Payload:  payload,
	}
}

// NewPing creates a PING message.
func NewPing(senderID string) *Message {
	return &Message{
		SenderID: senderID,
		Event:    EventNone,
		ID:       NextID(),
		Code:     CodePing,
	}
}

// NewAck creates the acknowledgement of original.
func NewAck(senderID string, original *Message) *Message {
	return &Message{
		SenderID:  senderID,
		Event:     original.Event,
		ID:        NextID(),
		Code:      CodeAck,
		RepliedID: original.ID,
	}
}

// NewReply creates a REPLY answering the message with id repliedID.
func NewReply(senderID string, event Event, repliedID uint32, payload []byte) *Message {
	return &Message{
		SenderID:  senderID,
		Event:     event,
		ID:        NextID(),
		Code:      CodeReply,
		RepliedID: repliedID,
		Payload:   payload,
	}
}

// Encode serializes the message and checks it fits in one datagram.
func (m *Message) Encode() ([]byte, error) {
	data, err := Encode(m)
	if err != nil {
		return nil, err
	}
	if err := limits.ValidatePacket(data); err != nil {
		return nil, err
	}
	return data, nil
}

// DecodeMessage parses a datagram into a Message.
func DecodeMessage(data []byte) (*Message, error) {
	if err := limits.ValidatePacket(data); err != nil {
		return nil, err
	}
	var m Message
	if err := Decode(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DecodePayload decodes the message payload as a control Payload.
func (m *Message) DecodePayload() (Payload, error) {
	return DecodePayload(m.Payload)
}

// String summarizes the envelope for logs.
func (m *Message) String() string {
	return fmt.Sprintf("%s[id=%d event=%s from=%q reliable=%t replied=%d len=%d]",
		m.Code, m.ID, m.Event, m.SenderID, m.Reliable, m.RepliedID, len(m.Payload))
}
