package protocol

import "fmt"

// Flag selects the case of a sub-protocol. Values are only meaningful
// together with the event that carries them.
type Flag int

// Connection control flags (EventConnect).
const (
	ConnectEstablish Flag = iota + 1
	ConnectTerminate
)

// Rendezvous flags (EventRendezvous).
const (
	RendezvousRegister Flag = iota + 1
	RendezvousUnregister
	RendezvousGetInfo
)

// Relay control flags (EventRelay).
const (
	RelayRequest Flag = iota + 1
	RelayRelease
)

// Payload is the discriminated envelope of control messages.
type Payload struct {
	Flag Flag
	Data any
}

// EncodePayload encodes a Payload with the given flag and data.
func EncodePayload(flag Flag, data any) ([]byte, error) {
	return Encode(&Payload{Flag: flag, Data: data})
}

// DecodePayload decodes bytes produced by EncodePayload.
func DecodePayload(data []byte) (Payload, error) {
	var p Payload
	if err := Decode(data, &p); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// Int returns Data as an int.
func (p Payload) Int() (int, error) {
	v, ok := p.Data.(int)
	if !ok {
		return 0, fmt.Errorf("payload flag %d: expected int, got %T", p.Flag, p.Data)
	}
	return v, nil
}

// Bool returns Data as a bool.
func (p Payload) Bool() (bool, error) {
	v, ok := p.Data.(bool)
	if !ok {
		return false, fmt.Errorf("payload flag %d: expected bool, got %T", p.Flag, p.Data)
	}
	return v, nil
}
