package protocol

import "fmt"

// Event selects the handler a message is dispatched to.
type Event int

const (
	// EventNone is carried by keep-alive and probe PINGs.
	EventNone Event = iota
	// EventConnect carries the ESTABLISH/TERMINATE handshake.
	EventConnect
	// EventRendezvous carries REGISTER/UNREGISTER/GETINFO requests.
	EventRendezvous
	// EventRelay carries RELAY/UNRELAY requests.
	EventRelay
	// EventAudio carries audio frames.
	EventAudio
	// EventVideo carries video frames.
	EventVideo
	// EventTouch carries touch paths.
	EventTouch
)

// String returns a human-readable representation of the Event.
func (e Event) String() string {
	switch e {
	case EventNone:
		return "NONE"
	case EventConnect:
		return "CONNECT"
	case EventRendezvous:
		return "RENDEZVOUS"
	case EventRelay:
		return "RELAY"
	case EventAudio:
		return "AUDIO"
	case EventVideo:
		return "VIDEO"
	case EventTouch:
		return "TOUCH"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}
