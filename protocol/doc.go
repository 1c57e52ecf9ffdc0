// Package protocol defines the peerlink wire envelope and its codec.
//
// Every datagram carries exactly one [Message]. The envelope names the
// sender, the event the message belongs to, a per-sender message id, a
// [Code] (DATA, ACK, REPLY or PING), the reliability flag, the id of the
// message being acknowledged or answered, and an opaque payload.
//
// Control sub-protocols put a [Payload] in the message payload. The payload
// flag selects the case within the sub-protocol named by the event:
//
//	data, err := protocol.EncodePayload(protocol.ConnectEstablish, 4242)
//	if err != nil {
//	    return err
//	}
//	msg := protocol.NewMessage("alice", protocol.EventConnect, data)
//
// # Codec
//
// [Encode] and [Decode] serialize arbitrary values with encoding/gob and
// compress them with deflate. Concrete types carried inside Payload.Data must
// be registered with [RegisterType]; the address types used by the
// rendezvous and relay protocols are registered by this package.
//
// # Message IDs
//
// Ids come from a process-wide atomic counter seeded at random, so two
// messages built by the same process never share an id until the counter
// wraps, and restarted processes do not reuse the previous run's ids.
package protocol
