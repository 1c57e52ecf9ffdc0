// Package transport provides the reliable-UDP engine used by every peerlink
// component.
//
// # Architecture
//
// An [Engine] owns one UDP socket and a single receive goroutine. Every
// datagram is decoded into a [protocol.Message]. Reliable messages are
// acknowledged immediately to the datagram source, then the message is
// routed by its code:
//
//   - ACK fills the acknowledgement table under the acknowledged id
//   - REPLY fills the reply table under the answered id
//   - anything else is handed to the [Reactor], which runs the handler
//     registered for the message event on a bounded worker goroutine
//
// The receive loop never blocks on handler work.
//
// # Reliable Sends
//
// [Engine.SendReliableMessage] blocks the caller until the outcome is known:
//
//	result := engine.SendReliableMessage(msg, peer, nil, func(reply *protocol.Message) (any, error) {
//	    p, err := reply.DecodePayload()
//	    if err != nil {
//	        return nil, err
//	    }
//	    return p.Int()
//	})
//	switch result.Kind {
//	case transport.ResultReplied:
//	    log.Printf("peer answered %v", result.Data)
//	case transport.ResultTimeout:
//	    log.Print("peer unreachable")
//	}
//
// The message is transmitted once and retransmitted up to
// ReliableConfig.ResendCount times, each attempt waiting AckTimeout for the
// acknowledgement. With a reply handler the call then waits ReplyTimeout for
// a correlated REPLY. All failures, including encode and socket errors, are
// reported through [Result] rather than as Go errors.
//
// # Keep-alive
//
// [Engine.KeepAlive] starts one background goroutine that sends an
// unreliable PING to every endpoint in the keep-alive set on each interval.
// Adding or removing an endpoint wakes it early.
//
// # Correlation Tables
//
// Acknowledgements and replies are kept in keyed [Table] values. Waiters
// always remove their own key when they finish; entries that arrive with no
// waiter are evicted by a periodic sweep once they are older than
// Options.EntryTTL.
package transport
