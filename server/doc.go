// Package server implements the two assistance servers a peerlink node
// depends on.
//
// [Rendezvous] is a reliable-transport service that records, for every
// registered user, the private endpoint the user reports and the public
// endpoint observed as the datagram source, and answers lookups for those
// records. Records live in a [Registry]; [MemoryRegistry] keeps them in a
// map and [SQLiteRegistry] persists them with modernc.org/sqlite.
//
// [Relay] is a raw datagram forwarder for peers that cannot reach each
// other directly. A RELAY request creates a two-way route between the
// requester and the requested endpoint; every later datagram from either
// side is forwarded verbatim to the other. PINGs and relay control messages
// addressed to the relay are consumed and acknowledged.
//
//	registry, err := server.OpenSQLiteRegistry("peers.sqlite")
//	if err != nil {
//	    return err
//	}
//	rv, err := server.NewRendezvous(":3478", registry)
//	if err != nil {
//	    return err
//	}
//	defer rv.Close()
package server
