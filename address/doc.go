// Package address defines the network identities exchanged by peerlink nodes.
//
// An [Endpoint] is an immutable address and port pair. It is comparable, so it
// can be used directly as a map key (the transport keep-alive set relies on
// this), and it survives the protocol codec unchanged.
//
// A [NetworkInfo] is the reachability record the rendezvous server keeps for
// every registered user:
//
//	info, ok := rendezvous.GetInfo("bob")
//	if ok && info.IsOnline() {
//	    public, _ := info.PublicEndpoint()
//	    fmt.Println("bob is reachable at", info.Private, "or", public)
//	}
//
// The private endpoint is the address the user registered from its own
// network interface. The public endpoint is the post-NAT source address the
// rendezvous server observed; its absence marks the user as offline.
package address
