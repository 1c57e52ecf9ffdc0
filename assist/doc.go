// Package assist implements the clients of the two peerlink assistance
// servers.
//
// [RendezvousClient] registers this user's private endpoint with the
// rendezvous server, which records the public endpoint it observes as the
// datagram source, and looks up the reachability records of other users.
// [RelayClient] asks the relay server to forward traffic between this user
// and a peer whose endpoints are not directly reachable.
//
// Both clients send every request as a reliable message and report success
// as a bool; the detailed outcome is logged.
package assist
