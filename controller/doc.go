// Package controller implements the peerlink connection controller.
//
// [Central] resolves how to reach a remote user, runs the ESTABLISH and
// TERMINATE handshakes, and hands the resolved endpoint to every registered
// feature controller.
//
// # Reachability
//
// [Central.TestConnect] looks the remote user up on the rendezvous server
// and tries, in order and stopping at the first success:
//
//  1. the private endpoint (same LAN or same NAT)
//  2. the public endpoint (hole-punched path)
//  3. a relay through the relay server, after which all traffic is
//     addressed to the relay
//
// # Handshake
//
// Connect sends ESTABLISH with a random verification number V and succeeds
// only if the peer replies V+1. The receiving side consults the establish
// hook; it replies V+1 to accept and -1 to reject. Disconnect and inbound
// TERMINATE follow the same V/V+1 exchange. A Central holds at most one
// peer.
//
// # Liveness
//
// [Central.WatchRegisteredUsers] polls the rendezvous server for the
// configured remote user ids and reports users coming online or going
// offline, keeping NAT bindings to online users open through the
// transport's keep-alive set.
package controller
