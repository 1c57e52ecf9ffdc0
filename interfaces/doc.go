// Package interfaces defines the consumer-side abstractions between the
// peerlink connection controller, its assist clients and the reliable
// transport.
//
// The controller package depends only on these interfaces, so tests can
// substitute fakes for the network:
//
//	type fakeRendezvous struct {
//	    infos map[string]address.NetworkInfo
//	}
//
//	func (f *fakeRendezvous) GetInfo(id string) (address.NetworkInfo, bool) {
//	    info, ok := f.infos[id]
//	    return info, ok
//	}
//
// [IReliableTransport] is satisfied by *transport.Engine. [IRendezvousClient]
// and [IRelayClient] are satisfied by the assist package clients.
// [IFeatureController] is implemented by the media and touch controllers in
// the feature package.
package interfaces
