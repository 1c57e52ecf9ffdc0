// Package peerlink establishes direct or relayed UDP sessions between two
// peers and carries reliable and unreliable traffic over them.
//
// A Node bundles one transport engine, the rendezvous and relay clients and
// the connection controller. Peers find each other through a rendezvous
// server and are reached on the first path that answers: the private
// endpoint, then the public endpoint, then a relay server.
//
// # Getting Started
//
//	opts := peerlink.NewOptions()
//	opts.UserID = "alice"
//	opts.RendezvousServer = "rendezvous.example.org:3478"
//	opts.RelayServer = "relay.example.org:3479"
//
//	node, err := peerlink.New(opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Close()
//
//	node.Central().SetEstablishHook(func(remoteUserID string) bool {
//	    return true
//	})
//
//	if node.Connect("bob") {
//	    fmt.Println("connected to bob")
//	}
//
// # Features
//
// Media and input streams are feature controllers registered on the node.
// They send to whichever endpoint the controller resolved for the remote
// user:
//
//	touch := feature.NewTouch()
//	node.RegisterFeature(touch)
//	touch.OnAdd(func(path []feature.Point) { ... })
//
// # Servers
//
// Rendezvous and relay servers live in the server package and are started by
// the peerlink command's server subcommand.
package peerlink
