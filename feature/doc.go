// Package feature provides the per-event controllers that ride on an
// established peerlink connection.
//
// Each controller embeds [Base], which holds the sender and the remote
// endpoint chosen by the connection controller. Until that endpoint has been
// set every send fails with [ErrNoRemoteEndpoint].
//
// [Touch] exchanges drawing paths as reliable messages. [Audio] streams Opus
// packets unreliably and decodes inbound packets to PCM with
// github.com/pion/opus. [Video] streams encoded frames unreliably. Capturing
// and rendering media is left to the hooks supplied by the application.
package feature
