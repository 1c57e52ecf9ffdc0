// Package limits provides centralized size constants and validation functions
// for peerlink datagrams.
//
// # Size Hierarchy
//
//   - MaxPacketSize (32000 bytes): the receive buffer of every transport
//     engine. An encoded message larger than this is refused before it is
//     written to the socket, since the peer would truncate it.
//
//   - MaxMediaFrame: the largest raw audio or video frame a feature controller
//     accepts. Chunking larger frames is the media subsystem's concern.
//
//   - MaxDecodedSize (1MB): the ceiling on decompressed payload size while
//     decoding untrusted datagrams.
//
// # Validation Functions
//
//	if err := limits.ValidatePacket(encoded); err != nil {
//	    // ErrPacketEmpty or ErrPacketTooLarge
//	}
//
// For custom limits use ValidateSize:
//
//	err := limits.ValidateSize(data, 4096)
package limits
