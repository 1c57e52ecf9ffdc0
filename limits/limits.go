// Package limits provides centralized datagram size limits for peerlink.
// This ensures every sender and receiver agrees on what fits in one packet.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxPacketSize is the receive buffer size and therefore the largest
	// encoded message a node accepts in a single datagram.
	MaxPacketSize = 32000

	// MaxDecodedSize bounds how far a compressed payload may expand while
	// being decoded. It guards against deflate bombs from untrusted peers.
	MaxDecodedSize = 1024 * 1024

	// MaxMediaFrame is the largest raw media frame a feature controller will
	// hand to the transport. It leaves room for the envelope and compression
	// framing within MaxPacketSize.
	MaxMediaFrame = MaxPacketSize - 1024
)

var (
	// ErrPacketEmpty indicates an empty packet was provided
	ErrPacketEmpty = errors.New("empty packet")

	// ErrPacketTooLarge indicates a packet exceeds the maximum size
	ErrPacketTooLarge = errors.New("packet too large")
)

// ValidateSize validates data against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidateSize(data []byte, maxSize int) error {
	if len(data) == 0 {
		return ErrPacketEmpty
	}
	if len(data) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrPacketTooLarge, len(data), maxSize)
	}
	return nil
}

// ValidatePacket validates an encoded message against MaxPacketSize.
func ValidatePacket(packet []byte) error {
	if len(packet) == 0 {
		return ErrPacketEmpty
	}
	if len(packet) > MaxPacketSize {
		return fmt.Errorf("%w: encoded size %d exceeds datagram limit %d", ErrPacketTooLarge, len(packet), MaxPacketSize)
	}
	return nil
}

// ValidateMediaFrame validates a raw media frame against MaxMediaFrame.
func ValidateMediaFrame(frame []byte) error {
	if len(frame) == 0 {
		return ErrPacketEmpty
	}
	if len(frame) > MaxMediaFrame {
		return fmt.Errorf("%w: frame size %d exceeds limit %d", ErrPacketTooLarge, len(frame), MaxMediaFrame)
	}
	return nil
}
