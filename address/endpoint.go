package address

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// ErrInvalidEndpoint indicates an endpoint without a usable address or port.
var ErrInvalidEndpoint = errors.New("invalid endpoint")

// Endpoint is an (address, port) identity. The zero value is invalid.
type Endpoint struct {
	Addr netip.Addr
	Port uint16
}

// NewEndpoint creates an endpoint, unmapping IPv4-in-IPv6 addresses so that
// equality does not depend on how the socket reported the address.
func NewEndpoint(addr netip.Addr, port uint16) Endpoint {
	return Endpoint{Addr: addr.Unmap(), Port: port}
}

// FromAddrPort converts a netip.AddrPort into an Endpoint.
func FromAddrPort(ap netip.AddrPort) Endpoint {
	return NewEndpoint(ap.Addr(), ap.Port())
}

// FromNetAddr converts a UDP or TCP net.Addr into an Endpoint.
func FromNetAddr(addr net.Addr) (Endpoint, error) {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return FromAddrPort(a.AddrPort()), nil
	case *net.TCPAddr:
		return FromAddrPort(a.AddrPort()), nil
	case nil:
		return Endpoint{}, fmt.Errorf("%w: nil address", ErrInvalidEndpoint)
	default:
		ap, err := netip.ParseAddrPort(addr.String())
		if err != nil {
			return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
		}
		return FromAddrPort(ap), nil
	}
}

// ParseEndpoint parses "host:port" where host is a literal IP address.
func ParseEndpoint(s string) (Endpoint, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	return FromAddrPort(ap), nil
}

// ResolveEndpoint resolves "host:port" through DNS when host is a name.
func ResolveEndpoint(s string) (Endpoint, error) {
	if ep, err := ParseEndpoint(s); err == nil {
		return ep, nil
	}
	udp, err := net.ResolveUDPAddr("udp", s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	return FromNetAddr(udp)
}

// IsValid reports whether the endpoint can be used as a datagram destination.
func (e Endpoint) IsValid() bool {
	return e.Addr.IsValid() && e.Port != 0
}

// AddrPort returns the endpoint as a netip.AddrPort.
func (e Endpoint) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(e.Addr, e.Port)
}

// UDPAddr returns the endpoint as a *net.UDPAddr for socket writes.
func (e Endpoint) UDPAddr() *net.UDPAddr {
	return net.UDPAddrFromAddrPort(e.AddrPort())
}

// String returns "addr:port", or "<invalid>" for the zero value.
func (e Endpoint) String() string {
	if !e.Addr.IsValid() {
		return "<invalid>"
	}
	return e.AddrPort().String()
}
