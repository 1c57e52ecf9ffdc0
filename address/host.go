package address

import (
	"errors"
	"net"
	"net/netip"

	"github.com/sirupsen/logrus"
	"go4.org/netipx"
)

// ErrNoHostAddress is returned when no non-loopback IPv4 address is configured.
var ErrNoHostAddress = errors.New("no non-loopback IPv4 address found")

// HostAddress returns the first non-loopback IPv4 address of this machine.
// It is used as the private address a node registers with the rendezvous server.
func HostAddress() (netip.Addr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return netip.Addr{}, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "HostAddress",
				"interface": iface.Name,
				"error":     err.Error(),
			}).Debug("Skipping interface without readable addresses")
			continue
		}
		if addr, ok := firstUsableIPv4(addrs); ok {
			return addr, nil
		}
	}

	return netip.Addr{}, ErrNoHostAddress
}

func firstUsableIPv4(addrs []net.Addr) (netip.Addr, bool) {
	for _, a := range addrs {
		var std net.IP
		switch v := a.(type) {
		case *net.IPNet:
			std = v.IP
		case *net.IPAddr:
			std = v.IP
		default:
			continue
		}
		ip, ok := netipx.FromStdIP(std)
		if !ok || ip.IsLoopback() || !ip.Is4() {
			continue
		}
		return ip, true
	}
	return netip.Addr{}, false
}
