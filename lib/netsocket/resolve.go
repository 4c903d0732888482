package netsocket

import (
	"github.com/pkg/errors"
	"net"
	"net/netip"
)

// resolveIPv4 resolves a host name or dotted quad and a port number or
// service name to an IPv4 socket address. An empty address resolves to the
// unspecified address 0.0.0.0.
func resolveIPv4(address, port string, proto Protocol) (netip.AddrPort, error) {
	network := "tcp"
	if proto == UDP {
		network = "udp"
	}

	portNumber, err := net.LookupPort(network, port)
	if err != nil {
		return netip.AddrPort{}, errors.Wrapf(err, "resolve port %q", port)
	}

	if address == "" {
		return netip.AddrPortFrom(netip.IPv4Unspecified(), uint16(portNumber)), nil
	}

	ipAddr, err := net.ResolveIPAddr("ip4", address)
	if err != nil {
		return netip.AddrPort{}, errors.Wrapf(err, "resolve address %q", address)
	}

	ip, ok := netip.AddrFromSlice(ipAddr.IP.To4())
	if !ok {
		return netip.AddrPort{}, errors.Errorf("resolve address %q: no IPv4 address", address)
	}

	return netip.AddrPortFrom(ip, uint16(portNumber)), nil
}
