// Package netiface lists the IPv4 addresses of the host's network interfaces
// and picks the address of a physical (wired or wireless) interface.
//
// Servers and clients use PhysicalAddress when no explicit address is
// configured:
//
//	addr, err := netiface.PhysicalAddress("192.168")
//
// Interfaces named en*, eth* or wl* count as physical. Enumeration is done
// with go-sockaddr.
package netiface
