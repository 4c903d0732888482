package netiface

import (
	"bytes"
	"fmt"
	"github.com/hashicorp/go-sockaddr/template"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"strconv"
	"strings"
)

var Logger = logger.GetLogger("netiface")

// Loopback is returned by SelectPhysical if no physical interface exists
var Loopback = IPv4Address{127, 0, 0, 1}

// physicalPrefixes are the name prefixes of wired and wireless interfaces
var physicalPrefixes = []string{"en", "eth", "wl"}

// IPv4Address is an IPv4 address as four octets
type IPv4Address [4]byte

// ParseIPv4 parses a dotted address. Fewer than four octets are allowed, the
// missing octets are zero, so "192.168" can be used as prefix.
func ParseIPv4(s string) (IPv4Address, error) {
	var addr IPv4Address
	if s == "" {
		return addr, nil
	}

	parts := strings.Split(s, ".")
	if len(parts) > len(addr) {
		return addr, errors.Errorf("invalid IPv4 address %q: too many octets", s)
	}
	for i, part := range parts {
		octet, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return addr, errors.Wrapf(err, "invalid IPv4 address %q", s)
		}
		addr[i] = byte(octet)
	}
	return addr, nil
}

func (a IPv4Address) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
}

// Interface is a named network interface with one IPv4 address
type Interface struct {
	Name    string
	Address IPv4Address
}

// IsPhysical returns true for wired and wireless interfaces
func (i Interface) IsPhysical() bool {
	for _, prefix := range physicalPrefixes {
		if strings.HasPrefix(i.Name, prefix) {
			return true
		}
	}
	return false
}

// Interfaces returns every interface address of the host that is IPv4. An
// interface with several addresses is listed once per address.
func Interfaces() ([]Interface, error) {
	names, err := template.Parse(`{{ GetAllInterfaces | include "type" "IPv4" | join "name" " " }}`)
	if err != nil {
		return nil, errors.Wrap(err, "unable to list interface names")
	}
	addresses, err := template.Parse(`{{ GetAllInterfaces | include "type" "IPv4" | join "address" " " }}`)
	if err != nil {
		return nil, errors.Wrap(err, "unable to list interface addresses")
	}

	nameList := strings.Fields(names)
	addrList := strings.Fields(addresses)
	if len(nameList) != len(addrList) {
		return nil, errors.Errorf("interfaces changed while listing (%d names, %d addresses)", len(nameList), len(addrList))
	}

	ifaces := make([]Interface, 0, len(addrList))
	for i, raw := range addrList {
		addr, err := ParseIPv4(raw)
		if err != nil {
			return nil, err
		}
		ifaces = append(ifaces, Interface{Name: nameList[i], Address: addr})
	}

	Logger.Debugf("found %d IPv4 interface addresses", len(ifaces))
	return ifaces, nil
}

// SelectPhysical picks the address of a physical interface. The address
// sharing the most leading octets with prefix wins, ties go to the first
// interface. Without any match the first physical interface is used and
// without physical interfaces the loopback address.
func SelectPhysical(ifaces []Interface, prefix IPv4Address) IPv4Address {
	var physical []Interface
	for _, iface := range ifaces {
		if iface.IsPhysical() {
			physical = append(physical, iface)
		}
	}

	if len(physical) == 0 {
		return Loopback
	}

	for n := len(prefix); n > 0; n-- {
		for _, iface := range physical {
			if bytes.Equal(iface.Address[:n], prefix[:n]) {
				return iface.Address
			}
		}
	}
	return physical[0].Address
}

// PhysicalAddress lists the interfaces of the host and selects one with
// SelectPhysical. prefix is a (partial) dotted address like "192.168".
func PhysicalAddress(prefix string) (string, error) {
	p, err := ParseIPv4(prefix)
	if err != nil {
		return "", err
	}
	ifaces, err := Interfaces()
	if err != nil {
		return "", err
	}
	addr := SelectPhysical(ifaces, p)
	Logger.Infof("selected interface address %s (prefix %q)", addr, prefix)
	return addr.String(), nil
}
