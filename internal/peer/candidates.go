package peer

import (
	"fmt"
	"net"
	"strconv"

	"github.com/wlynxg/anet"
)

// privatePrefixes are the leading two octets treated as a scannable LAN.
var privatePrefixes = [][2]byte{{10, 0}, {172, 16}, {192, 168}}

// iface is the part of a network interface candidate selection looks at.
type iface struct {
	flags net.Flags
	addrs []net.Addr
}

// LocalSubnetCandidates returns one private IPv4 address per active
// interface. Each is a base for a subnet sweep.
func LocalSubnetCandidates() ([]string, error) {
	ifs, err := anet.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	list := make([]iface, 0, len(ifs))
	for i := range ifs {
		addrs, err := anet.InterfaceAddrsByInterface(&ifs[i])
		if err != nil {
			continue
		}
		list = append(list, iface{flags: ifs[i].Flags, addrs: addrs})
	}
	return selectCandidates(list), nil
}

func selectCandidates(ifs []iface) []string {
	var out []string
	seen := make(map[string]bool)
	for _, ifc := range ifs {
		if ifc.flags&net.FlagUp == 0 || ifc.flags&net.FlagLoopback != 0 {
			continue
		}
		for _, a := range ifc.addrs {
			ip := addrIP(a).To4()
			if ip == nil {
				continue
			}
			s := ip.String()
			if !hasPrivatePrefix(ip) || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
			break
		}
	}
	return out
}

func addrIP(a net.Addr) net.IP {
	switch v := a.(type) {
	case *net.IPNet:
		return v.IP
	case *net.IPAddr:
		return v.IP
	default:
		return net.ParseIP(a.String())
	}
}

func hasPrivatePrefix(ip net.IP) bool {
	ip = ip.To4()
	if ip == nil {
		return false
	}
	for _, p := range privatePrefixes {
		if ip[0] == p[0] && ip[1] == p[1] {
			return true
		}
	}
	return false
}

// SubnetHosts expands a base address like 192.168.1.20 into 192.168.1.1
// through 192.168.1.255, leaving out the base itself.
func SubnetHosts(base string) ([]string, error) {
	ip := net.ParseIP(base).To4()
	if ip == nil {
		return nil, fmt.Errorf("%q is not an IPv4 address", base)
	}
	prefix := fmt.Sprintf("%d.%d.%d.", ip[0], ip[1], ip[2])
	hosts := make([]string, 0, 254)
	for last := 1; last <= 255; last++ {
		if byte(last) == ip[3] {
			continue
		}
		hosts = append(hosts, prefix+strconv.Itoa(last))
	}
	return hosts, nil
}
