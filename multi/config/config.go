// Package config implements the helper-directive expansions of spec.md §6:
// `server`, `server-bridge`, `client`, and `keepalive` each expand,
// bit-exactly, into the lower-level mode/ifconfig/pool/route/keepalive
// settings the rest of the engine consumes directly.
//
// Grounded on original_source/openvpn/helper.c's helper_client_server and
// helper_keepalive.
package config

import (
	"fmt"
	"net/netip"

	"tungo/multi/ippool"
)

// Mode mirrors the source's MODE_POINT_TO_POINT / MODE_SERVER distinction:
// it governs how keepalive expands and whether push options exist at all.
type Mode int

const (
	ModePointToPoint Mode = iota
	ModeServer
)

// ifconfigPoolMinNetbits rejects a server subnet so large it would allow an
// impractical number of host addresses (original_source's
// IFCONFIG_POOL_MIN_NETBITS, conventionally 8).
const ifconfigPoolMinNetbits = 8

// ServerDirective is the parsed form of `server NET MASK [client-to-client]`.
type ServerDirective struct {
	Network        netip.Prefix
	Topology       ippool.Topology
	ClientToClient bool
	// LinearAddr suppresses the per-client host-route push that otherwise
	// compensates clients for a non-contiguous pool allocation order.
	LinearAddr bool
}

// PoolRange is the [start, end] an ippool.Pool should be built over, plus
// the topology it was derived for.
type PoolRange struct {
	Start, End netip.Addr
	Topology   ippool.Topology
}

// ServerExpansion is everything `server NET MASK` expands to.
type ServerExpansion struct {
	Mode          Mode
	TLSServer     bool
	IfconfigLocal netip.Addr
	// IfconfigRemote is the TUN peer address (NET+2); the zero value for
	// TAP, where IfconfigNetmask is used instead.
	IfconfigRemote  netip.Addr
	IfconfigNetmask netip.Addr
	Pool            PoolRange
	Route           netip.Prefix
	// PushRoute is the single `route ...` or `route-gateway ...` line
	// pushed to clients, or empty if none applies.
	PushRoute string
}

// ExpandServer expands a `server` directive per spec.md §6 / helper.c's
// helper_client_server. d.Topology must be ippool.TopologyTUN or
// ippool.TopologyTAP.
func ExpandServer(d ServerDirective) (*ServerExpansion, error) {
	if !d.Network.IsValid() || !d.Network.Addr().Is4() {
		return nil, fmt.Errorf("config: server directive requires a valid IPv4 network")
	}
	network := d.Network.Masked()
	netBase := network.Addr()
	netbits := network.Bits()

	if netbits < ifconfigPoolMinNetbits {
		return nil, fmt.Errorf("config: server directive netmask allows for too many host addresses (subnet must be /%d or higher)", ifconfigPoolMinNetbits)
	}

	switch d.Topology {
	case ippool.TopologyTUN:
		return expandServerTUN(d, network, netBase, netbits)
	case ippool.TopologyTAP:
		return expandServerTAP(d, netBase, netbits)
	default:
		return nil, fmt.Errorf("config: unknown topology %d", d.Topology)
	}
}

func expandServerTUN(d ServerDirective, network netip.Prefix, netBase netip.Addr, netbits int) (*ServerExpansion, error) {
	if netbits > 29 {
		return nil, fmt.Errorf("config: server directive with tun topology must define a subnet of /29 or lower, got /%d", netbits)
	}
	bcast := lastAddr(network)
	reserve := 4
	if netbits == 29 {
		reserve = 0
	}

	var pushRoute string
	if d.ClientToClient {
		pushRoute = fmt.Sprintf("route %s %s", netBase, netmaskAddr(network))
	} else if !d.LinearAddr {
		pushRoute = fmt.Sprintf("route %s", addrPlus(netBase, 1))
	}

	return &ServerExpansion{
		Mode:           ModeServer,
		TLSServer:      true,
		IfconfigLocal:  addrPlus(netBase, 1),
		IfconfigRemote: addrPlus(netBase, 2),
		Pool: PoolRange{
			Start:    addrPlus(netBase, 4),
			End:      addrPlus(bcast, -reserve),
			Topology: ippool.TopologyTUN,
		},
		Route:     network,
		PushRoute: pushRoute,
	}, nil
}

func expandServerTAP(d ServerDirective, netBase netip.Addr, netbits int) (*ServerExpansion, error) {
	if netbits >= 30 {
		return nil, fmt.Errorf("config: server directive with tap topology must define a subnet of /29 or lower, got /%d", netbits)
	}
	network := netip.PrefixFrom(netBase, netbits)
	bcast := lastAddr(network)

	return &ServerExpansion{
		Mode:            ModeServer,
		TLSServer:       true,
		IfconfigLocal:   addrPlus(netBase, 1),
		IfconfigNetmask: netmaskAddr(network),
		Pool: PoolRange{
			Start:    addrPlus(netBase, 2),
			End:      addrPlus(bcast, -1),
			Topology: ippool.TopologyTAP,
		},
		Route:     network,
		PushRoute: fmt.Sprintf("route-gateway %s", addrPlus(netBase, 1)),
	}, nil
}

// ServerBridgeDirective is the parsed form of
// `server-bridge IP MASK POOL_START POOL_END`.
type ServerBridgeDirective struct {
	IP        netip.Addr
	Netmask   netip.Addr
	PoolStart netip.Addr
	PoolEnd   netip.Addr
}

// ServerBridgeExpansion is everything `server-bridge` expands to.
type ServerBridgeExpansion struct {
	Mode      Mode
	TLSServer bool
	Pool      PoolRange
	PushRoute string
}

// ExpandServerBridge expands a `server-bridge` directive. IP, PoolStart, and
// PoolEnd must all share the IP&Netmask network, mirroring helper.c's three
// verify_common_subnet checks.
func ExpandServerBridge(d ServerBridgeDirective) (*ServerBridgeExpansion, error) {
	if err := sameSubnet("--server-bridge", d.IP, d.PoolStart, d.Netmask); err != nil {
		return nil, err
	}
	if err := sameSubnet("--server-bridge", d.PoolStart, d.PoolEnd, d.Netmask); err != nil {
		return nil, err
	}
	if err := sameSubnet("--server-bridge", d.IP, d.PoolEnd, d.Netmask); err != nil {
		return nil, err
	}

	return &ServerBridgeExpansion{
		Mode:      ModeServer,
		TLSServer: true,
		Pool: PoolRange{
			Start:    d.PoolStart,
			End:      d.PoolEnd,
			Topology: ippool.TopologyTAP,
		},
		PushRoute: fmt.Sprintf("route-gateway %s", d.IP),
	}, nil
}

// ClientExpansion is everything the bare `client` directive expands to.
type ClientExpansion struct {
	Pull      bool
	TLSClient bool
}

// ExpandClient expands the `client` directive: pull + tls-client.
func ExpandClient() *ClientExpansion {
	return &ClientExpansion{Pull: true, TLSClient: true}
}

// KeepaliveExpansion is everything `keepalive PING RESTART` expands to,
// in seconds, per spec.md §4.7 / helper.c's helper_keepalive.
type KeepaliveExpansion struct {
	PingSendSeconds    int
	PingRestartSeconds int
	// PushPingSeconds and PushRestartSeconds are only meaningful in
	// ModeServer: the verbatim (undoubled) values pushed to clients.
	PushPingSeconds, PushRestartSeconds int
}

// ExpandKeepalive expands `keepalive ping restart`. In ModeServer the
// restart timeout is doubled locally (to tolerate one missed push) while
// clients are pushed the original, undoubled value; in ModePointToPoint the
// restart timeout is used verbatim on both sides.
func ExpandKeepalive(mode Mode, ping, restart int) (*KeepaliveExpansion, error) {
	if ping <= 0 || restart <= 0 {
		return nil, fmt.Errorf("config: keepalive parameters must be > 0")
	}
	if ping*2 > restart {
		return nil, fmt.Errorf("config: keepalive restart timeout (%d) must be at least twice the ping interval (%d); recommended is keepalive 10 60", restart, ping)
	}

	k := &KeepaliveExpansion{PingSendSeconds: ping}
	switch mode {
	case ModeServer:
		k.PingRestartSeconds = restart * 2
		k.PushPingSeconds = ping
		k.PushRestartSeconds = restart
	case ModePointToPoint:
		k.PingRestartSeconds = restart
	default:
		return nil, fmt.Errorf("config: unknown mode %d", mode)
	}
	return k, nil
}

func addrPlus(addr netip.Addr, n int) netip.Addr {
	a4 := addr.As4()
	v := int64(a4[0])<<24 | int64(a4[1])<<16 | int64(a4[2])<<8 | int64(a4[3])
	v += int64(n)
	return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

func lastAddr(p netip.Prefix) netip.Addr {
	base := p.Masked().Addr().As4()
	bits := p.Bits()
	var result [4]byte
	for i := 0; i < 4; i++ {
		bitsInByte := bits - i*8
		var maskByte byte
		switch {
		case bitsInByte >= 8:
			maskByte = 0xFF
		case bitsInByte > 0:
			maskByte = byte(0xFF << (8 - bitsInByte))
		default:
			maskByte = 0
		}
		result[i] = base[i] | ^maskByte
	}
	return netip.AddrFrom4(result)
}

func netmaskAddr(p netip.Prefix) netip.Addr {
	bits := p.Bits()
	var result [4]byte
	for i := 0; i < 4; i++ {
		bitsInByte := bits - i*8
		switch {
		case bitsInByte >= 8:
			result[i] = 0xFF
		case bitsInByte > 0:
			result[i] = byte(0xFF << (8 - bitsInByte))
		default:
			result[i] = 0
		}
	}
	return netip.AddrFrom4(result)
}

func sameSubnet(opt string, a, b, netmask netip.Addr) error {
	bits, ok := netmaskBits(netmask)
	if !ok {
		return fmt.Errorf("config: %s netmask %s is not a valid contiguous mask", opt, netmask)
	}
	if netip.PrefixFrom(a, bits).Masked().Addr() != netip.PrefixFrom(b, bits).Masked().Addr() {
		return fmt.Errorf("config: %s IP addresses %s and %s are not in the same %s subnet", opt, a, b, netmask)
	}
	return nil
}

// netmaskBits converts a dotted netmask into a prefix length, rejecting
// non-contiguous masks.
func netmaskBits(mask netip.Addr) (int, bool) {
	m4 := mask.As4()
	v := uint32(m4[0])<<24 | uint32(m4[1])<<16 | uint32(m4[2])<<8 | uint32(m4[3])
	bits := 0
	seenZero := false
	for i := 31; i >= 0; i-- {
		bit := (v >> uint(i)) & 1
		if bit == 1 {
			if seenZero {
				return 0, false
			}
			bits++
		} else {
			seenZero = true
		}
	}
	return bits, true
}
