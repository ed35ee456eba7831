// Package forward implements the packet-forwarding path of spec.md §4.5:
// decrypted packets arriving from a client are routed to either another
// client (virtual-address or learned-MAC lookup, CIDR longest-prefix
// fallback for L3), the TUN/TAP device, or fanned out on
// broadcast/multicast — then re-encrypted and handed to the destination's
// outbound queue.
//
// The decrypt/re-encrypt calls themselves stay on the existing
// connection.Session/Crypto collaborators (out of scope per spec.md §1);
// this package only owns the routing decision and MAC learning. L3 header
// destination extraction is grounded on golang.org/x/net/ipv4.ParseHeader,
// reused from the TUN-facing side of infrastructure/network rather than
// hand-rolling offsets; L2 extraction is the plain 14-byte Ethernet header
// (dest MAC, source MAC, EtherType) spec.md §4.5 names for server-bridge
// (TAP) mode.
package forward

import (
	"fmt"
	"net/netip"

	"golang.org/x/net/ipv4"

	"tungo/multi/addrkey"
	"tungo/multi/broker"
	"tungo/multi/instance"
)

// TUNWriter is the minimal capability forward needs from the TUN/TAP
// device to deliver a packet not destined for any known client.
type TUNWriter interface {
	Write(pkt []byte) (int, error)
}

// ethernetHeaderLen is the fixed Ethernet II header: 6-byte destination
// MAC, 6-byte source MAC, 2-byte EtherType.
const ethernetHeaderLen = 14

// Forwarder routes decrypted packets between clients and the TUN/TAP
// device using a Broker's address indexes.
type Forwarder struct {
	b   *broker.Broker
	tun TUNWriter

	// bridged enables MAC learning and L2 broadcast/multicast semantics for
	// server-bridge (TAP) mode; false means routed L3 (TUN) mode.
	bridged bool

	// subnet is the TUN-mode internal subnet, used to recognize the
	// subnet-directed broadcast address in addition to 255.255.255.255.
	// Unused (zero value) in bridged mode.
	subnet netip.Prefix

	// learned maps a source MAC to the real-address key of the instance it
	// was last seen arriving from — server-bridge mode only.
	learned map[[6]byte]addrkey.Key
}

// New builds a Forwarder over b, delivering TUN/TAP-bound traffic to tun.
// subnet is the TUN-mode internal subnet used for subnet-directed broadcast
// detection; it is ignored when bridged is true.
func New(b *broker.Broker, tun TUNWriter, bridged bool, subnet netip.Prefix) *Forwarder {
	return &Forwarder{b: b, tun: tun, bridged: bridged, subnet: subnet, learned: make(map[[6]byte]addrkey.Key)}
}

// Deliver dispatches a decrypted packet received from src, through the L2
// (server-bridge/TAP) or L3 (routed/TUN) path depending on how the
// Forwarder was constructed.
func (f *Forwarder) Deliver(src *instance.Instance, pkt []byte) error {
	if f.bridged {
		return f.deliverL2(src, pkt)
	}
	return f.deliverL3(src, pkt)
}

// deliverL3 routes a decrypted IPv4 packet by destination address: the
// broker's virtual-address/CIDR route index, multicast/broadcast fan-out,
// or TUN fallback when nothing else matches — spec.md §4.5.
func (f *Forwarder) deliverL3(src *instance.Instance, pkt []byte) error {
	if f.spoofed(src, pkt) {
		return fmt.Errorf("forward: packet from %s spoofs a source address it does not own", src.MsgPrefix)
	}

	dst, err := destinationOf(pkt)
	if err != nil {
		return err
	}

	if addrkey.IsIPv4Multicast(dst) || f.isBroadcast(dst) {
		f.fanOut(src, pkt)
		return nil
	}

	target, ok := f.b.LookupRoute(dst)
	if !ok || target == src {
		return f.toTUN(pkt)
	}
	return f.send(target, pkt)
}

// deliverL2 routes a decrypted Ethernet frame by destination MAC: the
// broadcast/multicast address fans out, a learned unicast MAC routes
// directly to its owning instance, and an unknown destination falls back
// to the TAP device — spec.md §4.5 server-bridge mode.
func (f *Forwarder) deliverL2(src *instance.Instance, frame []byte) error {
	dstMAC, srcMAC, err := ethernetAddrs(frame)
	if err != nil {
		return err
	}
	if err := f.learnOrReject(src, srcMAC); err != nil {
		return err
	}

	dstKey := addrkey.FromMAC(dstMAC[:])
	if dstKey.IsBroadcastMAC() || dstKey.IsMulticastMAC() {
		f.fanOut(src, frame)
		return nil
	}

	real, ok := f.LookupLearnedMAC(dstMAC)
	if !ok {
		return f.toTUN(frame)
	}
	target, ok := f.b.LookupReal(real)
	if !ok || target == src {
		return f.toTUN(frame)
	}
	return f.send(target, frame)
}

// ethernetAddrs extracts the destination and source MAC addresses from an
// Ethernet II frame.
func ethernetAddrs(frame []byte) (dst, src [6]byte, err error) {
	if len(frame) < ethernetHeaderLen {
		return dst, src, fmt.Errorf("forward: frame too short for an Ethernet header (%d bytes)", len(frame))
	}
	copy(dst[:], frame[0:6])
	copy(src[:], frame[6:12])
	return dst, src, nil
}

// learnOrReject records srcMAC as belonging to src, rejecting a frame that
// claims a MAC already learned under a different, still-defined instance —
// the L2 analogue of deliverL3's IP spoofing check.
func (f *Forwarder) learnOrReject(src *instance.Instance, srcMAC [6]byte) error {
	if existing, ok := f.LookupLearnedMAC(srcMAC); ok && existing != src.Real {
		if owner, ok := f.b.LookupReal(existing); ok && owner != src && owner.Defined() {
			return fmt.Errorf("forward: packet from %s claims MAC already learned from another peer", src.MsgPrefix)
		}
	}
	f.LearnMAC(srcMAC, src.Real)
	return nil
}

// spoofed reports whether pkt's source address does not belong to src,
// i.e. src is trying to originate traffic for an address it was never
// assigned — spec.md §4.5 spoofing check.
func (f *Forwarder) spoofed(src *instance.Instance, pkt []byte) bool {
	h, err := ipv4.ParseHeader(pkt)
	if err != nil {
		return false // malformed packets are dropped elsewhere, not treated as spoofing
	}
	srcAddr, ok := netip.AddrFromSlice(h.Src.To4())
	if !ok {
		return false
	}
	vaddr, ok := src.Virtual.IPv4()
	if !ok {
		return false
	}
	return srcAddr != vaddr
}

func destinationOf(pkt []byte) (netip.Addr, error) {
	h, err := ipv4.ParseHeader(pkt)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("forward: parse IPv4 header: %w", err)
	}
	addr, ok := netip.AddrFromSlice(h.Dst.To4())
	if !ok {
		return netip.Addr{}, fmt.Errorf("forward: non-IPv4 destination in header")
	}
	return addr, nil
}

// isBroadcast reports whether dst is the limited broadcast address
// (255.255.255.255) or the subnet-directed broadcast address of f.subnet,
// per spec.md §4.5.
func (f *Forwarder) isBroadcast(dst netip.Addr) bool {
	if dst.As4() == [4]byte{255, 255, 255, 255} {
		return true
	}
	return addrkey.IsIPv4Broadcast(dst, f.subnet)
}

// fanOut delivers pkt to every other known instance plus the local TUN/TAP
// device, one copy each — spec.md §4.8 and §8 scenario 2 ("expect B to
// receive one copy and the server's TAP interface to receive one copy").
func (f *Forwarder) fanOut(src *instance.Instance, pkt []byte) {
	for _, inst := range f.b.AllInstances() {
		if inst == src || !inst.Defined() || !inst.ConnectionEstablished() {
			continue
		}
		_ = f.send(inst, pkt)
	}
	_ = f.toTUN(pkt)
}

func (f *Forwarder) send(target *instance.Instance, pkt []byte) error {
	if target.Session == nil {
		return enqueueOrDrop(target, pkt)
	}
	out := target.Session.Outbound()
	if out == nil {
		return enqueueOrDrop(target, pkt)
	}
	if err := out.SendDataIP(pkt); err != nil {
		return enqueueOrDrop(target, pkt)
	}
	return nil
}

func enqueueOrDrop(target *instance.Instance, pkt []byte) error {
	if target.OutQueue == nil {
		return fmt.Errorf("forward: no outbound path for %s and no queue to buffer in", target.MsgPrefix)
	}
	cp := append([]byte(nil), pkt...)
	if !target.OutQueue.Push(cp) {
		return fmt.Errorf("forward: outbound queue full for %s, packet dropped", target.MsgPrefix)
	}
	return nil
}

func (f *Forwarder) toTUN(pkt []byte) error {
	_, err := f.tun.Write(pkt)
	return err
}

// LearnMAC records that srcMAC was last seen arriving from the instance
// identified by real — server-bridge mode source learning (spec.md §4.5).
func (f *Forwarder) LearnMAC(srcMAC [6]byte, real addrkey.Key) {
	f.learned[srcMAC] = real
}

// LookupLearnedMAC returns the real-address key last associated with mac,
// if any.
func (f *Forwarder) LookupLearnedMAC(mac [6]byte) (addrkey.Key, bool) {
	k, ok := f.learned[mac]
	return k, ok
}
