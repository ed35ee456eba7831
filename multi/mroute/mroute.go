// Package mroute implements the CIDR routing helper of spec.md §4.3: it does
// not store routes itself, only which network prefix lengths currently have
// at least one configured iroute, and a generation counter that invalidates
// cached host-route lookups in bulk.
//
// Field layout mirrors original_source/openvpn/mroute.h's struct
// mroute_helper (net_len_refcount[32], cache_generation, ageable_ttl_secs).
package mroute

import "net/netip"

// MaxNetBits is the largest prefix length tracked (IPv4 host route).
const MaxNetBits = 32

// Helper tracks, for each CIDR prefix length 0..32, how many configured
// iroutes currently use it, plus a cache generation bumped whenever a
// prefix length transitions between zero and non-zero refcount.
type Helper struct {
	cacheGeneration uint32
	netLenRefcount  [MaxNetBits + 1]uint32
}

// New creates an empty Helper.
func New() *Helper {
	return &Helper{}
}

// AddIroute records one more iroute at the given prefix length, bumping the
// cache generation if this is the first iroute at that length.
func (h *Helper) AddIroute(bits int) {
	if bits < 0 || bits > MaxNetBits {
		return
	}
	if h.netLenRefcount[bits] == 0 {
		h.cacheGeneration++
	}
	h.netLenRefcount[bits]++
}

// DelIroute removes one iroute at the given prefix length, bumping the
// cache generation if the refcount drops to zero.
func (h *Helper) DelIroute(bits int) {
	if bits < 0 || bits > MaxNetBits || h.netLenRefcount[bits] == 0 {
		return
	}
	h.netLenRefcount[bits]--
	if h.netLenRefcount[bits] == 0 {
		h.cacheGeneration++
	}
}

// CacheGeneration returns the current generation counter. It is monotonic:
// add/del that doesn't cross a zero boundary never decrements it, and a
// round-trip add-then-del is not guaranteed to restore the original value
// (spec.md §8).
func (h *Helper) CacheGeneration() uint32 { return h.cacheGeneration }

// SearchOrder returns the prefix lengths with at least one configured
// iroute, in descending order — the longest-prefix-match search order of
// spec.md §4.3.
func (h *Helper) SearchOrder() []int {
	order := make([]int, 0, MaxNetBits+1)
	for bits := MaxNetBits; bits >= 0; bits-- {
		if h.netLenRefcount[bits] > 0 {
			order = append(order, bits)
		}
	}
	return order
}

// RefCount returns how many iroutes currently use the given prefix length.
func (h *Helper) RefCount(bits int) uint32 {
	if bits < 0 || bits > MaxNetBits {
		return 0
	}
	return h.netLenRefcount[bits]
}

// CandidatePrefix builds the masked netip.Prefix to probe a route index with
// for destination dst at prefix length bits, per spec.md §4.3 step 2.
func CandidatePrefix(dst netip.Addr, bits int) netip.Prefix {
	return netip.PrefixFrom(dst, bits).Masked()
}
