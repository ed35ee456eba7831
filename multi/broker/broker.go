// Package broker is the multi_context equivalent of spec.md §4.6: it owns
// the three address indexes clients are routed through (real, virtual,
// iteration), the wakeup schedule, the CIDR route helper, the outbound
// packet queues and the reaper that retires halted, unreferenced instances.
//
// Struct shape is grounded on original_source/openvpn/multi.h's struct
// multi_context (hash/vhash/iter/schedule/route_helper/reaper fields); the
// Go composition of generic hash indexes is grounded on
// infrastructure/routing/server_routing/session_management/repository's
// two-map (internal/external) session index, generalized from two fixed
// maps to the addrkey-keyed chained hash tables of multi/hashindex so a
// CIDR network key and a host key can share one virtual-address index.
package broker

import (
	"fmt"
	"net/netip"
	"sync"
	"time"

	"tungo/application/network/connection"
	"tungo/multi/addrkey"
	"tungo/multi/hashindex"
	"tungo/multi/instance"
	"tungo/multi/mroute"
	"tungo/multi/schedule"
)

func hashKey(k addrkey.Key, seed uint32) uint32 { return k.Hash(seed) }
func equalKey(a, b addrkey.Key) bool            { return a == b }

// routeCacheEntry is a host-route cache hit (spec.md §4.3 "Cache|Ageable"):
// a prefix-scan result remembered against the exact destination that
// produced it, valid only as long as generation still matches the route
// helper's cache_generation.
type routeCacheEntry struct {
	inst       *instance.Instance
	generation uint32
}

// Config tunes reaper pacing and new-connection admission.
type Config struct {
	// MaxClients caps the number of simultaneously defined instances; zero
	// means unbounded.
	MaxClients int
	// BucketsPerPass bounds how many hash buckets the reaper walks per
	// invocation; clamped to [16, 1024] per spec.md §4.6.
	BucketsPerPass int
	// EnableClientToClient allows routing data between two virtual
	// addresses both owned by this broker, rather than only to/from TUN.
	EnableClientToClient bool
}

// Broker indexes every connected Instance by real address and (once
// assigned) virtual address, and periodically reaps halted instances with
// no outstanding references.
type Broker struct {
	mu sync.Mutex

	cfg Config

	real *hashindex.Index[addrkey.Key, *instance.Instance]
	virt *hashindex.Index[addrkey.Key, *instance.Instance]
	iter *hashindex.Index[addrkey.Key, *instance.Instance]

	schedule *schedule.Schedule
	routes   *mroute.Helper

	routeCache map[addrkey.Key]routeCacheEntry

	reapCursor   int
	lastReapTime time.Time

	pending *instance.Instance
}

// New constructs an empty Broker.
func New(cfg Config) *Broker {
	if cfg.BucketsPerPass < 16 {
		cfg.BucketsPerPass = 16
	}
	if cfg.BucketsPerPass > 1024 {
		cfg.BucketsPerPass = 1024
	}
	return &Broker{
		cfg:        cfg,
		real:       hashindex.New[addrkey.Key, *instance.Instance](hashKey, equalKey),
		virt:       hashindex.New[addrkey.Key, *instance.Instance](hashKey, equalKey),
		iter:       hashindex.New[addrkey.Key, *instance.Instance](hashKey, equalKey),
		schedule:   schedule.New(),
		routes:     mroute.New(),
		routeCache: make(map[addrkey.Key]routeCacheEntry),
	}
}

// ErrAtCapacity is returned by CreateInstance when MaxClients is already
// reached.
var ErrAtCapacity = fmt.Errorf("broker: at client capacity")

// ErrDuplicateReal is returned by CreateInstance when real is already
// indexed by a live instance.
var ErrDuplicateReal = fmt.Errorf("broker: real address already registered")

// CreateInstance builds and indexes a new Instance for real, taking one
// reference for the real-address index and one for the iteration index —
// spec.md §4.6 multi_create_instance.
func (b *Broker) CreateInstance(session connection.Session, real addrkey.Key) (*instance.Instance, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.MaxClients > 0 && b.real.Len() >= b.cfg.MaxClients {
		return nil, ErrAtCapacity
	}
	if _, ok := b.real.Lookup(real); ok {
		return nil, ErrDuplicateReal
	}

	inst := instance.New(session, real)
	inst.Ref()
	b.real.Insert(real, inst)
	inst.Ref()
	b.iter.Insert(real, inst)
	return inst, nil
}

// BindVirtual assigns virt as inst's virtual-address identity and indexes
// it, taking one more reference. It is an error to bind a virtual address
// already bound to a different, still-defined instance.
func (b *Broker) BindVirtual(inst *instance.Instance, virt addrkey.Key) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.virt.Lookup(virt); ok && existing != inst && existing.Defined() {
		return fmt.Errorf("broker: virtual address %s already bound to another instance", virt)
	}
	inst.Virtual = virt
	inst.Ref()
	b.virt.Insert(virt, inst)
	return nil
}

// LookupReal returns the instance registered under real, if any and still
// defined.
func (b *Broker) LookupReal(real addrkey.Key) (*instance.Instance, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	inst, ok := b.real.Lookup(real)
	if !ok || !inst.Defined() {
		return nil, false
	}
	return inst, true
}

// LookupVirtualExact returns the instance registered under the exact
// virtual key virt (host match, no CIDR fallback).
func (b *Broker) LookupVirtualExact(virt addrkey.Key) (*instance.Instance, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	inst, ok := b.virt.Lookup(virt)
	if !ok || !inst.Defined() {
		return nil, false
	}
	return inst, true
}

// LookupRoute performs the CIDR longest-prefix-match lookup of spec.md §4.3:
// an exact host key first, then a cached host-route hit tagged with the
// route helper's current cache generation, then each configured iroute
// prefix length in descending order. A prefix-scan hit is written back into
// the cache (Cache|Ageable) so the next lookup for the same destination
// short-circuits the scan, exactly as spec.md §4.3 describes.
func (b *Broker) LookupRoute(dst netip.Addr) (*instance.Instance, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := addrkey.FromIPv4(dst)

	if inst, ok := b.virt.Lookup(key); ok && inst.Defined() {
		return inst, true
	}

	if entry, ok := b.routeCache[key]; ok {
		if entry.generation == b.routes.CacheGeneration() && entry.inst.Defined() {
			return entry.inst, true
		}
		// Stale: either the route helper's generation moved on (an iroute
		// was added/removed) or the cached instance is gone. Either way the
		// scan below must re-run rather than trust this entry again.
		delete(b.routeCache, key)
	}

	for _, bits := range b.routes.SearchOrder() {
		prefix := mroute.CandidatePrefix(dst, bits)
		cidrKey := addrkey.FromCIDR(prefix)
		if inst, ok := b.virt.Lookup(cidrKey); ok && inst.Defined() {
			b.routeCache[key] = routeCacheEntry{inst: inst, generation: b.routes.CacheGeneration()}
			return inst, true
		}
	}
	return nil, false
}

// AddIroute registers a configured route at bits prefix length, affecting
// future LookupRoute calls and cache invalidation.
func (b *Broker) AddIroute(bits int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes.AddIroute(bits)
}

// DelIroute unregisters a configured route at bits prefix length.
func (b *Broker) DelIroute(bits int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes.DelIroute(bits)
}

// AllInstances returns every currently iter-indexed instance, defined or
// not, for broadcast/multicast fan-out (spec.md §4.8). The returned slice
// is a snapshot; callers must not mutate broker state while iterating it
// without calling Unref afterward for any reference they took.
func (b *Broker) AllInstances() []*instance.Instance {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*instance.Instance, 0, b.iter.Len())
	b.iter.Iter(func(_ addrkey.Key, inst *instance.Instance) bool {
		out = append(out, inst)
		return true
	})
	return out
}

// CloseInstance marks inst halted and drops the iteration-index reference.
// The real/virtual index references remain until the reaper physically
// removes them, so in-flight lookups started just before Halt still see a
// consistent (if now-halted) instance rather than a dangling one —
// spec.md §4.6 multi_close_instance.
func (b *Broker) CloseInstance(inst *instance.Instance) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if inst.Halted() {
		return
	}
	inst.Halt()
	if _, ok := b.iter.Lookup(inst.Real); ok {
		b.iter.Remove(inst.Real)
		inst.Unref()
	}
	if entry := inst.ScheduleEntry; entry != nil {
		b.schedule.Remove(entry)
		inst.ScheduleEntry = nil
	}
}

// Reap walks up to BucketsPerPass buckets of the real-address index,
// unconditionally dropping the real/virtual index entries of any halted
// instance it finds (this is the only place those two references are ever
// released, matching CloseInstance's comment that they outlive Halt so
// in-flight lookups stay consistent) and counting an instance as destroyed
// once that removal brings its refcount to zero — spec.md §4.6
// multi_reap_process, §8 "no orphan routes".
func (b *Broker) Reap(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	destroyed := 0
	b.reapCursor = b.real.ScanBuckets(b.reapCursor, b.cfg.BucketsPerPass, func(k addrkey.Key, inst *instance.Instance) {
		if !inst.Halted() {
			return
		}
		if _, ok := b.real.Lookup(k); ok {
			b.real.Remove(k)
			inst.Unref()
		}
		if inst.Virtual != (addrkey.Key{}) {
			if v, ok := b.virt.Lookup(inst.Virtual); ok && v == inst {
				b.virt.Remove(inst.Virtual)
				inst.Unref()
			}
		}
		if inst.Reapable() {
			destroyed++
		}
	})
	b.lastReapTime = now
	return destroyed
}

// ShouldReap reports whether at least one second has elapsed since the
// last Reap, the per-second-trigger cadence of spec.md §4.6.
func (b *Broker) ShouldReap(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastReapTime.IsZero() || now.Sub(b.lastReapTime) >= time.Second
}

// Schedule exposes the broker's wakeup schedule for instances that need a
// timeout (keepalive, handshake retry) without taking the broker lock for
// the whole operation.
func (b *Broker) Schedule() *schedule.Schedule { return b.schedule }

// Routes exposes the CIDR route helper for direct inspection (status
// reporting).
func (b *Broker) Routes() *mroute.Helper { return b.routes }

// Pending returns the instance currently mid-registration (at most one at
// a time in the single-threaded core, spec.md §5), if any.
func (b *Broker) Pending() (*instance.Instance, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending, b.pending != nil
}

// SetPending records inst as the instance currently being registered, or
// clears it when inst is nil.
func (b *Broker) SetPending(inst *instance.Instance) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = inst
}

// RealCount reports how many instances are currently indexed by real
// address (defined or halted-but-not-yet-reaped).
func (b *Broker) RealCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.real.Len()
}
