// Package ippool assigns and releases stable virtual tunnel addresses to
// clients, with optional text-file persistence across restarts — spec.md
// §4.4, §6.
//
// Assignment bookkeeping (offset arithmetic, broadcast/network exclusion)
// is grounded on infrastructure/settings/addressing.go and
// network/ip/ipassign.go; the persisted-write pattern (temp file + atomic
// rename) is grounded on infrastructure/PAL/server_configuration/writer.go.
package ippool

import (
	"bufio"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrExhausted is returned by Assign when no free address remains in range.
var ErrExhausted = errors.New("ippool: address range exhausted")

// Topology selects the reserved-address layout of spec.md §4.4/§6.
type Topology int

const (
	// TopologyTUN skips .1/.2/.3 at the bottom of the range and reserves
	// `reserve` addresses at the top (pool_end_reserve, default 4).
	TopologyTUN Topology = iota
	// TopologyTAP spans [base+2, (base|~mask)-1].
	TopologyTAP
)

// Pool assigns virtual addresses from [base, end] to client identities,
// excluding reserved positions depending on Topology, and optionally
// persists the client-id -> address binding to a text file.
type Pool struct {
	mu sync.Mutex

	base, end netip.Addr
	topology  Topology

	assignments map[string]netip.Addr // clientID -> address, survives release
	occupied    map[netip.Addr]bool   // currently-held addresses

	persistPath string
}

// Config describes how to build a Pool from a subnet per the §6 helper
// directive expansions.
type Config struct {
	Subnet      netip.Prefix
	Topology    Topology
	PersistPath string // empty disables persistence
}

// New builds a Pool over the usable range of cfg.Subnet according to its
// Topology, optionally loading a prior persistence file.
func New(cfg Config) (*Pool, error) {
	if !cfg.Subnet.IsValid() || !cfg.Subnet.Addr().Is4() {
		return nil, fmt.Errorf("ippool: subnet must be a valid IPv4 prefix")
	}
	netBase := cfg.Subnet.Masked().Addr()
	bcast := lastAddr(cfg.Subnet)

	var base, end netip.Addr
	switch cfg.Topology {
	case TopologyTUN:
		netbits := cfg.Subnet.Bits()
		if netbits > 29 {
			return nil, fmt.Errorf("ippool: tun topology requires a subnet of /29 or lower, got /%d", netbits)
		}
		// pool_end_reserve: 4 addresses are normally held back at the top of
		// the range, but a /29 has only 8 addresses total and needs every
		// one of the 4 assignable ones usable.
		reserve := 4
		if netbits == 29 {
			reserve = 0
		}
		base = offset(netBase, 4)
		end = offset(bcast, -int64(reserve))
	case TopologyTAP:
		base = offset(netBase, 2)
		end = offset(bcast, -1)
	default:
		return nil, fmt.Errorf("ippool: unknown topology %d", cfg.Topology)
	}

	return newPool(base, end, cfg.Topology, cfg.PersistPath)
}

// NewWithRange builds a Pool directly from explicit bounds rather than
// deriving them from a subnet, for directives (server-bridge) that supply
// the pool range explicitly instead of a topology-derived one.
func NewWithRange(base, end netip.Addr, topology Topology, persistPath string) (*Pool, error) {
	if !base.Is4() || !end.Is4() {
		return nil, fmt.Errorf("ippool: pool range must be IPv4")
	}
	return newPool(base, end, topology, persistPath)
}

func newPool(base, end netip.Addr, topology Topology, persistPath string) (*Pool, error) {
	p := &Pool{
		base:        base,
		end:         end,
		topology:    topology,
		assignments: make(map[string]netip.Addr),
		occupied:    make(map[netip.Addr]bool),
		persistPath: persistPath,
	}
	if persistPath != "" {
		if err := p.load(persistPath); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Assign returns a stable address for clientID: a previously persisted
// binding if one exists, otherwise the lowest free address in range.
func (p *Pool) Assign(clientID string) (netip.Addr, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if addr, ok := p.assignments[clientID]; ok {
		p.occupied[addr] = true
		return addr, nil
	}

	for addr := p.base; compare(addr, p.end) <= 0; addr = offset(addr, 1) {
		if !p.occupied[addr] {
			p.occupied[addr] = true
			p.assignments[clientID] = addr
			return addr, nil
		}
	}
	return netip.Addr{}, ErrExhausted
}

// Release frees the slot held by clientID without forgetting the binding,
// so a subsequent Assign for the same clientID returns the same address
// (spec.md §8 round-trip law) until Evict is called.
func (p *Pool) Release(clientID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if addr, ok := p.assignments[clientID]; ok {
		delete(p.occupied, addr)
	}
}

// Evict forgets clientID's binding entirely; the next Assign for that id
// gets a fresh lowest-free address.
func (p *Pool) Evict(clientID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if addr, ok := p.assignments[clientID]; ok {
		delete(p.occupied, addr)
		delete(p.assignments, clientID)
	}
}

// Lookup returns the currently-assigned address for clientID, if any is
// both bound and occupied (i.e. the client is presently connected).
func (p *Pool) Lookup(clientID string) (netip.Addr, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	addr, ok := p.assignments[clientID]
	if !ok || !p.occupied[addr] {
		return netip.Addr{}, false
	}
	return addr, true
}

// Checkpoint writes every client-id -> address binding to path atomically
// (temp file + rename), one "clientID,address" line per binding.
func (p *Pool) Checkpoint(path string) error {
	p.mu.Lock()
	ids := make([]string, 0, len(p.assignments))
	for id := range p.assignments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "%s,%s\n", id, p.assignments[id])
	}
	p.mu.Unlock()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".ippool-*.tmp")
	if err != nil {
		return fmt.Errorf("ippool: create temp checkpoint file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(b.String()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("ippool: write temp checkpoint file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("ippool: close temp checkpoint file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("ippool: rename checkpoint file: %w", err)
	}
	return nil
}

func (p *Pool) load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("ippool: read persistence file: %w", err)
	}
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		if len(parts) != 2 {
			continue
		}
		addr, err := netip.ParseAddr(strings.TrimSpace(parts[1]))
		if err != nil {
			continue
		}
		p.assignments[strings.TrimSpace(parts[0])] = addr
	}
	return scanner.Err()
}

func offset(addr netip.Addr, n int64) netip.Addr {
	a4 := addr.As4()
	v := int64(a4[0])<<24 | int64(a4[1])<<16 | int64(a4[2])<<8 | int64(a4[3])
	v += n
	return netip.AddrFrom4([4]byte{
		byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
	})
}

func compare(a, b netip.Addr) int {
	av, bv := a.As4(), b.As4()
	for i := 0; i < 4; i++ {
		if av[i] != bv[i] {
			if av[i] < bv[i] {
				return -1
			}
			return 1
		}
	}
	return 0
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
