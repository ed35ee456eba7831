// Package tundev wraps a golang.zx2c4.com/wireguard/tun.Device behind the
// {open, read, write, close, type, mtu} capability trait spec.md §9 calls
// for, so the rest of the multi-client core depends on one small
// interface instead of importing the wireguard/tun package directly.
//
// The Read/Write buffering strategy (fixed reusable backing arrays, no
// per-packet heap allocation) is grounded on
// infrastructure/PAL/darwin/tun_adapters/wg_tun_adapter.go's WgTunAdapter.
package tundev

import (
	"errors"
	"fmt"

	"golang.zx2c4.com/wireguard/tun"
)

// Kind distinguishes the two device types the engine can route through.
type Kind int

const (
	// KindTUN is a layer-3 (IP) device.
	KindTUN Kind = iota
	// KindTAP is a layer-2 (Ethernet) device.
	KindTAP
)

// Device is the capability trait the routing core needs from a tunnel
// interface: open is implicit in construction, the rest are explicit.
type Device interface {
	// Read copies one packet (IP, without any platform framing header)
	// into p, returning its length.
	Read(p []byte) (int, error)
	// Write transmits one packet (IP, without any platform framing header).
	Write(p []byte) (int, error)
	// Close tears down the device. Safe to call multiple times.
	Close() error
	// Type reports whether this device carries L3 or L2 frames.
	Type() Kind
	// MTU reports the device's maximum transmission unit.
	MTU() int
}

// wgDevice adapts a wireguard/tun.Device to Device, reusing one pair of
// backing buffers across calls the way WgTunAdapter does.
type wgDevice struct {
	dev  tun.Device
	kind Kind
	mtu  int

	readBuf  []byte
	writeBuf []byte
	readVec  [][]byte
	writeVec [][]byte
	sizes    []int
}

// offset is the platform framing header size wireguard/tun.Device.Read/
// Write expect callers to leave room for (4 bytes on most platforms).
const offset = 4

// NewWireguardDevice wraps dev, an already-opened wireguard/tun.Device, as
// a Device of the given Kind. mtu must be positive.
func NewWireguardDevice(dev tun.Device, kind Kind, mtu int) (Device, error) {
	if dev == nil {
		return nil, errors.New("tundev: nil underlying device")
	}
	if mtu <= 0 {
		return nil, fmt.Errorf("tundev: mtu must be positive, got %d", mtu)
	}
	bufSize := mtu + offset
	rb := make([]byte, bufSize)
	wb := make([]byte, bufSize)
	return &wgDevice{
		dev:      dev,
		kind:     kind,
		mtu:      mtu,
		readBuf:  rb,
		writeBuf: wb,
		readVec:  [][]byte{rb},
		writeVec: [][]byte{wb},
		sizes:    []int{0},
	}, nil
}

func (d *wgDevice) Read(p []byte) (int, error) {
	d.sizes[0] = 0
	if _, err := d.dev.Read(d.readVec, d.sizes, offset); err != nil {
		return 0, err
	}
	n := d.sizes[0]
	if n > len(p) {
		return 0, fmt.Errorf("tundev: destination buffer too small for %d-byte packet", n)
	}
	copy(p, d.readBuf[offset:offset+n])
	return n, nil
}

func (d *wgDevice) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, errors.New("tundev: empty packet")
	}
	if len(p)+offset > len(d.writeBuf) {
		return 0, fmt.Errorf("tundev: packet of %d bytes exceeds MTU buffer", len(p))
	}
	copy(d.writeBuf[offset:], p)
	d.writeVec[0] = d.writeBuf[:len(p)+offset]
	if _, err := d.dev.Write(d.writeVec, offset); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (d *wgDevice) Close() error { return d.dev.Close() }
func (d *wgDevice) Type() Kind   { return d.kind }
func (d *wgDevice) MTU() int     { return d.mtu }
