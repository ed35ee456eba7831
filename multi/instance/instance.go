// Package instance defines the per-client record the multi-client engine
// routes packets to and from — spec.md §3 Instance.
//
// Field layout is grounded on original_source/openvpn/multi.h's struct
// multi_instance (defined/halt/refcount/real/vaddr_handle/msg_prefix plus
// the embedded schedule_entry); the crypto/transport half is the existing
// application/network/connection.Session this engine composes rather than
// replaces.
package instance

import (
	"fmt"
	"time"
	"tungo/application/network/connection"
	"tungo/multi/addrkey"
	"tungo/multi/mbuf"
	"tungo/multi/schedule"
)

// Instance is one connected client's state as seen by the routing engine:
// its address identities, lifecycle flags, refcount, outbound queue, and
// the underlying secure Session it wraps.
type Instance struct {
	// Session is the crypto/transport half, built and owned by the
	// handshake/registration path before the Instance is handed to the
	// broker.
	Session connection.Session

	// Real is the client's real (external, outside-VPN) address identity,
	// used as the key for the broker's real-address index.
	Real addrkey.Key

	// Virtual is the client's assigned virtual (inside-VPN) address
	// identity, used as the key for the broker's virtual-address index.
	// It is the zero Key until the session completes address assignment.
	Virtual addrkey.Key

	// MsgPrefix is a short human-readable tag used in log lines, typically
	// derived from Real (e.g. "10.3.4.5:55001").
	MsgPrefix string

	// Created is when the instance was constructed.
	Created time.Time

	// ScheduleEntry is this instance's single wakeup slot in the broker's
	// Schedule; nil when the instance has no pending timeout.
	ScheduleEntry *schedule.Entry

	// OutQueue holds outbound frames awaiting delivery when the transport
	// is temporarily unable to accept a write (spec.md §6 tcp_out_queue).
	// Nil for transports that never need buffering.
	OutQueue *mbuf.Queue

	refcount int

	defined               bool
	halt                  bool
	connectionEstablished bool
}

// New constructs an Instance wrapping session, identified externally by
// real. The instance starts defined, with a refcount of zero (the broker
// takes the first reference when it indexes the instance).
func New(session connection.Session, real addrkey.Key) *Instance {
	return &Instance{
		Session:   session,
		Real:      real,
		MsgPrefix: real.String(),
		Created:   time.Now(),
		defined:   true,
	}
}

// Defined reports whether the instance is still a live client record. A
// non-defined instance is pending deletion and must not be routed to.
func (i *Instance) Defined() bool { return i.defined && !i.halt }

// Halt marks the instance for teardown; once set it cannot be cleared.
// Defined() returns false from this point on even if refcount is nonzero.
func (i *Instance) Halt() { i.halt = true }

// Halted reports whether Halt has been called.
func (i *Instance) Halted() bool { return i.halt }

// ConnectionEstablished reports whether the client has completed the
// handshake and is eligible for data-plane routing.
func (i *Instance) ConnectionEstablished() bool { return i.connectionEstablished }

// SetConnectionEstablished marks the instance ready for data-plane traffic.
func (i *Instance) SetConnectionEstablished() { i.connectionEstablished = true }

// Ref increments the refcount, returning the new value. The broker holds
// one reference per index (real, virtual, iter) plus one per in-flight
// packet being routed to the instance.
func (i *Instance) Ref() int {
	i.refcount++
	return i.refcount
}

// Unref decrements the refcount, returning the new value. It panics if
// called with a zero refcount, which indicates an ownership bug upstream.
func (i *Instance) Unref() int {
	if i.refcount == 0 {
		panic(fmt.Sprintf("instance: Unref called with zero refcount on %s", i.MsgPrefix))
	}
	i.refcount--
	return i.refcount
}

// Refcount returns the current reference count.
func (i *Instance) Refcount() int { return i.refcount }

// Reapable reports whether the instance is both marked for deletion and
// holds no outstanding references, i.e. it is safe for the reaper to
// physically remove (spec.md §8 "no orphan routes").
func (i *Instance) Reapable() bool {
	return (i.halt || !i.defined) && i.refcount == 0
}
