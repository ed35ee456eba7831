package server

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"tungo/application/network/connection"
	"tungo/infrastructure/cryptography/chacha20/rekey"
	"tungo/multi/addrkey"
)

type fakeLogger struct{}

func (fakeLogger) Printf(string, ...any) {}

type fakeUdpConn struct {
	mu     sync.Mutex
	reads  [][]byte
	addrs  []netip.AddrPort
	idx    int
	closed bool
	writes []struct {
		data []byte
		addr netip.AddrPort
	}
}

func (c *fakeUdpConn) Close() error { c.mu.Lock(); defer c.mu.Unlock(); c.closed = true; return nil }
func (c *fakeUdpConn) SetReadBuffer(int) error  { return nil }
func (c *fakeUdpConn) SetWriteBuffer(int) error { return nil }
func (c *fakeUdpConn) WriteToUDPAddrPort(data []byte, addr netip.AddrPort) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, struct {
		data []byte
		addr netip.AddrPort
	}{append([]byte(nil), data...), addr})
	return len(data), nil
}
func (c *fakeUdpConn) ReadMsgUDPAddrPort(b, _ []byte) (int, int, int, netip.AddrPort, error) {
	c.mu.Lock()
	if c.idx < len(c.reads) {
		data := c.reads[c.idx]
		addr := c.addrs[c.idx]
		c.idx++
		copy(b, data)
		c.mu.Unlock()
		return len(data), 0, 0, addr, nil
	}
	closed := c.closed
	c.mu.Unlock()

	time.Sleep(5 * time.Millisecond)
	if closed {
		return 0, 0, 0, netip.AddrPort{}, errors.New("closed")
	}
	return 0, 0, 0, netip.AddrPort{}, errors.New("no data")
}

type plaintextCrypto struct{}

func (plaintextCrypto) Encrypt(p []byte) ([]byte, error) { return p, nil }
func (plaintextCrypto) Decrypt(p []byte) ([]byte, error) { return p, nil }

type fakeTransport struct{}

func (fakeTransport) Write(p []byte) (int, error) { return len(p), nil }
func (fakeTransport) Read([]byte) (int, error)    { return 0, errors.New("unused") }
func (fakeTransport) Close() error                { return nil }

type fakeSession struct {
	external netip.AddrPort
	internal netip.Addr
}

func (s fakeSession) ExternalAddrPort() netip.AddrPort     { return s.external }
func (s fakeSession) InternalAddr() netip.Addr             { return s.internal }
func (s fakeSession) Transport() connection.Transport      { return fakeTransport{} }
func (s fakeSession) Crypto() connection.Crypto             { return plaintextCrypto{} }
func (s fakeSession) Outbound() connection.Outbound         { return connection.NewDefaultOutbound(fakeTransport{}, plaintextCrypto{}) }
func (s fakeSession) RekeyController() rekey.FSM            { return nil }

type fakeSessionFactory struct {
	nextInternal netip.Addr
	err          error
	calls        int
}

func (f *fakeSessionFactory) Handshake(_ context.Context, _ connection.Transport, external netip.AddrPort) (connection.Session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return fakeSession{external: external, internal: f.nextInternal}, nil
}

type fakeTUN struct {
	mu      sync.Mutex
	written [][]byte
}

func (t *fakeTUN) Write(pkt []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.written = append(t.written, append([]byte(nil), pkt...))
	return len(pkt), nil
}

func TestServer_RegistersNewClientAndBindsVirtualAddress(t *testing.T) {
	// spec.md §8 scenario 1 (registration).
	clientAddr := netip.MustParseAddrPort("192.168.1.10:5555")
	conn := &fakeUdpConn{
		reads: [][]byte{{0x01, 0x02, 0x03}},
		addrs: []netip.AddrPort{clientAddr},
	}
	sf := &fakeSessionFactory{nextInternal: netip.MustParseAddr("10.8.0.5")}
	tun := &fakeTUN{}

	s := New(Config{RestartSeconds: 60}, conn, tun, false, netip.MustParsePrefix("10.8.0.0/24"), sf, fakeLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if inst, ok := s.Broker().LookupVirtualExact(addrkey.FromIPv4(sf.nextInternal)); ok && inst != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	inst, ok := s.Broker().LookupVirtualExact(addrkey.FromIPv4(netip.MustParseAddr("10.8.0.5")))
	if !ok {
		t.Fatal("expected client registered and bound to its assigned virtual address")
	}
	if !inst.ConnectionEstablished() {
		t.Fatal("expected instance marked connection-established after registration")
	}
	if sf.calls != 1 {
		t.Fatalf("expected exactly 1 handshake attempt, got %d", sf.calls)
	}
}

func TestServer_HandshakeFailure_NoInstanceCreated(t *testing.T) {
	clientAddr := netip.MustParseAddrPort("192.168.1.20:6000")
	conn := &fakeUdpConn{
		reads: [][]byte{{0xff}},
		addrs: []netip.AddrPort{clientAddr},
	}
	sf := &fakeSessionFactory{err: errors.New("handshake refused")}
	tun := &fakeTUN{}

	s := New(Config{}, conn, tun, false, netip.MustParsePrefix("10.8.0.0/24"), sf, fakeLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) && sf.calls == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if _, ok := s.Broker().LookupReal(addrkey.FromIPv4Port(clientAddr)); ok {
		t.Fatal("expected no instance created after a failed handshake")
	}
}
