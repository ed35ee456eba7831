package tundev

import (
	"os"
	"testing"

	"golang.zx2c4.com/wireguard/tun"
)

// fakeWGDevice implements tun.Device backed by an in-memory packet queue,
// for testing the Device adapter without a real kernel TUN interface.
type fakeWGDevice struct {
	toRead [][]byte
	writes [][]byte
	closed bool
}

func (f *fakeWGDevice) File() *os.File { return nil }

func (f *fakeWGDevice) Read(bufs [][]byte, sizes []int, offset int) (int, error) {
	if len(f.toRead) == 0 {
		return 0, os.ErrClosed
	}
	pkt := f.toRead[0]
	f.toRead = f.toRead[1:]
	n := copy(bufs[0][offset:], pkt)
	sizes[0] = n
	return 1, nil
}

func (f *fakeWGDevice) Write(bufs [][]byte, offset int) (int, error) {
	for _, b := range bufs {
		cp := append([]byte(nil), b[offset:]...)
		f.writes = append(f.writes, cp)
	}
	return len(bufs), nil
}

func (f *fakeWGDevice) MTU() (int, error)       { return 1500, nil }
func (f *fakeWGDevice) Name() (string, error)   { return "faketun0", nil }
func (f *fakeWGDevice) Events() <-chan tun.Event { return nil }
func (f *fakeWGDevice) Close() error            { f.closed = true; return nil }
func (f *fakeWGDevice) BatchSize() int          { return 1 }

func TestNewWireguardDevice_RejectsNilDevice(t *testing.T) {
	if _, err := NewWireguardDevice(nil, KindTUN, 1500); err == nil {
		t.Fatal("expected error for nil underlying device")
	}
}

func TestNewWireguardDevice_RejectsNonPositiveMTU(t *testing.T) {
	if _, err := NewWireguardDevice(&fakeWGDevice{}, KindTUN, 0); err == nil {
		t.Fatal("expected error for zero MTU")
	}
}

func TestRead_CopiesPacketWithoutFramingHeader(t *testing.T) {
	fake := &fakeWGDevice{toRead: [][]byte{[]byte("hello-packet")}}
	d, err := NewWireguardDevice(fake, KindTUN, 1500)
	if err != nil {
		t.Fatalf("NewWireguardDevice: %v", err)
	}
	buf := make([]byte, 64)
	n, err := d.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "hello-packet" {
		t.Fatalf("expected %q, got %q", "hello-packet", buf[:n])
	}
}

func TestWrite_StripsOffsetOnUnderlyingWrite(t *testing.T) {
	fake := &fakeWGDevice{}
	d, err := NewWireguardDevice(fake, KindTUN, 1500)
	if err != nil {
		t.Fatalf("NewWireguardDevice: %v", err)
	}
	n, err := d.Write([]byte("world-packet"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len("world-packet") {
		t.Fatalf("expected n=%d, got %d", len("world-packet"), n)
	}
	if len(fake.writes) != 1 || string(fake.writes[0]) != "world-packet" {
		t.Fatalf("expected underlying write %q, got %v", "world-packet", fake.writes)
	}
}

func TestWrite_RejectsEmptyPacket(t *testing.T) {
	d, _ := NewWireguardDevice(&fakeWGDevice{}, KindTUN, 1500)
	if _, err := d.Write(nil); err == nil {
		t.Fatal("expected error for empty packet")
	}
}

func TestWrite_RejectsPacketExceedingBuffer(t *testing.T) {
	d, _ := NewWireguardDevice(&fakeWGDevice{}, KindTUN, 16)
	oversized := make([]byte, 64)
	if _, err := d.Write(oversized); err == nil {
		t.Fatal("expected error for oversized packet")
	}
}

func TestTypeAndMTU(t *testing.T) {
	d, _ := NewWireguardDevice(&fakeWGDevice{}, KindTAP, 1400)
	if d.Type() != KindTAP {
		t.Fatalf("expected KindTAP, got %v", d.Type())
	}
	if d.MTU() != 1400 {
		t.Fatalf("expected MTU 1400, got %d", d.MTU())
	}
}

func TestClose_DelegatesToUnderlyingDevice(t *testing.T) {
	fake := &fakeWGDevice{}
	d, _ := NewWireguardDevice(fake, KindTUN, 1500)
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !fake.closed {
		t.Fatal("expected underlying device closed")
	}
}
