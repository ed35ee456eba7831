package presentation

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/netip"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"

	"tungo/application/network/connection"
	"tungo/domain/network/ip/packet_validation"
	"tungo/infrastructure/cryptography/chacha20"
	"tungo/infrastructure/cryptography/chacha20/handshake"
	"tungo/infrastructure/cryptography/chacha20/rekey"
	"tungo/infrastructure/network/ip"
	"tungo/infrastructure/settings"
	"tungo/multi/tundev"
	"tungo/presentation/interactive_commands"

	"golang.zx2c4.com/wireguard/tun"
)

// defaultClientSettings is the counterpart to defaultServerSettings: there
// is no wire-compatible config reader left in the tree for this Settings
// shape (see DESIGN.md), so the client is configured here rather than
// through infrastructure/PAL's configuration readers, which target an
// older, incompatible Settings shape.
func defaultClientSettings() settings.Settings {
	return settings.Settings{
		InterfaceName: "tun-cli0",
		Host:          mustHost("127.0.0.1"),
		Port:          9090,
		MTU:           settings.DefaultEthernetMTU,
		Protocol:      settings.UDP,
		DialTimeoutMs: 5000,
	}
}

func mustHost(raw string) settings.Host {
	h, err := settings.IPHost(raw)
	if err != nil {
		panic(err)
	}
	return h
}

// StartClient dials the configured server, performs a client-side
// handshake against HandshakeSessionFactory's server-side counterpart
// (multi/server/session_adapter.go), and forwards packets between the
// resulting encrypted UDP session and a local TUN device until ctx is
// canceled. It retries the whole connect-handshake-forward cycle on
// failure, the way the older per-protocol udp_chacha20 router loop did.
func StartClient(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go interactive_commands.ListenForCommand(cancel, "client")

	cfg := defaultClientSettings()

	var lastErr error
	for {
		if ctx.Err() != nil {
			return lastErr
		}
		if err := runClientSession(ctx, cfg); err != nil {
			lastErr = err
			log.Printf("client: session ended: %v", err)
		}
		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(time.Second):
		}
	}
}

// runClientSession dials the server once, performs the handshake, and
// forwards packets until either side fails or ctx is canceled.
func runClientSession(ctx context.Context, cfg settings.Settings) error {
	endpoint, err := cfg.Host.Endpoint(cfg.Port)
	if err != nil {
		return fmt.Errorf("resolve server endpoint: %w", err)
	}
	serverAddr, err := net.ResolveUDPAddr("udp", endpoint)
	if err != nil {
		return fmt.Errorf("resolve server address %s: %w", endpoint, err)
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, cfg.DialTimeoutMs.Duration())
	defer dialCancel()

	var d net.Dialer
	rawConn, err := d.DialContext(dialCtx, "udp", serverAddr.String())
	if err != nil {
		return fmt.Errorf("dial server %s: %w", serverAddr, err)
	}
	conn := rawConn.(*net.UDPConn)
	defer func() { _ = conn.Close() }()

	sess, err := clientHandshake(conn)
	if err != nil {
		return fmt.Errorf("handshake with %s: %w", serverAddr, err)
	}

	tunFile, err := tun.CreateTUN(cfg.InterfaceName, cfg.MTU)
	if err != nil {
		return fmt.Errorf("create TUN device %s: %w", cfg.InterfaceName, err)
	}
	dev, err := tundev.NewWireguardDevice(tunFile, tundev.KindTUN, cfg.MTU)
	if err != nil {
		_ = tunFile.Close()
		return fmt.Errorf("wrap TUN device: %w", err)
	}
	defer func() { _ = dev.Close() }()

	log.Printf("client: connected to %s, tun %s", serverAddr, cfg.InterfaceName)
	return forwardTraffic(ctx, dev, sess, cfg.MTU)
}

// clientHandshake drives the client side of the handshake
// HandshakeSessionFactory implements server-side: a plain ClientHello (no
// obfuscation key configured here), a signature over
// curvePublicKey||clientNonce||serverNonce, and a chacha20.EpochUdpCrypto
// built from the resulting keys.
func clientHandshake(conn *net.UDPConn) (connection.Session, error) {
	crypto := handshake.NewDefaultClientCrypto()

	edPublic, edPrivate, err := crypto.GenerateEd25519Keys()
	if err != nil {
		return nil, fmt.Errorf("generate identity key: %w", err)
	}
	curvePublic, curvePrivate, err := crypto.NewX25519SessionKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate session key pair: %w", err)
	}
	clientNonce := crypto.GenerateSalt()

	hello := handshake.NewClientHello(
		ip.V4,
		net.ParseIP("10.0.0.2").To4(),
		edPublic,
		curvePublic,
		clientNonce,
		packet_validation.NewDefaultIPValidator(packet_validation.Policy{
			AllowV4:           true,
			AllowV6:           true,
			RequirePrivate:    true,
			ForbidLoopback:    true,
			ForbidMulticast:   true,
			ForbidUnspecified: true,
			ForbidLinkLocal:   true,
			ForbidBroadcastV4: true,
		}),
		0,
	)
	helloBytes, err := hello.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal client hello: %w", err)
	}
	if _, err := conn.Write(helloBytes); err != nil {
		return nil, fmt.Errorf("send client hello: %w", err)
	}

	serverHelloBuf := make([]byte, handshake.MaxClientHelloSizeBytes)
	n, err := conn.Read(serverHelloBuf)
	if err != nil {
		return nil, fmt.Errorf("read server hello: %w", err)
	}
	var serverHello handshake.ServerHello
	if _, err := serverHello.Read(serverHelloBuf[:n]); err != nil {
		return nil, fmt.Errorf("unmarshal server hello: %w", err)
	}

	signData := append(append(append([]byte{}, curvePublic...), clientNonce...), serverHello.Nonce...)
	clientSignature := handshake.NewSignature(crypto.Sign(edPrivate, signData))
	sigBytes, err := clientSignature.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal client signature: %w", err)
	}
	if _, err := conn.Write(sigBytes); err != nil {
		return nil, fmt.Errorf("send client signature: %w", err)
	}

	sharedSecret, err := curve25519.X25519(curvePrivate[:], serverHello.CurvePublicKey)
	if err != nil {
		return nil, fmt.Errorf("compute shared secret: %w", err)
	}

	// CalculateKeys' (sessionSalt, serverHelloNonce) parameters are fed
	// swapped here so its internal salt, sha256(serverHelloNonce||sessionSalt),
	// comes out as sha256(clientNonce||serverNonce) - matching
	// HandshakeSessionFactory's own
	// CalculateKeys(..., hello.Nonce(), serverNonce, ...) on the server side.
	recvKey, sendKey, _, err := crypto.CalculateKeys(curvePrivate[:], serverHello.Nonce, clientNonce, serverHello.CurvePublicKey)
	if err != nil {
		return nil, fmt.Errorf("derive session keys: %w", err)
	}

	sessionID, err := handshake.NewDefaultSessionIdDeriver(sharedSecret, serverHello.Nonce).Derive()
	if err != nil {
		return nil, fmt.Errorf("derive session id: %w", err)
	}

	sendCipher, err := chacha20poly1305.New(sendKey)
	if err != nil {
		return nil, fmt.Errorf("build send cipher: %w", err)
	}
	recvCipher, err := chacha20poly1305.New(recvKey)
	if err != nil {
		return nil, fmt.Errorf("build receive cipher: %w", err)
	}

	epochCrypto := chacha20.NewEpochUdpCrypto(sessionID, sendCipher, recvCipher, false)

	remoteAddr := conn.RemoteAddr().(*net.UDPAddr)
	external, ok := netip.AddrFromSlice(remoteAddr.IP)
	if !ok {
		return nil, fmt.Errorf("resolve remote address %s", remoteAddr)
	}

	return &clientSession{
		external:  netip.AddrPortFrom(external.Unmap(), uint16(remoteAddr.Port)),
		transport: conn,
		crypto:    epochCrypto,
		outbound:  connection.NewDefaultOutbound(conn, epochCrypto),
	}, nil
}

// forwardTraffic copies decrypted packets from sess into dev and encrypted
// packets from dev into sess until ctx is canceled or either direction
// fails, mirroring the older UDPRouter.RouteTraffic's two-goroutine shape.
func forwardTraffic(ctx context.Context, dev tundev.Device, sess connection.Session, mtu int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	go func() {
		buf := make([]byte, settings.UDPBufferSize(mtu))
		for {
			if ctx.Err() != nil {
				errCh <- ctx.Err()
				return
			}
			n, err := sess.Transport().Read(buf)
			if err != nil {
				errCh <- fmt.Errorf("read from server: %w", err)
				return
			}
			if n == 0 {
				continue
			}
			decrypted, err := sess.Crypto().Decrypt(append([]byte(nil), buf[:n]...))
			if err != nil {
				continue // untrusted UDP input, drop rather than error out
			}
			if _, err := dev.Write(decrypted); err != nil {
				errCh <- fmt.Errorf("write to tun: %w", err)
				return
			}
		}
	}()

	go func() {
		buf := make([]byte, mtu)
		for {
			if ctx.Err() != nil {
				errCh <- ctx.Err()
				return
			}
			n, err := dev.Read(buf)
			if err != nil {
				errCh <- fmt.Errorf("read from tun: %w", err)
				return
			}
			if n == 0 {
				continue
			}
			if err := sess.Outbound().SendDataIP(buf[:n]); err != nil {
				errCh <- fmt.Errorf("write to server: %w", err)
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// clientSession is the connection.Session the client drives its own
// forwarding loop against. RekeyController returns nil for the same
// reason HandshakeSessionFactory's server-side session has none - see
// multi/server/session_adapter.go.
type clientSession struct {
	external  netip.AddrPort
	transport connection.Transport
	crypto    connection.Crypto
	outbound  connection.Outbound
}

func (s *clientSession) ExternalAddrPort() netip.AddrPort { return s.external }
func (s *clientSession) InternalAddr() netip.Addr         { return netip.Addr{} }
func (s *clientSession) Transport() connection.Transport  { return s.transport }
func (s *clientSession) Crypto() connection.Crypto        { return s.crypto }
func (s *clientSession) Outbound() connection.Outbound    { return s.outbound }
func (s *clientSession) RekeyController() rekey.FSM       { return nil }
