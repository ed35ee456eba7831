package server

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net/netip"

	"golang.org/x/crypto/chacha20poly1305"

	"tungo/application/network/connection"
	"tungo/infrastructure/cryptography/chacha20"
	"tungo/infrastructure/cryptography/chacha20/handshake"
	"tungo/infrastructure/cryptography/chacha20/rekey"
	"tungo/multi/ippool"
)

// HandshakeSessionFactory implements SessionFactory: it drives a real
// server-side handshake (infrastructure/cryptography/chacha20/handshake)
// over each new client's registration transport, derives per-direction
// AEAD keys via DefaultServerCrypto/DefaultSessionIdDeriver, and wraps the
// result in a chacha20.EpochUdpCrypto-backed connection.Session.
//
// It deliberately assigns the client's internal address itself from an
// ippool.Pool keyed by external address/port, rather than trusting any
// client-claimed address out of ClientHello: the current ClientHello only
// exposes Nonce/CurvePublicKey/MTU (its ip/public-key fields stay private),
// and server-side assignment is consistent with how Server already drives
// virtual-address binding via broker.BindVirtual.
//
// It does not attempt to byte-for-byte match presentation/client.go's
// client-side handshake: that code path (chacha20.NewHandshake,
// handshake.HandshakeImpl) is a separate, older generation whose
// ClientHello wire shape and CalculateKeys ordering predate this package's
// current ClientHello/ServerHello/DefaultServerCrypto shapes, and whose
// HandshakeImpl.ServerSideHandshake itself no longer compiles (see
// DESIGN.md). HandshakeSessionFactory is this engine's own, internally
// consistent handshake built from the same package's still-coherent
// primitives.
type HandshakeSessionFactory struct {
	serverPrivate ed25519.PrivateKey
	crypto        handshake.ServerCrypto
	pool          *ippool.Pool

	// sharedKey obfuscates/authenticates a padded ClientHello (see
	// ServerHandshake.ReceiveClientHello); nil means only plain,
	// ip-version-prefixed hellos are accepted.
	sharedKey []byte
}

// NewHandshakeSessionFactory builds a HandshakeSessionFactory. serverPrivate
// signs each ServerHello; pool assigns virtual addresses to registering
// clients.
func NewHandshakeSessionFactory(serverPrivate ed25519.PrivateKey, pool *ippool.Pool) *HandshakeSessionFactory {
	return &HandshakeSessionFactory{
		serverPrivate: serverPrivate,
		crypto:        handshake.NewDefaultServerCrypto(),
		pool:          pool,
	}
}

func (f *HandshakeSessionFactory) Handshake(_ context.Context, transport connection.Transport, external netip.AddrPort) (connection.Session, error) {
	sh := handshake.NewServerHandshake(transport, f.sharedKey)

	hello, err := sh.ReceiveClientHello()
	if err != nil {
		return nil, fmt.Errorf("receive client hello: %w", err)
	}

	curvePublic, curvePrivate, err := f.crypto.NewX25519SessionKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate session key pair: %w", err)
	}
	serverNonce := f.crypto.GenerateNonce()

	if err := sh.SendServerHello(f.crypto, f.serverPrivate, serverNonce, curvePublic, hello.Nonce()); err != nil {
		return nil, fmt.Errorf("send server hello: %w", err)
	}

	if err := sh.VerifyClientSignature(f.crypto, hello, serverNonce); err != nil {
		return nil, fmt.Errorf("verify client signature: %w", err)
	}

	sharedSecret, err := f.crypto.GenerateSharedSecret(curvePrivate[:], hello.CurvePublicKey())
	if err != nil {
		return nil, fmt.Errorf("generate shared secret: %w", err)
	}

	sendKey, recvKey, err := f.crypto.CalculateKeys(curvePrivate[:], nil, hello.Nonce(), serverNonce, hello.CurvePublicKey(), sharedSecret)
	if err != nil {
		return nil, fmt.Errorf("derive session keys: %w", err)
	}

	sessionID, err := handshake.NewDefaultSessionIdDeriver(sharedSecret, serverNonce).Derive()
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

	internal, err := f.pool.Assign(external.String())
	if err != nil {
		return nil, fmt.Errorf("assign virtual address: %w", err)
	}

	crypto := chacha20.NewEpochUdpCrypto(sessionID, sendCipher, recvCipher, true)
	return &session{
		external:  external,
		internal:  internal,
		transport: transport,
		crypto:    crypto,
		outbound:  connection.NewDefaultOutbound(transport, crypto),
	}, nil
}

// session is the connection.Session produced by HandshakeSessionFactory.
type session struct {
	external  netip.AddrPort
	internal  netip.Addr
	transport connection.Transport
	crypto    connection.Crypto
	outbound  connection.Outbound
}

func (s *session) ExternalAddrPort() netip.AddrPort { return s.external }
func (s *session) InternalAddr() netip.Addr         { return s.internal }
func (s *session) Transport() connection.Transport  { return s.transport }
func (s *session) Crypto() connection.Crypto        { return s.crypto }
func (s *session) Outbound() connection.Outbound    { return s.outbound }

// RekeyController returns nil: EpochUdpCrypto's epoch ring is its own
// rotation mechanism, not driven by rekey.FSM (see rekey.FSM's doc comment
// on protocols that never rekey via that controller).
func (s *session) RekeyController() rekey.FSM { return nil }
