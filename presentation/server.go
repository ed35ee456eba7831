package presentation

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"log"
	"net"
	"net/netip"

	"tungo/infrastructure/logging"
	"tungo/infrastructure/settings"
	"tungo/multi/broker"
	"tungo/multi/ippool"
	"tungo/multi/server"
	"tungo/multi/tundev"
	"tungo/presentation/interactive_commands"

	"golang.zx2c4.com/wireguard/tun"
)

// serverSettings is the minimal configuration StartServer needs. There is
// no wire-compatible reader for it left in the tree (infrastructure/PAL's
// configuration readers target an older, incompatible Settings shape -
// see DESIGN.md), so it is built from flags/defaults here rather than
// routed through that dead generation.
func defaultServerSettings() settings.Settings {
	subnet := netip.MustParsePrefix("10.0.1.0/24")
	return settings.Settings{
		InterfaceName:   "tun-srv0",
		InterfaceSubnet: subnet,
		InterfaceIP:     subnet.Addr().Next(),
		Host:            settings.Host{},
		Port:            9090,
		MTU:             settings.DefaultEthernetMTU,
		Protocol:        settings.UDP,
	}
}

// StartServer brings up the multi-client routing engine (spec.md §5): a
// UDP listener, a TUN device, and multi/server.Server wired together with
// HandshakeSessionFactory performing the per-client handshake.
func StartServer(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go interactive_commands.ListenForCommand(cancel, "server")

	cfg := defaultServerSettings()
	logger := logging.NewLogLogger()

	serverPublic, serverPrivate, keyErr := ed25519.GenerateKey(rand.Reader)
	if keyErr != nil {
		return fmt.Errorf("generate server identity key: %w", keyErr)
	}
	logger.Printf("server: identity public key: %x", serverPublic)

	pool, poolErr := ippool.New(ippool.Config{
		Subnet:   cfg.InterfaceSubnet,
		Topology: ippool.TopologyTUN,
	})
	if poolErr != nil {
		return fmt.Errorf("build address pool: %w", poolErr)
	}

	tunFile, tunErr := tun.CreateTUN(cfg.InterfaceName, cfg.MTU)
	if tunErr != nil {
		return fmt.Errorf("create TUN device %s: %w", cfg.InterfaceName, tunErr)
	}
	dev, devErr := tundev.NewWireguardDevice(tunFile, tundev.KindTUN, cfg.MTU)
	if devErr != nil {
		_ = tunFile.Close()
		return fmt.Errorf("wrap TUN device: %w", devErr)
	}
	defer func() { _ = dev.Close() }()

	listenAddr := net.UDPAddrFromAddrPort(netip.AddrPortFrom(netip.IPv4Unspecified(), uint16(cfg.Port)))
	conn, dialErr := net.ListenUDP("udp", listenAddr)
	if dialErr != nil {
		return fmt.Errorf("listen UDP %s: %w", listenAddr, dialErr)
	}

	srv := server.New(
		server.Config{
			Broker: broker.Config{
				BucketsPerPass:       64,
				EnableClientToClient: true,
			},
			RestartSeconds: 120,
		},
		conn,
		dev,
		false,
		cfg.InterfaceSubnet,
		server.NewHandshakeSessionFactory(serverPrivate, pool),
		logger,
	)

	log.Printf("server: listening on %s, tun %s (%s)", listenAddr, cfg.InterfaceName, cfg.InterfaceSubnet)
	return srv.Run(ctx)
}
