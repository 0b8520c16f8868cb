// Command peer joins a relay room as a headless avatar driven by a scripted
// rig, and loads, maps and solves every other participant's avatar.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zeusync/posesync/internal/config"
	"github.com/zeusync/posesync/internal/core/observability/log"
	"github.com/zeusync/posesync/internal/peer"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		opts       peer.Options
	)

	cmd := &cobra.Command{
		Use:          "peer",
		Short:        "Headless pose-sync participant",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if err = cfg.Validate(); err != nil {
				return err
			}
			return run(cfg, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	flags.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.RelayURL, "relay", "ws://localhost:8080/ws", "Relay address (ws:// URL or QUIC host:port)")
	flags.StringVar(&opts.Transport, "transport", peer.TransportWebSocket, "Transport (websocket, quic)")
	flags.StringVar(&opts.Room, "room", "default", "Room to join")
	flags.StringVar(&opts.AvatarID, "avatar", "", "Avatar asset id announced for this peer")
	flags.BoolVar(&opts.VR, "vr", false, "Announce as a VR participant with tracked hands")
	flags.BoolVar(&opts.Insecure, "insecure", false, "Accept self-signed QUIC certificates")
	return cmd
}

func run(cfg config.Config, opts peer.Options) error {
	logger := log.New(log.ParseLevel(cfg.LogLevel))
	defer func() { _ = logger.Sync() }()

	p, err := peer.New(cfg, opts, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = p.Run(ctx)
	stats := p.Stats()
	logger.Info("Peer stopped",
		log.Int64("peers_joined", stats.PeersJoined),
		log.Int64("avatars_loaded", stats.AvatarsLoaded),
		log.Int64("avatars_failed", stats.AvatarsFailed),
	)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
