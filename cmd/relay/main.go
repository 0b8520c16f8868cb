// Command relay runs the room relay that pose-sync peers connect to.
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
	"github.com/zeusync/posesync/internal/injector"
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
		wsAddr     string
		quicAddr   string
	)

	cmd := &cobra.Command{
		Use:          "relay",
		Short:        "Room relay for avatar pose sync",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("ws-addr") {
				cfg.Relay.WebSocketAddr = wsAddr
			}
			if flags.Changed("quic-addr") {
				cfg.Relay.QUICAddr = quicAddr
			}
			if err = cfg.Validate(); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&wsAddr, "ws-addr", ":8080", "WebSocket listen address, empty to disable")
	cmd.Flags().StringVar(&quicAddr, "quic-addr", ":8443", "QUIC listen address, empty to disable")
	return cmd
}

func run(cfg config.Config) error {
	srv, err := injector.InitializeRelay(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
