package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/posesync/internal/config"
	"github.com/zeusync/posesync/internal/core/observability/log"
	"github.com/zeusync/posesync/internal/relay"
	"github.com/zeusync/posesync/internal/server"
)

var RelaySet = wire.NewSet(
	ProvideLogger,
	ProvideHubConfig,
	relay.NewHub,
	server.FromConfig,
	server.NewServer,
)

func ProvideLogger(cfg config.Config) log.Log {
	return log.New(log.ParseLevel(cfg.LogLevel))
}

func ProvideHubConfig(cfg config.Config) relay.Config {
	return relay.Config{
		MaxPeersPerRoom: cfg.Relay.MaxPeersPerRoom,
		MaxFrameRate:    cfg.Relay.MaxFrameRate,
	}
}
