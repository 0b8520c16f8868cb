//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/posesync/internal/config"
	"github.com/zeusync/posesync/internal/server"
)

// InitializeRelay builds the relay server graph from cfg.
func InitializeRelay(cfg config.Config) (*server.Server, error) {
	wire.Build(RelaySet)
	return nil, nil
}
