package injector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/posesync/internal/config"
)

func TestInitializeRelay(t *testing.T) {
	cfg := config.Default()
	cfg.Relay.QUICAddr = ""
	cfg.Relay.MaxPeersPerRoom = 3

	srv, err := InitializeRelay(cfg)
	require.NoError(t, err)
	require.NotNil(t, srv)
	assert.Zero(t, srv.Hub().PeerCount())
	assert.False(t, srv.Running())
}
