package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/posesync/pkg/encoding"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20*time.Millisecond, cfg.Sync.BroadcastInterval)
	assert.Equal(t, 240, cfg.Relay.MaxFrameRate)
	assert.Equal(t, encoding.Radians, cfg.Sync.Unit())
}

func TestDecodeOverridesDefaults(t *testing.T) {
	doc := `
log_level: debug
relay:
  quic_addr: ""
  max_peers_per_room: 4
sync:
  broadcast_interval: 50ms
  angle_unit: degrees
assets:
  base_url: https://cdn.example.com/avatars
  timeout: 3s
`
	cfg, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.Relay.WebSocketAddr)
	assert.Empty(t, cfg.Relay.QUICAddr)
	assert.Equal(t, 4, cfg.Relay.MaxPeersPerRoom)
	assert.Equal(t, 50*time.Millisecond, cfg.Sync.BroadcastInterval)
	assert.Equal(t, time.Second, cfg.Sync.HeartbeatInterval)
	assert.Equal(t, encoding.Degrees, cfg.Sync.Unit())
	assert.Equal(t, 3*time.Second, cfg.Assets.Timeout)
}

func TestDecodeRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"no front-end": "relay: {websocket_addr: \"\", quic_addr: \"\"}",
		"room size":    "relay: {max_peers_per_room: 0}",
		"frame rate":   "relay: {max_frame_rate: -1}",
		"half tls":     "relay: {cert_file: a.pem}",
		"interval":     "sync: {heartbeat_interval: 0s}",
		"threshold":    "sync: {position_threshold: -1}",
		"angle unit":   "sync: {angle_unit: turns}",
		"malformed":    "relay: [",
		"bad duration": "sync: {frame_interval: soon}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "posesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("skeleton:\n  rules_file: rules.yaml\n"), 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "rules.yaml", cfg.Skeleton.RulesFile)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
