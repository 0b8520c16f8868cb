// Package config loads relay and peer settings from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/posesync/pkg/encoding"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	LogLevel string         `yaml:"log_level"`
	Relay    RelayConfig    `yaml:"relay"`
	Sync     SyncConfig     `yaml:"sync"`
	Assets   AssetsConfig   `yaml:"assets"`
	Skeleton SkeletonConfig `yaml:"skeleton"`
}

type RelayConfig struct {
	WebSocketAddr   string        `yaml:"websocket_addr"`
	QUICAddr        string        `yaml:"quic_addr"`
	MaxPeersPerRoom int           `yaml:"max_peers_per_room"`
	MaxFrameRate    int           `yaml:"max_frame_rate"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	// CertFile and KeyFile enable TLS for QUIC; empty generates a
	// self-signed development certificate.
	CertFile string `yaml:"cert_file,omitempty"`
	KeyFile  string `yaml:"key_file,omitempty"`
}

type SyncConfig struct {
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	FrameInterval     time.Duration `yaml:"frame_interval"`
	PositionThreshold float64       `yaml:"position_threshold"`
	RotationThreshold float64       `yaml:"rotation_threshold"`
	AngleUnit         string        `yaml:"angle_unit"`
}

type AssetsConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type SkeletonConfig struct {
	RulesFile string `yaml:"rules_file,omitempty"`
}

func Default() Config {
	return Config{
		LogLevel: "info",
		Relay: RelayConfig{
			WebSocketAddr:   ":8080",
			QUICAddr:        ":8443",
			MaxPeersPerRoom: 32,
			MaxFrameRate:    240,
			WriteTimeout:    5 * time.Second,
		},
		Sync: SyncConfig{
			BroadcastInterval: 20 * time.Millisecond,
			HeartbeatInterval: time.Second,
			FrameInterval:     16 * time.Millisecond,
			PositionThreshold: 0.01,
			RotationThreshold: 0.01,
			AngleUnit:         "radians",
		},
		Assets: AssetsConfig{
			Timeout: 10 * time.Second,
		},
	}
}

// Load reads path on top of Default. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads YAML from r on top of Default and validates the result.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.Relay.WebSocketAddr == "" && c.Relay.QUICAddr == "":
		return fmt.Errorf("%w: relay needs websocket_addr or quic_addr", ErrInvalidConfig)
	case c.Relay.MaxPeersPerRoom <= 0:
		return fmt.Errorf("%w: relay.max_peers_per_room must be positive", ErrInvalidConfig)
	case c.Relay.MaxFrameRate < 0:
		return fmt.Errorf("%w: relay.max_frame_rate must not be negative", ErrInvalidConfig)
	case (c.Relay.CertFile == "") != (c.Relay.KeyFile == ""):
		return fmt.Errorf("%w: relay.cert_file and relay.key_file go together", ErrInvalidConfig)
	case c.Sync.BroadcastInterval <= 0 || c.Sync.HeartbeatInterval <= 0 || c.Sync.FrameInterval <= 0:
		return fmt.Errorf("%w: sync intervals must be positive", ErrInvalidConfig)
	case c.Sync.PositionThreshold < 0 || c.Sync.RotationThreshold < 0:
		return fmt.Errorf("%w: sync thresholds must not be negative", ErrInvalidConfig)
	}
	if _, err := encoding.ParseAngleUnit(c.Sync.AngleUnit); err != nil {
		return fmt.Errorf("%w: sync.angle_unit %q", ErrInvalidConfig, c.Sync.AngleUnit)
	}
	return nil
}

// Unit is the parsed sync.angle_unit.
func (s SyncConfig) Unit() encoding.AngleUnit {
	u, _ := encoding.ParseAngleUnit(s.AngleUnit)
	return u
}
