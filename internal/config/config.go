package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/auroralive/player-telemetry/internal/layer"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Player    PlayerConfig    `yaml:"player"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Notify    NotifyConfig    `yaml:"notify"`
	Log       LogConfig       `yaml:"log"`
	Mock      MockConfig      `yaml:"mock"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type PlayerConfig struct {
	PlaybackID    string        `yaml:"playback_id"`
	Token         string        `yaml:"token"`
	Autoplay      bool          `yaml:"autoplay"`
	StatsInterval time.Duration `yaml:"stats_interval"`
	// StallAfter is the number of consecutive polls without new stats after
	// which the stream is reported stalled.
	StallAfter int `yaml:"stall_after"`
}

type BroadcastConfig struct {
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	ClientBuffer     int           `yaml:"client_buffer"`
	// MaxClients caps concurrent dashboard connections. 0 means unlimited.
	MaxClients int `yaml:"max_clients"`
}

type NotifyConfig struct {
	LayerErrorDuration time.Duration `yaml:"layer_error_duration"`
	Position           string        `yaml:"position"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MockLayer struct {
	RID         string `yaml:"rid"`
	Label       string `yaml:"label"`
	Width       uint32 `yaml:"width"`
	Height      uint32 `yaml:"height"`
	BitrateKbps uint64 `yaml:"bitrate_kbps"`
}

type MockConfig struct {
	Layers       []MockLayer   `yaml:"layers"`
	InitialLayer int           `yaml:"initial_layer"`
	ConnectDelay time.Duration `yaml:"connect_delay"`
	RenderDelay  time.Duration `yaml:"render_delay"`
	SwitchDelay  time.Duration `yaml:"switch_delay"`
	FailRIDs     []string      `yaml:"fail_rids"`
	Seed         int64         `yaml:"seed"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
		Player: PlayerConfig{
			StatsInterval: time.Second,
			StallAfter:    5,
		},
		Broadcast: BroadcastConfig{
			SnapshotInterval: 5 * time.Second,
			ClientBuffer:     64,
		},
		Notify: NotifyConfig{
			LayerErrorDuration: 3 * time.Second,
			Position:           "top",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Mock: MockConfig{
			Layers:       defaultMockLayers(),
			ConnectDelay: 300 * time.Millisecond,
			RenderDelay:  200 * time.Millisecond,
			SwitchDelay:  500 * time.Millisecond,
			Seed:         1,
		},
	}
}

var defaultBitrates = map[string]uint64{"l": 300, "m": 1000, "h": 2500}

// defaultMockLayers is the standard ladder at typical simulcast bitrates.
func defaultMockLayers() []MockLayer {
	return lo.Map(layer.Standard(), func(d layer.Descriptor, _ int) MockLayer {
		return MockLayer{RID: d.RID, Label: d.Label, Width: d.Width, Height: d.Height, BitrateKbps: defaultBitrates[d.RID]}
	})
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Player.StatsInterval <= 0 {
		return errors.New("player.stats_interval must be positive")
	}
	if c.Broadcast.SnapshotInterval <= 0 {
		return errors.New("broadcast.snapshot_interval must be positive")
	}
	if c.Broadcast.ClientBuffer <= 0 {
		return errors.New("broadcast.client_buffer must be positive")
	}
	if c.Broadcast.MaxClients < 0 {
		return errors.New("broadcast.max_clients must not be negative")
	}
	if c.Notify.LayerErrorDuration < 0 {
		return errors.New("notify.layer_error_duration must not be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return errors.Errorf("log.format %q must be text or json", c.Log.Format)
	}
	if len(c.Mock.Layers) == 0 {
		return errors.New("mock.layers must not be empty")
	}
	for i, l := range c.Mock.Layers {
		if l.RID == "" {
			return errors.Errorf("mock.layers[%d].rid is empty", i)
		}
	}
	return nil
}
