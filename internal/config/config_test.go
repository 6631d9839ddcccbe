package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"
  auth_token: "s3cret"
  allowed_origins:
    - "http://localhost:5173"
player:
  playback_id: "YTg0NjQ1"
  autoplay: true
  stats_interval: 2s
notify:
  layer_error_duration: 1500ms
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.AuthToken != "s3cret" {
		t.Errorf("Server.AuthToken = %q, want %q", cfg.Server.AuthToken, "s3cret")
	}
	if len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("AllowedOrigins = %v, want one entry", cfg.Server.AllowedOrigins)
	}
	if cfg.Player.PlaybackID != "YTg0NjQ1" || !cfg.Player.Autoplay {
		t.Errorf("Player = %+v", cfg.Player)
	}
	if cfg.Player.StatsInterval != 2*time.Second {
		t.Errorf("StatsInterval = %v, want 2s", cfg.Player.StatsInterval)
	}
	if cfg.Notify.LayerErrorDuration != 1500*time.Millisecond {
		t.Errorf("LayerErrorDuration = %v, want 1.5s", cfg.Notify.LayerErrorDuration)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9191\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	def := Default()
	if cfg.Player.StatsInterval != def.Player.StatsInterval {
		t.Errorf("StatsInterval = %v, want default %v", cfg.Player.StatsInterval, def.Player.StatsInterval)
	}
	if cfg.Broadcast.ClientBuffer != def.Broadcast.ClientBuffer {
		t.Errorf("ClientBuffer = %d, want default %d", cfg.Broadcast.ClientBuffer, def.Broadcast.ClientBuffer)
	}
	if len(cfg.Mock.Layers) != 3 {
		t.Errorf("Mock.Layers = %d entries, want 3", len(cfg.Mock.Layers))
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() of missing file error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() accepted malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"zero stats interval", func(c *Config) { c.Player.StatsInterval = 0 }, "stats_interval"},
		{"zero snapshot interval", func(c *Config) { c.Broadcast.SnapshotInterval = 0 }, "snapshot_interval"},
		{"zero client buffer", func(c *Config) { c.Broadcast.ClientBuffer = 0 }, "client_buffer"},
		{"negative max clients", func(c *Config) { c.Broadcast.MaxClients = -1 }, "max_clients"},
		{"negative notify duration", func(c *Config) { c.Notify.LayerErrorDuration = -time.Second }, "layer_error_duration"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"no mock layers", func(c *Config) { c.Mock.Layers = nil }, "mock.layers"},
		{"empty rid", func(c *Config) { c.Mock.Layers[1].RID = "" }, "mock.layers[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultMockLayers(t *testing.T) {
	want := []MockLayer{
		{RID: "l", Label: "Low", Width: 320, Height: 180, BitrateKbps: 300},
		{RID: "m", Label: "Medium", Width: 640, Height: 360, BitrateKbps: 1000},
		{RID: "h", Label: "High", Width: 1280, Height: 720, BitrateKbps: 2500},
	}
	got := Default().Mock.Layers
	if len(got) != len(want) {
		t.Fatalf("Default().Mock.Layers = %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Default().Mock.Layers[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}
