package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Device = "/dev/ttyUSB0"
	cfg.Us = "AA"
	cfg.Them = "BB"
	return cfg
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDefault_ReadsPoll(t *testing.T) {
	cfg := Default()
	assert.Equal(t, time.Millisecond, cfg.ReadTimeout)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Positive(t, cfg.ReadTimeout)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
device: /dev/ttyACM0
us: AA
them: BB
flood: true
flood_packet_size: 64
settle_delay: 250ms
statistics_path: /tmp/stats.log
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM0", cfg.Device)
	assert.Equal(t, "AA", cfg.Us)
	assert.True(t, cfg.Flood)
	assert.Equal(t, 64, cfg.FloodPacketSize)
	assert.Equal(t, 250*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, "/tmp/stats.log", cfg.StatisticsPath)
	// untouched keys keep their defaults
	assert.Equal(t, 115200, cfg.BaudRate)
	assert.Equal(t, uint64(30), cfg.FECThreshold)
	assert.Equal(t, 5*time.Second, cfg.BootDelay)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("flood: [not a bool"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no device", func(c *Config) { c.Device = "" }, "device is required"},
		{"no peer", func(c *Config) { c.Them = "" }, "them is required"},
		{"bracket in address", func(c *Config) { c.Us = "A]" }, "us contains frame delimiters"},
		{"nul in address", func(c *Config) { c.Them = "B\x00" }, "them contains frame delimiters"},
		{"zero baud", func(c *Config) { c.BaudRate = 0 }, "baud_rate must be positive"},
		{"flood without size", func(c *Config) { c.Flood = true; c.FloodPacketSize = 0 }, "flood_packet_size"},
		{"size ignored without flood", func(c *Config) { c.FloodPacketSize = 0 }, ""},
		{"negative delay", func(c *Config) { c.PacingDelay = -time.Second }, "delays must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
