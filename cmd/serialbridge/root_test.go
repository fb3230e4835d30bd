package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clint456/serialbridge/config"
)

func parseFlags(t *testing.T, args ...string) (*rootFlags, *cobra.Command) {
	t.Helper()
	fl := &rootFlags{opts: config.Default()}
	cmd := &cobra.Command{Use: "serialbridge"}
	fl.register(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return fl, cmd
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device: /dev/ttyS0\nus: AA\nthem: BB\nflood_packet_size: 50\n"), 0o600))

	fl, cmd := parseFlags(t, "--config", path, "--them", "CC", "--flood", "--settle-delay", "10ms")
	cfg, err := fl.load(cmd)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyS0", cfg.Device)
	assert.Equal(t, "AA", cfg.Us)
	assert.Equal(t, "CC", cfg.Them)
	assert.True(t, cfg.Flood)
	assert.Equal(t, 50, cfg.FloodPacketSize)
	assert.Equal(t, 10*time.Millisecond, cfg.SettleDelay)
}

func TestLoadConfig_Invalid(t *testing.T) {
	fl, cmd := parseFlags(t, "--us", "AA")
	_, err := fl.load(cmd)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestSetupLogger_TraceLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(&buf, "trace", "text")

	logger.Log(t.Context(), slog.Level(-8), "Received frame", "kind", "generic")

	assert.Contains(t, buf.String(), "level=TRACE")
	assert.Contains(t, buf.String(), "kind=generic")
}

func TestSetupLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.Level(-8), parseLevel("TRACE"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
