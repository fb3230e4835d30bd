// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything serialbridge needs before the link comes up.
type Config struct {
	Device      string        `yaml:"device"`
	BaudRate    int           `yaml:"baud_rate"`
	ReadTimeout time.Duration `yaml:"read_timeout"`

	Us                   string `yaml:"us"`
	Them                 string `yaml:"them"`
	Retransmissions      uint64 `yaml:"retransmissions"`
	FECThreshold         uint64 `yaml:"fec_threshold"`
	ChannelBusyThreshold uint64 `yaml:"channel_busy_threshold"`

	Flood           bool   `yaml:"flood"`
	FloodPacketSize int    `yaml:"flood_packet_size"`
	StatisticsPath  string `yaml:"statistics_path"`

	BootDelay   time.Duration `yaml:"boot_delay"`
	SettleDelay time.Duration `yaml:"settle_delay"`
	PacingDelay time.Duration `yaml:"pacing_delay"`

	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the settings used when neither the file nor a flag sets a
// value.
func Default() *Config {
	return &Config{
		BaudRate:             115200,
		ReadTimeout:          time.Millisecond,
		Retransmissions:      5,
		FECThreshold:         30,
		ChannelBusyThreshold: 20,
		FloodPacketSize:      200,
		BootDelay:            5 * time.Second,
		SettleDelay:          time.Second,
		PacingDelay:          10 * time.Millisecond,
		LogLevel:             "trace",
		LogFormat:            "text",
	}
}

// Load reads the configuration from the given YAML file path.
// If path is empty or the file does not exist, it returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

var ErrInvalidConfig = errors.New("invalid configuration")

// frame syntax that cannot appear inside an address
const reservedAddressBytes = "[]\n\x00"

// Validate checks the settings the bridge relies on.
func (c *Config) Validate() error {
	var problems []string
	if c.Device == "" {
		problems = append(problems, "device is required")
	}
	if c.BaudRate <= 0 {
		problems = append(problems, "baud_rate must be positive")
	}
	for _, a := range []struct{ name, addr string }{{"us", c.Us}, {"them", c.Them}} {
		if a.addr == "" {
			problems = append(problems, a.name+" is required")
		} else if strings.ContainsAny(a.addr, reservedAddressBytes) {
			problems = append(problems, a.name+" contains frame delimiters")
		}
	}
	if c.Flood && c.FloodPacketSize <= 0 {
		problems = append(problems, "flood_packet_size must be positive when flood is enabled")
	}
	if c.BootDelay < 0 || c.SettleDelay < 0 || c.PacingDelay < 0 {
		problems = append(problems, "delays must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
