package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/clint456/serialbridge/config"
	"github.com/clint456/serialbridge/serialcomm"
)

// rootFlags holds the values parsed from the command line. Only flags the
// user actually set override the config file.
type rootFlags struct {
	cfgFile string
	opts    *config.Config
}

// newRootCmd builds the base command for serialbridge.
func newRootCmd() *cobra.Command {
	flags := &rootFlags{opts: config.Default()}
	cmd := &cobra.Command{
		Use:   "serialbridge",
		Short: "Relay stdin to a radio modem over a serial line and load-test the link",
		Long: `serialbridge configures a radio modem on a serial port, sends every line
typed on stdin to the peer address as a message, and logs the frames the
modem sends back. With --flood it keeps the link saturated with filler
messages, re-sending whenever the modem reports the previous one processed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			return run(cmd, cfg, os.Stdin, os.Stderr)
		},
	}
	flags.register(cmd)
	return cmd
}

// load reads the config file and lays explicitly set flags over it.
func (fl *rootFlags) load(cmd *cobra.Command) (*config.Config, error) {
	opts := fl.opts
	cfg, err := config.Load(fl.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	set := cmd.Flags().Changed
	if set("device") {
		cfg.Device = opts.Device
	}
	if set("baudrate") {
		cfg.BaudRate = opts.BaudRate
	}
	if set("timeout") {
		cfg.ReadTimeout = opts.ReadTimeout
	}
	if set("us") {
		cfg.Us = opts.Us
	}
	if set("them") {
		cfg.Them = opts.Them
	}
	if set("retransmissions") {
		cfg.Retransmissions = opts.Retransmissions
	}
	if set("fec-threshold") {
		cfg.FECThreshold = opts.FECThreshold
	}
	if set("channel-busy-threshold") {
		cfg.ChannelBusyThreshold = opts.ChannelBusyThreshold
	}
	if set("flood") {
		cfg.Flood = opts.Flood
	}
	if set("flood-packet-size") {
		cfg.FloodPacketSize = opts.FloodPacketSize
	}
	if set("statistics-path") {
		cfg.StatisticsPath = opts.StatisticsPath
	}
	if set("boot-delay") {
		cfg.BootDelay = opts.BootDelay
	}
	if set("settle-delay") {
		cfg.SettleDelay = opts.SettleDelay
	}
	if set("pacing-delay") {
		cfg.PacingDelay = opts.PacingDelay
	}
	if set("log-level") {
		cfg.LogLevel = opts.LogLevel
	}
	if set("log-format") {
		cfg.LogFormat = opts.LogFormat
	}
	if set("metrics-addr") {
		cfg.MetricsAddr = opts.MetricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cmd *cobra.Command, cfg *config.Config, stdin io.Reader, logOut io.Writer) error {
	logger := setupLogger(logOut, cfg.LogLevel, cfg.LogFormat)
	logger.Debug("Starting", "config", fmt.Sprintf("%+v", *cfg))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	metrics := serialcomm.NewMetrics(reg)
	if cfg.MetricsAddr != "" {
		serveMetrics(ctx, cfg.MetricsAddr, reg, logger)
	}

	port, err := serialcomm.OpenPort(&serialcomm.SerialConfig{
		PortName:    cfg.Device,
		BaudRate:    cfg.BaudRate,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.Device, err)
	}
	defer port.Close()

	bridge := serialcomm.NewBridge(serialcomm.BridgeConfig{
		DeviceName:           cfg.Device,
		Us:                   cfg.Us,
		Them:                 cfg.Them,
		Retransmissions:      cfg.Retransmissions,
		FECThreshold:         cfg.FECThreshold,
		ChannelBusyThreshold: cfg.ChannelBusyThreshold,
		Flood:                cfg.Flood,
		FloodPacketSize:      cfg.FloodPacketSize,
		StatisticsPath:       cfg.StatisticsPath,
		BootDelay:            cfg.BootDelay,
		SettleDelay:          cfg.SettleDelay,
		PacingDelay:          cfg.PacingDelay,
		Logger:               logger,
		Metrics:              metrics,
	}, port, stdin)

	return bridge.Run(ctx)
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (fl *rootFlags) register(cmd *cobra.Command) {
	opts := fl.opts
	f := cmd.Flags()
	f.StringVar(&fl.cfgFile, "config", "", "YAML config file; flags override its values")
	f.StringVarP(&opts.Device, "device", "d", opts.Device, "serial device path")
	f.IntVarP(&opts.BaudRate, "baudrate", "b", opts.BaudRate, "serial baud rate")
	f.DurationVarP(&opts.ReadTimeout, "timeout", "o", opts.ReadTimeout, "serial read timeout; 0 blocks and can stall shutdown")
	f.StringVarP(&opts.Us, "us", "u", opts.Us, "our protocol address")
	f.StringVarP(&opts.Them, "them", "t", opts.Them, "peer protocol address")
	f.Uint64VarP(&opts.Retransmissions, "retransmissions", "r", opts.Retransmissions, "retransmission count")
	f.Uint64Var(&opts.FECThreshold, "fec-threshold", opts.FECThreshold, "forward error correction threshold")
	f.Uint64VarP(&opts.ChannelBusyThreshold, "channel-busy-threshold", "c", opts.ChannelBusyThreshold, "channel busy threshold")
	f.BoolVarP(&opts.Flood, "flood", "f", opts.Flood, "saturate the link with filler messages")
	f.IntVarP(&opts.FloodPacketSize, "flood-packet-size", "p", opts.FloodPacketSize, "filler payload size in bytes")
	f.StringVarP(&opts.StatisticsPath, "statistics-path", "s", opts.StatisticsPath, "append statistics records to this file")
	f.DurationVar(&opts.BootDelay, "boot-delay", opts.BootDelay, "wait after opening the device")
	f.DurationVar(&opts.SettleDelay, "settle-delay", opts.SettleDelay, "wait after each setup command")
	f.DurationVar(&opts.PacingDelay, "pacing-delay", opts.PacingDelay, "wait before each flood re-injection")
	f.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "log level: trace, debug, info, warn, error")
	f.StringVar(&opts.LogFormat, "log-format", opts.LogFormat, "log format: text, json")
	f.StringVar(&opts.MetricsAddr, "metrics-addr", opts.MetricsAddr, "serve Prometheus metrics on this address")
}
