// main.go
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clint456/serialbridge/modemsim"
	"github.com/clint456/serialbridge/serialcomm"
)

var (
	device     string
	baudRate   int
	loopback   bool
	statsEvery int
	limit      int
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "modemsim",
	Short: "Answer serialbridge frames on a serial port like a peer modem",
	Long: `modemsim listens on a serial port (typically one end of a null-modem
pair) and answers every message frame with a processed signal, optionally
echoing it back as a delivered message and emitting statistics records.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		port, err := serialcomm.OpenPort(&serialcomm.SerialConfig{
			PortName:    device,
			BaudRate:    baudRate,
			ReadTimeout: 500 * time.Millisecond,
		})
		if err != nil {
			return fmt.Errorf("open %s: %w", device, err)
		}
		defer port.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			_ = port.Close()
		}()

		modem := modemsim.New(modemsim.Config{
			Loopback:   loopback,
			StatsEvery: statsEvery,
			Limit:      limit,
			Logger:     logger,
		})
		logger.Info("Listening", "device", device)
		err = modem.Serve(ctx, port)
		count, bytes := modem.Messages()
		logger.Info("Stopped", "address", modem.Address(), "messages", count, "bytes", bytes)
		return err
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&device, "device", "d", "", "serial device path")
	f.IntVarP(&baudRate, "baudrate", "b", 115200, "serial baud rate")
	f.BoolVarP(&loopback, "loopback", "l", false, "echo messages back as delivered frames")
	f.IntVarP(&statsEvery, "stats-every", "s", 0, "emit statistics records for every Nth message")
	f.IntVar(&limit, "limit", 0, "stop answering after N messages")
	f.BoolVarP(&verbose, "verbose", "v", false, "log every frame")
	_ = rootCmd.MarkFlagRequired("device")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
