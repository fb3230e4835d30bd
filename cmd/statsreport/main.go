// main.go
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/clint456/serialbridge/serialcomm"
)

// captureWindow is how long a typical measurement run records for.
const captureWindow = time.Minute

func newRootCmd() *cobra.Command {
	var window time.Duration
	cmd := &cobra.Command{
		Use:   "statsreport FILE...",
		Short: "Summarize throughput and delay from serialbridge statistics files",
		Long: `statsreport reads statistics files written by serialbridge and prints,
for each file, the throughput of received data frames over the capture
window and the mean and standard deviation of the per-sequence delay.
Lines that are not modem statistics records are skipped.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if window <= 0 {
				return fmt.Errorf("window must be positive, got %s", window)
			}
			for _, path := range args {
				if err := report(cmd.OutOrStdout(), path, window); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().DurationVarP(&window, "window", "w", captureWindow, "capture duration the throughput is averaged over")
	return cmd
}

func report(w io.Writer, path string, window time.Duration) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	records, err := serialcomm.ParseStatistics(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	s := serialcomm.Summarize(records, window)
	fmt.Fprintf(w, "%s: %d records\n", path, s.Records)
	fmt.Fprintf(w, "  throughput: %.2f B/s (%d bytes in %s)\n", s.Throughput, s.ReceivedBytes, s.Window)
	fmt.Fprintf(w, "  delay: mean %.3f std %.3f (%d sequences)\n", s.DelayMean, s.DelayStdDev, s.DelaySamples)
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
