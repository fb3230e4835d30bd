// serialcomm/stats.go
package serialcomm

import (
	"os"
)

// sinkStatistics appends raw statistics frames to the configured file until
// the statistics queue closes. With no path configured it returns at once
// and no file is created.
func (b *Bridge) sinkStatistics(stats <-chan Frame) (err error) {
	path := b.cfg.StatisticsPath
	if path == "" {
		return nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		b.logger.Error("Error opening statistics file", "path", path, "error", err)
		return newLinkError(ClassSink, "statistics", "open", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = newLinkError(ClassSink, "statistics", "close", cerr)
		}
	}()

	for f := range stats {
		if err := writeFrame(file, f); err != nil {
			b.logger.Error("Error writing to statistics file", "error", err)
			return newLinkError(ClassSink, "statistics", "write", err)
		}
		b.cfg.Metrics.statisticsRecorded()
	}
	return nil
}
