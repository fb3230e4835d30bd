// serialcomm/sender.go
package serialcomm

import (
	"context"
)

// dispatch is the only writer of the device. It drains outbound until the
// queue is closed; the first failed write ends it.
func (b *Bridge) dispatch(outbound <-chan Frame) error {
	ctx := context.Background()
	for f := range outbound {
		kind := ClassifyOutbound(f.Line())
		if err := writeFrame(b.device, f); err != nil {
			b.logger.Error("Error writing to serial port", "error", err)
			return newLinkError(ClassDeviceIO, "dispatcher", "write", err)
		}
		b.cfg.Metrics.frameSent(kind, len(f))
		if b.logger.Enabled(ctx, LevelTrace) {
			b.logger.Log(ctx, LevelTrace, "Sent frame",
				"kind", kind, "bytes", len(f), "crc16", Checksum(f))
		}
	}
	b.logger.Debug("Outbound queue closed")
	return nil
}
