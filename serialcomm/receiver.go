// serialcomm/receiver.go
package serialcomm

import (
	"bufio"
	"context"
	"errors"
	"io"
)

// readFrames is the only reader of the device. It seeds flood mode, then
// reads and classifies one frame at a time until end-of-stream. On
// end-of-stream it calls stop with ErrLinkClosed so the other tasks wind
// down.
func (b *Bridge) readFrames(
	ctx context.Context,
	stop context.CancelCauseFunc,
	outbound chan<- Frame,
	stats chan<- Frame,
	sinkDone <-chan struct{},
) error {
	if b.cfg.Flood {
		if err := b.injectFiller(ctx, outbound); err != nil {
			return b.readerStopped(ctx, "seed flood", err)
		}
	}

	reader := bufio.NewReader(b.device)
	for {
		raw, err := reader.ReadBytes(Delimiter)
		if errors.Is(err, io.EOF) {
			if len(raw) > 0 {
				b.logger.Debug("Discarding unterminated frame at end of stream", "bytes", len(raw))
			}
			b.logger.Debug("Serial port closed")
			stop(ErrLinkClosed)
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Error("Error reading from serial port", "error", err)
			return newLinkError(ClassDeviceIO, "reader", "read", err)
		}

		if err := b.handleFrame(ctx, Frame(raw), outbound, stats, sinkDone); err != nil {
			return err
		}
	}
}

func (b *Bridge) handleFrame(
	ctx context.Context,
	f Frame,
	outbound chan<- Frame,
	stats chan<- Frame,
	sinkDone <-chan struct{},
) error {
	line := f.Line()
	kind := ClassifyInbound(line)
	b.cfg.Metrics.frameReceived(kind)
	if b.logger.Enabled(ctx, LevelTrace) {
		b.logger.Log(ctx, LevelTrace, "Received frame",
			"kind", kind, "frame", printable(line), "crc16", Checksum(f))
	}

	switch kind {
	case KindStatistics:
		if b.cfg.StatisticsPath == "" {
			return nil
		}
		select {
		case <-sinkDone:
			return b.sinkDropped()
		default:
		}
		select {
		case stats <- f:
		case <-sinkDone:
			return b.sinkDropped()
		case <-ctx.Done():
			return b.readerStopped(ctx, "forward statistics", ErrSinkGone)
		}

	case KindFloodSignal:
		if !b.cfg.Flood {
			return nil
		}
		if err := sleep(ctx, b.cfg.PacingDelay); err != nil {
			return b.readerStopped(ctx, "pace flood", ErrDispatcherGone)
		}
		if err := b.injectFiller(ctx, outbound); err != nil {
			return b.readerStopped(ctx, "inject flood", err)
		}

	case KindDelivered:
		payload, ok := DeliveredPayload(line)
		if !ok {
			b.logger.Debug("Delivered frame too short", "frame", printable(line))
			return nil
		}
		b.cfg.Metrics.delivered()
		b.logger.Info("Received message", "message", printable(payload))
		if b.cfg.OnDelivered != nil {
			b.cfg.OnDelivered(payload)
		}
	}
	return nil
}

// readerStopped converts a failed hand-off into the reader's exit value.
// Shutdown ends the reader quietly.
func (b *Bridge) readerStopped(ctx context.Context, op string, err error) error {
	if shuttingDown(ctx) {
		return nil
	}
	b.logger.Error("Receiver dropped", "op", op)
	return newLinkError(ClassChannel, "reader", op, err)
}

func (b *Bridge) sinkDropped() error {
	b.logger.Error("Statistics sink dropped")
	return newLinkError(ClassChannel, "reader", "forward statistics", ErrSinkGone)
}
