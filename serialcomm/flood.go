// serialcomm/flood.go
package serialcomm

import (
	"bytes"
	"context"
)

// FloodFiller is the byte repeated in flood payloads.
const FloodFiller = 'A'

// FloodFrame builds the filler message used to saturate the link: size
// filler bytes addressed to destination. A negative size gives an empty
// payload.
func FloodFrame(size int, destination string) Frame {
	size = max(size, 0)
	return MessageFrame(bytes.Repeat([]byte{FloodFiller}, size), destination)
}

// injectFiller queues one filler frame. The caller decides when; this only
// keeps the count and the log line in one place.
func (b *Bridge) injectFiller(ctx context.Context, outbound chan<- Frame) error {
	if err := enqueue(ctx, outbound, b.filler); err != nil {
		return err
	}
	b.cfg.Metrics.floodInjected()
	b.logger.Log(ctx, LevelTrace, "Queued flood filler", "bytes", len(b.filler))
	return nil
}
