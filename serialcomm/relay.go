// serialcomm/relay.go
package serialcomm

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
)

// relayInput wraps each local input line as a message to the peer and
// queues it. End of input is a clean stop; a vanished dispatcher is not.
func (b *Bridge) relayInput(ctx context.Context, outbound chan<- Frame) error {
	if b.input == nil {
		return nil
	}
	lines := make(chan []byte)
	go readLines(b.input, lines, ctx.Done(), b.logger)

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				b.logger.Debug("Local input closed")
				return nil
			}
			if err := enqueue(ctx, outbound, MessageFrame(line, b.cfg.Them)); err != nil {
				if shuttingDown(ctx) {
					return nil
				}
				b.logger.Error("Receiver dropped")
				return newLinkError(ClassChannel, "relay", "enqueue", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// readLines feeds lines from r to the relay. It runs on its own goroutine
// because a read from a terminal cannot be interrupted; when done closes
// first, the goroutine exits after its pending read returns.
func readLines(r io.Reader, lines chan<- []byte, done <-chan struct{}, logger *slog.Logger) {
	defer close(lines)
	br := bufio.NewReader(r)
	for {
		raw, err := br.ReadBytes('\n')
		if len(raw) > 0 {
			line := bytes.TrimSuffix(raw, []byte{'\n'})
			line = bytes.TrimSuffix(line, []byte{'\r'})
			line = bytes.ToValidUTF8(line, []byte("�"))
			select {
			case lines <- line:
			case <-done:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("Error reading local input", "error", err)
			}
			return
		}
	}
}
