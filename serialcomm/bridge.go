// serialcomm/bridge.go
package serialcomm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	OutboundQueueSize   = 200
	StatisticsQueueSize = 1024
)

// DeliveredHandler receives the payload of every delivered message frame.
type DeliveredHandler func(payload []byte)

// BridgeConfig is fixed before the bridge starts and never modified by it.
type BridgeConfig struct {
	DeviceName           string
	Us                   string
	Them                 string
	Retransmissions      uint64
	FECThreshold         uint64
	ChannelBusyThreshold uint64
	Flood                bool
	FloodPacketSize      int
	StatisticsPath       string

	BootDelay   time.Duration
	SettleDelay time.Duration
	PacingDelay time.Duration

	Logger      *slog.Logger
	Metrics     *Metrics
	OnDelivered DeliveredHandler
}

// Bridge relays frames between a modem, local input and a statistics file.
type Bridge struct {
	cfg    BridgeConfig
	device io.ReadWriter
	input  io.Reader
	logger *slog.Logger
	filler Frame
}

// NewBridge prepares a bridge over device. input supplies the lines typed
// by the operator. If device is also an io.Closer it is closed when the
// bridge fails or is cancelled, so that a blocked read returns.
func NewBridge(cfg BridgeConfig, device io.ReadWriter, input io.Reader) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	b := &Bridge{
		cfg:    cfg,
		device: device,
		input:  input,
		logger: logger.With("device", cfg.DeviceName, "address", cfg.Us),
	}
	if cfg.Flood {
		b.filler = FloodFrame(cfg.FloodPacketSize, cfg.Them)
	}
	return b
}

// Run configures the device and then relays frames until the link closes,
// ctx is cancelled, or a task fails.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.Configure(ctx); err != nil {
		return err
	}
	return b.Serve(ctx)
}

// Serve runs the relay tasks on an already configured device and waits for
// all of them. The first error reported by any task is returned.
func (b *Bridge) Serve(ctx context.Context) error {
	linkCtx, stop := context.WithCancelCause(ctx)
	defer stop(nil)
	g, gctx := errgroup.WithContext(linkCtx)

	outbound := make(chan Frame, OutboundQueueSize)
	stats := make(chan Frame, StatisticsQueueSize)

	sinkDone := make(chan struct{})
	sinkErr := make(chan error, 1)
	go func() {
		defer close(sinkDone)
		sinkErr <- b.sinkStatistics(stats)
	}()

	var producers sync.WaitGroup
	producers.Add(2)
	g.Go(func() error {
		defer producers.Done()
		return b.relayInput(gctx, outbound)
	})
	g.Go(func() error {
		defer producers.Done()
		defer close(stats)
		return b.readFrames(gctx, stop, outbound, stats, sinkDone)
	})
	go func() {
		producers.Wait()
		close(outbound)
	}()
	g.Go(func() error {
		return b.dispatch(outbound)
	})

	waitDone := make(chan struct{})
	if c, ok := b.device.(io.Closer); ok {
		go func() {
			select {
			case <-gctx.Done():
				var le *LinkError
				if ctx.Err() != nil || errors.As(context.Cause(gctx), &le) {
					b.logger.Debug("Closing device to unblock reader", "cause", context.Cause(gctx))
					_ = c.Close()
				}
			case <-waitDone:
			}
		}()
	}

	err := g.Wait()
	close(waitDone)
	serr := <-sinkErr

	switch {
	case err != nil && serr != nil && errors.Is(err, ErrSinkGone):
		return serr
	case err != nil:
		return err
	default:
		return serr
	}
}

// shuttingDown reports whether ctx ended because the link closed or the
// caller cancelled, as opposed to a task failing.
func shuttingDown(ctx context.Context) bool {
	cause := context.Cause(ctx)
	return errors.Is(cause, ErrLinkClosed) ||
		errors.Is(cause, context.Canceled) ||
		errors.Is(cause, context.DeadlineExceeded)
}

// enqueue blocks until f is accepted by the outbound queue or ctx ends.
func enqueue(ctx context.Context, outbound chan<- Frame, f Frame) error {
	select {
	case outbound <- f:
		return nil
	case <-ctx.Done():
		return ErrDispatcherGone
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
