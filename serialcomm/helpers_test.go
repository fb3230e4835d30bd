package serialcomm

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// pipeDevice is the bridge's end of an in-memory serial link.
type pipeDevice struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (d *pipeDevice) Read(p []byte) (int, error)  { return d.r.Read(p) }
func (d *pipeDevice) Write(p []byte) (int, error) { return d.w.Write(p) }
func (d *pipeDevice) Close() error {
	d.r.Close()
	d.w.Close()
	return nil
}

// peer is the modem's end of the link.
type peer struct {
	in     *bufio.Reader
	inPipe *io.PipeReader
	out    *io.PipeWriter
}

func newLink() (*pipeDevice, *peer) {
	toPeerR, toPeerW := io.Pipe()
	toBridgeR, toBridgeW := io.Pipe()
	return &pipeDevice{r: toBridgeR, w: toPeerW},
		&peer{in: bufio.NewReader(toPeerR), inPipe: toPeerR, out: toBridgeW}
}

func (p *peer) readFrame(t *testing.T) string {
	t.Helper()
	line, err := p.in.ReadString('\n')
	require.NoError(t, err)
	return line
}

func (p *peer) send(t *testing.T, frames ...string) {
	t.Helper()
	for _, f := range frames {
		_, err := io.WriteString(p.out, f)
		require.NoError(t, err)
	}
}

// hangUp ends the stream the bridge reads from.
func (p *peer) hangUp() {
	p.out.Close()
}

// frames collects every frame the bridge writes from now on.
func (p *peer) frames() <-chan string {
	ch := make(chan string, 64)
	go func() {
		defer close(ch)
		for {
			line, err := p.in.ReadString('\n')
			if err != nil {
				return
			}
			ch <- line
		}
	}()
	return ch
}

func requireQuiet(t *testing.T, ch <-chan string, d time.Duration) {
	t.Helper()
	select {
	case f, ok := <-ch:
		if ok {
			t.Fatalf("unexpected frame %q", f)
		}
	case <-time.After(d):
	}
}

type write struct {
	at    time.Time
	frame string
}

// recordingDevice stores every write with the time it happened.
type recordingDevice struct {
	mu       sync.Mutex
	writes   []write
	failAt   int
	failWith error
}

func (d *recordingDevice) Read(p []byte) (int, error) { return 0, io.EOF }

func (d *recordingDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil && len(d.writes) == d.failAt {
		return 0, d.failWith
	}
	d.writes = append(d.writes, write{at: time.Now(), frame: string(p)})
	return len(p), nil
}

func (d *recordingDevice) frames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.writes))
	for i, w := range d.writes {
		out[i] = w.frame
	}
	return out
}

// failingDevice blocks reads until closed and fails every write.
type failingDevice struct {
	r   *io.PipeReader
	w   *io.PipeWriter
	err error
}

func newFailingDevice(err error) *failingDevice {
	r, w := io.Pipe()
	return &failingDevice{r: r, w: w, err: err}
}

func (d *failingDevice) Read(p []byte) (int, error)  { return d.r.Read(p) }
func (d *failingDevice) Write(p []byte) (int, error) { return 0, d.err }
func (d *failingDevice) Close() error                { return d.r.Close() }

// brokenReader fails the first read.
type brokenReader struct {
	err error
}

func (d brokenReader) Read(p []byte) (int, error)  { return 0, d.err }
func (d brokenReader) Write(p []byte) (int, error) { return len(p), nil }

// stalledDevice reads from a pipe and holds every write until released,
// like a modem that stopped draining its UART.
type stalledDevice struct {
	r       *io.PipeReader
	release chan struct{}
}

func newStalledLink() (*stalledDevice, *io.PipeWriter) {
	r, w := io.Pipe()
	return &stalledDevice{r: r, release: make(chan struct{})}, w
}

func (d *stalledDevice) Read(p []byte) (int, error) { return d.r.Read(p) }

func (d *stalledDevice) Write(p []byte) (int, error) {
	<-d.release
	return len(p), nil
}

func (d *stalledDevice) Close() error { return d.r.Close() }

// feed writes line to w up to n times, one write per line, counting the
// writes the reader took up.
func feed(w io.Writer, line string, n int, taken *atomic.Int64) {
	for i := 0; i < n; i++ {
		if _, err := io.WriteString(w, line); err != nil {
			return
		}
		taken.Add(1)
	}
}

// settled waits until value stops changing and returns where it stopped.
func settled(t *testing.T, value func() float64) float64 {
	t.Helper()
	var last float64
	require.Eventually(t, func() bool {
		before := value()
		time.Sleep(50 * time.Millisecond)
		last = value()
		return before > 0 && before == last
	}, 5*time.Second, 10*time.Millisecond)
	return last
}

// recordHandler keeps every record at or above level.
type recordHandler struct {
	mu      sync.Mutex
	level   slog.Level
	records []slog.Record
}

func (h *recordHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }

func (h *recordHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *recordHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordHandler) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.records))
	for i, r := range h.records {
		out[i] = r.Message
	}
	return out
}

func testConfig() BridgeConfig {
	return BridgeConfig{
		DeviceName:           "test",
		Us:                   "AA",
		Them:                 "BB",
		Retransmissions:      5,
		FECThreshold:         30,
		ChannelBusyThreshold: 20,
		FloodPacketSize:      10,
		PacingDelay:          time.Millisecond,
	}
}

func runAsync(run func() error) <-chan error {
	done := make(chan error, 1)
	go func() { done <- run() }()
	return done
}

func waitResult(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not stop")
		return nil
	}
}
