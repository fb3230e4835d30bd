// modemsim/modem.go

// Package modemsim is a software stand-in for the radio modem's peer side.
// It accepts the same setup and message frames as the real device and
// answers every message with a processed signal, so the bridge can be
// exercised over a null-modem cable or an in-memory pipe.
package modemsim

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/clint456/serialbridge/serialcomm"
)

const replyQueueSize = 64

type Config struct {
	// Loopback echoes each message back as a delivered frame.
	Loopback bool
	// StatsEvery emits statistics records for every Nth message: one for
	// the transmission and, with Loopback, one for the echo. 0 disables
	// statistics.
	StatsEvery int
	// Limit stops answering after this many messages; 0 means no limit.
	Limit  int
	Logger *slog.Logger
	// Now stamps statistics records. Defaults to time.Now.
	Now func() time.Time
}

// Modem tracks what the bridge has configured and sent.
type Modem struct {
	cfg    Config
	logger *slog.Logger

	now   func() time.Time
	start time.Time

	mu       sync.Mutex
	address  string
	params   map[serialcomm.ConfigKey]uint64
	messages int
	bytes    int
}

func New(cfg Config) *Modem {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Modem{
		cfg:    cfg,
		logger: logger,
		now:    now,
		start:  now(),
		params: make(map[serialcomm.ConfigKey]uint64),
	}
}

// Serve answers frames read from rw until rw reaches end-of-stream or ctx
// is cancelled. Replies are written from a separate goroutine so a slow
// reader on the other end never stalls intake.
func (m *Modem) Serve(ctx context.Context, rw io.ReadWriter) error {
	replies := make(chan serialcomm.Frame, replyQueueSize)
	writeErr := make(chan error, 1)
	go func() {
		var err error
		for f := range replies {
			if err != nil {
				continue
			}
			if _, err = rw.Write(f); err != nil {
				m.logger.Error("Reply failed", "error", err)
			}
		}
		writeErr <- err
	}()

	err := m.intake(ctx, rw, replies)
	close(replies)
	if werr := <-writeErr; err == nil {
		err = werr
	}
	return err
}

func (m *Modem) intake(ctx context.Context, r io.Reader, replies chan<- serialcomm.Frame) error {
	br := bufio.NewReader(r)
	for {
		raw, err := br.ReadBytes(serialcomm.Delimiter)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		for _, reply := range m.handle(serialcomm.Frame(raw)) {
			select {
			case replies <- reply:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (m *Modem) handle(f serialcomm.Frame) []serialcomm.Frame {
	line := f.Line()
	m.mu.Lock()
	defer m.mu.Unlock()

	switch serialcomm.ClassifyOutbound(line) {
	case serialcomm.KindAddressAssignment:
		m.address = strings.TrimSuffix(strings.TrimPrefix(string(line), "a["), "]")
		m.logger.Info("Address assigned", "address", m.address)

	case serialcomm.KindConfigParameter:
		key, value, err := parseConfig(line)
		if err != nil {
			m.logger.Warn("Malformed config frame", "frame", string(line), "error", err)
			return nil
		}
		m.params[key] = value
		m.logger.Debug("Parameter set", "subsystem", key.Subsystem, "param", key.Param, "value", value)

	case serialcomm.KindOutboundMessage:
		payload, dest, ok := serialcomm.SplitMessage(line)
		if !ok {
			m.logger.Warn("Malformed message frame", "bytes", len(line))
			return nil
		}
		if m.cfg.Limit > 0 && m.messages >= m.cfg.Limit {
			return nil
		}
		m.messages++
		m.bytes += len(payload)
		m.logger.Debug("Message accepted", "destination", dest, "bytes", len(payload))

		replies := []serialcomm.Frame{serialcomm.Frame("m[D]\n")}
		if m.cfg.Loopback {
			replies = append(replies, DeliveredFrame(payload))
		}
		if m.cfg.StatsEvery > 0 && m.messages%m.cfg.StatsEvery == 0 {
			rec := serialcomm.StatRecord{
				Mode:   serialcomm.ModeTransmitted,
				Type:   serialcomm.StatData,
				Src:    m.address,
				Dest:   dest,
				Size:   len(payload),
				TxSize: len(f),
				Seq:    m.messages,
				Time:   m.elapsed(),
			}
			replies = append(replies, rec.Frame())
			if m.cfg.Loopback {
				rec.Mode = serialcomm.ModeReceived
				rec.Src, rec.Dest = dest, m.address
				rec.Time = m.elapsed()
				replies = append(replies, rec.Frame())
			}
		}
		return replies

	default:
		m.logger.Debug("Ignoring frame", "frame", string(line))
	}
	return nil
}

// elapsed is the record timestamp: milliseconds since the modem started.
// There is no contention in the simulator, so records leave the contention
// window and dispatch fields at zero.
func (m *Modem) elapsed() float64 {
	return float64(m.now().Sub(m.start)) / float64(time.Millisecond)
}

// DeliveredFrame encodes m[R,D,<payload>], the frame a modem emits when a
// message addressed to it arrives.
func DeliveredFrame(payload []byte) serialcomm.Frame {
	f := make([]byte, 0, len(payload)+8)
	f = append(f, "m[R,D,"...)
	f = append(f, payload...)
	f = append(f, ']', serialcomm.Delimiter)
	return serialcomm.Frame(f)
}

func parseConfig(line []byte) (serialcomm.ConfigKey, uint64, error) {
	body := strings.TrimSuffix(strings.TrimPrefix(string(line), "c["), "]")
	parts := strings.Split(body, ",")
	if len(parts) != 3 {
		return serialcomm.ConfigKey{}, 0, fmt.Errorf("want 3 fields, got %d", len(parts))
	}
	sub, err := strconv.Atoi(parts[0])
	if err != nil {
		return serialcomm.ConfigKey{}, 0, fmt.Errorf("subsystem: %w", err)
	}
	param, err := strconv.Atoi(parts[1])
	if err != nil {
		return serialcomm.ConfigKey{}, 0, fmt.Errorf("param: %w", err)
	}
	value, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return serialcomm.ConfigKey{}, 0, fmt.Errorf("value: %w", err)
	}
	return serialcomm.ConfigKey{Subsystem: sub, Param: param}, value, nil
}

func (m *Modem) Address() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.address
}

func (m *Modem) Param(key serialcomm.ConfigKey) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.params[key]
	return v, ok
}

// Messages returns how many messages were accepted and their payload bytes.
func (m *Modem) Messages() (count, bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages, m.bytes
}
