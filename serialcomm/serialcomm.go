// serialcomm/serialcomm.go
package serialcomm

import (
	"errors"
	"io"
	"time"

	"github.com/tarm/serial"
)

type SerialConfig struct {
	PortName    string
	BaudRate    int
	ReadTimeout time.Duration
}

// Port is a duplex byte stream to the modem. The read and write halves are
// used from different goroutines.
type Port interface {
	io.Reader
	io.Writer
	io.Closer
}

// OpenPort opens the serial device described by cfg. A positive
// ReadTimeout keeps reads polling, so a read blocked on an idle line notices
// a Close on its next poll; with zero the read blocks until a byte arrives.
func OpenPort(cfg *SerialConfig) (Port, error) {
	portCfg := &serial.Config{
		Name:        cfg.PortName,
		Baud:        cfg.BaudRate,
		Parity:      serial.ParityNone,
		ReadTimeout: cfg.ReadTimeout,
	}
	port, err := serial.OpenPort(portCfg)
	if err != nil {
		return nil, err
	}
	if cfg.ReadTimeout <= 0 {
		return port, nil
	}
	return &idlePort{Port: port}, nil
}

// idlePort hides read timeouts. With a read timeout set the driver reports
// an idle line as a zero-length read with io.EOF, which is not the end of
// the stream.
type idlePort struct {
	*serial.Port
}

func (p *idlePort) Read(b []byte) (int, error) {
	for {
		n, err := p.Port.Read(b)
		if n == 0 && (err == nil || errors.Is(err, io.EOF)) {
			continue
		}
		return n, err
	}
}
