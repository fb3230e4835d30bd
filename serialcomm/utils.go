// serialcomm/utils.go
package serialcomm

import (
	"io"

	"github.com/sigurn/crc16"
)

var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// Checksum is the CRC-16/MODBUS of a frame's line, delimiter excluded.
func Checksum(f Frame) uint16 {
	return crc16.Checksum(f.Line(), crcTable)
}

// writeFrame writes f in full. A short write is reported as
// io.ErrShortWrite and never resumed.
func writeFrame(w io.Writer, f Frame) error {
	n, err := w.Write(f)
	if err != nil {
		return err
	}
	if n != len(f) {
		return io.ErrShortWrite
	}
	return nil
}
