// serialcomm/types.go
package serialcomm

import (
	"bytes"
	"fmt"
	"strconv"
)

// Delimiter terminates every frame on the wire.
const Delimiter = '\n'

// Frame is one logical protocol unit. Frames on the outbound and statistics
// queues always carry their trailing delimiter; classification works on the
// line with the delimiter stripped.
type Frame []byte

// Line returns the frame without its trailing delimiter.
func (f Frame) Line() []byte {
	return bytes.TrimSuffix(f, []byte{Delimiter})
}

func (f Frame) String() string {
	return string(f.Line())
}

// FrameKind is derived from a frame's leading bytes and never stored.
type FrameKind int

const (
	KindGeneric FrameKind = iota
	KindAddressAssignment
	KindConfigParameter
	KindOutboundMessage
	KindStatistics
	KindFloodSignal
	KindDelivered
)

func (k FrameKind) String() string {
	switch k {
	case KindAddressAssignment:
		return "address"
	case KindConfigParameter:
		return "config"
	case KindOutboundMessage:
		return "message"
	case KindStatistics:
		return "statistics"
	case KindFloodSignal:
		return "flood_signal"
	case KindDelivered:
		return "delivered"
	default:
		return "generic"
	}
}

var (
	prefixStatistics   = []byte("s")
	prefixFloodSignal  = []byte("m[D")
	prefixDelivered    = []byte("m[R,D")
	prefixAddress      = []byte("a[")
	prefixConfig       = []byte("c[")
	prefixMessage      = []byte("m[")
	messageAddressSep  = byte(0)
	deliveredHeaderLen = 6
	deliveredTrailLen  = 1
)

// ClassifyInbound classifies a line read from the device. Checks run in a
// fixed order: statistics, flood signal, delivered, then generic.
func ClassifyInbound(line []byte) FrameKind {
	switch {
	case bytes.HasPrefix(line, prefixStatistics):
		return KindStatistics
	case bytes.HasPrefix(line, prefixFloodSignal):
		return KindFloodSignal
	case bytes.HasPrefix(line, prefixDelivered):
		return KindDelivered
	default:
		return KindGeneric
	}
}

// ClassifyOutbound classifies a frame produced by this side of the link.
func ClassifyOutbound(line []byte) FrameKind {
	switch {
	case bytes.HasPrefix(line, prefixAddress):
		return KindAddressAssignment
	case bytes.HasPrefix(line, prefixConfig):
		return KindConfigParameter
	case bytes.HasPrefix(line, prefixMessage):
		return KindOutboundMessage
	default:
		return KindGeneric
	}
}

// DeliveredPayload extracts the message carried by a delivered frame. The
// payload sits at a fixed offset after the "m[R,D" header and its separator
// and runs up to the closing bracket. ok is false when line is too short to
// hold the header and trailer.
//
// The slice is taken by offset only; a payload that itself contains "]"
// before the end is returned as-is.
func DeliveredPayload(line []byte) (payload []byte, ok bool) {
	if len(line) < deliveredHeaderLen+deliveredTrailLen {
		return nil, false
	}
	return line[deliveredHeaderLen : len(line)-deliveredTrailLen], true
}

// AddressFrame encodes a[<address>].
func AddressFrame(address string) Frame {
	return Frame(fmt.Sprintf("a[%s]\n", address))
}

// Config subsystem/parameter pairs understood by the modem.
type ConfigKey struct {
	Subsystem int
	Param     int
}

var (
	KeyRetransmissions      = ConfigKey{Subsystem: 1, Param: 0}
	KeyFECThreshold         = ConfigKey{Subsystem: 0, Param: 1}
	KeyChannelBusyThreshold = ConfigKey{Subsystem: 0, Param: 2}
)

// ConfigFrame encodes c[<subsystem>,<param>,<value>].
func ConfigFrame(key ConfigKey, value uint64) Frame {
	return Frame("c[" + strconv.Itoa(key.Subsystem) + "," + strconv.Itoa(key.Param) + "," +
		strconv.FormatUint(value, 10) + "]\n")
}

// MessageFrame encodes m[<payload>\0<destination>].
func MessageFrame(payload []byte, destination string) Frame {
	f := make([]byte, 0, len(prefixMessage)+len(payload)+len(destination)+3)
	f = append(f, prefixMessage...)
	f = append(f, payload...)
	f = append(f, messageAddressSep)
	f = append(f, destination...)
	f = append(f, ']', Delimiter)
	return Frame(f)
}

// SplitMessage decodes a line produced by MessageFrame.
func SplitMessage(line []byte) (payload []byte, destination string, ok bool) {
	if !bytes.HasPrefix(line, prefixMessage) || !bytes.HasSuffix(line, []byte("]")) {
		return nil, "", false
	}
	body := line[len(prefixMessage) : len(line)-1]
	i := bytes.LastIndexByte(body, messageAddressSep)
	if i < 0 {
		return nil, "", false
	}
	return body[:i], string(body[i+1:]), true
}
