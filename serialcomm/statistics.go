// serialcomm/statistics.go
package serialcomm

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"time"

	"gonum.org/v1/gonum/stat"
)

// StatMode tells whether a statistics record describes a frame the modem
// transmitted or one it received.
type StatMode byte

const (
	ModeReceived    StatMode = 'R'
	ModeTransmitted StatMode = 'T'
)

// StatData is the packet type of a data frame.
const StatData = "D"

// StatRecord is one modem statistics line:
//
//	s[<mode>,<type>,<src>-><dest>,<size>(<txsize>),<seq>,<cw>,<cwsize>,<dispatch>,<time>]
//
// The trailing time is optional.
type StatRecord struct {
	Mode     StatMode
	Type     string
	Src      string
	Dest     string
	Size     int
	TxSize   int
	Seq      int
	CW       int
	CWSize   int
	Dispatch int
	// Time is NaN when the record carries no timestamp.
	Time float64
}

var statRecordPattern = regexp.MustCompile(
	`^s\[(R|T),([DAR|C]{1,3}),([0-9A-Fa-f]+)->([0-9A-Fa-f]+),(\d+)\((\d+)\),(\d+),(\d+),(\d+),(\d+),?([\d.]*)\]`)

// Frame encodes r the way the modem writes it.
func (r StatRecord) Frame() Frame {
	var b bytes.Buffer
	fmt.Fprintf(&b, "s[%c,%s,%s->%s,%d(%d),%d,%d,%d,%d",
		r.Mode, r.Type, r.Src, r.Dest, r.Size, r.TxSize, r.Seq, r.CW, r.CWSize, r.Dispatch)
	if !math.IsNaN(r.Time) {
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(r.Time, 'f', 3, 64))
	}
	b.WriteString("]\n")
	return Frame(b.Bytes())
}

// ParseStatRecord decodes one statistics line. Lines in any other shape,
// including the free-form records some firmware emits, report false.
func ParseStatRecord(line []byte) (StatRecord, bool) {
	m := statRecordPattern.FindSubmatch(bytes.TrimSpace(line))
	if m == nil {
		return StatRecord{}, false
	}
	var ints [6]int
	for i := range ints {
		v, err := strconv.Atoi(string(m[5+i]))
		if err != nil {
			return StatRecord{}, false
		}
		ints[i] = v
	}
	ts := math.NaN()
	if len(m[11]) > 0 {
		v, err := strconv.ParseFloat(string(m[11]), 64)
		if err != nil {
			return StatRecord{}, false
		}
		ts = v
	}
	return StatRecord{
		Mode:     StatMode(m[1][0]),
		Type:     string(m[2]),
		Src:      string(m[3]),
		Dest:     string(m[4]),
		Size:     ints[0],
		TxSize:   ints[1],
		Seq:      ints[2],
		CW:       ints[3],
		CWSize:   ints[4],
		Dispatch: ints[5],
		Time:     ts,
	}, true
}

// ParseStatistics reads a statistics file and returns the records it
// recognises, in file order. Unrecognised lines are skipped.
func ParseStatistics(r io.Reader) ([]StatRecord, error) {
	var records []StatRecord
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes(Delimiter)
		if len(line) > 0 {
			if rec, ok := ParseStatRecord(line); ok {
				records = append(records, rec)
			}
		}
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
	}
}

// StatSummary condenses a capture into link throughput and per-sequence
// delay.
type StatSummary struct {
	Records       int
	ReceivedBytes int
	Window        time.Duration
	// Throughput is received data bytes per second of Window.
	Throughput float64

	DelaySamples int
	DelayMean    float64
	DelayStdDev  float64
}

// Summarize computes throughput from the received data records over window
// and the delay of every run of consecutive records sharing a sequence
// number, measured from its earliest to its latest timestamp. Delays are in
// the unit of the record timestamps.
func Summarize(records []StatRecord, window time.Duration) StatSummary {
	s := StatSummary{Records: len(records), Window: window}
	for _, r := range records {
		if r.Mode == ModeReceived && r.Type == StatData {
			s.ReceivedBytes += r.Size
		}
	}
	if window > 0 {
		s.Throughput = float64(s.ReceivedBytes) / window.Seconds()
	}

	delays := sequenceDelays(records)
	s.DelaySamples = len(delays)
	if len(delays) > 0 {
		s.DelayMean, s.DelayStdDev = stat.PopMeanStdDev(delays, nil)
	}
	return s
}

func sequenceDelays(records []StatRecord) []float64 {
	var delays []float64
	for i := 0; i < len(records); {
		j := i
		lo, hi := math.Inf(1), math.Inf(-1)
		for ; j < len(records) && records[j].Seq == records[i].Seq; j++ {
			if t := records[j].Time; !math.IsNaN(t) {
				lo, hi = min(lo, t), max(hi, t)
			}
		}
		if hi >= lo {
			delays = append(delays, hi-lo)
		}
		i = j
	}
	return delays
}
