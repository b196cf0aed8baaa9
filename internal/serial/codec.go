package serial

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/kstaniek/go-socketcan/internal/can"
	"github.com/kstaniek/go-socketcan/internal/metrics"
)

// Codec speaks the Ampio UART envelope. The gateway only carries classic data
// frames; identifiers always travel as 29-bit values.
type Codec struct{}

// ErrUnsupportedFrame is returned by Encode for remote, error and FD frames.
var ErrUnsupportedFrame = errors.New("serial: unsupported frame")

// CompactBuffer reclaims consumed prefix capacity when underlying buffer
// grows too large relative to unread bytes. It returns true if compaction
// occurred. Thresholds chosen to avoid excessive copying.
func CompactBuffer(b *bytes.Buffer) bool {
	data := b.Bytes()
	// If buffer size < 1KB, skip.
	if len(data) < 1024 {
		return false
	}
	// If unread < 25% of capacity, compact.
	if cap(data) > 0 && len(data)*4 < cap(data) {
		clone := make([]byte, len(data))
		copy(clone, data)
		b.Reset()
		_, _ = b.Write(clone)
		return true
	}
	return false
}

// canUARTSend wraps data in the UART envelope.
func canUARTSend(data []byte) []byte {
	n := len(data)
	frame := make([]byte, n+4)

	frame[0] = pre0
	frame[1] = pre1
	frame[2] = byte(n + 1)

	sum := frame[2] + pre0
	for i, b := range data {
		frame[3+i] = b
		sum += b
	}
	frame[3+n] = sum
	return frame
}

// Encode builds the UART SEND command for a classic data frame.
func (Codec) Encode(f can.Frame) ([]byte, error) {
	d, ok := f.(*can.DataFrame)
	if !ok {
		return nil, fmt.Errorf("%w %T: %w", ErrUnsupportedFrame, f, can.ErrWrongFrameType)
	}
	id := can.RawID(d)
	n := d.DLC()
	tab := make([]byte, 6+n) // INS(1) + FLAGS(1) + ID(4) + PAYLOAD(0..8)
	tab[0] = 2               // INS: 2 = CAN UART SEND WITH EXT ID
	tab[1] = 0x80 + byte(n)  // FLAGS/DLC (0x80 | len) for classic
	binary.BigEndian.PutUint32(tab[2:6], id)
	copy(tab[6:], d.Data())
	return canUARTSend(tab), nil
}

// Envelope layout shared by both directions:
//
//	2D D4 | len | body[len-1] | sum
//
// len counts the body plus the checksum byte; sum is 0x2D + len + sum(body)
// modulo 256. A received body is ID(4, big endian) followed by 0..8 payload
// bytes, e.g. 2D D4 07 00 00 01 23 AA BB BD carries 0x123 with AA BB.
const (
	pre0 = 0x2D
	pre1 = 0xD4

	rxMinLn = 4 + 0 + 1
	rxMaxLn = 4 + can.CAN_MAX_DLEN + 1
)

var preamble = []byte{pre0, pre1}

type envStatus int

const (
	envShort envStatus = iota // need more bytes
	envBad                    // drop one byte and resync
	envOK
)

// parseEnvelope inspects an envelope starting at data[0]. On envOK it returns
// the received frame and the number of bytes it occupied.
func parseEnvelope(data []byte) (can.Frame, int, envStatus) {
	if len(data) < 4 {
		return nil, 0, envShort
	}
	ln := int(data[2])
	if ln < rxMinLn || ln > rxMaxLn {
		return nil, 0, envBad
	}
	total := 3 + ln
	if len(data) < total {
		return nil, 0, envShort
	}
	sum := byte(pre0) + data[2]
	for _, b := range data[3 : total-1] {
		sum += b
	}
	if sum != data[total-1] {
		return nil, 0, envBad
	}
	id := binary.BigEndian.Uint32(data[3:7])
	f, ok := can.NewDataFrame(can.ExtendedIDUnchecked(id&can.CAN_EFF_MASK).ID(), data[7:total-1])
	if !ok {
		return nil, 0, envBad
	}
	return f, total, envOK
}

// DecodeStream consumes complete envelopes from in and emits each as an
// extended data frame. Leading garbage is skipped up to the next preamble and
// corrupt envelopes are counted as malformed; incomplete trailing bytes stay
// in the buffer for the next call. It always returns nil.
func (Codec) DecodeStream(in *bytes.Buffer, out func(can.Frame)) error {
	for {
		_ = CompactBuffer(in)
		data := in.Bytes()
		if len(data) < 3 {
			return nil
		}
		i := bytes.Index(data, preamble)
		if i < 0 {
			// Keep the last byte; it may be the first half of a preamble.
			last := data[len(data)-1]
			in.Reset()
			_ = in.WriteByte(last)
			return nil
		}
		if i > 0 {
			in.Next(i)
			continue
		}
		f, n, st := parseEnvelope(data)
		switch st {
		case envShort:
			return nil
		case envBad:
			metrics.IncMalformed()
			in.Next(1)
			continue
		}
		out(f)
		metrics.IncRx(metrics.BackendSerial, "data")
		in.Next(n)
	}
}
