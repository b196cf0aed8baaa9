// Package transport holds the stream codec contracts shared by the TCP side
// and the prioritised transmit queue that backends put in front of a device.
package transport

import (
	"errors"
	"io"

	"github.com/kstaniek/go-socketcan/internal/can"
	"github.com/kstaniek/go-socketcan/internal/cnl"
)

// ErrNoEncoder is returned when a codec can decode but not encode frames.
var ErrNoEncoder = errors.New("transport: codec cannot encode")

// FrameDecoder decodes a single CAN frame from a stream.
type FrameDecoder interface {
	Decode(r io.Reader) (can.Frame, error)
}

// MultiFrameDecoder drains up to max frames (0 = all) from a stream.
type MultiFrameDecoder interface {
	DecodeN(r io.Reader, max int, onFrame func(can.Frame)) (int, error)
}

// FrameBatchEncoder encodes batches either to bytes or directly to a writer.
type FrameBatchEncoder interface {
	Encode([]can.Frame) []byte
	EncodeTo(w io.Writer, frames []can.Frame) (int, error)
}

// FrameSink accepts frames for transmission without waiting for the bus.
type FrameSink interface {
	SendFrame(can.Frame) error
}

var (
	_ FrameDecoder      = (*cnl.Codec)(nil)
	_ MultiFrameDecoder = (*cnl.Codec)(nil)
	_ FrameBatchEncoder = (*cnl.Codec)(nil)
	_ FrameSink         = (*Queue)(nil)
	_ can.NbCan         = nbQueue{}
	_ can.Can           = blockingQueue{}
)
