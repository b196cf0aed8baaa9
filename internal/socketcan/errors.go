package socketcan

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/kstaniek/go-socketcan/internal/can"
)

// ErrTxOverflow is returned by TXWriter.SendFrame when every transmit slot is
// taken and no pending frame has a lower priority. It is reported together
// with can.ErrWouldBlock.
var ErrTxOverflow = errors.New("socketcan tx overflow")

// ErrUnsupported is returned by Open on platforms without SocketCAN.
var ErrUnsupported = errors.New("socketcan: not supported on this platform")

// DeviceError is a read or write failure on the raw CAN socket.
type DeviceError struct {
	Op  string // "read", "write", "open"
	Err error
}

func (e *DeviceError) Error() string { return fmt.Sprintf("socketcan %s: %v", e.Op, e.Err) }
func (e *DeviceError) Unwrap() error { return e.Err }

// Kind maps the socket errno onto the generic error kinds. ENOBUFS means the
// kernel queue is full; EMSGSIZE and EINVAL mean the frame does not fit the
// socket configuration (for example an FD frame on a classic socket).
func (e *DeviceError) Kind() can.ErrorKind {
	switch {
	case errors.Is(e.Err, syscall.ENOBUFS):
		return can.Overrun
	case errors.Is(e.Err, syscall.EMSGSIZE), errors.Is(e.Err, syscall.EINVAL),
		errors.Is(e.Err, can.ErrInvalidLength):
		return can.FrameFormat
	}
	return can.Other
}

var _ can.Error = (*DeviceError)(nil)

// Options configure the raw socket.
type Options struct {
	// FD enables CAN_RAW_FD_FRAMES so the socket exchanges canfd_frame.
	FD bool
	// ErrMask is the CAN_RAW_ERR_FILTER class mask; 0 disables error frames.
	ErrMask uint32
}
