package can

import "context"

// NbCan is a non-blocking CAN transport.
//
// Implementations must never suspend the caller. Frames with equal
// identifiers are put on the bus in FIFO order even when several transmit
// slots exist, and a pending frame may only be replaced while it is not
// being sent.
type NbCan interface {
	// Transmit puts f in the transmit buffer. When the buffer is full it tries
	// to replace a pending frame of lower priority and returns that frame.
	// It returns ErrWouldBlock when nothing can be replaced.
	Transmit(f Frame) (evicted Frame, err error)
	// Receive returns a received frame or ErrWouldBlock if none is queued.
	Receive() (Frame, error)
}

// Can is a blocking CAN transport. Both calls wait until they complete, the
// transport fails or ctx is done. A cancelled Transmit leaves no partially
// queued frame behind.
type Can interface {
	Transmit(ctx context.Context, f Frame) error
	Receive(ctx context.Context) (Frame, error)
}
