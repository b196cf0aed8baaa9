package can

import "errors"

// Construction errors. They are returned wrapped with context; match them
// with errors.Is.
var (
	// ErrTooMuchData is returned when a payload exceeds the capacity of the
	// frame kind (8 bytes classic, 64 bytes FD).
	ErrTooMuchData = errors.New("can: too much data")
	// ErrWrongFrameType is returned when an operation does not apply to the
	// frame it was called on, e.g. mutating the payload of an error frame.
	ErrWrongFrameType = errors.New("can: wrong frame type")
	// ErrEmptyFrame is returned when marshalling a RawFrame that holds neither
	// a classic nor an FD frame.
	ErrEmptyFrame = errors.New("can: empty raw frame")
	// ErrInvalidLength is returned when a binary buffer does not match the
	// kernel struct size or a length field is outside its range.
	ErrInvalidLength = errors.New("can: invalid length")
)

// ErrWouldBlock is returned by non-blocking transports when the operation
// cannot complete now: the transmit buffer is full with nothing replaceable,
// or no frame is queued for reception. Callers should retry later.
var ErrWouldBlock = errors.New("can: operation would block")
