package can

import "errors"

// ErrorKind is a transport-agnostic error classification. Transports define
// their own error types and map them onto these kinds so generic code can
// react without knowing the concrete transport.
type ErrorKind uint8

const (
	// Other is any error not covered by a more specific kind. The original
	// error may carry more detail.
	Other ErrorKind = iota
	// Overrun means the receive buffer was overrun.
	Overrun
	// FrameFormat means received data does not conform to the configuration
	// of the peripheral or of the bus.
	FrameFormat
	// Parity means a parity or checksum check failed.
	Parity
	// Noise means the line is too noisy to read valid data.
	Noise
)

func (k ErrorKind) String() string {
	switch k {
	case Overrun:
		return "overrun"
	case FrameFormat:
		return "frame_format"
	case Parity:
		return "parity"
	case Noise:
		return "noise"
	default:
		return "other"
	}
}

// Error is implemented by transport errors. Kind must be pure and total.
type Error interface {
	error
	Kind() ErrorKind
}

// Kind makes ErrorKind usable as an Error on its own.
func (k ErrorKind) Kind() ErrorKind { return k }

func (k ErrorKind) Error() string {
	switch k {
	case Overrun:
		return "receive buffer was overrun"
	case FrameFormat:
		return "received data does not conform to the configuration"
	case Parity:
		return "parity check failed"
	case Noise:
		return "line is too noisy to read valid data"
	default:
		return "a different error occurred; the original error may contain more information"
	}
}

// KindOf classifies err by the first Error in its chain. Errors that do not
// implement Error, and nil, classify as Other.
func KindOf(err error) ErrorKind {
	var e Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return Other
}
