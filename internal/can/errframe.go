package can

import "fmt"

// ErrorFrame is a classic frame with the ERR bit set, reported by the
// kernel or driver when the bus or controller detects a fault. It is
// receive-only: the payload is fixed at construction and EFF/RTR are always
// clear.
type ErrorFrame struct{ raw ClassicFrame }

// NewErrorFrame builds an error frame from an error class word and up to 8
// bytes of detail. The ERR flag is forced on, EFF/RTR are cleared and data is
// zero-padded to the full 8-byte error layout; the length is always 8.
func NewErrorFrame(canID uint32, data []byte) (*ErrorFrame, error) {
	if len(data) > CAN_MAX_DLEN {
		return nil, fmt.Errorf("error frame (%d bytes): %w", len(data), ErrTooMuchData)
	}
	f := &ErrorFrame{raw: ClassicFrame{
		CANID: canID&CAN_ERR_MASK | CAN_ERR_FLAG,
		Len:   CAN_MAX_DLEN,
	}}
	copy(f.raw.Data[:], data)
	return f, nil
}

// ErrorFrameFromClassic wraps a frame observed on the bus. It fails with
// ErrWrongFrameType unless the ERR bit is already set.
func ErrorFrameFromClassic(c ClassicFrame) (*ErrorFrame, error) {
	if !c.IDFlags().IsError() {
		return nil, fmt.Errorf("can_frame 0x%08X is not an error frame: %w", c.CANID, ErrWrongFrameType)
	}
	c.CANID &^= CAN_EFF_FLAG | CAN_RTR_FLAG
	return &ErrorFrame{raw: c}, nil
}

// EncodeBusError builds the error frame for e. Decoding failures encode to
// class 0, which BusError reports as FailNotAnError; the original reason
// and value are lost.
func EncodeBusError(e BusError) *ErrorFrame {
	var data [CAN_MAX_DLEN]byte
	switch e.Type {
	case BusErrLostArbitration:
		data[0] = e.ArbitrationBit
	case BusErrController:
		data[1] = byte(e.Problem)
	case BusErrProtocol:
		data[2] = byte(e.Violation)
		data[3] = byte(e.Location)
	}
	f, _ := NewErrorFrame(e.Code(), data[:])
	return f
}

// IsExtended is always false: error frames carry no standard/extended
// distinction.
func (f *ErrorFrame) IsExtended() bool    { return false }
func (f *ErrorFrame) IsRemoteFrame() bool { return false }

func (f *ErrorFrame) DLC() int       { return min(int(f.raw.Len), CAN_MAX_DLEN) }
func (f *ErrorFrame) Data() []byte   { return f.raw.Data[:f.DLC()] }
func (f *ErrorFrame) IDWord() uint32 { return f.raw.CANID }
func (f *ErrorFrame) Raw() RawFrame  { return RawClassic(f.raw) }
func (*ErrorFrame) sealed()          {}

// ID returns the low error class bits as a standard identifier.
func (f *ErrorFrame) ID() ID {
	return StandardIDUnchecked(uint16(f.raw.CANID & CAN_SFF_MASK)).ID()
}

// Classic returns a copy of the underlying kernel frame.
func (f *ErrorFrame) Classic() ClassicFrame { return f.raw }

// ErrorBits returns the error class bits of the ID word.
func (f *ErrorFrame) ErrorBits() uint32 { return f.raw.CANID & CAN_ERR_MASK }

// SetData always fails: the error frame layout is fixed by construction.
func (f *ErrorFrame) SetData([]byte) error {
	return fmt.Errorf("error frame set data: %w", ErrWrongFrameType)
}

// TransceiverStatus returns data[4] (meaningful with CAN_ERR_TRX).
func (f *ErrorFrame) TransceiverStatus() uint8 { return f.raw.Data[4] }

// ErrorCounters returns the TX and RX error counters from data[6] and
// data[7] (meaningful with CAN_ERR_CNT).
func (f *ErrorFrame) ErrorCounters() (tx, rx uint8) { return f.raw.Data[6], f.raw.Data[7] }

// BusError decodes the frame. Class words outside the table, including
// combined classes and an empty word, and detail bytes that are missing or
// out of range all decode to BusErrDecodingFailure.
func (f *ErrorFrame) BusError() BusError {
	bits := f.ErrorBits()
	data := f.Data()
	need := func(n int) (DecodingFailure, bool) {
		if len(data) < n {
			return DecodingFailure{Reason: FailNotEnoughData, Value: uint32(len(data))}, false
		}
		return DecodingFailure{}, true
	}
	failed := func(d DecodingFailure) BusError { return BusError{Type: BusErrDecodingFailure, Failure: d} }

	switch bits {
	case 0:
		return failed(DecodingFailure{Reason: FailNotAnError})
	case CAN_ERR_TX_TIMEOUT:
		return BusError{Type: BusErrTxTimeout}
	case CAN_ERR_LOSTARB:
		if d, ok := need(1); !ok {
			return failed(d)
		}
		return BusError{Type: BusErrLostArbitration, ArbitrationBit: data[0]}
	case CAN_ERR_CRTL:
		if d, ok := need(2); !ok {
			return failed(d)
		}
		p, ok := parseControllerProblem(data[1])
		if !ok {
			return failed(DecodingFailure{Reason: FailInvalidControllerProblem, Value: uint32(data[1])})
		}
		return BusError{Type: BusErrController, Problem: p}
	case CAN_ERR_PROT:
		if d, ok := need(4); !ok {
			return failed(d)
		}
		v, ok := parseViolationType(data[2])
		if !ok {
			return failed(DecodingFailure{Reason: FailInvalidViolationType, Value: uint32(data[2])})
		}
		l, ok := parseLocation(data[3])
		if !ok {
			return failed(DecodingFailure{Reason: FailInvalidLocation, Value: uint32(data[3])})
		}
		return BusError{Type: BusErrProtocol, Violation: v, Location: l}
	case CAN_ERR_TRX:
		return BusError{Type: BusErrTransceiver}
	case CAN_ERR_ACK:
		return BusError{Type: BusErrNoAck}
	case CAN_ERR_BUSOFF:
		return BusError{Type: BusErrBusOff}
	case CAN_ERR_BUSERROR:
		return BusError{Type: BusErrBus}
	case CAN_ERR_RESTARTED:
		return BusError{Type: BusErrRestarted}
	}
	return failed(DecodingFailure{Reason: FailUnknownErrorType, Value: bits})
}

// AsBusError decodes f if it is an error frame.
func AsBusError(f Frame) (BusError, bool) {
	ef, ok := f.(*ErrorFrame)
	if !ok {
		return BusError{}, false
	}
	return ef.BusError(), true
}
