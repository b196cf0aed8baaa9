package can

import "fmt"

// Error class bits carried in the ID word of an error frame (<linux/can/error.h>).
const (
	CAN_ERR_TX_TIMEOUT = 0x00000001
	CAN_ERR_LOSTARB    = 0x00000002 // data[0]: bit position
	CAN_ERR_CRTL       = 0x00000004 // data[1]: ControllerProblem
	CAN_ERR_PROT       = 0x00000008 // data[2]: ViolationType, data[3]: Location
	CAN_ERR_TRX        = 0x00000010 // data[4]: transceiver status
	CAN_ERR_ACK        = 0x00000020
	CAN_ERR_BUSOFF     = 0x00000040
	CAN_ERR_BUSERROR   = 0x00000080
	CAN_ERR_RESTARTED  = 0x00000100
	CAN_ERR_CNT        = 0x00000200 // data[6]/data[7]: TX/RX error counters
)

// ControllerProblem is the controller status reported in data[1].
type ControllerProblem uint8

const (
	CtrlUnspecified      ControllerProblem = 0x00
	CtrlRxBufferOverflow ControllerProblem = 0x01
	CtrlTxBufferOverflow ControllerProblem = 0x02
	CtrlRxErrorWarning   ControllerProblem = 0x04
	CtrlTxErrorWarning   ControllerProblem = 0x08
	CtrlRxErrorPassive   ControllerProblem = 0x10
	CtrlTxErrorPassive   ControllerProblem = 0x20
	CtrlActive           ControllerProblem = 0x40 // recovered to error active
)

var controllerProblemNames = map[ControllerProblem]string{
	CtrlUnspecified:      "unspecified",
	CtrlRxBufferOverflow: "rx buffer overflow",
	CtrlTxBufferOverflow: "tx buffer overflow",
	CtrlRxErrorWarning:   "rx error warning",
	CtrlTxErrorWarning:   "tx error warning",
	CtrlRxErrorPassive:   "rx error passive",
	CtrlTxErrorPassive:   "tx error passive",
	CtrlActive:           "error active",
}

func (p ControllerProblem) String() string {
	if s, ok := controllerProblemNames[p]; ok {
		return s
	}
	return fmt.Sprintf("controller problem 0x%02X", uint8(p))
}

// ViolationType is the protocol violation reported in data[2].
type ViolationType uint8

const (
	ViolationUnspecified    ViolationType = 0x00
	ViolationSingleBit      ViolationType = 0x01
	ViolationFrameFormat    ViolationType = 0x02
	ViolationBitStuffing    ViolationType = 0x04
	ViolationNoDominantBit  ViolationType = 0x08 // unable to send dominant bit
	ViolationNoRecessiveBit ViolationType = 0x10 // unable to send recessive bit
	ViolationBusOverload    ViolationType = 0x20
	ViolationActive         ViolationType = 0x40 // active error announcement
	ViolationTransmission   ViolationType = 0x80 // error occurred on transmission
)

var violationNames = map[ViolationType]string{
	ViolationUnspecified:    "unspecified",
	ViolationSingleBit:      "single bit error",
	ViolationFrameFormat:    "frame format error",
	ViolationBitStuffing:    "bit stuffing error",
	ViolationNoDominantBit:  "unable to send dominant bit",
	ViolationNoRecessiveBit: "unable to send recessive bit",
	ViolationBusOverload:    "bus overload",
	ViolationActive:         "active error announcement",
	ViolationTransmission:   "transmission error",
}

func (v ViolationType) String() string {
	if s, ok := violationNames[v]; ok {
		return s
	}
	return fmt.Sprintf("violation 0x%02X", uint8(v))
}

// Location is the position in the frame where a protocol violation was
// detected, reported in data[3].
type Location uint8

const (
	LocUnspecified   Location = 0x00
	LocStartOfFrame  Location = 0x03
	LocID28To21      Location = 0x02
	LocID20To18      Location = 0x06
	LocSubstituteRTR Location = 0x04
	LocIDExtension   Location = 0x05
	LocID17To13      Location = 0x07
	LocID12To05      Location = 0x0F
	LocID04To00      Location = 0x0E
	LocRTR           Location = 0x0C
	LocReserved1     Location = 0x0D
	LocReserved0     Location = 0x09
	LocDLC           Location = 0x0B
	LocData          Location = 0x0A
	LocCRCSequence   Location = 0x08
	LocCRCDelimiter  Location = 0x18
	LocACKSlot       Location = 0x19
	LocACKDelimiter  Location = 0x1B
	LocEndOfFrame    Location = 0x1A
	LocIntermission  Location = 0x12
)

var locationNames = map[Location]string{
	LocUnspecified:   "unspecified",
	LocStartOfFrame:  "start of frame",
	LocID28To21:      "ID bits 28-21",
	LocID20To18:      "ID bits 20-18",
	LocSubstituteRTR: "substitute RTR",
	LocIDExtension:   "identifier extension",
	LocID17To13:      "ID bits 17-13",
	LocID12To05:      "ID bits 12-05",
	LocID04To00:      "ID bits 04-00",
	LocRTR:           "RTR bit",
	LocReserved1:     "reserved bit 1",
	LocReserved0:     "reserved bit 0",
	LocDLC:           "data length code",
	LocData:          "data section",
	LocCRCSequence:   "CRC sequence",
	LocCRCDelimiter:  "CRC delimiter",
	LocACKSlot:       "ACK slot",
	LocACKDelimiter:  "ACK delimiter",
	LocEndOfFrame:    "end of frame",
	LocIntermission:  "intermission",
}

func (l Location) String() string {
	if s, ok := locationNames[l]; ok {
		return s
	}
	return fmt.Sprintf("location 0x%02X", uint8(l))
}

// DecodingFailureReason says why an error frame could not be decoded.
type DecodingFailureReason uint8

const (
	FailNotAnError DecodingFailureReason = iota
	FailUnknownErrorType
	FailNotEnoughData
	FailInvalidControllerProblem
	FailInvalidViolationType
	FailInvalidLocation
)

// DecodingFailure describes an error frame whose detail bytes are not
// understood. Value carries the offending byte, class bits or DLC.
type DecodingFailure struct {
	Reason DecodingFailureReason
	Value  uint32
}

func (d DecodingFailure) Error() string {
	switch d.Reason {
	case FailNotAnError:
		return "not an error frame"
	case FailUnknownErrorType:
		return fmt.Sprintf("unknown error type 0x%X", d.Value)
	case FailNotEnoughData:
		return fmt.Sprintf("not enough data (dlc %d)", d.Value)
	case FailInvalidControllerProblem:
		return fmt.Sprintf("invalid controller problem 0x%02X", d.Value)
	case FailInvalidViolationType:
		return fmt.Sprintf("invalid violation type 0x%02X", d.Value)
	case FailInvalidLocation:
		return fmt.Sprintf("invalid violation location 0x%02X", d.Value)
	}
	return fmt.Sprintf("decoding failure %d", d.Reason)
}

// BusErrorType discriminates the cases of BusError.
type BusErrorType uint8

const (
	BusErrDecodingFailure BusErrorType = iota // see Failure
	BusErrTxTimeout
	BusErrLostArbitration // see ArbitrationBit
	BusErrController      // see Problem
	BusErrProtocol        // see Violation and Location
	BusErrTransceiver
	BusErrNoAck
	BusErrBusOff
	BusErrBus
	BusErrRestarted
)

var busErrorTypeNames = [...]string{
	BusErrDecodingFailure: "decoding_failure",
	BusErrTxTimeout:       "tx_timeout",
	BusErrLostArbitration: "lost_arbitration",
	BusErrController:      "controller",
	BusErrProtocol:        "protocol",
	BusErrTransceiver:     "transceiver",
	BusErrNoAck:           "no_ack",
	BusErrBusOff:          "bus_off",
	BusErrBus:             "bus_error",
	BusErrRestarted:       "restarted",
}

func (t BusErrorType) String() string {
	if int(t) < len(busErrorTypeNames) {
		return busErrorTypeNames[t]
	}
	return fmt.Sprintf("bus_error_type_%d", t)
}

// BusError is the structured form of an error frame. Only the fields named
// by Type are meaningful; the others stay zero so values compare with ==.
// The zero value is the decoding failure of a frame with no class bits.
type BusError struct {
	Type           BusErrorType
	ArbitrationBit uint8
	Problem        ControllerProblem
	Violation      ViolationType
	Location       Location
	Failure        DecodingFailure
}

func (e BusError) Error() string {
	switch e.Type {
	case BusErrTxTimeout:
		return "can: transmission timeout"
	case BusErrLostArbitration:
		return fmt.Sprintf("can: arbitration lost after %d bits", e.ArbitrationBit)
	case BusErrController:
		return "can: controller problem: " + e.Problem.String()
	case BusErrProtocol:
		return fmt.Sprintf("can: protocol violation: %s at %s", e.Violation, e.Location)
	case BusErrTransceiver:
		return "can: transceiver error"
	case BusErrNoAck:
		return "can: no ACK received"
	case BusErrBusOff:
		return "can: bus off"
	case BusErrBus:
		return "can: bus error"
	case BusErrRestarted:
		return "can: controller restarted"
	}
	return "can: error frame decoding failure: " + e.Failure.Error()
}

// Kind maps the bus error onto the generic taxonomy.
func (e BusError) Kind() ErrorKind {
	switch e.Type {
	case BusErrController:
		switch e.Problem {
		case CtrlRxBufferOverflow, CtrlTxBufferOverflow:
			return Overrun
		}
	case BusErrProtocol:
		switch {
		case e.Violation == ViolationFrameFormat, e.Violation == ViolationBitStuffing:
			return FrameFormat
		case e.Location == LocCRCSequence, e.Location == LocCRCDelimiter:
			return Parity
		case e.Violation == ViolationSingleBit:
			return Noise
		}
	}
	return Other
}

// Code returns the error class bits e encodes to. A decoding failure has no
// canonical bit pattern and encodes to 0, which decodes back as
// FailNotAnError. It is the only case that does not survive a round trip
// through an error frame.
func (e BusError) Code() uint32 {
	switch e.Type {
	case BusErrTxTimeout:
		return CAN_ERR_TX_TIMEOUT
	case BusErrLostArbitration:
		return CAN_ERR_LOSTARB
	case BusErrController:
		return CAN_ERR_CRTL
	case BusErrProtocol:
		return CAN_ERR_PROT
	case BusErrTransceiver:
		return CAN_ERR_TRX
	case BusErrNoAck:
		return CAN_ERR_ACK
	case BusErrBusOff:
		return CAN_ERR_BUSOFF
	case BusErrBus:
		return CAN_ERR_BUSERROR
	case BusErrRestarted:
		return CAN_ERR_RESTARTED
	}
	return 0
}

var _ Error = BusError{}

func parseControllerProblem(b byte) (ControllerProblem, bool) {
	p := ControllerProblem(b)
	_, ok := controllerProblemNames[p]
	return p, ok
}

func parseViolationType(b byte) (ViolationType, bool) {
	v := ViolationType(b)
	_, ok := violationNames[v]
	return v, ok
}

func parseLocation(b byte) (Location, bool) {
	l := Location(b)
	_, ok := locationNames[l]
	return l, ok
}
