package can

// SocketCAN flag bits and masks for can_id (same values as <linux/can.h>).
const (
	CAN_EFF_FLAG = 0x80000000 // extended frame format
	CAN_RTR_FLAG = 0x40000000 // remote transmission request
	CAN_ERR_FLAG = 0x20000000 // error message frame
	CAN_SFF_MASK = 0x000007FF
	CAN_EFF_MASK = 0x1FFFFFFF
	// CAN_ERR_MASK covers the same bits as CAN_EFF_MASK. When CAN_ERR_FLAG is
	// set those bits carry the error class instead of an identifier.
	CAN_ERR_MASK = 0x1FFFFFFF
)

// Payload and MTU sizes.
const (
	CAN_MAX_DLEN   = 8
	CANFD_MAX_DLEN = 64
	CAN_MTU        = 16 // sizeof(struct can_frame)
	CANFD_MTU      = 72 // sizeof(struct canfd_frame)
)

// CAN FD flags carried in canfd_frame.flags.
const (
	CANFD_BRS = 0x01 // bit rate switch
	CANFD_ESI = 0x02 // error state indicator
	CANFD_FDF = 0x04 // FD frame marker (used by capture formats)
)

// Error filter masks for CAN_RAW_ERR_FILTER.
const (
	ErrMaskAll  uint32 = CAN_ERR_MASK // report every error class
	ErrMaskNone uint32 = 0            // silently drop all errors
)

// IDFlags exposes the out-of-band bits of a composite ID word.
type IDFlags uint32

// IDFlagsOf extracts the flag bits from a composite ID word.
func IDFlagsOf(word uint32) IDFlags {
	return IDFlags(word & (CAN_EFF_FLAG | CAN_RTR_FLAG | CAN_ERR_FLAG))
}

func (f IDFlags) IsExtended() bool { return f&CAN_EFF_FLAG != 0 }
func (f IDFlags) IsRemote() bool   { return f&CAN_RTR_FLAG != 0 }
func (f IDFlags) IsError() bool    { return f&CAN_ERR_FLAG != 0 }

// FDFlags is the canfd_frame.flags byte. Bits other than BRS/ESI are passed
// through untouched.
type FDFlags uint8

func (f FDFlags) BRS() bool { return f&CANFD_BRS != 0 }
func (f FDFlags) ESI() bool { return f&CANFD_ESI != 0 }

// maskFor returns the identifier mask for a composite ID word.
func maskFor(word uint32) uint32 {
	if word&CAN_EFF_FLAG != 0 {
		return CAN_EFF_MASK
	}
	return CAN_SFF_MASK
}

// idFromWord decodes the identifier part of a composite ID word. The EFF bit
// decides the address space even for extended IDs <= 0x7FF.
func idFromWord(word uint32) ID {
	if word&CAN_EFF_FLAG != 0 {
		return ExtendedIDUnchecked(word & CAN_EFF_MASK).ID()
	}
	return StandardIDUnchecked(uint16(word & CAN_SFF_MASK)).ID()
}

// withID replaces the identifier and EFF bit of word, keeping RTR/ERR.
func withID(word uint32, id ID) uint32 {
	return word&(CAN_RTR_FLAG|CAN_ERR_FLAG) | id.CANID()
}
