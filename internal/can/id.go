package can

import (
	"cmp"
	"fmt"
)

// StandardID is an 11-bit CAN identifier (0..=0x7FF).
type StandardID uint16

// ExtendedID is a 29-bit CAN identifier (0..=0x1FFFFFFF).
type ExtendedID uint32

const (
	StandardIDZero StandardID = 0     // highest priority
	StandardIDMax  StandardID = 0x7FF // lowest priority
	ExtendedIDZero ExtendedID = 0
	ExtendedIDMax  ExtendedID = 0x1FFFFFFF
)

// NewStandardID returns false if raw does not fit in 11 bits.
func NewStandardID(raw uint16) (StandardID, bool) {
	if raw > uint16(StandardIDMax) {
		return 0, false
	}
	return StandardID(raw), true
}

// StandardIDUnchecked converts raw without a range check. Callers must have
// validated raw already; an out-of-range value yields an invalid identifier.
func StandardIDUnchecked(raw uint16) StandardID { return StandardID(raw) }

// Raw returns the identifier as a 16-bit integer.
func (s StandardID) Raw() uint16 { return uint16(s) }

// ID wraps s in the identifier union.
func (s StandardID) ID() ID { return ID{raw: uint32(s)} }

// NewExtendedID returns false if raw does not fit in 29 bits.
func NewExtendedID(raw uint32) (ExtendedID, bool) {
	if raw > uint32(ExtendedIDMax) {
		return 0, false
	}
	return ExtendedID(raw), true
}

// ExtendedIDUnchecked converts raw without a range check. Callers must have
// validated raw already; an out-of-range value yields an invalid identifier.
func ExtendedIDUnchecked(raw uint32) ExtendedID { return ExtendedID(raw) }

// Raw returns the identifier as a 32-bit integer.
func (e ExtendedID) Raw() uint32 { return uint32(e) }

// StandardID returns the base ID (ID-28..ID-18) of e.
func (e ExtendedID) StandardID() StandardID { return StandardID(uint32(e) >> 18) }

// ID wraps e in the identifier union.
func (e ExtendedID) ID() ID { return ID{raw: uint32(e), extended: true} }

// ID is either a standard or an extended identifier. The zero value is the
// standard identifier 0.
type ID struct {
	raw      uint32
	extended bool
}

// IDFromRaw classifies a bare integer: values <= 0x7FF become standard IDs,
// larger values extended IDs. It returns false above 29 bits. An extended ID
// <= 0x7FF must be built explicitly with NewExtendedID.
func IDFromRaw(raw uint32) (ID, bool) {
	if raw <= CAN_SFF_MASK {
		return StandardID(raw).ID(), true
	}
	e, ok := NewExtendedID(raw)
	if !ok {
		return ID{}, false
	}
	return e.ID(), true
}

// IDToCANID returns the SocketCAN can_id for id, with CAN_EFF_FLAG set for
// extended identifiers.
func IDToCANID(id ID) uint32 { return id.CANID() }

// CANID is the method form of IDToCANID.
func (id ID) CANID() uint32 {
	if id.extended {
		return id.raw | CAN_EFF_FLAG
	}
	return id.raw
}

func (id ID) IsExtended() bool { return id.extended }

// Raw returns the identifier bits without any flag.
func (id ID) Raw() uint32 { return id.raw }

func (id ID) Standard() (StandardID, bool) {
	if id.extended {
		return 0, false
	}
	return StandardID(id.raw), true
}

func (id ID) Extended() (ExtendedID, bool) {
	if !id.extended {
		return 0, false
	}
	return ExtendedID(id.raw), true
}

// arbitration splits id into the fields compared during bus arbitration:
// the 11-bit base ID, the IDE bit and the 18-bit extension.
func (id ID) arbitration() (base uint32, ide uint32, ext uint32) {
	if !id.extended {
		return id.raw, 0, 0
	}
	return id.raw >> 18, 1, id.raw & (1<<18 - 1)
}

// Compare orders identifiers by bus priority and returns -1 when id wins
// arbitration against o, +1 when it loses and 0 for equal identifiers.
// A standard ID wins against an extended ID with the same base ID because
// the recessive IDE bit loses arbitration.
func (id ID) Compare(o ID) int {
	ab, ai, ae := id.arbitration()
	bb, bi, be := o.arbitration()
	switch {
	case ab != bb:
		return cmp.Compare(ab, bb)
	case ai != bi:
		return cmp.Compare(ai, bi)
	default:
		return cmp.Compare(ae, be)
	}
}

// Less reports whether id has a higher bus priority than o.
func (id ID) Less(o ID) bool { return id.Compare(o) < 0 }

func (id ID) String() string {
	if id.extended {
		return fmt.Sprintf("%08X", id.raw)
	}
	return fmt.Sprintf("%03X", id.raw)
}
