package can

import (
	"encoding/binary"
	"fmt"
)

// ClassicFrame mirrors struct can_frame from <linux/can.h>:
//
//	can_id   u32   [0:4]   (EFF/RTR/ERR flags + identifier)
//	len      u8    [4]     (payload length, a.k.a. can_dlc)
//	__pad    u8    [5]
//	__res0   u8    [6]
//	len8_dlc u8    [7]     (DLC 9..15 for 8 byte payloads, unused here)
//	data     [8]u8 [8:16]
//
// The kernel exchanges fields in host byte order. The zero value is a valid
// standard data frame with ID 0 and no payload.
type ClassicFrame struct {
	CANID   uint32
	Len     uint8
	Pad     uint8
	Res0    uint8
	Len8DLC uint8
	Data    [CAN_MAX_DLEN]byte
}

// FDFrame mirrors struct canfd_frame from <linux/can.h>:
//
//	can_id u32    [0:4]
//	len    u8     [4]
//	flags  u8     [5]      (CANFD_BRS, CANFD_ESI)
//	__res0 u8     [6]
//	__res1 u8     [7]
//	data   [64]u8 [8:72]
type FDFrame struct {
	CANID uint32
	Len   uint8
	Flags uint8
	Res0  uint8
	Res1  uint8
	Data  [CANFD_MAX_DLEN]byte
}

// Size returns the size of the kernel struct (CAN_MTU).
func (f *ClassicFrame) Size() int { return CAN_MTU }

// IDFlags returns the flag bits of the composite ID word.
func (f *ClassicFrame) IDFlags() IDFlags { return IDFlagsOf(f.CANID) }

// MarshalTo writes the kernel layout of f into b, which must hold at least
// CAN_MTU bytes, and returns the number of bytes written.
func (f *ClassicFrame) MarshalTo(b []byte) (int, error) {
	if len(b) < CAN_MTU {
		return 0, fmt.Errorf("can_frame marshal: %w (buffer %d < %d)", ErrInvalidLength, len(b), CAN_MTU)
	}
	binary.NativeEndian.PutUint32(b[0:4], f.CANID)
	b[4], b[5], b[6], b[7] = f.Len, f.Pad, f.Res0, f.Len8DLC
	copy(b[8:CAN_MTU], f.Data[:])
	return CAN_MTU, nil
}

// MarshalBinary returns the CAN_MTU byte kernel layout of f.
func (f *ClassicFrame) MarshalBinary() ([]byte, error) {
	b := make([]byte, CAN_MTU)
	if _, err := f.MarshalTo(b); err != nil {
		return nil, err
	}
	return b, nil
}

// UnmarshalBinary decodes exactly CAN_MTU bytes of kernel layout.
func (f *ClassicFrame) UnmarshalBinary(b []byte) error {
	if len(b) != CAN_MTU {
		return fmt.Errorf("can_frame unmarshal: %w (%d != %d)", ErrInvalidLength, len(b), CAN_MTU)
	}
	f.CANID = binary.NativeEndian.Uint32(b[0:4])
	f.Len, f.Pad, f.Res0, f.Len8DLC = b[4], b[5], b[6], b[7]
	copy(f.Data[:], b[8:CAN_MTU])
	return nil
}

// Size returns the size of the kernel struct (CANFD_MTU).
func (f *FDFrame) Size() int { return CANFD_MTU }

// IDFlags returns the flag bits of the composite ID word.
func (f *FDFrame) IDFlags() IDFlags { return IDFlagsOf(f.CANID) }

// FDFlags returns the flags byte.
func (f *FDFrame) FDFlags() FDFlags { return FDFlags(f.Flags) }

// MarshalTo writes the kernel layout of f into b, which must hold at least
// CANFD_MTU bytes.
func (f *FDFrame) MarshalTo(b []byte) (int, error) {
	if len(b) < CANFD_MTU {
		return 0, fmt.Errorf("canfd_frame marshal: %w (buffer %d < %d)", ErrInvalidLength, len(b), CANFD_MTU)
	}
	binary.NativeEndian.PutUint32(b[0:4], f.CANID)
	b[4], b[5], b[6], b[7] = f.Len, f.Flags, f.Res0, f.Res1
	copy(b[8:CANFD_MTU], f.Data[:])
	return CANFD_MTU, nil
}

// MarshalBinary returns the CANFD_MTU byte kernel layout of f.
func (f *FDFrame) MarshalBinary() ([]byte, error) {
	b := make([]byte, CANFD_MTU)
	if _, err := f.MarshalTo(b); err != nil {
		return nil, err
	}
	return b, nil
}

// UnmarshalBinary decodes exactly CANFD_MTU bytes of kernel layout.
func (f *FDFrame) UnmarshalBinary(b []byte) error {
	if len(b) != CANFD_MTU {
		return fmt.Errorf("canfd_frame unmarshal: %w (%d != %d)", ErrInvalidLength, len(b), CANFD_MTU)
	}
	f.CANID = binary.NativeEndian.Uint32(b[0:4])
	f.Len, f.Flags, f.Res0, f.Res1 = b[4], b[5], b[6], b[7]
	copy(f.Data[:], b[8:CANFD_MTU])
	return nil
}

// BinaryFrame is the byte-view capability shared by the kernel layouts.
// It lets a transport move frames in and out of a socket without the frame
// model knowing about I/O.
type BinaryFrame interface {
	Size() int
	MarshalTo(b []byte) (int, error)
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(b []byte) error
}

var (
	_ BinaryFrame = (*ClassicFrame)(nil)
	_ BinaryFrame = (*FDFrame)(nil)
)

type rawKind uint8

const (
	rawEmpty rawKind = iota
	rawClassic
	rawFD
)

// RawFrame holds either a classic or an FD kernel frame. It is the value a
// transport hands to, or receives from, the frame model. The zero value is
// empty.
type RawFrame struct {
	kind    rawKind
	classic ClassicFrame
	fd      FDFrame
}

// RawClassic wraps a classic frame.
func RawClassic(f ClassicFrame) RawFrame { return RawFrame{kind: rawClassic, classic: f} }

// RawFD wraps an FD frame.
func RawFD(f FDFrame) RawFrame { return RawFrame{kind: rawFD, fd: f} }

func (r RawFrame) IsEmpty() bool { return r.kind == rawEmpty }
func (r RawFrame) IsFD() bool    { return r.kind == rawFD }

// Classic returns the classic frame, or false if r holds something else.
func (r RawFrame) Classic() (ClassicFrame, bool) { return r.classic, r.kind == rawClassic }

// FD returns the FD frame, or false if r holds something else.
func (r RawFrame) FD() (FDFrame, bool) { return r.fd, r.kind == rawFD }

// IDWord returns the composite ID word of the held frame (0 if empty).
func (r RawFrame) IDWord() uint32 {
	switch r.kind {
	case rawClassic:
		return r.classic.CANID
	case rawFD:
		return r.fd.CANID
	}
	return 0
}

// Size returns CAN_MTU or CANFD_MTU, or 0 for an empty frame.
func (r RawFrame) Size() int {
	switch r.kind {
	case rawClassic:
		return CAN_MTU
	case rawFD:
		return CANFD_MTU
	}
	return 0
}

// MarshalTo writes the held frame into b. It fails with ErrEmptyFrame on an
// empty RawFrame.
func (r RawFrame) MarshalTo(b []byte) (int, error) {
	switch r.kind {
	case rawClassic:
		return r.classic.MarshalTo(b)
	case rawFD:
		return r.fd.MarshalTo(b)
	}
	return 0, ErrEmptyFrame
}

// MarshalBinary returns the kernel layout of the held frame.
func (r RawFrame) MarshalBinary() ([]byte, error) {
	if r.kind == rawEmpty {
		return nil, ErrEmptyFrame
	}
	b := make([]byte, r.Size())
	if _, err := r.MarshalTo(b); err != nil {
		return nil, err
	}
	return b, nil
}

// DecodeRawFrame decodes a buffer read from a CAN_RAW socket. The variant is
// selected by length: CAN_MTU for classic, CANFD_MTU for FD frames.
func DecodeRawFrame(b []byte) (RawFrame, error) {
	switch len(b) {
	case CAN_MTU:
		var f ClassicFrame
		if err := f.UnmarshalBinary(b); err != nil {
			return RawFrame{}, err
		}
		return RawClassic(f), nil
	case CANFD_MTU:
		var f FDFrame
		if err := f.UnmarshalBinary(b); err != nil {
			return RawFrame{}, err
		}
		return RawFD(f), nil
	default:
		return RawFrame{}, fmt.Errorf("raw frame decode: %w (%d bytes)", ErrInvalidLength, len(b))
	}
}
