package can

import "fmt"

// fdLenByDLC maps the 4-bit CAN FD DLC to a payload length.
var fdLenByDLC = [16]uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 12, 16, 20, 24, 32, 48, 64}

// FDDLCToLen returns the payload length for an FD DLC. Only the low four
// bits of dlc are used.
func FDDLCToLen(dlc uint8) int { return int(fdLenByDLC[dlc&0x0F]) }

// FDLenToDLC returns the smallest DLC whose length holds n bytes, or false
// if n exceeds CANFD_MAX_DLEN.
func FDLenToDLC(n int) (uint8, bool) {
	if n < 0 || n > CANFD_MAX_DLEN {
		return 0, false
	}
	for dlc, l := range fdLenByDLC {
		if int(l) >= n {
			return uint8(dlc), true
		}
	}
	return 0, false
}

// ValidFDLen reports whether n is one of the lengths an FD frame can carry.
func ValidFDLen(n int) bool {
	dlc, ok := FDLenToDLC(n)
	return ok && FDDLCToLen(dlc) == n
}

// FdFrame is a CAN FD data frame carrying up to 64 bytes.
type FdFrame struct{ raw FDFrame }

// NewFdFrame returns false if data is longer than CANFD_MAX_DLEN. A payload
// whose length is not a valid FD length is zero-padded to the next one.
func NewFdFrame(id ID, data []byte) (*FdFrame, bool) {
	f := &FdFrame{raw: FDFrame{CANID: id.CANID()}}
	if err := f.SetData(data); err != nil {
		return nil, false
	}
	return f, true
}

func fdFrameFromRaw(fd FDFrame) (*FdFrame, error) {
	flags := fd.IDFlags()
	if flags.IsError() || flags.IsRemote() {
		return nil, fmt.Errorf("canfd_frame with RTR/ERR flag: %w", ErrWrongFrameType)
	}
	if !ValidFDLen(int(fd.Len)) {
		return nil, fmt.Errorf("canfd_frame len %d: %w", fd.Len, ErrInvalidLength)
	}
	for i := int(fd.Len); i < CANFD_MAX_DLEN; i++ {
		fd.Data[i] = 0
	}
	return &FdFrame{raw: fd}, nil
}

func (f *FdFrame) IsExtended() bool    { return f.raw.CANID&CAN_EFF_FLAG != 0 }
func (f *FdFrame) IsRemoteFrame() bool { return false }
func (f *FdFrame) ID() ID              { return idFromWord(f.raw.CANID) }
func (f *FdFrame) DLC() int            { return int(f.raw.Len) }
func (f *FdFrame) Data() []byte        { return f.raw.Data[:f.raw.Len] }
func (f *FdFrame) IDWord() uint32      { return f.raw.CANID }
func (f *FdFrame) Raw() RawFrame       { return RawFD(f.raw) }
func (*FdFrame) sealed()               {}

// FD returns a copy of the underlying kernel frame.
func (f *FdFrame) FD() FDFrame { return f.raw }

// Flags returns the FD flags byte.
func (f *FdFrame) Flags() FDFlags { return FDFlags(f.raw.Flags) }

// SetFlags replaces the FD flags byte.
func (f *FdFrame) SetFlags(fl FDFlags) { f.raw.Flags = uint8(fl) }

// SetBRS sets or clears the bit rate switch flag.
func (f *FdFrame) SetBRS(on bool) { f.setFlag(CANFD_BRS, on) }

// SetESI sets or clears the error state indicator flag.
func (f *FdFrame) SetESI(on bool) { f.setFlag(CANFD_ESI, on) }

func (f *FdFrame) setFlag(bit uint8, on bool) {
	if on {
		f.raw.Flags |= bit
	} else {
		f.raw.Flags &^= bit
	}
}

// SetID replaces the identifier. The EFF bit follows the kind of id.
func (f *FdFrame) SetID(id ID) { f.raw.CANID = withID(f.raw.CANID, id) }

// SetData replaces the payload, padding it to the next valid FD length.
func (f *FdFrame) SetData(data []byte) error {
	dlc, ok := FDLenToDLC(len(data))
	if !ok {
		return fmt.Errorf("fd frame set data (%d bytes): %w", len(data), ErrTooMuchData)
	}
	f.raw.Data = [CANFD_MAX_DLEN]byte{}
	copy(f.raw.Data[:], data)
	f.raw.Len = uint8(FDDLCToLen(dlc))
	return nil
}

// FdFrameFromData converts a classic data frame to an FD frame with the same
// identifier and payload and no FD flags.
func FdFrameFromData(d *DataFrame) *FdFrame {
	f := &FdFrame{raw: FDFrame{CANID: d.raw.CANID, Len: d.raw.Len}}
	copy(f.raw.Data[:], d.Data())
	return f
}

// DataFrameFromFd converts an FD frame to a classic data frame. FD flags are
// dropped. It fails with ErrTooMuchData for payloads over 8 bytes.
func DataFrameFromFd(f *FdFrame) (*DataFrame, error) {
	d, ok := NewDataFrame(f.ID(), f.Data())
	if !ok {
		return nil, fmt.Errorf("fd to classic (%d bytes): %w", f.DLC(), ErrTooMuchData)
	}
	return d, nil
}
