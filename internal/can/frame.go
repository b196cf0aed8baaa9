package can

import "fmt"

// Frame is the capability shared by every frame variant: *DataFrame,
// *RemoteFrame, *ErrorFrame and *FdFrame. The set is closed; use a type
// switch to reach variant specific behavior.
type Frame interface {
	// IsExtended reports whether the frame uses a 29-bit identifier.
	IsExtended() bool
	// IsRemoteFrame reports whether the RTR bit is set.
	IsRemoteFrame() bool
	// ID returns the identifier without flag bits.
	ID() ID
	// DLC returns the data length code. It equals len(Data()) for data
	// frames; for remote frames it is the requested response length.
	DLC() int
	// Data returns the payload. The slice aliases the frame and must not be
	// retained across mutations.
	Data() []byte
	// IDWord returns the composite SocketCAN ID word with EFF/RTR/ERR flags.
	IDWord() uint32
	// Raw returns the kernel layout of the frame.
	Raw() RawFrame

	sealed()
}

// IsStandard reports whether f uses an 11-bit identifier.
func IsStandard(f Frame) bool { return !f.IsExtended() }

// IsDataFrame reports whether f is not a remote frame.
func IsDataFrame(f Frame) bool { return !f.IsRemoteFrame() }

// IsErrorFrame reports whether the ERR bit of f is set.
func IsErrorFrame(f Frame) bool { return IDFlagsOf(f.IDWord()).IsError() }

// RawID returns the identifier bits of f's ID word, masked by the width
// matching f's standard/extended status.
func RawID(f Frame) uint32 { return f.IDWord() & maskFor(f.IDWord()) }

// Len returns the length of f, which is its DLC.
func Len(f Frame) int { return f.DLC() }

// DataFrame is a classic CAN data frame carrying 0..8 bytes.
type DataFrame struct{ raw ClassicFrame }

// NewDataFrame returns false if data is longer than CAN_MAX_DLEN.
func NewDataFrame(id ID, data []byte) (*DataFrame, bool) {
	if len(data) > CAN_MAX_DLEN {
		return nil, false
	}
	f := &DataFrame{raw: ClassicFrame{CANID: id.CANID(), Len: uint8(len(data))}}
	copy(f.raw.Data[:], data)
	return f, true
}

func (f *DataFrame) IsExtended() bool    { return f.raw.CANID&CAN_EFF_FLAG != 0 }
func (f *DataFrame) IsRemoteFrame() bool { return false }
func (f *DataFrame) ID() ID              { return idFromWord(f.raw.CANID) }
func (f *DataFrame) DLC() int            { return int(f.raw.Len) }
func (f *DataFrame) Data() []byte        { return f.raw.Data[:f.raw.Len] }
func (f *DataFrame) IDWord() uint32      { return f.raw.CANID }
func (f *DataFrame) Raw() RawFrame       { return RawClassic(f.raw) }
func (*DataFrame) sealed()               {}

// Classic returns a copy of the underlying kernel frame.
func (f *DataFrame) Classic() ClassicFrame { return f.raw }

// SetID replaces the identifier. The EFF bit follows the kind of id.
func (f *DataFrame) SetID(id ID) { f.raw.CANID = withID(f.raw.CANID, id) }

// SetData replaces the payload and DLC.
func (f *DataFrame) SetData(data []byte) error {
	if len(data) > CAN_MAX_DLEN {
		return fmt.Errorf("data frame set data (%d bytes): %w", len(data), ErrTooMuchData)
	}
	f.raw.Data = [CAN_MAX_DLEN]byte{}
	copy(f.raw.Data[:], data)
	f.raw.Len = uint8(len(data))
	return nil
}

// RemoteFrame is a classic remote transmission request. It carries no
// payload; its DLC is the number of bytes requested from the responder.
type RemoteFrame struct{ raw ClassicFrame }

// NewRemoteFrame returns false if dlc is outside 0..8.
func NewRemoteFrame(id ID, dlc int) (*RemoteFrame, bool) {
	if dlc < 0 || dlc > CAN_MAX_DLEN {
		return nil, false
	}
	return &RemoteFrame{raw: ClassicFrame{CANID: id.CANID() | CAN_RTR_FLAG, Len: uint8(dlc)}}, true
}

func (f *RemoteFrame) IsExtended() bool    { return f.raw.CANID&CAN_EFF_FLAG != 0 }
func (f *RemoteFrame) IsRemoteFrame() bool { return true }
func (f *RemoteFrame) ID() ID              { return idFromWord(f.raw.CANID) }
func (f *RemoteFrame) DLC() int            { return int(f.raw.Len) }
func (f *RemoteFrame) Data() []byte        { return nil }
func (f *RemoteFrame) IDWord() uint32      { return f.raw.CANID }
func (f *RemoteFrame) Raw() RawFrame       { return RawClassic(f.raw) }
func (*RemoteFrame) sealed()               {}

// Classic returns a copy of the underlying kernel frame.
func (f *RemoteFrame) Classic() ClassicFrame { return f.raw }

// SetID replaces the identifier; the RTR bit is kept.
func (f *RemoteFrame) SetID(id ID) { f.raw.CANID = withID(f.raw.CANID, id) }

// SetDLC changes the requested length.
func (f *RemoteFrame) SetDLC(dlc int) error {
	if dlc < 0 || dlc > CAN_MAX_DLEN {
		return fmt.Errorf("remote frame dlc %d: %w", dlc, ErrInvalidLength)
	}
	f.raw.Len = uint8(dlc)
	return nil
}

// SetData always fails: remote frames carry no payload.
func (f *RemoteFrame) SetData([]byte) error {
	return fmt.Errorf("remote frame set data: %w", ErrWrongFrameType)
}

// Factory is the construction half of the Frame capability for one frame
// kind. New returns false when data exceeds the capacity of the kind;
// NewRemote returns false when dlc is invalid or the kind has no remote form.
type Factory interface {
	New(id ID, data []byte) (Frame, bool)
	NewRemote(id ID, dlc int) (Frame, bool)
}

// Factories for the supported frame kinds.
var (
	Classic Factory = classicFactory{}
	FD      Factory = fdFactory{}
	Errors  Factory = errorFactory{}
)

type classicFactory struct{}

func (classicFactory) New(id ID, data []byte) (Frame, bool) {
	if f, ok := NewDataFrame(id, data); ok {
		return f, true
	}
	return nil, false
}

func (classicFactory) NewRemote(id ID, dlc int) (Frame, bool) {
	if f, ok := NewRemoteFrame(id, dlc); ok {
		return f, true
	}
	return nil, false
}

type fdFactory struct{}

func (fdFactory) New(id ID, data []byte) (Frame, bool) {
	if f, ok := NewFdFrame(id, data); ok {
		return f, true
	}
	return nil, false
}

// NewRemote always fails: CAN FD has no remote frames.
func (fdFactory) NewRemote(ID, int) (Frame, bool) { return nil, false }

type errorFactory struct{}

// New builds an error frame whose error class is taken from id's bits.
func (errorFactory) New(id ID, data []byte) (Frame, bool) {
	f, err := NewErrorFrame(id.CANID(), data)
	if err != nil {
		return nil, false
	}
	return f, true
}

// NewRemote always fails: an error frame cannot be a remote frame.
func (errorFactory) NewRemote(ID, int) (Frame, bool) { return nil, false }

// FromRawID builds a frame from a bare integer identifier, classified as by
// IDFromRaw.
func FromRawID(fac Factory, raw uint32, data []byte) (Frame, bool) {
	id, ok := IDFromRaw(raw)
	if !ok {
		return nil, false
	}
	return fac.New(id, data)
}

// RemoteFromRawID is FromRawID for remote frames.
func RemoteFromRawID(fac Factory, raw uint32, dlc int) (Frame, bool) {
	id, ok := IDFromRaw(raw)
	if !ok {
		return nil, false
	}
	return fac.NewRemote(id, dlc)
}

// FrameFromRaw classifies a kernel frame into its variant. Classic frames
// with the ERR bit become *ErrorFrame, with the RTR bit *RemoteFrame, and
// *DataFrame otherwise. FD frames become *FdFrame.
func FrameFromRaw(r RawFrame) (Frame, error) {
	if fd, ok := r.FD(); ok {
		return fdFrameFromRaw(fd)
	}
	c, ok := r.Classic()
	if !ok {
		return nil, ErrEmptyFrame
	}
	flags := c.IDFlags()
	switch {
	case flags.IsError():
		return ErrorFrameFromClassic(c)
	case int(c.Len) > CAN_MAX_DLEN:
		return nil, fmt.Errorf("can_frame len %d: %w", c.Len, ErrInvalidLength)
	case flags.IsRemote():
		return &RemoteFrame{raw: c}, nil
	default:
		// Bytes past len are don't-care on the wire; keep them zero so
		// frames compare equal regardless of what the sender left there.
		for i := int(c.Len); i < CAN_MAX_DLEN; i++ {
			c.Data[i] = 0
		}
		return &DataFrame{raw: c}, nil
	}
}

// ToRaw returns the kernel layout of f.
func ToRaw(f Frame) RawFrame { return f.Raw() }
