package can

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDataFrameCapacity(t *testing.T) {
	id := StandardIDUnchecked(0x123).ID()
	f, ok := NewDataFrame(id, make([]byte, 8))
	require.True(t, ok)
	assert.Equal(t, 8, f.DLC())
	_, ok = NewDataFrame(id, make([]byte, 9))
	assert.False(t, ok)

	f, ok = NewDataFrame(id, nil)
	require.True(t, ok)
	assert.Equal(t, 0, Len(f))
	assert.Empty(t, f.Data())
}

func TestDataFrameIdentity(t *testing.T) {
	s, _ := NewStandardID(0x123)
	f, ok := NewDataFrame(s.ID(), []byte{1, 2, 3})
	require.True(t, ok)
	assert.False(t, f.IsExtended())
	assert.True(t, IsStandard(f))
	assert.True(t, IsDataFrame(f))
	assert.False(t, IsErrorFrame(f))
	assert.Equal(t, uint32(0x123), RawID(f))
	assert.Equal(t, uint32(0x123), f.IDWord())

	e, _ := NewExtendedID(0x1FFFFFF)
	g, ok := NewDataFrame(e.ID(), []byte{0xAA})
	require.True(t, ok)
	assert.True(t, g.IsExtended())
	assert.Equal(t, uint32(0x1FFFFFF), RawID(g))
	assert.Equal(t, uint32(0x1FFFFFF|CAN_EFF_FLAG), g.IDWord())
	assert.Equal(t, e.ID(), g.ID())
}

func TestDataFrameSetters(t *testing.T) {
	f, _ := NewDataFrame(StandardIDUnchecked(1).ID(), []byte{1, 2, 3, 4})
	f.SetID(ExtendedIDUnchecked(0xABCDE).ID())
	assert.True(t, f.IsExtended())
	assert.Equal(t, uint32(0xABCDE), RawID(f))
	f.SetID(StandardIDUnchecked(0x7FF).ID())
	assert.False(t, f.IsExtended())
	assert.Equal(t, uint32(0x7FF), f.IDWord())

	require.NoError(t, f.SetData([]byte{9}))
	assert.Equal(t, []byte{9}, f.Data())
	assert.Equal(t, [8]byte{9}, f.Classic().Data)
	err := f.SetData(make([]byte, 9))
	assert.ErrorIs(t, err, ErrTooMuchData)
	assert.Equal(t, []byte{9}, f.Data())
}

func TestRemoteFrame(t *testing.T) {
	id := StandardIDUnchecked(0x321).ID()
	r, ok := NewRemoteFrame(id, 4)
	require.True(t, ok)
	assert.True(t, r.IsRemoteFrame())
	assert.False(t, IsDataFrame(r))
	assert.Equal(t, 4, r.DLC())
	assert.Nil(t, r.Data())
	assert.Equal(t, uint32(0x321|CAN_RTR_FLAG), r.IDWord())
	assert.Equal(t, uint32(0x321), RawID(r))

	_, ok = NewRemoteFrame(id, 9)
	assert.False(t, ok)
	_, ok = NewRemoteFrame(id, -1)
	assert.False(t, ok)

	r.SetID(ExtendedIDUnchecked(0x1000).ID())
	assert.Equal(t, uint32(0x1000|CAN_RTR_FLAG|CAN_EFF_FLAG), r.IDWord())
	assert.ErrorIs(t, r.SetDLC(9), ErrInvalidLength)
	require.NoError(t, r.SetDLC(8))
	assert.Equal(t, 8, r.DLC())
	assert.ErrorIs(t, r.SetData([]byte{1}), ErrWrongFrameType)
}

func TestFdFrameCapacityAndPadding(t *testing.T) {
	id := ExtendedIDUnchecked(0x1234).ID()
	f, ok := NewFdFrame(id, make([]byte, 64))
	require.True(t, ok)
	assert.Equal(t, 64, f.DLC())
	_, ok = NewFdFrame(id, make([]byte, 65))
	assert.False(t, ok)

	f, ok = NewFdFrame(id, bytes.Repeat([]byte{0xEE}, 9))
	require.True(t, ok)
	assert.Equal(t, 12, f.DLC())
	assert.Equal(t, append(bytes.Repeat([]byte{0xEE}, 9), 0, 0, 0), f.Data())

	for n, want := range map[int]int{0: 0, 8: 8, 13: 16, 17: 20, 21: 24, 25: 32, 33: 48, 49: 64} {
		dlc, ok := FDLenToDLC(n)
		require.True(t, ok, "n=%d", n)
		assert.Equal(t, want, FDDLCToLen(dlc), "n=%d", n)
	}
	assert.True(t, ValidFDLen(48))
	assert.False(t, ValidFDLen(47))
	assert.False(t, ValidFDLen(65))
}

func TestFdFrameFlags(t *testing.T) {
	f, _ := NewFdFrame(StandardIDUnchecked(1).ID(), []byte{1})
	assert.False(t, f.IsRemoteFrame())
	f.SetBRS(true)
	f.SetESI(true)
	assert.True(t, f.Flags().BRS())
	assert.True(t, f.Flags().ESI())
	f.SetBRS(false)
	assert.Equal(t, FDFlags(CANFD_ESI), f.Flags())
	f.SetFlags(0xF0)
	assert.Equal(t, uint8(0xF0), f.FD().Flags)
}

func TestFdClassicConversion(t *testing.T) {
	d, _ := NewDataFrame(ExtendedIDUnchecked(0x99).ID(), []byte{1, 2, 3})
	f := FdFrameFromData(d)
	assert.Equal(t, d.IDWord(), f.IDWord())
	assert.Equal(t, d.Data(), f.Data())

	back, err := DataFrameFromFd(f)
	require.NoError(t, err)
	assert.Equal(t, d, back)

	big, _ := NewFdFrame(StandardIDUnchecked(1).ID(), make([]byte, 12))
	_, err = DataFrameFromFd(big)
	assert.ErrorIs(t, err, ErrTooMuchData)
}

func TestFactories(t *testing.T) {
	id := StandardIDUnchecked(0x10).ID()
	f, ok := Classic.New(id, []byte{1})
	require.True(t, ok)
	assert.IsType(t, &DataFrame{}, f)
	_, ok = Classic.New(id, make([]byte, 9))
	assert.False(t, ok)
	f, ok = Classic.NewRemote(id, 2)
	require.True(t, ok)
	assert.IsType(t, &RemoteFrame{}, f)

	f, ok = FD.New(id, make([]byte, 20))
	require.True(t, ok)
	assert.IsType(t, &FdFrame{}, f)
	_, ok = FD.NewRemote(id, 1)
	assert.False(t, ok)

	f, ok = Errors.New(StandardIDUnchecked(CAN_ERR_BUSOFF).ID(), nil)
	require.True(t, ok)
	assert.True(t, IsErrorFrame(f))
	_, ok = Errors.New(id, make([]byte, 9))
	assert.False(t, ok)
	_, ok = Errors.NewRemote(id, 0)
	assert.False(t, ok)
}

func TestFromRawID(t *testing.T) {
	f, ok := FromRawID(Classic, 0x123, []byte{1})
	require.True(t, ok)
	assert.False(t, f.IsExtended())
	f, ok = FromRawID(Classic, 0x800, nil)
	require.True(t, ok)
	assert.True(t, f.IsExtended())
	_, ok = FromRawID(Classic, 0x20000000, nil)
	assert.False(t, ok)

	r, ok := RemoteFromRawID(Classic, 0x1FFFFFF, 3)
	require.True(t, ok)
	assert.True(t, r.IsRemoteFrame())
	assert.True(t, r.IsExtended())
	_, ok = RemoteFromRawID(Classic, 0x20000000, 3)
	assert.False(t, ok)
}

func TestFrameFromRaw(t *testing.T) {
	_, err := FrameFromRaw(RawFrame{})
	assert.ErrorIs(t, err, ErrEmptyFrame)

	c := ClassicFrame{CANID: 0x123, Len: 2, Data: [8]byte{1, 2, 0xFF, 0xFF}}
	f, err := FrameFromRaw(RawClassic(c))
	require.NoError(t, err)
	require.IsType(t, &DataFrame{}, f)
	assert.Equal(t, []byte{1, 2}, f.Data())
	assert.Equal(t, [8]byte{1, 2}, f.(*DataFrame).Classic().Data)

	c = ClassicFrame{CANID: 0x123 | CAN_RTR_FLAG, Len: 5}
	f, err = FrameFromRaw(RawClassic(c))
	require.NoError(t, err)
	assert.IsType(t, &RemoteFrame{}, f)
	assert.Equal(t, 5, f.DLC())

	c = ClassicFrame{CANID: CAN_ERR_FLAG | CAN_ERR_ACK, Len: 8}
	f, err = FrameFromRaw(RawClassic(c))
	require.NoError(t, err)
	assert.IsType(t, &ErrorFrame{}, f)

	_, err = FrameFromRaw(RawClassic(ClassicFrame{CANID: 1, Len: 9}))
	assert.ErrorIs(t, err, ErrInvalidLength)

	fd := FDFrame{CANID: 0x55 | CAN_EFF_FLAG, Len: 12, Flags: CANFD_BRS}
	f, err = FrameFromRaw(RawFD(fd))
	require.NoError(t, err)
	require.IsType(t, &FdFrame{}, f)
	assert.True(t, f.(*FdFrame).Flags().BRS())

	_, err = FrameFromRaw(RawFD(FDFrame{Len: 13}))
	assert.ErrorIs(t, err, ErrInvalidLength)
	_, err = FrameFromRaw(RawFD(FDFrame{CANID: CAN_RTR_FLAG, Len: 8}))
	assert.ErrorIs(t, err, ErrWrongFrameType)
}

func TestToRawRoundTrip(t *testing.T) {
	frames := []Frame{}
	d, _ := NewDataFrame(ExtendedIDUnchecked(0x1ABCDE).ID(), []byte{1, 2, 3, 4, 5, 6, 7, 8})
	r, _ := NewRemoteFrame(StandardIDUnchecked(0x7).ID(), 1)
	fd, _ := NewFdFrame(StandardIDUnchecked(0x8).ID(), bytes.Repeat([]byte{3}, 32))
	e := EncodeBusError(BusError{Type: BusErrBusOff})
	frames = append(frames, d, r, fd, e)
	for _, in := range frames {
		raw := ToRaw(in)
		b, err := raw.MarshalBinary()
		require.NoError(t, err)
		dec, err := DecodeRawFrame(b)
		require.NoError(t, err)
		out, err := FrameFromRaw(dec)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestFrameErrorsWrap(t *testing.T) {
	f, _ := NewDataFrame(ID{}, nil)
	err := f.SetData(make([]byte, 10))
	if !errors.Is(err, ErrTooMuchData) {
		t.Fatalf("want ErrTooMuchData, got %v", err)
	}
}
