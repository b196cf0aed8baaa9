package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kstaniek/go-socketcan/internal/can"
)

func TestRecordLayout(t *testing.T) {
	d, ok := can.NewDataFrame(can.ExtendedIDUnchecked(0x1234567).ID(), []byte{1, 2, 3})
	require.True(t, ok)
	rec := Record(d)
	require.Len(t, rec, 16)
	assert.Equal(t, uint32(0x81234567), binary.BigEndian.Uint32(rec[0:4]))
	assert.Equal(t, byte(3), rec[4])
	assert.Equal(t, byte(0), rec[5])
	assert.Equal(t, []byte{1, 2, 3, 0, 0, 0, 0, 0}, rec[8:])

	fd, ok := can.NewFdFrame(can.StandardIDUnchecked(0x7).ID(), make([]byte, 20))
	require.True(t, ok)
	fd.SetBRS(true)
	rec = Record(fd)
	require.Len(t, rec, 72)
	assert.Equal(t, byte(20), rec[4])
	assert.Equal(t, byte(can.CANFD_BRS|can.CANFD_FDF), rec[5])

	rtr, ok := can.NewRemoteFrame(can.StandardIDUnchecked(0x10).ID(), 4)
	require.True(t, ok)
	rec = Record(rtr)
	assert.Equal(t, uint32(can.CAN_RTR_FLAG|0x10), binary.BigEndian.Uint32(rec[0:4]))
	assert.Equal(t, byte(4), rec[4])
}

func TestWriterReadBack(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	ts := time.Unix(1700000000, 0)
	w.now = func() time.Time { return ts }

	d, _ := can.NewDataFrame(can.StandardIDUnchecked(0x123).ID(), []byte{0xAA})
	fd, _ := can.NewFdFrame(can.StandardIDUnchecked(0x124).ID(), make([]byte, 64))
	ef := can.EncodeBusError(can.BusError{Type: can.BusErrBusOff})
	for _, f := range []can.Frame{d, fd, ef} {
		require.NoError(t, w.WriteFrame(f))
	}
	require.NoError(t, w.Close())
	assert.True(t, errors.Is(w.WriteFrame(d), ErrClosed))

	r, err := pcapgo.NewReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, LinkTypeSocketCAN, r.LinkType())
	var lens []int
	for {
		data, ci, err := r.ReadPacketData()
		if err != nil {
			break
		}
		assert.True(t, ci.Timestamp.Equal(ts))
		lens = append(lens, len(data))
	}
	assert.Equal(t, []int{16, 72, 16}, lens)
}
