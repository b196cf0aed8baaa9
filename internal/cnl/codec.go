package cnl

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/kstaniek/go-socketcan/internal/can"
	"github.com/kstaniek/go-socketcan/internal/metrics"
)

// Codec encodes/decodes cannelloni frames. Stateless and safe for concurrent use.
type Codec struct{}

// fdLenFlag marks a CAN FD frame in the length byte; an FD flags byte follows.
const fdLenFlag = 0x80

// ErrInvalidLength is returned when a frame length is outside 0..8 (classic)
// or not a valid CAN FD length.
var ErrInvalidLength = errors.New("cannelloni: invalid length")

// ErrTruncatedFrame is returned when the underlying reader ends mid-frame.
var ErrTruncatedFrame = errors.New("cannelloni: truncated frame")

// ErrInvalidFrame is returned when the header decodes to a combination the
// frame model rejects (an FD frame with RTR or ERR set).
var ErrInvalidFrame = errors.New("cannelloni: invalid frame")

// Encode packs frames into a single cannelloni packet (DATA).
func (c *Codec) Encode(frames []can.Frame) []byte {
	if len(frames) == 0 {
		return nil
	}
	var buf bytes.Buffer
	// Pre-size for classic frames: 4(id)+1(len)+8(data)
	buf.Grow(len(frames) * (4 + 1 + can.CAN_MAX_DLEN))
	_, _ = c.EncodeTo(&buf, frames)
	return buf.Bytes()
}

// EncodeTo writes the wire representation of frames to w and returns bytes written.
// Each frame is encoded as: 4-byte BE composite ID word, 1-byte length
// (0x80 set for FD), FD flags byte (FD only), payload (omitted for RTR).
func (c *Codec) EncodeTo(w io.Writer, frames []can.Frame) (int, error) {
	var total int
	var hdr [6]byte
	for _, f := range frames {
		if f == nil {
			continue
		}
		binary.BigEndian.PutUint32(hdr[0:4], f.IDWord())
		h := hdr[:5]
		hdr[4] = byte(f.DLC())
		if fd, ok := f.(*can.FdFrame); ok {
			hdr[4] |= fdLenFlag
			hdr[5] = byte(fd.Flags())
			h = hdr[:6]
		}
		n, err := w.Write(h)
		total += n
		if err != nil {
			return total, fmt.Errorf("cannelloni encode header: %w", err)
		}
		if data := f.Data(); len(data) > 0 {
			n, err = w.Write(data)
			total += n
			if err != nil {
				return total, fmt.Errorf("cannelloni encode data: %w", err)
			}
		}
	}
	return total, nil
}

// Decode reads exactly one frame from r.
// It returns io.EOF if called at a clean frame boundary and no more data is available.
// A read error before the first byte is returned as is; any later one wraps
// ErrTruncatedFrame.
func (c *Codec) Decode(r io.Reader) (can.Frame, error) {
	var idb [4]byte
	if n, err := io.ReadFull(r, idb[:]); err != nil {
		if n > 0 {
			return nil, c.truncated("id", err)
		}
		return nil, err
	}
	word := binary.BigEndian.Uint32(idb[:])
	var lb [1]byte
	if _, err := io.ReadFull(r, lb[:]); err != nil {
		return nil, c.truncated("len", err)
	}
	ln := int(lb[0] &^ fdLenFlag)

	var raw can.RawFrame
	if lb[0]&fdLenFlag != 0 {
		if !can.ValidFDLen(ln) {
			metrics.IncMalformed()
			return nil, fmt.Errorf("cannelloni decode fd: %w (%d)", ErrInvalidLength, ln)
		}
		var flags [1]byte
		if _, err := io.ReadFull(r, flags[:]); err != nil {
			return nil, c.truncated("flags", err)
		}
		fd := can.FDFrame{CANID: word, Len: uint8(ln), Flags: flags[0]}
		if _, err := io.ReadFull(r, fd.Data[:ln]); err != nil {
			return nil, c.truncated("payload", err)
		}
		raw = can.RawFD(fd)
	} else {
		if ln > can.CAN_MAX_DLEN {
			metrics.IncMalformed()
			return nil, fmt.Errorf("cannelloni decode: %w (%d)", ErrInvalidLength, ln)
		}
		cf := can.ClassicFrame{CANID: word, Len: uint8(ln)}
		if !cf.IDFlags().IsRemote() {
			if _, err := io.ReadFull(r, cf.Data[:ln]); err != nil {
				return nil, c.truncated("payload", err)
			}
		}
		raw = can.RawClassic(cf)
	}
	fr, err := can.FrameFromRaw(raw)
	if err != nil {
		metrics.IncMalformed()
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	return fr, nil
}

// truncated reports a read that failed after part of a frame was consumed.
// The stream cannot be resynchronised, so a timeout here is still a
// truncation; the cause stays in the chain.
func (c *Codec) truncated(what string, err error) error {
	metrics.IncMalformed()
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return fmt.Errorf("cannelloni decode %s: %w", what, ErrTruncatedFrame)
	}
	return fmt.Errorf("cannelloni decode %s: %w: %w", what, ErrTruncatedFrame, err)
}

// DecodeN decodes up to max frames (if max>0) or until EOF (if max<=0) invoking onFrame for each.
// It returns the number of frames decoded and the terminal error (which can be io.EOF).
func (c *Codec) DecodeN(r io.Reader, max int, onFrame func(can.Frame)) (int, error) {
	var n int
	for max <= 0 || n < max {
		fr, err := c.Decode(r)
		if err != nil {
			return n, err
		}
		onFrame(fr)
		n++
	}
	return n, nil
}
