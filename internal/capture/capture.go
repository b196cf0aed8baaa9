// Package capture records CAN traffic as pcap files readable by Wireshark
// (link type LINKTYPE_CAN_SOCKETCAN).
package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/kstaniek/go-socketcan/internal/can"
	"github.com/kstaniek/go-socketcan/internal/metrics"
)

// LinkTypeSocketCAN is LINKTYPE_CAN_SOCKETCAN.
const LinkTypeSocketCAN = layers.LinkType(227)

const (
	headerLen = 8
	snapLen   = headerLen + can.CANFD_MAX_DLEN
)

var ErrClosed = errors.New("capture: writer closed")

// Writer appends frames to a pcap stream. Safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	w      *pcapgo.Writer
	closer io.Closer
	now    func() time.Time
	closed bool
}

// NewWriter writes the pcap file header to w. If w is an io.Closer, Close
// closes it.
func NewWriter(w io.Writer) (*Writer, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, LinkTypeSocketCAN); err != nil {
		return nil, fmt.Errorf("capture header: %w", err)
	}
	cw := &Writer{w: pw, now: time.Now}
	if c, ok := w.(io.Closer); ok {
		cw.closer = c
	}
	return cw, nil
}

// Create truncates or creates path and returns a Writer on it.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("capture create: %w", err)
	}
	w, err := NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

// Record encodes fr in the LINKTYPE_CAN_SOCKETCAN layout: big-endian can_id,
// payload length, flags (CANFD_FDF marks FD frames), two reserved bytes and
// the payload zero-padded to 8 or 64 bytes.
func Record(fr can.Frame) []byte {
	size := headerLen + can.CAN_MAX_DLEN
	var flags byte
	if fd, ok := fr.(*can.FdFrame); ok {
		size = headerLen + can.CANFD_MAX_DLEN
		flags = byte(fd.Flags()) | can.CANFD_FDF
	}
	b := make([]byte, size)
	binary.BigEndian.PutUint32(b[0:4], fr.IDWord())
	b[4] = byte(fr.DLC())
	b[5] = flags
	copy(b[headerLen:], fr.Data())
	return b
}

// WriteFrame appends one record stamped with the current time.
func (w *Writer) WriteFrame(fr can.Frame) error {
	rec := Record(fr)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	ci := gopacket.CaptureInfo{Timestamp: w.now(), CaptureLength: len(rec), Length: len(rec)}
	if err := w.w.WritePacket(ci, rec); err != nil {
		metrics.IncError(metrics.ErrCapture)
		return fmt.Errorf("capture write: %w", err)
	}
	metrics.IncCaptured()
	return nil
}

// Close stops accepting frames and closes the underlying file, if any.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
