package socketcan

import (
	"context"
	"fmt"

	"github.com/kstaniek/go-socketcan/internal/can"
	"github.com/kstaniek/go-socketcan/internal/logging"
	"github.com/kstaniek/go-socketcan/internal/metrics"
	"github.com/kstaniek/go-socketcan/internal/transport"
)

// Dev is the minimal interface needed by the backend and TXWriter.
// Implemented by *Device in production and by fakes in tests.
type Dev interface {
	ReadFrame() (can.RawFrame, error)
	WriteFrame(can.RawFrame) error
	Close() error
}

// TXWriter funnels all SocketCAN writes through the priority queue worker and
// buffers received frames for the broadcaster.
type TXWriter struct{ base *transport.Queue }

// NewTXWriter creates a SocketCAN TXWriter with the given number of transmit
// slots and receive ring size.
func NewTXWriter(parent context.Context, dev Dev, slots, rxBuf int) *TXWriter {
	send := func(fr can.Frame) error { return dev.WriteFrame(fr.Raw()) }
	hooks := transport.Hooks{
		OnError: func(err error) {
			metrics.IncError(metrics.ErrSocketCANWrite)
			logging.L().Debug("socketcan_write_error", "error", err, "kind", can.KindOf(err).String())
		},
		OnAfter: func(can.Frame) { metrics.IncTx(metrics.BackendSocketCAN) },
		OnEvict: func(fr can.Frame) {
			metrics.IncTxEvicted()
			logging.L().Debug("tx_evicted", "id", fmt.Sprintf("%08X", fr.IDWord()))
		},
		OnFull: func() error {
			metrics.IncTxBlocked()
			metrics.IncError(metrics.ErrSocketCANOver)
			return fmt.Errorf("%w: %w", ErrTxOverflow, can.ErrWouldBlock)
		},
		OnOverrun: metrics.IncRxOverrun,
	}
	return &TXWriter{base: transport.NewQueue(parent, slots, rxBuf, send, hooks)}
}

// SendFrame queues a frame for asynchronous device write. When the queue is
// full it replaces a lower priority pending frame or fails with ErrTxOverflow.
func (w *TXWriter) SendFrame(fr can.Frame) error { return w.base.SendFrame(fr) }

// Deliver hands a frame read from the device to the receive ring.
func (w *TXWriter) Deliver(fr can.Frame) { w.base.Deliver(fr) }

// NonBlocking exposes the writer as a can.NbCan.
func (w *TXWriter) NonBlocking() can.NbCan { return w.base.NonBlocking() }

// Blocking exposes the writer as a can.Can.
func (w *TXWriter) Blocking() can.Can { return w.base.Blocking() }

// Pending returns the number of occupied transmit slots.
func (w *TXWriter) Pending() int { return w.base.Pending() }

// Close stops the writer and waits for the worker goroutine to finish.
func (w *TXWriter) Close() { w.base.Close() }
