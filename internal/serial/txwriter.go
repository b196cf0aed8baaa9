package serial

import (
	"context"
	"errors"
	"fmt"

	"github.com/kstaniek/go-socketcan/internal/can"
	"github.com/kstaniek/go-socketcan/internal/logging"
	"github.com/kstaniek/go-socketcan/internal/metrics"
	"github.com/kstaniek/go-socketcan/internal/transport"
)

var ErrTxOverflow = errors.New("serial tx overflow")

// TXWriter funnels all serial writes through the priority queue worker.
type TXWriter struct{ base *transport.Queue }

// NewTXWriter creates a serial TXWriter with the given number of transmit slots.
func NewTXWriter(parent context.Context, sp Port, codec Codec, slots int) *TXWriter {
	send := func(fr can.Frame) error {
		b, err := codec.Encode(fr)
		if err != nil {
			return err
		}
		_, err = sp.Write(b)
		return err
	}
	hooks := transport.Hooks{
		OnError: func(err error) {
			metrics.IncError(metrics.ErrSerialWrite)
			logging.L().Error("serial_write_error", "error", err)
		},
		OnAfter: func(can.Frame) { metrics.IncTx(metrics.BackendSerial) },
		OnEvict: func(can.Frame) { metrics.IncTxEvicted() },
		OnFull: func() error {
			metrics.IncTxBlocked()
			metrics.IncError(metrics.ErrSerialOverflow)
			return fmt.Errorf("%w: %w", ErrTxOverflow, can.ErrWouldBlock)
		},
	}
	return &TXWriter{base: transport.NewQueue(parent, slots, 1, send, hooks)}
}

// SendFrame queues a frame for asynchronous write. Only classic data frames
// can be carried; anything else is rejected before it takes a slot.
func (w *TXWriter) SendFrame(fr can.Frame) error {
	if _, ok := fr.(*can.DataFrame); !ok {
		return fmt.Errorf("%w %T: %w", ErrUnsupportedFrame, fr, can.ErrWrongFrameType)
	}
	return w.base.SendFrame(fr)
}

// Pending returns the number of occupied transmit slots.
func (w *TXWriter) Pending() int { return w.base.Pending() }

// Close stops the writer and waits for pending goroutine exit.
func (w *TXWriter) Close() { w.base.Close() }
