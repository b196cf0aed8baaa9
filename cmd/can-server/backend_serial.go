package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/kstaniek/go-socketcan/internal/can"
	"github.com/kstaniek/go-socketcan/internal/metrics"
	"github.com/kstaniek/go-socketcan/internal/serial"
)

// openSerialPort is a hook for tests (overridden in unit tests).
var openSerialPort = serial.Open

type readOutcome int

const (
	readRetry readOutcome = iota // pause, then read again
	readSkip                     // read again immediately
	readStop                     // device gone
)

// classifySerialRead decides how the RX loop reacts to a read error. A
// PathError means the device node vanished; EOF is what tarm/serial returns
// when the read timeout expires with no data.
func classifySerialRead(err error) readOutcome {
	var perr *os.PathError
	switch {
	case errors.As(err, &perr):
		return readStop
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return readSkip
	}
	return readRetry
}

// initSerialBackend sets up the serial backend, launching the RX loop.
func initSerialBackend(ctx context.Context, cfg *appConfig, pub *publisher, l *slog.Logger, wg *sync.WaitGroup) (func(can.Frame) error, func(), error) {
	sp, err := openSerialPort(cfg.serialDev, cfg.baud, cfg.serialReadTO)
	if err != nil {
		return nil, func() {}, fmt.Errorf("open serial: %w", err)
	}
	l.Info("serial_open", "device", cfg.serialDev, "baud", cfg.baud, "tx_slots", cfg.txSlots)
	serCodec := serial.Codec{}
	w := serial.NewTXWriter(ctx, sp, serCodec, cfg.txSlots)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer l.Info("serial_rx_end")
		buf := make([]byte, serialReadBufSize)
		acc := bytes.NewBuffer(nil)
		var bo rxBackoff
		for ctx.Err() == nil {
			n, err := sp.Read(buf)
			if n > 0 {
				acc.Write(buf[:n])
				_ = serCodec.DecodeStream(acc, pub.publish)
				if acc.Len() == 0 && cap(acc.Bytes()) > largeBufferReclaimThreshold {
					acc = bytes.NewBuffer(nil)
				}
				bo.reset()
			}
			if err == nil || ctx.Err() != nil {
				continue
			}
			switch classifySerialRead(err) {
			case readStop:
				metrics.IncError(metrics.ErrSerialRead)
				l.Error("serial_device_lost", "device", cfg.serialDev, "error", err)
				return
			case readSkip:
				continue
			}
			d := bo.next()
			metrics.IncError(metrics.ErrSerialRead)
			l.Warn("serial_read_error", "error", err, "backoff", d)
			sleepFn(d)
		}
	}()
	return w.SendFrame, func() { _ = sp.Close(); w.Close() }, nil
}
