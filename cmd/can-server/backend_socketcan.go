package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kstaniek/go-socketcan/internal/can"
	"github.com/kstaniek/go-socketcan/internal/metrics"
	"github.com/kstaniek/go-socketcan/internal/socketcan"
	"github.com/kstaniek/go-socketcan/internal/transport"
)

// openSocketCANDevice is a hook for tests (overridden in unit tests).
var openSocketCANDevice = func(iface string, opts socketcan.Options) (socketcan.Dev, error) {
	d, err := socketcan.Open(iface, opts)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// initSocketCANBackend sets up the SocketCAN backend. One goroutine reads the
// socket into the writer's receive ring, a second drains the ring to the hub.
func initSocketCANBackend(ctx context.Context, cfg *appConfig, pub *publisher, l *slog.Logger, wg *sync.WaitGroup) (func(can.Frame) error, func(), error) {
	opts := socketcan.Options{FD: cfg.canFD, ErrMask: cfg.errMask}
	dev, err := openSocketCANDevice(cfg.canIf, opts)
	if err != nil {
		return nil, func() {}, fmt.Errorf("socketcan open %s: %w", cfg.canIf, err)
	}
	l.Info("socketcan_open", "if", cfg.canIf, "fd", cfg.canFD, "err_mask", fmt.Sprintf("0x%08X", cfg.errMask), "tx_slots", cfg.txSlots)
	tw := socketcan.NewTXWriter(ctx, dev, cfg.txSlots, cfg.rxBuffer)
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer l.Info("socketcan_rx_end")
		var bo rxBackoff
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			raw, err := dev.ReadFrame()
			if err != nil {
				if ctx.Err() != nil { // shutting down
					return
				}
				d := bo.next()
				metrics.IncError(metrics.ErrSocketCANRead)
				l.Warn("socketcan_read_error", "error", err, "kind", can.KindOf(err).String(), "backoff", d)
				sleepFn(d)
				continue
			}
			bo.reset()
			fr, err := can.FrameFromRaw(raw)
			if err != nil {
				metrics.IncMalformed()
				l.Debug("socketcan_frame_rejected", "error", err, "can_id", fmt.Sprintf("0x%08X", raw.IDWord()))
				continue
			}
			metrics.IncRx(metrics.BackendSocketCAN, frameType(fr))
			tw.Deliver(fr)
		}
	}()
	go func() {
		defer wg.Done()
		rx := tw.Blocking()
		for {
			fr, err := rx.Receive(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, transport.ErrQueueClosed) {
					return
				}
				if can.KindOf(err) == can.Overrun {
					l.Warn("socketcan_rx_overrun", "error", err)
					continue
				}
				l.Error("socketcan_rx_queue_error", "error", err)
				return
			}
			pub.publish(fr)
		}
	}()
	send := func(fr can.Frame) error {
		if _, ok := fr.(*can.FdFrame); ok && !cfg.canFD {
			return &socketcan.DeviceError{Op: "write", Err: fmt.Errorf("fd frame with -can-fd disabled: %w", can.ErrInvalidLength)}
		}
		return tw.SendFrame(fr)
	}
	return send, func() { _ = dev.Close(); tw.Close() }, nil
}
