package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kstaniek/go-socketcan/internal/can"
	"github.com/kstaniek/go-socketcan/internal/capture"
	"github.com/kstaniek/go-socketcan/internal/hub"
	"github.com/kstaniek/go-socketcan/internal/metrics"
)

// initBackend selects the backend, starts its RX loop and returns a frame sender and cleanup.
// It returns an error instead of exiting the process to allow graceful handling by the caller.
func initBackend(ctx context.Context, cfg *appConfig, pub *publisher, l *slog.Logger, wg *sync.WaitGroup) (func(can.Frame) error, func(), error) {
	switch cfg.backend {
	case "serial":
		return initSerialBackend(ctx, cfg, pub, l, wg)
	case "socketcan":
		return initSocketCANBackend(ctx, cfg, pub, l, wg)
	default:
		return nil, func() {}, fmt.Errorf("unknown backend %q (use serial|socketcan)", cfg.backend)
	}
}

// publisher hands received frames to the hub and, when enabled, the capture file.
type publisher struct {
	hub     *hub.Hub
	capture *capture.Writer
	l       *slog.Logger
}

func newPublisher(h *hub.Hub, cw *capture.Writer, l *slog.Logger) *publisher {
	return &publisher{hub: h, capture: cw, l: l}
}

func (p *publisher) publish(fr can.Frame) {
	if ef, ok := fr.(*can.ErrorFrame); ok {
		be := ef.BusError()
		metrics.IncBusError(be.Type.String(), be.Kind().String())
		tx, rx := ef.ErrorCounters()
		p.l.Warn("bus_error", "class", be.Type.String(), "kind", be.Kind().String(), "detail", be.Error(), "tx_errors", tx, "rx_errors", rx)
	}
	if p.capture != nil {
		if err := p.capture.WriteFrame(fr); err != nil {
			p.l.Warn("capture_write_error", "error", err)
		}
	}
	p.hub.Broadcast(fr)
}

// frameType is the metrics label for fr.
func frameType(fr can.Frame) string {
	switch fr.(type) {
	case *can.ErrorFrame:
		return "error"
	case *can.RemoteFrame:
		return "remote"
	case *can.FdFrame:
		return "fd"
	default:
		return "data"
	}
}
