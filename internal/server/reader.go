package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/kstaniek/go-socketcan/internal/can"
	"github.com/kstaniek/go-socketcan/internal/cnl"
	"github.com/kstaniek/go-socketcan/internal/hub"
	"github.com/kstaniek/go-socketcan/internal/metrics"
	"github.com/kstaniek/go-socketcan/internal/transport"
)

func (s *Server) startReader(ctxDone <-chan struct{}, conn net.Conn, cl *hub.Client, logger *slog.Logger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { _ = conn.Close() }()
		forward := func(fr can.Frame) { s.forward(fr, logger) }
		for {
			_ = conn.SetReadDeadline(time.Now().Add(s.readDeadline))
			var count int
			var err error
			if mfd, ok := s.Codec.(transport.MultiFrameDecoder); ok {
				count, err = mfd.DecodeN(conn, 16, forward)
			} else {
				var fr can.Frame
				if fr, err = s.Codec.Decode(conn); err == nil {
					forward(fr)
					count = 1
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
					return
				}
				if idleTimeout(err) {
					continue
				}
				wrap := fmt.Errorf("%w: %v", ErrConnRead, err)
				metrics.IncError(mapErrToMetric(wrap))
				s.setError(wrap)
				return
			}
			if count == 0 {
				time.Sleep(100 * time.Microsecond)
			}
			select {
			case <-ctxDone:
				return
			case <-cl.Closed:
				return
			default:
			}
		}
	}()
}

// idleTimeout reports a read deadline that fired at a frame boundary. A
// timeout after part of a frame was read leaves the stream out of step and
// ends the connection like any other truncation.
func idleTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout() && !errors.Is(err, cnl.ErrTruncatedFrame)
}

// forward hands one client frame to the backend. Error frames are bus
// diagnostics and cannot be transmitted, so they are dropped here.
func (s *Server) forward(fr can.Frame, logger *slog.Logger) {
	if can.IsErrorFrame(fr) {
		logger.Debug("client_error_frame_dropped", "can_id", fmt.Sprintf("0x%08X", fr.IDWord()))
		return
	}
	if s.frameFilter != nil && !s.frameFilter(fr) {
		return
	}
	metrics.IncTCPRx()
	if s.Send == nil {
		return
	}
	err := s.Send(fr)
	switch {
	case err == nil:
	case isBackpressure(err):
		s.totalBackendOverflow.Add(1)
		logger.Debug("backend_overflow_drop", "can_id", fmt.Sprintf("0x%X", fr.IDWord()), "len", fr.DLC())
	default:
		wrap := fmt.Errorf("%w: %v", ErrBackendTx, err)
		metrics.IncError(mapErrToMetric(wrap))
		s.setError(wrap)
		s.totalBackendErrors.Add(1)
		logger.Error("backend_tx_error", "error", wrap, "kind", can.KindOf(err).String(), "can_id", fmt.Sprintf("0x%X", fr.IDWord()))
	}
}
