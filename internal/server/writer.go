package server

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/kstaniek/go-socketcan/internal/can"
	"github.com/kstaniek/go-socketcan/internal/hub"
	"github.com/kstaniek/go-socketcan/internal/metrics"
	"github.com/kstaniek/go-socketcan/internal/transport"
)

// batchEncoder returns how the configured codec writes a batch to w.
func (s *Server) batchEncoder() func(w io.Writer, frames []can.Frame) error {
	switch c := s.Codec.(type) {
	case transport.FrameBatchEncoder:
		return func(w io.Writer, frames []can.Frame) error {
			_, err := c.EncodeTo(w, frames)
			return err
		}
	case interface{ Encode([]can.Frame) []byte }:
		return func(w io.Writer, frames []can.Frame) error {
			_, err := w.Write(c.Encode(frames))
			return err
		}
	default:
		return func(io.Writer, []can.Frame) error { return transport.ErrNoEncoder }
	}
}

// startWriter launches the goroutine pushing hub frames to a single client
// connection. Frames are flushed when the batch fills or the ticker fires.
func (s *Server) startWriter(ctxDone <-chan struct{}, conn net.Conn, cl *hub.Client, logger *slog.Logger) {
	encode := s.batchEncoder()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			_ = conn.Close()
			if s.Hub != nil {
				s.Hub.Remove(cl)
			}
			s.totalDisconnected.Add(1)
			logger.Info("client_disconnected")
		}()
		t := time.NewTicker(s.flushInterval)
		defer t.Stop()
		batch := make([]can.Frame, 0, s.batchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			n := len(batch)
			if s.writeTimeout > 0 {
				_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			}
			err := encode(conn, batch)
			batch = batch[:0]
			if err != nil {
				wrap := fmt.Errorf("%w: %w", ErrConnWrite, err)
				metrics.IncError(mapErrToMetric(wrap))
				s.setError(wrap)
				logger.Debug("client_write_failed", "error", err, "frames", n)
				return wrap
			}
			metrics.AddTCPTx(n)
			return nil
		}
		for {
			select {
			case fr := <-cl.Out:
				batch = append(batch, fr)
				if len(batch) >= s.batchSize {
					if err := flush(); err != nil {
						return
					}
				}
			case <-t.C:
				if err := flush(); err != nil {
					return
				}
			case <-cl.Closed:
				_ = flush()
				return
			case <-ctxDone:
				_ = flush()
				return
			}
		}
	}()
}
