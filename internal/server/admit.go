package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/kstaniek/go-socketcan/internal/cnl"
	"github.com/kstaniek/go-socketcan/internal/metrics"
)

const tcpKeepAlive = 30 * time.Second

// admit prepares an accepted connection for frame traffic: socket options,
// the cannelloni hello, then the client limit. A rejected conn is closed and
// the reason returned.
func (s *Server) admit(ctx context.Context, conn net.Conn, logger *slog.Logger) error {
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
		_ = tcp.SetKeepAlive(true)
		_ = tcp.SetKeepAlivePeriod(tcpKeepAlive)
	}
	if err := cnl.Handshake(ctx, conn, s.handshakeTimeout); err != nil {
		wrap := fmt.Errorf("%w: %w", ErrHandshake, err)
		metrics.IncError(mapErrToMetric(wrap))
		s.setError(wrap)
		s.totalHandshakeFail.Add(1)
		if errors.Is(err, cnl.ErrBadHello) {
			logger.Warn("handshake_bad_hello", "error", err)
		} else {
			logger.Warn("handshake_failed", "error", wrap)
		}
		_ = conn.Close()
		return wrap
	}
	if s.maxClients > 0 && s.Hub != nil && s.Hub.Count() >= s.maxClients {
		metrics.IncHubReject()
		logger.Warn("client_reject_max", "max_clients", s.maxClients)
		_ = conn.Close()
		return ErrMaxClients
	}
	return nil
}
