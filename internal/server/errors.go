package server

import (
	"errors"

	"github.com/kstaniek/go-socketcan/internal/can"
	"github.com/kstaniek/go-socketcan/internal/metrics"
	"github.com/kstaniek/go-socketcan/internal/serial"
	"github.com/kstaniek/go-socketcan/internal/socketcan"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrListen     = errors.New("listen")
	ErrAccept     = errors.New("accept")
	ErrHandshake  = errors.New("handshake")
	ErrMaxClients = errors.New("max_clients")
	ErrConnRead   = errors.New("conn_read")
	ErrConnWrite  = errors.New("conn_write")
	ErrBackendTx  = errors.New("backend_tx")
	ErrContext    = errors.New("context_cancelled")
)

// isBackpressure reports whether a backend send failed only because the
// transmit queue had no room. Such frames are dropped without raising an error.
func isBackpressure(err error) bool {
	return errors.Is(err, can.ErrWouldBlock) ||
		errors.Is(err, serial.ErrTxOverflow) ||
		errors.Is(err, socketcan.ErrTxOverflow)
}

// mapErrToMetric maps wrapped sentinel errors to metrics labels.
func mapErrToMetric(err error) string {
	switch {
	case errors.Is(err, ErrConnRead):
		return metrics.ErrTCPRead
	case errors.Is(err, ErrConnWrite):
		return metrics.ErrTCPWrite
	case errors.Is(err, ErrHandshake):
		return metrics.ErrHandshake
	case errors.Is(err, ErrBackendTx):
		return metrics.ErrBackendTx
	case errors.Is(err, ErrAccept), errors.Is(err, ErrListen):
		return metrics.ErrTCPRead
	case errors.Is(err, ErrContext):
		return "context"
	default:
		return "other"
	}
}
