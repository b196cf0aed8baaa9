package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/go-socketcan/internal/metrics"
)

// snapshotAttrs renders cur as log attributes, with per-second bus rates
// computed against prev over dt.
func snapshotAttrs(prev, cur metrics.Snapshot, dt time.Duration) []any {
	rate := func(a, b uint64) float64 {
		if dt <= 0 || b < a {
			return 0
		}
		return float64(b-a) / dt.Seconds()
	}
	return []any{
		"can_rx", cur.Rx,
		"can_tx", cur.Tx,
		"can_rx_per_sec", rate(prev.Rx, cur.Rx),
		"can_tx_per_sec", rate(prev.Tx, cur.Tx),
		"bus_errors", cur.BusErrors,
		"tx_evicted", cur.TxEvicted,
		"tx_blocked", cur.TxBlocked,
		"rx_overruns", cur.RxOverruns,
		"captured", cur.Captured,
		"tcp_rx", cur.TCPRx,
		"tcp_tx", cur.TCPTx,
		"hub_clients", cur.HubClients,
		"hub_drops", cur.HubDrops,
		"malformed", cur.Malformed,
		"errors", cur.Errors,
	}
}

// startMetricsLogger periodically logs the local counters for setups
// without a Prometheus scraper.
func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		prev, last := metrics.Snap(), time.Now()
		for {
			select {
			case now := <-t.C:
				cur := metrics.Snap()
				l.Info("metrics_snapshot", snapshotAttrs(prev, cur, now.Sub(last))...)
				prev, last = cur, now
			case <-ctx.Done():
				return
			}
		}
	}()
}
