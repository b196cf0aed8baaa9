package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kstaniek/go-socketcan/internal/logging"
)

// Bus side (device backends).
var (
	RxFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "can_rx_frames_total",
		Help: "CAN frames read from the backend, by backend and frame type.",
	}, []string{"backend", "type"})
	TxFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "can_tx_frames_total",
		Help: "CAN frames written to the backend.",
	}, []string{"backend"})
	BusErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "can_bus_errors_total",
		Help: "Error frames reported by the controller, by error class and generic kind.",
	}, []string{"class", "kind"})
	TxEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "can_tx_evicted_total",
		Help: "Pending frames replaced in the transmit queue by a higher priority frame.",
	})
	TxBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "can_tx_would_block_total",
		Help: "Transmit attempts rejected because no queue slot was free or replaceable.",
	})
	RxOverruns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "can_rx_overruns_total",
		Help: "Received frames lost because the receive ring was full.",
	})
	CapturedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capture_frames_total",
		Help: "Frames written to the pcap capture file.",
	})
)

// Client side (TCP) and fan-out hub.
var (
	TCPRxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcp_rx_frames_total",
		Help: "Total CAN frames received from TCP clients.",
	})
	TCPTxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcp_tx_frames_total",
		Help: "Total CAN frames sent to TCP clients.",
	})
	HubDroppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_dropped_frames_total",
		Help: "Total CAN frames dropped by hub due to slow clients.",
	})
	HubKickedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_kicked_clients_total",
		Help: "Total clients disconnected due to backpressure kick policy.",
	})
	HubRejectedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_rejected_clients_total",
		Help: "Total client connection attempts rejected (e.g., max-clients).",
	})
	HubActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_active_clients",
		Help: "Current number of active connected clients.",
	})
	HubBroadcastFanout = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_broadcast_fanout",
		Help: "Number of clients targeted in the most recent broadcast.",
	})
	HubQueueDepthMax = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_queue_depth_max",
		Help: "Observed max queued frames among clients in the last sample.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "malformed_frames_total",
		Help: "Total rejected malformed frames (invalid length, truncated, bad flags).",
	})
	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrTCPRead        = "tcp_read"
	ErrTCPWrite       = "tcp_write"
	ErrHandshake      = "handshake"
	ErrBackendTx      = "backend_tx"
	ErrSerialWrite    = "serial_write"
	ErrSerialOverflow = "serial_tx_overflow"
	ErrSerialRead     = "serial_read"
	ErrSocketCANWrite = "socketcan_write"
	ErrSocketCANOver  = "socketcan_tx_overflow"
	ErrSocketCANRead  = "socketcan_read"
	ErrCapture        = "capture_write"
)

// Backend label values.
const (
	BackendSerial    = "serial"
	BackendSocketCAN = "socketcan"
)

// StartHTTP serves Prometheus metrics at /metrics and readiness at /ready.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process)
var (
	localRx         atomic.Uint64
	localTx         atomic.Uint64
	localErrFrames  atomic.Uint64
	localEvicted    atomic.Uint64
	localBlocked    atomic.Uint64
	localOverruns   atomic.Uint64
	localCaptured   atomic.Uint64
	localTCPRx      atomic.Uint64
	localTCPTx      atomic.Uint64
	localHubDrop    atomic.Uint64
	localHubKick    atomic.Uint64
	localHubReject  atomic.Uint64
	localErrors     atomic.Uint64
	localHubClients atomic.Uint64
	localFanout     atomic.Uint64
	localMalformed  atomic.Uint64
	localQDMax      atomic.Uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	Rx            uint64 // all backends, all frame types
	Tx            uint64
	BusErrors     uint64
	TxEvicted     uint64
	TxBlocked     uint64
	RxOverruns    uint64
	Captured      uint64
	TCPRx         uint64
	TCPTx         uint64
	HubDrops      uint64
	HubKicks      uint64
	HubRejects    uint64
	Errors        uint64 // sum across error labels
	HubClients    uint64
	Fanout        uint64
	Malformed     uint64
	QueueDepthMax uint64
}

func Snap() Snapshot {
	return Snapshot{
		Rx:            localRx.Load(),
		Tx:            localTx.Load(),
		BusErrors:     localErrFrames.Load(),
		TxEvicted:     localEvicted.Load(),
		TxBlocked:     localBlocked.Load(),
		RxOverruns:    localOverruns.Load(),
		Captured:      localCaptured.Load(),
		TCPRx:         localTCPRx.Load(),
		TCPTx:         localTCPTx.Load(),
		HubDrops:      localHubDrop.Load(),
		HubKicks:      localHubKick.Load(),
		HubRejects:    localHubReject.Load(),
		Errors:        localErrors.Load(),
		HubClients:    localHubClients.Load(),
		Fanout:        localFanout.Load(),
		Malformed:     localMalformed.Load(),
		QueueDepthMax: localQDMax.Load(),
	}
}

// IncRx counts a frame read from backend; typ is "data", "remote", "fd" or "error".
func IncRx(backend, typ string) {
	RxFrames.WithLabelValues(backend, typ).Inc()
	localRx.Add(1)
}

func IncTx(backend string) {
	TxFrames.WithLabelValues(backend).Inc()
	localTx.Add(1)
}

// IncBusError counts a decoded error frame.
func IncBusError(class, kind string) {
	BusErrors.WithLabelValues(class, kind).Inc()
	localErrFrames.Add(1)
}

func IncTxEvicted() {
	TxEvicted.Inc()
	localEvicted.Add(1)
}

func IncTxBlocked() {
	TxBlocked.Inc()
	localBlocked.Add(1)
}

func IncRxOverrun() {
	RxOverruns.Inc()
	localOverruns.Add(1)
}

func IncCaptured() {
	CapturedFrames.Inc()
	localCaptured.Add(1)
}

func IncTCPRx() {
	TCPRxFrames.Inc()
	localTCPRx.Add(1)
}

func AddTCPTx(n int) {
	TCPTxFrames.Add(float64(n))
	localTCPTx.Add(uint64(n))
}

func IncHubDrop() {
	HubDroppedFrames.Inc()
	localHubDrop.Add(1)
}

func IncHubKick() {
	HubKickedClients.Inc()
	localHubKick.Add(1)
}

func IncHubReject() {
	HubRejectedClients.Inc()
	localHubReject.Add(1)
}

func SetHubClients(n int) {
	HubActiveClients.Set(float64(n))
	localHubClients.Store(uint64(n))
}

func SetBroadcastFanout(n int) {
	HubBroadcastFanout.Set(float64(n))
	localFanout.Store(uint64(n))
}

func SetQueueDepthMax(n int) {
	HubQueueDepthMax.Set(float64(n))
	localQDMax.Store(uint64(n))
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	localErrors.Add(1)
}

func IncMalformed() {
	MalformedFrames.Inc()
	localMalformed.Add(1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	// Pre-register common error label series so first error does not log a registration latency.
	for _, lbl := range []string{
		ErrTCPRead, ErrTCPWrite, ErrHandshake, ErrBackendTx,
		ErrSerialWrite, ErrSerialOverflow, ErrSerialRead,
		ErrSocketCANWrite, ErrSocketCANOver, ErrSocketCANRead,
		ErrCapture,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // if not set yet, treat as ready so metrics endpoint doesn't flap
		return true
	}
	return fn()
}
