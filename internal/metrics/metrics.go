package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kstaniek/go-can-driver/internal/logging"
)

// Prometheus collectors
var (
	DriverRxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driver_rx_frames_total",
		Help: "Total CAN frames read from the SocketCAN driver.",
	})
	DriverTxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driver_tx_frames_total",
		Help: "Total CAN frames written to the SocketCAN driver.",
	})
	SlcanRxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slcan_rx_frames_total",
		Help: "Total CAN frames decoded from the serial-line CAN link.",
	})
	SlcanTxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slcan_tx_frames_total",
		Help: "Total CAN frames written to the serial-line CAN link.",
	})
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
		Help: "Total CAN frames dropped by the hub due to slow clients.",
	})
	HubKickedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_kicked_clients_total",
		Help: "Total clients disconnected by the backpressure kick policy.",
	})
	HubActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_active_clients",
		Help: "Current number of connected clients.",
	})
	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "malformed_frames_total",
		Help: "Total rejected malformed frames (bad records, truncated input).",
	})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable values to bound cardinality)
const (
	ErrDriverRead  = "driver_read"
	ErrDriverWrite = "driver_write"
	ErrDriverOver  = "driver_tx_overflow"
	ErrSlcanRead   = "slcan_read"
	ErrSlcanWrite  = "slcan_write"
	ErrSlcanOver   = "slcan_tx_overflow"
	ErrTCPRead     = "tcp_read"
	ErrTCPWrite    = "tcp_write"
)

// Local mirrored counters so periodic slog dumps need no in-process scrape.
var (
	localDriverRx  uint64
	localDriverTx  uint64
	localSlcanRx   uint64
	localSlcanTx   uint64
	localTCPRx     uint64
	localTCPTx     uint64
	localHubDrop   uint64
	localHubKick   uint64
	localClients   uint64
	localErrors    uint64
	localMalformed uint64
)

// Snapshot is a cheap copy of the local counters.
type Snapshot struct {
	DriverRx   uint64
	DriverTx   uint64
	SlcanRx    uint64
	SlcanTx    uint64
	TCPRx      uint64
	TCPTx      uint64
	HubDrops   uint64
	HubKicks   uint64
	HubClients uint64
	Errors     uint64
	Malformed  uint64
}

func Snap() Snapshot {
	return Snapshot{
		DriverRx:   atomic.LoadUint64(&localDriverRx),
		DriverTx:   atomic.LoadUint64(&localDriverTx),
		SlcanRx:    atomic.LoadUint64(&localSlcanRx),
		SlcanTx:    atomic.LoadUint64(&localSlcanTx),
		TCPRx:      atomic.LoadUint64(&localTCPRx),
		TCPTx:      atomic.LoadUint64(&localTCPTx),
		HubDrops:   atomic.LoadUint64(&localHubDrop),
		HubKicks:   atomic.LoadUint64(&localHubKick),
		HubClients: atomic.LoadUint64(&localClients),
		Errors:     atomic.LoadUint64(&localErrors),
		Malformed:  atomic.LoadUint64(&localMalformed),
	}
}

func IncDriverRx() {
	DriverRxFrames.Inc()
	atomic.AddUint64(&localDriverRx, 1)
}

// AddDriverRx records a batch of driver reads at once.
func AddDriverRx(n int) {
	DriverRxFrames.Add(float64(n))
	atomic.AddUint64(&localDriverRx, uint64(n))
}

func IncDriverTx() {
	DriverTxFrames.Inc()
	atomic.AddUint64(&localDriverTx, 1)
}

func IncSlcanRx() {
	SlcanRxFrames.Inc()
	atomic.AddUint64(&localSlcanRx, 1)
}

func IncSlcanTx() {
	SlcanTxFrames.Inc()
	atomic.AddUint64(&localSlcanTx, 1)
}

func IncTCPRx() {
	TCPRxFrames.Inc()
	atomic.AddUint64(&localTCPRx, 1)
}

func AddTCPTx(n int) {
	TCPTxFrames.Add(float64(n))
	atomic.AddUint64(&localTCPTx, uint64(n))
}

func IncHubDrop() {
	HubDroppedFrames.Inc()
	atomic.AddUint64(&localHubDrop, 1)
}

func IncHubKick() {
	HubKickedClients.Inc()
	atomic.AddUint64(&localHubKick, 1)
}

func SetHubClients(n int) {
	HubActiveClients.Set(float64(n))
	atomic.StoreUint64(&localClients, uint64(n))
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

func IncMalformed() {
	MalformedFrames.Inc()
	atomic.AddUint64(&localMalformed, 1)
}

// InitBuildInfo sets the build info gauge; call once at startup. Common
// error label series are pre-registered so the first error does not pay
// registration latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{
		ErrDriverRead, ErrDriverWrite, ErrDriverOver,
		ErrSlcanRead, ErrSlcanWrite, ErrSlcanOver,
		ErrTCPRead, ErrTCPWrite,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers the function backing /ready and IsReady.
func SetReadinessFunc(fn func() bool) {
	readinessMu.Lock()
	readinessFn = fn
	readinessMu.Unlock()
}

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // not set yet; report ready so the endpoint doesn't flap
		return true
	}
	return fn()
}

// StartHTTP serves Prometheus metrics at /metrics and a readiness probe at
// /ready on the given address.
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
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}
